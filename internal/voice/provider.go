package voice

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider defines the provider-agnostic interface for outbound voice calls.
//
// Rules:
// - No provider HTTP calls outside voice adapters.
// - Keep request/response types provider-agnostic; raw provider payloads
//   travel alongside the parsed envelope for pass-through responses.
type Provider interface {
	Name() string
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
	GetCall(ctx context.Context, callID string) (CallDetails, error)
}

// PlaceCallRequest is the outbound call payload. PhoneNumber must be E.164;
// the provider, not this layer, rejects malformed numbers.
type PlaceCallRequest struct {
	PhoneNumber     string `json:"phone_number"`
	Task            string `json:"task"`
	Voice           string `json:"voice"`
	ReduceLatency   bool   `json:"reduce_latency"`
	BackgroundTrack string `json:"background_track"`
	WebhookURL      string `json:"webhook,omitempty"`
}

// PlaceCallResult carries the parsed envelope plus the raw provider body,
// which the HTTP surface passes through unreshaped.
type PlaceCallResult struct {
	CallID string
	Status string
	Raw    json.RawMessage
}

// CallDetails is the parsed subset of a call-status poll. Duration and
// Credits are pointers so absence in the provider payload is observable.
type CallDetails struct {
	CallID      string
	Status      string
	Duration    *float64
	Credits     *float64
	Transcripts []Turn
	Raw         json.RawMessage
}

// APIError is a structured provider failure carrying the original HTTP
// status code and response body when available.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("voice: provider returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("voice: provider returned %d", e.StatusCode)
}
