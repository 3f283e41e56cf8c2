package registry

import (
	"call-scheduler/internal/extract"
	"call-scheduler/internal/voice"
)

// CallRecord is the cached state of one outbound call, keyed by the
// provider-assigned call identifier. Created on successful placement,
// mutated by status polls and webhook deliveries, never deleted.
//
// Invariants:
// - Events is append-only and time-ordered by insertion.
// - Status reflects the most recent observation from either a poll or a
//   webhook, whichever arrived last.
type CallRecord struct {
	CallID      string `json:"call_id"`
	Status      string `json:"status"`
	InviteeName string `json:"invitee_name"`
	PhoneNumber string `json:"phone_number"`
	Occasion    string `json:"occasion"`
	Duration    string `json:"duration"`

	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`

	// Provider-reported call telemetry, present once observed.
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	CreditsUsed     *float64 `json:"credits_used,omitempty"`

	Transcript      *voice.Transcript `json:"transcript,omitempty"`
	ExtractedInfo   *extract.Info     `json:"extracted_info,omitempty"`
	ExtractionError string            `json:"extraction_error,omitempty"`

	Events []CallEvent `json:"events"`
}

// CallEvent is one observed state change.
type CallEvent struct {
	Time    string `json:"time"`
	Status  string `json:"status"`
	Details string `json:"details"`
}
