package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultVoice = "josh"

// BlandProvider talks to the Bland AI REST API.
//
// No retries: every provider failure surfaces directly as an error at the
// call site. Timeouts are whatever the injected http.Client carries.
type BlandProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewBlandProvider(httpClient *http.Client, baseURL, apiKey string) *BlandProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BlandProvider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (p *BlandProvider) Name() string { return "bland" }

// PlaceCall posts the fixed call payload. reduce_latency and the office
// background track are always on for more natural calls.
func (p *BlandProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if req.Voice == "" {
		req.Voice = defaultVoice
	}
	req.ReduceLatency = true
	req.BackgroundTrack = "office"

	body, err := json.Marshal(req)
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("voice: encode place-call payload: %w", err)
	}

	raw, err := p.do(ctx, http.MethodPost, "/v1/calls", bytes.NewReader(body))
	if err != nil {
		return PlaceCallResult{}, err
	}

	var envelope struct {
		CallID string `json:"call_id"`
		Status string `json:"status"`
	}
	// Envelope fields are best-effort; the raw body is the authoritative
	// pass-through response.
	_ = json.Unmarshal(raw, &envelope)

	return PlaceCallResult{CallID: envelope.CallID, Status: envelope.Status, Raw: raw}, nil
}

// GetCall polls call details by the provider-assigned identifier.
func (p *BlandProvider) GetCall(ctx context.Context, callID string) (CallDetails, error) {
	raw, err := p.do(ctx, http.MethodGet, "/v1/calls/"+url.PathEscape(callID), nil)
	if err != nil {
		return CallDetails{}, err
	}

	var payload struct {
		CallID      string   `json:"call_id"`
		Status      string   `json:"status"`
		Duration    *float64 `json:"duration"`
		Credits     *float64 `json:"credits"`
		Transcripts []Turn   `json:"transcripts"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CallDetails{}, fmt.Errorf("voice: decode call details: %w", err)
	}

	return CallDetails{
		CallID:      payload.CallID,
		Status:      payload.Status,
		Duration:    payload.Duration,
		Credits:     payload.Credits,
		Transcripts: payload.Transcripts,
		Raw:         raw,
	}, nil
}

func (p *BlandProvider) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("voice: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voice: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
