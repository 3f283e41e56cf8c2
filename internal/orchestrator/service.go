// Package orchestrator composes the voice provider, availability finder
// and transcript extractor behind the public HTTP surface, and merges
// poll/webhook observations into the call registry.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"call-scheduler/internal/auth"
	"call-scheduler/internal/availability"
	"call-scheduler/internal/extract"
	"call-scheduler/internal/registry"
	"call-scheduler/internal/voice"
	"call-scheduler/pkg/logger"
	"call-scheduler/pkg/metrics"
)

// WebhookTokenSubject is the subject claim minted into webhook URLs.
const WebhookTokenSubject = "call-webhook"

// SlotFinder is the availability capability; tests substitute stand-ins.
type SlotFinder interface {
	FindFreeSlots(ctx context.Context, timeMin, timeMax, timezone string) []availability.TimeSlot
}

// InfoExtractor is the transcript-extraction capability.
type InfoExtractor interface {
	ExtractInfo(ctx context.Context, transcript voice.Transcript, callCtx extract.Context) extract.Info
}

// Service drives call placement and state merging.
//
// Concurrency: record mutations go through Store.Update (atomic per call
// id), and the read-check-extract-write sequence is serialized by a
// per-call-id critical section so extraction runs at most once per record.
type Service struct {
	Voice     voice.Provider
	Store     registry.Store
	Finder    SlotFinder
	Extractor InfoExtractor

	// Tokens and WebhookBaseURL are optional; when set, placed calls
	// register a signed callback URL with the provider.
	Tokens         *auth.WebhookTokenManager
	WebhookBaseURL string

	// DefaultVoice overrides the provider's built-in voice when set.
	DefaultVoice string

	Now func() time.Time

	locks keyedLocks
}

// PlaceCallParams is the validated place-call input.
type PlaceCallParams struct {
	PhoneNumber    string
	InviteeName    string
	Occasion       string
	Duration       string
	Availabilities []availability.TimeSlot
}

// PlaceCall formats the availability windows into call instructions, places
// the call and registers a CallRecord. The returned body is the provider's
// raw response, passed through unreshaped.
func (s *Service) PlaceCall(ctx context.Context, p PlaceCallParams) (json.RawMessage, error) {
	log := logger.From(ctx)

	availText, err := formatAvailabilities(p.Availabilities)
	if err != nil {
		return nil, fmt.Errorf("error formatting availabilities: %w", err)
	}

	task := fmt.Sprintf(`Call %s and find a time slot to meet for a %s.
The %s is %s and my availability is %s.
Take my availability, occasion, and duration into account when finding a slot.
A slot cannot be booked before 8am or after 9pm!
Once you find an available slot, ask %s's email so I can send an invite.`,
		p.InviteeName, p.Occasion, p.Occasion, p.Duration, availText, p.InviteeName)

	req := voice.PlaceCallRequest{
		PhoneNumber: p.PhoneNumber,
		Task:        task,
		Voice:       s.DefaultVoice,
	}
	if u, err := s.webhookURL(); err != nil {
		log.Warn("webhook url unavailable, placing call without callback", "err", err)
	} else {
		req.WebhookURL = u
	}

	result, err := s.Voice.PlaceCall(ctx, req)
	if err != nil {
		metrics.CallsPlaced.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.CallsPlaced.WithLabelValues("ok").Inc()

	if result.CallID != "" {
		now := s.timestamp()
		status := result.Status
		if status == "" {
			status = "initiated"
		}
		rec := registry.CallRecord{
			CallID:      result.CallID,
			Status:      status,
			InviteeName: p.InviteeName,
			PhoneNumber: p.PhoneNumber,
			Occasion:    p.Occasion,
			Duration:    p.Duration,
			StartTime:   now,
			Events: []registry.CallEvent{{
				Time:    now,
				Status:  "Call initiated",
				Details: "Call request sent to voice provider",
			}},
		}
		// The call is already placed; a lost record is rehydratable via a
		// status poll, so a store failure must not fail the request.
		if err := s.Store.Put(ctx, rec); err != nil {
			log.Warn("failed to register call record", "call_id", result.CallID, "err", err)
		}
	}

	return result.Raw, nil
}

// CallStatus merges the cached record with a fresh provider poll. For an
// identifier never seen locally the provider response is passed through
// with no local write.
func (s *Service) CallStatus(ctx context.Context, callID string) (any, error) {
	_, ok, err := s.Store.Get(ctx, callID)
	if err != nil {
		return nil, err
	}

	details, err := s.Voice.GetCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return details.Raw, nil
	}

	now := s.timestamp()
	updated, err := s.Store.Update(ctx, callID, func(r *registry.CallRecord) error {
		if details.Status != "" && details.Status != r.Status {
			r.Status = details.Status
			r.Events = append(r.Events, registry.CallEvent{
				Time:    now,
				Status:  "Status changed to " + details.Status,
				Details: "Status update from voice provider",
			})
		}
		if details.Duration != nil {
			r.DurationSeconds = details.Duration
		}
		if details.Credits != nil {
			r.CreditsUsed = details.Credits
		}
		if len(details.Transcripts) > 0 {
			t := voice.Transcript{Turns: details.Transcripts}.Relabel()
			r.Transcript = &t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if details.Status == "completed" && len(details.Transcripts) > 0 && updated.ExtractedInfo == nil {
		updated = s.extractOnce(ctx, callID, voice.Transcript{Turns: details.Transcripts})
	}
	return updated, nil
}

// HandleWebhook merges a provider callback into the registry. Unknown call
// identifiers are ignored, matching the provider's at-least-once delivery.
func (s *Service) HandleWebhook(ctx context.Context, event voice.WebhookEvent, raw []byte) error {
	if event.CallID == "" {
		return nil
	}

	status := event.Status
	if status == "" {
		status = "unknown"
	}
	metrics.WebhooksReceived.WithLabelValues(status).Inc()

	now := s.timestamp()
	_, err := s.Store.Update(ctx, event.CallID, func(r *registry.CallRecord) error {
		r.Status = status
		r.Events = append(r.Events, registry.CallEvent{
			Time:    now,
			Status:  "Webhook update: " + status,
			Details: string(raw),
		})
		if status == "completed" {
			r.EndTime = now
			if event.Credits != nil {
				r.CreditsUsed = event.Credits
			}
			if event.Duration != nil {
				r.DurationSeconds = event.Duration
			}
			if !event.Transcript.IsEmpty() {
				t := event.Transcript
				r.Transcript = &t
			}
		}
		return nil
	})
	if errors.Is(err, registry.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if status == "completed" {
		s.extractOnce(ctx, event.CallID, event.Transcript)
	}
	return nil
}

// ActiveCalls dumps the full registry.
func (s *Service) ActiveCalls(ctx context.Context) (map[string]registry.CallRecord, error) {
	return s.Store.List(ctx)
}

// extractOnce runs transcript extraction at most once per record. The
// per-call lock makes the read-check-extract-write sequence atomic even
// when a poll and a webhook complete the call near-simultaneously.
func (s *Service) extractOnce(ctx context.Context, callID string, transcript voice.Transcript) registry.CallRecord {
	log := logger.From(ctx)

	unlock := s.locks.lock(callID)
	defer unlock()

	rec, ok, err := s.Store.Get(ctx, callID)
	if err != nil || !ok {
		return rec
	}
	if rec.ExtractedInfo != nil {
		return rec
	}

	info := s.Extractor.ExtractInfo(ctx, transcript, extract.Context{
		InviteeName: rec.InviteeName,
		Occasion:    rec.Occasion,
	})
	outcome := "ok"
	if info.Error != "" || strings.HasPrefix(info.Email, "not found (") {
		outcome = "sentinel"
	}
	metrics.Extractions.WithLabelValues(outcome).Inc()

	updated, err := s.Store.Update(ctx, callID, func(r *registry.CallRecord) error {
		if r.ExtractedInfo != nil {
			return nil
		}
		r.ExtractedInfo = &info
		if info.Error != "" {
			r.ExtractionError = info.Error
		}
		return nil
	})
	if err != nil {
		log.Warn("failed to persist extraction result", "call_id", callID, "err", err)
		return rec
	}
	return updated
}

func (s *Service) webhookURL() (string, error) {
	if s.WebhookBaseURL == "" {
		return "", nil
	}
	u := strings.TrimRight(s.WebhookBaseURL, "/") + "/api/call-webhook"
	if s.Tokens != nil {
		token, err := s.Tokens.Sign(WebhookTokenSubject)
		if err != nil {
			return "", err
		}
		u += "?token=" + url.QueryEscape(token)
	}
	return u, nil
}

func (s *Service) timestamp() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Format(time.RFC3339)
}

// formatAvailabilities renders wire slots as human-readable windows for the
// call instructions, e.g. "Monday, January 02 from 09:00 AM to 10:00 AM".
func formatAvailabilities(slots []availability.TimeSlot) (string, error) {
	parts := make([]string, 0, len(slots))
	for _, slot := range slots {
		start, err := parseSlotTime(slot.Start)
		if err != nil {
			return "", fmt.Errorf("invalid slot start %q: %w", slot.Start, err)
		}
		end, err := parseSlotTime(slot.End)
		if err != nil {
			return "", fmt.Errorf("invalid slot end %q: %w", slot.End, err)
		}
		parts = append(parts, start.Format("Monday, January 02 from 03:04 PM")+" to "+end.Format("03:04 PM"))
	}
	return strings.Join(parts, ", "), nil
}

func parseSlotTime(s string) (time.Time, error) {
	if t, err := time.Parse(availability.WireLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// keyedLocks hands out one mutex per call identifier. Entries are never
// freed; call records themselves are process-lifetime, so the lock table
// grows with the registry and no further.
type keyedLocks struct {
	mu   sync.Mutex
	held map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.held == nil {
		k.held = make(map[string]*sync.Mutex)
	}
	m, ok := k.held[key]
	if !ok {
		m = &sync.Mutex{}
		k.held[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
