package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"call-scheduler/internal/auth"
	"call-scheduler/internal/availability"
	"call-scheduler/internal/extract"
	"call-scheduler/internal/llm"
	"call-scheduler/internal/registry"
	"call-scheduler/internal/voice"
)

type fakeVoice struct {
	placeResult voice.PlaceCallResult
	placeErr    error
	details     voice.CallDetails
	getErr      error

	gotPlace voice.PlaceCallRequest
}

func (f *fakeVoice) Name() string { return "fake" }

func (f *fakeVoice) PlaceCall(ctx context.Context, req voice.PlaceCallRequest) (voice.PlaceCallResult, error) {
	f.gotPlace = req
	return f.placeResult, f.placeErr
}

func (f *fakeVoice) GetCall(ctx context.Context, callID string) (voice.CallDetails, error) {
	return f.details, f.getErr
}

type fakeFinder struct {
	slots []availability.TimeSlot
}

func (f fakeFinder) FindFreeSlots(ctx context.Context, timeMin, timeMax, timezone string) []availability.TimeSlot {
	return f.slots
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	info  extract.Info
}

func (f *fakeExtractor) ExtractInfo(ctx context.Context, transcript voice.Transcript, callCtx extract.Context) extract.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = f.calls + 1
	return f.info
}

func (f *fakeExtractor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubCompletion struct{ reply string }

func (s stubCompletion) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return s.reply, nil
}

func fixedNow() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }

func newService(provider voice.Provider, extractor InfoExtractor) *Service {
	return &Service{
		Voice:     provider,
		Store:     registry.NewMemoryStore(),
		Finder:    fakeFinder{},
		Extractor: extractor,
		Now:       fixedNow,
	}
}

func slot(start, end string) availability.TimeSlot {
	return availability.TimeSlot{Start: start, End: end}
}

func TestPlaceCallRegistersRecord(t *testing.T) {
	fv := &fakeVoice{placeResult: voice.PlaceCallResult{
		CallID: "c1",
		Status: "queued",
		Raw:    json.RawMessage(`{"call_id":"c1","status":"queued"}`),
	}}
	svc := newService(fv, &fakeExtractor{})

	raw, err := svc.PlaceCall(context.Background(), PlaceCallParams{
		PhoneNumber:    "+15551234567",
		InviteeName:    "Jane",
		Occasion:       "dentist appointment",
		Duration:       "30 minutes",
		Availabilities: []availability.TimeSlot{slot("2025-06-03T09:00:00Z", "2025-06-03T10:00:00Z")},
	})
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	if string(raw) != `{"call_id":"c1","status":"queued"}` {
		t.Fatalf("expected raw pass-through, got %s", raw)
	}

	task := fv.gotPlace.Task
	if !strings.Contains(task, "Call Jane") || !strings.Contains(task, "dentist appointment") {
		t.Fatalf("task missing call context:\n%s", task)
	}
	if !strings.Contains(task, "A slot cannot be booked before 8am or after 9pm!") {
		t.Fatalf("task missing booking constraint:\n%s", task)
	}
	if !strings.Contains(task, "Tuesday, June 03 from 09:00 AM to 10:00 AM") {
		t.Fatalf("task missing formatted availability:\n%s", task)
	}

	rec, ok, _ := svc.Store.Get(context.Background(), "c1")
	if !ok {
		t.Fatalf("expected record for c1")
	}
	if rec.Status != "queued" || rec.InviteeName != "Jane" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Events) != 1 || rec.Events[0].Status != "Call initiated" {
		t.Fatalf("unexpected events: %+v", rec.Events)
	}
}

func TestPlaceCallSignsWebhookURL(t *testing.T) {
	fv := &fakeVoice{placeResult: voice.PlaceCallResult{CallID: "c1", Raw: json.RawMessage(`{}`)}}
	svc := newService(fv, &fakeExtractor{})
	svc.WebhookBaseURL = "https://calls.example.com"
	tokens, err := auth.NewWebhookTokenManager("secret", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	svc.Tokens = tokens

	if _, err := svc.PlaceCall(context.Background(), PlaceCallParams{
		PhoneNumber:    "+15551234567",
		InviteeName:    "Jane",
		Occasion:       "meeting",
		Duration:       "30 minutes",
		Availabilities: []availability.TimeSlot{slot("2025-06-03T09:00:00Z", "2025-06-03T10:00:00Z")},
	}); err != nil {
		t.Fatalf("place call: %v", err)
	}

	u := fv.gotPlace.WebhookURL
	if !strings.HasPrefix(u, "https://calls.example.com/api/call-webhook?token=") {
		t.Fatalf("unexpected webhook url %q", u)
	}
	subject, err := tokens.Verify(u[strings.Index(u, "token=")+len("token="):])
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if subject != WebhookTokenSubject {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestPlaceCallRejectsBadSlotTime(t *testing.T) {
	svc := newService(&fakeVoice{}, &fakeExtractor{})
	_, err := svc.PlaceCall(context.Background(), PlaceCallParams{
		PhoneNumber:    "+15551234567",
		InviteeName:    "Jane",
		Occasion:       "meeting",
		Duration:       "30 minutes",
		Availabilities: []availability.TimeSlot{slot("tomorrow-ish", "2025-06-03T10:00:00Z")},
	})
	if err == nil {
		t.Fatalf("expected error for malformed slot time")
	}
}

func TestCallStatusUnknownIDPassthrough(t *testing.T) {
	fv := &fakeVoice{details: voice.CallDetails{
		CallID: "stranger",
		Status: "completed",
		Raw:    json.RawMessage(`{"call_id":"stranger","status":"completed"}`),
	}}
	svc := newService(fv, &fakeExtractor{})

	result, err := svc.CallStatus(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("call status: %v", err)
	}
	raw, ok := result.(json.RawMessage)
	if !ok {
		t.Fatalf("expected raw pass-through, got %T", result)
	}
	if string(raw) != `{"call_id":"stranger","status":"completed"}` {
		t.Fatalf("unexpected body: %s", raw)
	}
	if _, ok, _ := svc.Store.Get(context.Background(), "stranger"); ok {
		t.Fatalf("unknown call must not be cached")
	}
}

func TestCallStatusMergesPollAndExtracts(t *testing.T) {
	duration := 61.0
	credits := 0.8
	fv := &fakeVoice{details: voice.CallDetails{
		CallID:      "c1",
		Status:      "completed",
		Duration:    &duration,
		Credits:     &credits,
		Transcripts: []voice.Turn{{User: "human", Text: "jane@example.com works"}},
		Raw:         json.RawMessage(`{}`),
	}}
	fx := &fakeExtractor{info: extract.Info{Email: "jane@example.com", ScheduledTime: "Tuesday 3 PM", Confidence: extract.ConfidenceHigh}}
	svc := newService(fv, fx)
	svc.Store.Put(context.Background(), registry.CallRecord{CallID: "c1", Status: "initiated", InviteeName: "Jane"})

	result, err := svc.CallStatus(context.Background(), "c1")
	if err != nil {
		t.Fatalf("call status: %v", err)
	}
	rec, ok := result.(registry.CallRecord)
	if !ok {
		t.Fatalf("expected merged record, got %T", result)
	}
	if rec.Status != "completed" {
		t.Fatalf("unexpected status %q", rec.Status)
	}
	if len(rec.Events) != 1 || rec.Events[0].Status != "Status changed to completed" {
		t.Fatalf("unexpected events: %+v", rec.Events)
	}
	if rec.DurationSeconds == nil || *rec.DurationSeconds != 61.0 {
		t.Fatalf("duration not merged: %v", rec.DurationSeconds)
	}
	if rec.Transcript == nil || rec.Transcript.Turns[0].Role != "human" {
		t.Fatalf("transcript not relabeled: %+v", rec.Transcript)
	}
	if rec.ExtractedInfo == nil || rec.ExtractedInfo.Email != "jane@example.com" {
		t.Fatalf("extraction missing: %+v", rec.ExtractedInfo)
	}
	if fx.count() != 1 {
		t.Fatalf("expected one extraction, got %d", fx.count())
	}

	// a second poll must not re-extract
	if _, err := svc.CallStatus(context.Background(), "c1"); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if fx.count() != 1 {
		t.Fatalf("expected extraction to run once, got %d", fx.count())
	}
}

func TestHandleWebhookCompleted(t *testing.T) {
	credits := 1.5
	fx := &fakeExtractor{info: extract.Info{Email: "jane@example.com", Confidence: extract.ConfidenceHigh}}
	svc := newService(&fakeVoice{}, fx)
	svc.Store.Put(context.Background(), registry.CallRecord{CallID: "c1", Status: "in-progress"})

	body := []byte(`{"call_id":"c1","status":"completed","credits":1.5}`)
	event := voice.WebhookEvent{
		CallID:     "c1",
		Status:     "completed",
		Credits:    &credits,
		Transcript: voice.Transcript{Turns: []voice.Turn{{User: "human", Text: "jane@example.com"}}},
	}
	if err := svc.HandleWebhook(context.Background(), event, body); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	rec, _, _ := svc.Store.Get(context.Background(), "c1")
	if rec.Status != "completed" {
		t.Fatalf("unexpected status %q", rec.Status)
	}
	if rec.EndTime == "" {
		t.Fatalf("expected end time on completion")
	}
	if rec.CreditsUsed == nil || *rec.CreditsUsed != 1.5 {
		t.Fatalf("credits not merged: %v", rec.CreditsUsed)
	}
	if len(rec.Events) != 1 || rec.Events[0].Status != "Webhook update: completed" {
		t.Fatalf("unexpected events: %+v", rec.Events)
	}
	if rec.Events[0].Details != string(body) {
		t.Fatalf("event should carry the raw body, got %q", rec.Events[0].Details)
	}
	if rec.ExtractedInfo == nil || rec.ExtractedInfo.Email != "jane@example.com" {
		t.Fatalf("extraction missing: %+v", rec.ExtractedInfo)
	}

	// duplicate delivery is harmless and never re-extracts
	if err := svc.HandleWebhook(context.Background(), event, body); err != nil {
		t.Fatalf("duplicate webhook: %v", err)
	}
	if fx.count() != 1 {
		t.Fatalf("expected one extraction, got %d", fx.count())
	}
}

func TestHandleWebhookUnknownCallIgnored(t *testing.T) {
	svc := newService(&fakeVoice{}, &fakeExtractor{})
	event := voice.WebhookEvent{CallID: "never-seen", Status: "completed"}
	if err := svc.HandleWebhook(context.Background(), event, []byte(`{}`)); err != nil {
		t.Fatalf("expected unknown call to be ignored, got %v", err)
	}
	if _, ok, _ := svc.Store.Get(context.Background(), "never-seen"); ok {
		t.Fatalf("unknown call must not create a record")
	}
}

func TestHandleWebhookMissingCallID(t *testing.T) {
	svc := newService(&fakeVoice{}, &fakeExtractor{})
	if err := svc.HandleWebhook(context.Background(), voice.WebhookEvent{}, []byte(`{}`)); err != nil {
		t.Fatalf("expected no-op for missing call_id, got %v", err)
	}
}

func TestHandleWebhookDefaultsUnknownStatus(t *testing.T) {
	svc := newService(&fakeVoice{}, &fakeExtractor{})
	svc.Store.Put(context.Background(), registry.CallRecord{CallID: "c1", Status: "in-progress"})

	if err := svc.HandleWebhook(context.Background(), voice.WebhookEvent{CallID: "c1"}, []byte(`{"call_id":"c1"}`)); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	rec, _, _ := svc.Store.Get(context.Background(), "c1")
	if rec.Status != "unknown" {
		t.Fatalf("unexpected status %q", rec.Status)
	}
	if rec.EndTime != "" {
		t.Fatalf("non-completed webhook must not set end time")
	}
}

func TestExtractOnceConcurrent(t *testing.T) {
	fx := &fakeExtractor{info: extract.Info{Email: "jane@example.com", Confidence: extract.ConfidenceHigh}}
	svc := newService(&fakeVoice{}, fx)
	svc.Store.Put(context.Background(), registry.CallRecord{CallID: "c1", Status: "completed"})

	transcript := voice.Transcript{Turns: []voice.Turn{{User: "human", Text: "jane@example.com"}}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.extractOnce(context.Background(), "c1", transcript)
		}()
	}
	wg.Wait()

	if fx.count() != 1 {
		t.Fatalf("expected exactly one extraction, got %d", fx.count())
	}
}

// End-to-end extraction through the real extractor and a canned model reply.
func TestWebhookExtractionWithRealExtractor(t *testing.T) {
	svc := newService(&fakeVoice{}, extract.New(stubCompletion{
		reply: `{"email": "a@b.com", "scheduled_time": "Tuesday 3 PM", "confidence": "high"}`,
	}))
	svc.Store.Put(context.Background(), registry.CallRecord{CallID: "c1", Status: "in-progress", InviteeName: "Alex", Occasion: "interview"})

	event := voice.WebhookEvent{
		CallID:     "c1",
		Status:     "completed",
		Transcript: voice.Transcript{Turns: []voice.Turn{{User: "human", Text: "a@b.com, Tuesday at 3"}}},
	}
	if err := svc.HandleWebhook(context.Background(), event, []byte(`{}`)); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	rec, _, _ := svc.Store.Get(context.Background(), "c1")
	if rec.ExtractedInfo == nil {
		t.Fatalf("expected extraction result")
	}
	if rec.ExtractedInfo.Email != "a@b.com" || rec.ExtractedInfo.Confidence != extract.ConfidenceHigh {
		t.Fatalf("unexpected extraction: %+v", rec.ExtractedInfo)
	}
}

func TestFormatAvailabilities(t *testing.T) {
	got, err := formatAvailabilities([]availability.TimeSlot{
		slot("2025-06-03T09:00:00Z", "2025-06-03T10:30:00Z"),
		slot("2025-06-04T14:00:00Z", "2025-06-04T15:00:00Z"),
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	want := "Tuesday, June 03 from 09:00 AM to 10:30 AM, Wednesday, June 04 from 02:00 PM to 03:00 PM"
	if got != want {
		t.Fatalf("format mismatch:\n got %q\nwant %q", got, want)
	}
}
