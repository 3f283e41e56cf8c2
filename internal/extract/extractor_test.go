package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"call-scheduler/internal/llm"
	"call-scheduler/internal/voice"
)

type stubProvider struct {
	reply string
	err   error

	gotReq llm.CompletionRequest
}

func (s *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	s.gotReq = req
	return s.reply, s.err
}

func sampleTranscript() voice.Transcript {
	return voice.Transcript{Turns: []voice.Turn{
		{User: "assistant", Text: "What is your email?"},
		{User: "human", Text: "It is jane@example.com, Tuesday at 3 PM works."},
	}}
}

func TestExtractInfoParsesJSONReply(t *testing.T) {
	p := &stubProvider{reply: `Here is the result:
{"email": "jane@example.com", "scheduled_time": "Tuesday 3 PM", "confidence": "high"}
Hope that helps!`}
	e := New(p)

	info := e.ExtractInfo(context.Background(), sampleTranscript(), Context{InviteeName: "Jane", Occasion: "dentist appointment"})
	if info.Email != "jane@example.com" {
		t.Fatalf("unexpected email %q", info.Email)
	}
	if info.ScheduledTime != "Tuesday 3 PM" {
		t.Fatalf("unexpected time %q", info.ScheduledTime)
	}
	if info.Confidence != ConfidenceHigh {
		t.Fatalf("unexpected confidence %q", info.Confidence)
	}
	if info.Error != "" {
		t.Fatalf("unexpected error %q", info.Error)
	}

	if !strings.Contains(p.gotReq.Prompt, "Jane") || !strings.Contains(p.gotReq.Prompt, "dentist appointment") {
		t.Fatalf("prompt missing call context:\n%s", p.gotReq.Prompt)
	}
	if !strings.Contains(p.gotReq.Prompt, "human: It is jane@example.com") {
		t.Fatalf("prompt missing flattened transcript:\n%s", p.gotReq.Prompt)
	}
}

func TestExtractInfoNoJSONInReply(t *testing.T) {
	p := &stubProvider{reply: "I could not find any email address in this conversation."}
	info := New(p).ExtractInfo(context.Background(), sampleTranscript(), Context{})

	if info.Email != NotFoundExtraction || info.ScheduledTime != NotFoundExtraction {
		t.Fatalf("expected extraction sentinels, got %+v", info)
	}
	if info.Confidence != ConfidenceLow {
		t.Fatalf("unexpected confidence %q", info.Confidence)
	}
	if info.RawExtraction == "" {
		t.Fatalf("expected raw reply to be preserved")
	}
}

func TestExtractInfoMalformedJSON(t *testing.T) {
	p := &stubProvider{reply: `{"email": "jane@example.com", "scheduled_time": }`}
	info := New(p).ExtractInfo(context.Background(), sampleTranscript(), Context{})

	if info.Email != NotFoundParsing || info.ScheduledTime != NotFoundParsing {
		t.Fatalf("expected parsing sentinels, got %+v", info)
	}
	if info.Confidence != ConfidenceLow {
		t.Fatalf("unexpected confidence %q", info.Confidence)
	}
}

func TestExtractInfoProviderError(t *testing.T) {
	p := &stubProvider{err: errors.New("rate limited")}
	info := New(p).ExtractInfo(context.Background(), sampleTranscript(), Context{})

	if info.Email != NotFoundAPI || info.ScheduledTime != NotFoundAPI {
		t.Fatalf("expected API sentinels, got %+v", info)
	}
	if info.Confidence != ConfidenceNone {
		t.Fatalf("unexpected confidence %q", info.Confidence)
	}
	if info.Error != "rate limited" {
		t.Fatalf("unexpected error %q", info.Error)
	}
}

func TestExtractInfoEmptyTranscript(t *testing.T) {
	p := &stubProvider{}
	info := New(p).ExtractInfo(context.Background(), voice.Transcript{}, Context{})

	if info.Confidence != ConfidenceNone {
		t.Fatalf("unexpected confidence %q", info.Confidence)
	}
	if info.Error != "No transcript available" {
		t.Fatalf("unexpected error %q", info.Error)
	}
	if p.gotReq.Prompt != "" {
		t.Fatalf("provider should not be called for empty transcript")
	}
}

func TestExtractInfoDefaultsNameAndOccasion(t *testing.T) {
	p := &stubProvider{reply: `{"email":"x@y.z","scheduled_time":"tbd","confidence":"low"}`}
	New(p).ExtractInfo(context.Background(), sampleTranscript(), Context{})

	if !strings.Contains(p.gotReq.Prompt, "with unknown for a meeting") {
		t.Fatalf("expected fallback name and occasion in prompt:\n%s", p.gotReq.Prompt)
	}
}
