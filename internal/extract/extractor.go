// Package extract pulls structured scheduling facts out of call
// transcripts with a completion-model call. It is a best-effort pipeline:
// every failure mode is absorbed into a sentinel result, never returned as
// an error past the package boundary.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"call-scheduler/internal/llm"
	"call-scheduler/internal/voice"
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceNone   = "none"
)

// Sentinel values for absent fields. The model never signals absence
// structurally; callers compare these by value.
const (
	NotFoundExtraction = "not found (extraction error)"
	NotFoundParsing    = "not found (parsing error)"
	NotFoundAPI        = "not found (API error)"
)

// Info is the extraction result. Email and ScheduledTime hold "not found"
// sentinels rather than empty strings when absent.
type Info struct {
	Email         string `json:"email"`
	ScheduledTime string `json:"scheduled_time"`
	Confidence    string `json:"confidence"`
	RawExtraction string `json:"raw_extraction,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Context is the call metadata embedded in the prompt.
type Context struct {
	InviteeName string
	Occasion    string
}

type Extractor struct {
	provider llm.CompletionProvider

	// Bounded output and low temperature favor deterministic replies.
	maxTokens   int64
	temperature float64
}

func New(provider llm.CompletionProvider) *Extractor {
	return &Extractor{provider: provider, maxTokens: 150, temperature: 0.3}
}

// ExtractInfo normalizes the transcript, prompts the model and recovers a
// JSON object from the reply.
func (e *Extractor) ExtractInfo(ctx context.Context, transcript voice.Transcript, callCtx Context) Info {
	if transcript.IsEmpty() {
		return Info{Confidence: ConfidenceNone, Error: "No transcript available"}
	}

	name := callCtx.InviteeName
	if name == "" {
		name = "unknown"
	}
	occasion := callCtx.Occasion
	if occasion == "" {
		occasion = "meeting"
	}

	prompt := fmt.Sprintf(`Below is a transcript of a scheduling call with %s for a %s.

Transcript:
%s

Please extract the following information:
1. The email address of %s
2. The agreed date and time for the %s

Format your response as JSON with the following structure:
{
    "email": "extracted email or 'not found' if absent",
    "scheduled_time": "extracted date and time or 'not found' if absent",
    "confidence": "high/medium/low based on clarity of the information in the transcript"
}`, name, occasion, transcript.Flatten(), name, occasion)

	reply, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:      "You are a helpful AI assistant that extracts specific information from transcripts.",
		Prompt:      prompt,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return Info{
			Email:         NotFoundAPI,
			ScheduledTime: NotFoundAPI,
			Confidence:    ConfidenceNone,
			Error:         err.Error(),
		}
	}

	return parseReply(reply)
}

// parseReply locates the first-{ .. last-} span of the model output and
// decodes it. Missing or malformed JSON degrades to a sentinel carrying the
// raw reply for inspection.
func parseReply(reply string) Info {
	reply = strings.TrimSpace(reply)

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Info{
			Email:         NotFoundExtraction,
			ScheduledTime: NotFoundExtraction,
			Confidence:    ConfidenceLow,
			RawExtraction: reply,
		}
	}

	var info Info
	if err := json.Unmarshal([]byte(reply[start:end+1]), &info); err != nil {
		return Info{
			Email:         NotFoundParsing,
			ScheduledTime: NotFoundParsing,
			Confidence:    ConfidenceLow,
			RawExtraction: reply,
		}
	}
	return info
}
