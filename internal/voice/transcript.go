package voice

import (
	"encoding/json"
	"strings"
)

// Turn is a single speaker-labeled utterance. The provider labels the
// speaker as "user" in poll responses and some webhook payloads; records
// cached locally use "role". Exactly one of the two is set per turn.
type Turn struct {
	User string `json:"user,omitempty"`
	Role string `json:"role,omitempty"`
	Text string `json:"text"`
}

// Speaker returns whichever speaker label the turn carries.
func (t Turn) Speaker() string {
	if t.User != "" {
		return t.User
	}
	return t.Role
}

// Transcript is an ordered sequence of turns, or a single pre-joined string
// when the provider sends the concatenated form. Both wire shapes decode
// into this one type.
type Transcript struct {
	Turns []Turn
	Text  string
}

func (tr *Transcript) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*tr = Transcript{}
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var turns []Turn
		if err := json.Unmarshal(b, &turns); err != nil {
			return err
		}
		*tr = Transcript{Turns: turns}
		return nil
	}
	var text string
	if err := json.Unmarshal(b, &text); err != nil {
		return err
	}
	*tr = Transcript{Text: text}
	return nil
}

func (tr Transcript) MarshalJSON() ([]byte, error) {
	if tr.Turns != nil {
		return json.Marshal(tr.Turns)
	}
	if tr.Text != "" {
		return json.Marshal(tr.Text)
	}
	return []byte("null"), nil
}

// IsEmpty reports whether the transcript carries no content at all.
func (tr Transcript) IsEmpty() bool {
	return len(tr.Turns) == 0 && tr.Text == ""
}

// Flatten renders the transcript as one "speaker: text" line per turn, in
// original order. A pre-joined transcript is returned as-is.
func (tr Transcript) Flatten() string {
	if len(tr.Turns) == 0 {
		return tr.Text
	}
	var b strings.Builder
	for _, turn := range tr.Turns {
		b.WriteString(turn.Speaker())
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// Relabel returns a copy of the transcript with every turn in the cached
// role/text shape, whatever shape the provider sent.
func (tr Transcript) Relabel() Transcript {
	if len(tr.Turns) == 0 {
		return tr
	}
	out := make([]Turn, len(tr.Turns))
	for i, turn := range tr.Turns {
		out[i] = Turn{Role: turn.Speaker(), Text: turn.Text}
	}
	return Transcript{Turns: out}
}
