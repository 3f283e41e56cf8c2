// Package agent runs natural-language tasks through a tool-calling model.
// The Runner interface exists so availability search can be tested against
// deterministic stand-ins instead of the remote model.
package agent

import (
	"context"
	"encoding/json"
)

// Runner executes one free-text task and returns the agent's terminal
// textual output.
type Runner interface {
	Run(ctx context.Context, task string) (string, error)
}

// Tool is a capability the agent may invoke. Parameters returns a JSON
// schema object describing the arguments.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (string, error)
}
