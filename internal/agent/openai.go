package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are a helpful assistant. Use the available tools to complete the task, then answer with the final result only."

// maxToolRounds bounds the model/tool round-trips per task.
const maxToolRounds = 6

// ToolAgent drives an OpenAI chat loop with function tools, dispatching
// tool calls to the registered Tools until the model produces a plain
// assistant message.
type ToolAgent struct {
	client openai.Client
	model  string
	tools  []Tool
	log    *slog.Logger
}

func NewToolAgent(apiKey, model string, log *slog.Logger, tools ...Tool) *ToolAgent {
	if log == nil {
		log = slog.Default()
	}
	return &ToolAgent{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		tools:  tools,
		log:    log,
	}
}

func (a *ToolAgent) Run(ctx context.Context, task string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(task),
	}

	toolParams := make([]openai.ChatCompletionToolParam, 0, len(a.tools))
	for _, t := range a.tools {
		toolParams = append(toolParams, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  openai.FunctionParameters(t.Parameters()),
			},
		})
	}

	for round := 0; round < maxToolRounds; round++ {
		params := openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(a.model),
			Messages: messages,
		}
		if len(toolParams) > 0 {
			params.Tools = toolParams
		}

		completion, err := a.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", err
		}
		if len(completion.Choices) == 0 {
			return "", errors.New("agent: completion returned no choices")
		}

		msg := completion.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return strings.TrimSpace(msg.Content), nil
		}

		messages = append(messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			out := a.dispatch(ctx, tc.Function.Name, json.RawMessage(tc.Function.Arguments))
			messages = append(messages, openai.ToolMessage(out, tc.ID))
		}
	}

	return "", fmt.Errorf("agent: task did not terminate within %d tool rounds", maxToolRounds)
}

// dispatch runs the named tool. Tool failures are reported back to the
// model as tool output so it can recover or give up on its own.
func (a *ToolAgent) dispatch(ctx context.Context, name string, args json.RawMessage) string {
	for _, t := range a.tools {
		if t.Name() != name {
			continue
		}
		out, err := t.Call(ctx, args)
		if err != nil {
			a.log.Warn("tool call failed", "tool", name, "err", err)
			return fmt.Sprintf("error: %v", err)
		}
		return out
	}
	a.log.Warn("unknown tool requested", "tool", name)
	return fmt.Sprintf("error: unknown tool %q", name)
}
