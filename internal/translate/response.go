package translate

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	anthropicschema "github.com/driftwell/clauding/internal/schema/anthropic"
	openaischema "github.com/driftwell/clauding/internal/schema/openai"
	"github.com/driftwell/clauding/internal/router"
)

// ResponseTransformer converts OpenAI Chat Completions responses (unary or
// streamed, see stream.go) into Anthropic MessagesResponse events.
type ResponseTransformer struct {
	Logger *slog.Logger
}

func (t ResponseTransformer) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// TransformUnary maps one ChatCompletion into one MessagesResponse.
func (t ResponseTransformer) TransformUnary(chat openaischema.ChatCompletion, model string, policy router.ReasoningPolicy) (anthropicschema.MessagesResponse, error) {
	id := chat.ID
	if id == "" {
		id = "msg_" + uuid.NewString()
	}

	var choice openaischema.Choice
	if len(chat.Choices) > 0 {
		choice = chat.Choices[0]
	}

	var blocks []anthropicschema.ContentBlock
	if choice.Message.Reasoning != "" && !policy.Exclude {
		blocks = append(blocks, anthropicschema.ThinkingBlock{Thinking: choice.Message.Reasoning})
	}
	if choice.Message.Content != "" {
		blocks = append(blocks, anthropicschema.TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		input := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(input) {
			t.logger().Warn("tool call arguments are not valid JSON, wrapping raw string",
				"tool_call_id", tc.ID, "name", tc.Function.Name)
			wrapped, err := json.Marshal(map[string]string{"raw": tc.Function.Arguments})
			if err != nil {
				wrapped = []byte(`{}`)
			}
			input = wrapped
		}
		blocks = append(blocks, anthropicschema.ToolUseBlock{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}

	stopReason := mapStopReason(choice.FinishReason)
	usage := mapUsage(chat.Usage)

	return anthropicschema.NewMessagesResponse(id, model, stopReason, blocks, usage)
}

// mapStopReason implements the lossy stop_reason mapping. stop_sequence is
// never produced here: it is only reachable when the backend explicitly
// reports a stop-sequence hit, which the OpenAI Chat Completions schema
// has no field for, so it always collapses to end_turn.
func mapStopReason(finishReason string) string {
	switch finishReason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "tool_calls":
		return "tool_use"
	default:
		return "end_turn"
	}
}

// mapUsage implements the reasoning-token accounting open question: when
// the backend breaks reasoning tokens out separately, subtract them from
// completion_tokens to avoid double-counting output_tokens, but only if
// that yields a non-negative result.
func mapUsage(u *openaischema.Usage) anthropicschema.Usage {
	if u == nil {
		return anthropicschema.Usage{}
	}
	output := u.CompletionTokens
	if u.CompletionTokensDetails != nil {
		if adjusted := u.CompletionTokens - u.CompletionTokensDetails.ReasoningTokens; adjusted >= 0 {
			output = adjusted
		}
	}
	return anthropicschema.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: output,
	}
}
