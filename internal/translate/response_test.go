package translate

import (
	"testing"

	"github.com/tidwall/gjson"

	openaischema "github.com/driftwell/clauding/internal/schema/openai"
	"github.com/driftwell/clauding/internal/router"
)

func TestTransformUnaryResponse(t *testing.T) {
	chat := openaischema.ChatCompletion{
		ID: "c1",
		Choices: []openaischema.Choice{
			{Message: openaischema.CompletionMessage{Role: "assistant", Content: "Hello."}, FinishReason: "stop"},
		},
		Usage: &openaischema.Usage{PromptTokens: 1, CompletionTokens: 2},
	}

	resp, err := (ResponseTransformer{}).TransformUnary(chat, "claude-opus-4", router.ReasoningPolicy{})
	if err != nil {
		t.Fatalf("TransformUnary: %v", err)
	}
	if resp.ID != "c1" || resp.Model != "claude-opus-4" || resp.StopReason != "end_turn" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Usage.InputTokens != 1 || resp.Usage.OutputTokens != 2 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if gjson.GetBytes(resp.Content, "0.type").String() != "text" || gjson.GetBytes(resp.Content, "0.text").String() != "Hello." {
		t.Errorf("content = %s", resp.Content)
	}
}

func TestTransformUnaryToolCalls(t *testing.T) {
	chat := openaischema.ChatCompletion{
		Choices: []openaischema.Choice{{
			Message: openaischema.CompletionMessage{
				Role: "assistant",
				ToolCalls: []openaischema.ToolCall{
					{ID: "tc_1", Function: openaischema.ToolCallFunction{Name: "get_weather", Arguments: `{"location":"SF"}`}},
				},
			},
			FinishReason: "tool_calls",
		}},
	}

	resp, err := (ResponseTransformer{}).TransformUnary(chat, "claude-opus-4", router.ReasoningPolicy{})
	if err != nil {
		t.Fatalf("TransformUnary: %v", err)
	}
	if resp.StopReason != "tool_use" {
		t.Errorf("StopReason = %s, want tool_use", resp.StopReason)
	}
	if gjson.GetBytes(resp.Content, "0.type").String() != "tool_use" {
		t.Errorf("content = %s", resp.Content)
	}
	if gjson.GetBytes(resp.Content, "0.input.location").String() != "SF" {
		t.Errorf("parsed tool input missing, content = %s", resp.Content)
	}
}

func TestTransformUnaryMalformedToolArgumentsDoesNotFail(t *testing.T) {
	chat := openaischema.ChatCompletion{
		Choices: []openaischema.Choice{{
			Message: openaischema.CompletionMessage{
				ToolCalls: []openaischema.ToolCall{
					{ID: "tc_1", Function: openaischema.ToolCallFunction{Name: "f", Arguments: "not json"}},
				},
			},
		}},
	}
	resp, err := (ResponseTransformer{}).TransformUnary(chat, "claude-opus-4", router.ReasoningPolicy{})
	if err != nil {
		t.Fatalf("TransformUnary: %v", err)
	}
	if gjson.GetBytes(resp.Content, "0.input.raw").String() != "not json" {
		t.Errorf("content = %s", resp.Content)
	}
}

func TestTransformUnaryReasoningTokensSubtracted(t *testing.T) {
	chat := openaischema.ChatCompletion{
		Choices: []openaischema.Choice{{Message: openaischema.CompletionMessage{Content: "ok"}}},
		Usage: &openaischema.Usage{
			PromptTokens: 10, CompletionTokens: 50,
			CompletionTokensDetails: &openaischema.CompletionTokensDetails{ReasoningTokens: 30},
		},
	}
	resp, err := (ResponseTransformer{}).TransformUnary(chat, "claude-opus-4", router.ReasoningPolicy{})
	if err != nil {
		t.Fatalf("TransformUnary: %v", err)
	}
	if resp.Usage.OutputTokens != 20 {
		t.Errorf("OutputTokens = %d, want 20", resp.Usage.OutputTokens)
	}
}
