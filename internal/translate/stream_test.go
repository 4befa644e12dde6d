package translate

import (
	"testing"

	openaischema "github.com/driftwell/clauding/internal/schema/openai"
	anthropicschema "github.com/driftwell/clauding/internal/schema/anthropic"
	"github.com/driftwell/clauding/internal/router"
)

func intPtr(n int) *int       { return &n }
func strPtrS(s string) *string { return &s }

func TestStreamGhostSuppression(t *testing.T) {
	s := NewStreamState("claude-opus-4", router.ReasoningPolicy{Mode: router.ReasoningOff})
	xf := StreamTransformer{}

	frameA := openaischema.ChatCompletionChunk{
		Choices: []openaischema.ChunkChoice{{
			Delta: openaischema.ChunkDelta{
				Role: "assistant",
				ToolCalls: []openaischema.ToolCall{
					{Index: intPtr(0), ID: "tc_X", Function: openaischema.ToolCallFunction{Name: "f"}},
				},
			},
		}},
	}
	frameB := openaischema.ChatCompletionChunk{
		Choices: []openaischema.ChunkChoice{{
			Delta: openaischema.ChunkDelta{
				ToolCalls: []openaischema.ToolCall{
					{Index: intPtr(1), ID: "tc_X", Function: openaischema.ToolCallFunction{Arguments: `{"a":1}`}},
				},
			},
		}},
	}

	eventsA := xf.ProcessChunk(s, frameA)
	eventsB := xf.ProcessChunk(s, frameB)

	allEvents := append(eventsA, eventsB...)

	var starts, deltas int
	for _, e := range allEvents {
		switch v := e.(type) {
		case anthropicschema.ContentBlockStartEvent:
			starts++
			if v.ContentBlock.Type() != "tool_use" {
				t.Errorf("unexpected block type %s", v.ContentBlock.Type())
			}
		case anthropicschema.ContentBlockDeltaEvent:
			deltas++
			if v.Delta.PartialJSON != `{"a":1}` {
				t.Errorf("unexpected partial_json %q", v.Delta.PartialJSON)
			}
		}
	}
	if starts != 1 {
		t.Errorf("expected exactly one content_block_start, got %d", starts)
	}
	if deltas != 1 {
		t.Errorf("expected exactly one content_block_delta, got %d", deltas)
	}
}

func TestStreamTextAfterThinkingClosesThinking(t *testing.T) {
	s := NewStreamState("claude-opus-4", router.ReasoningPolicy{Mode: router.ReasoningEffort, Effort: "high"})
	xf := StreamTransformer{}

	reasoningFrame := openaischema.ChatCompletionChunk{
		Choices: []openaischema.ChunkChoice{{Delta: openaischema.ChunkDelta{Role: "assistant", Reasoning: "thinking..."}}},
	}
	textFrame := openaischema.ChatCompletionChunk{
		Choices: []openaischema.ChunkChoice{{Delta: openaischema.ChunkDelta{Content: "Hello"}}},
	}

	events := xf.ProcessChunk(s, reasoningFrame)
	events = append(events, xf.ProcessChunk(s, textFrame)...)

	var sawThinkingStop, sawTextStart bool
	for i, e := range events {
		if _, ok := e.(anthropicschema.ContentBlockStopEvent); ok {
			sawThinkingStop = true
		}
		if start, ok := e.(anthropicschema.ContentBlockStartEvent); ok && start.ContentBlock.Type() == "text" {
			sawTextStart = true
			if !sawThinkingStop {
				t.Errorf("text block opened at event %d before thinking block was closed", i)
			}
		}
	}
	if !sawThinkingStop || !sawTextStart {
		t.Fatalf("expected both a thinking close and a text open, got %d events", len(events))
	}
}

func TestStreamFinishNoPriorDeltas(t *testing.T) {
	s := NewStreamState("claude-opus-4", router.ReasoningPolicy{Mode: router.ReasoningOff})
	xf := StreamTransformer{}

	events := xf.Finish(s)
	if len(events) != 3 {
		t.Fatalf("expected message_start, message_delta, message_stop; got %d events", len(events))
	}
	if _, ok := events[0].(anthropicschema.MessageStartEvent); !ok {
		t.Errorf("events[0] = %T, want MessageStartEvent", events[0])
	}
	delta, ok := events[1].(anthropicschema.MessageDeltaEvent)
	if !ok {
		t.Fatalf("events[1] = %T, want MessageDeltaEvent", events[1])
	}
	if delta.Delta.StopReason != "end_turn" {
		t.Errorf("StopReason = %s, want end_turn", delta.Delta.StopReason)
	}
	if _, ok := events[2].(anthropicschema.MessageStopEvent); !ok {
		t.Errorf("events[2] = %T, want MessageStopEvent", events[2])
	}
}

func TestStreamToolCallFinishReason(t *testing.T) {
	s := NewStreamState("claude-opus-4", router.ReasoningPolicy{Mode: router.ReasoningOff})
	xf := StreamTransformer{}

	toolFrame := openaischema.ChatCompletionChunk{
		Choices: []openaischema.ChunkChoice{{
			Delta: openaischema.ChunkDelta{
				Role: "assistant",
				ToolCalls: []openaischema.ToolCall{
					{Index: intPtr(0), ID: "tu_9", Function: openaischema.ToolCallFunction{Name: "get_weather"}},
				},
			},
		}},
	}
	argsFrame := openaischema.ChatCompletionChunk{
		Choices: []openaischema.ChunkChoice{{
			Delta: openaischema.ChunkDelta{
				ToolCalls: []openaischema.ToolCall{
					{Index: intPtr(0), ID: "tu_9", Function: openaischema.ToolCallFunction{Arguments: `{"q":"x"}`}},
				},
			},
		}},
	}
	finishFrame := openaischema.ChatCompletionChunk{
		Choices: []openaischema.ChunkChoice{{FinishReason: strPtrS("tool_calls")}},
	}

	var events []any
	events = append(events, xf.ProcessChunk(s, toolFrame)...)
	events = append(events, xf.ProcessChunk(s, argsFrame)...)
	events = append(events, xf.ProcessChunk(s, finishFrame)...)
	events = append(events, xf.Finish(s)...)

	wantKinds := []string{"message_start", "content_block_start", "content_block_delta", "content_block_stop", "message_delta", "message_stop"}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %#v", len(events), len(wantKinds), events)
	}
	delta := events[len(events)-2].(anthropicschema.MessageDeltaEvent)
	if delta.Delta.StopReason != "tool_use" {
		t.Errorf("StopReason = %s, want tool_use", delta.Delta.StopReason)
	}
}
