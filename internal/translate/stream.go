package translate

import (
	"encoding/json"

	"github.com/google/uuid"

	anthropicschema "github.com/driftwell/clauding/internal/schema/anthropic"
	openaischema "github.com/driftwell/clauding/internal/schema/openai"
	"github.com/driftwell/clauding/internal/router"
)

// blockKind tags what an openBlock holds, mirroring the ContentBlock =
// Text | Thinking | ToolCall variant from the streaming state model.
type blockKind int

const (
	blockText blockKind = iota
	blockThinking
	blockToolCall
)

// openBlock is one entry of the per-stream content_blocks sequence: a
// block that has had content_block_start emitted but not yet
// content_block_stop.
type openBlock struct {
	kind       blockKind
	index      int
	toolCallID string
	toolName   string
	argsBuffer string
}

// StreamState is the per-in-flight-stream bookkeeping the streaming
// response transformer threads through every delta. It must never be
// shared across requests.
type StreamState struct {
	id      string
	model   string
	policy  router.ReasoningPolicy
	started bool

	openBlocks    []openBlock
	nextIndex     int
	textIndex     *int
	thinkingIndex *int

	// activeToolCallIDs maps a backend tool-call id to the backend delta
	// index that first introduced it, the critical state for ghost-stream
	// suppression (see processToolCallDeltas and DESIGN.md).
	activeToolCallIDs map[string]int
	// toolCallBlockIndex maps a backend tool-call id to its assigned
	// output content_block index.
	toolCallBlockIndex map[string]int

	finishReason string
	usage        *openaischema.Usage
	inputTokens  int
	thinkingChars int
}

// NewStreamState begins tracking one streaming response. model is the
// Anthropic-visible model name (the route's original request model, not
// the rewritten backend id).
func NewStreamState(model string, policy router.ReasoningPolicy) *StreamState {
	return &StreamState{
		id:                  "msg_" + uuid.NewString(),
		model:               model,
		policy:              policy,
		activeToolCallIDs:   make(map[string]int),
		toolCallBlockIndex:  make(map[string]int),
	}
}

// StreamTransformer turns OpenAI SSE chunks into Anthropic SSE events
// using a StreamState. ProcessChunk and Finish return the events they
// produce; callers write them to the client's SSE writer after each call.
type StreamTransformer struct{}

// ProcessChunk consumes one decoded OpenAI chunk and returns the ordered
// Anthropic events it implies. The events returned may be empty (e.g. a
// chunk that only carries a finish_reason, which is recorded but not
// emitted until Finish).
func (StreamTransformer) ProcessChunk(s *StreamState, chunk openaischema.ChatCompletionChunk) []any {
	var events []any

	if chunk.Usage != nil {
		s.usage = chunk.Usage
	}

	if len(chunk.Choices) == 0 {
		return events
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if !s.started {
		if delta.Role == "assistant" || delta.Role == "" {
			events = append(events, s.messageStartEvent())
			s.started = true
		}
	}

	// A. Reasoning tokens, first per the tie-break order.
	if delta.Reasoning != "" && !s.policy.Exclude {
		events = append(events, s.openThinkingIfNeeded()...)
		idx := *s.thinkingIndex
		events = append(events, anthropicschema.ContentBlockDeltaEvent{
			Type: anthropicschema.EventContentBlockDelta, Index: idx, Delta: anthropicschema.ThinkingDelta(delta.Reasoning),
		})
		s.thinkingChars += len(delta.Reasoning)
	}

	// B. Text content.
	if delta.Content != "" {
		events = append(events, s.closeThinkingIfOpen()...)
		events = append(events, s.openTextIfNeeded()...)
		idx := *s.textIndex
		events = append(events, anthropicschema.ContentBlockDeltaEvent{
			Type: anthropicschema.EventContentBlockDelta, Index: idx, Delta: anthropicschema.TextDelta(delta.Content),
		})
	}

	// C. Tool-call deltas, always processed last.
	if len(delta.ToolCalls) > 0 {
		events = append(events, s.processToolCallDeltas(delta.ToolCalls)...)
	}

	// D. finish_reason: recorded only.
	if choice.FinishReason != nil {
		s.finishReason = *choice.FinishReason
	}

	return events
}

func (s *StreamState) messageStartEvent() anthropicschema.MessageStartEvent {
	input := 0
	if s.usage != nil {
		input = s.usage.PromptTokens
	}
	s.inputTokens = input
	return anthropicschema.MessageStartEvent{
		Type: anthropicschema.EventMessageStart,
		Message: anthropicschema.MessageStartBody{
			ID:      s.id,
			Type:    "message",
			Role:    "assistant",
			Model:   s.model,
			Content: []anthropicschema.ContentBlock{},
			Usage:   anthropicschema.Usage{InputTokens: input, OutputTokens: 0},
		},
	}
}

func (s *StreamState) openThinkingIfNeeded() []any {
	if s.thinkingIndex != nil {
		return nil
	}
	idx := s.allocIndex()
	s.thinkingIndex = &idx
	s.openBlocks = append(s.openBlocks, openBlock{kind: blockThinking, index: idx})
	return []any{anthropicschema.ContentBlockStartEvent{
		Type: anthropicschema.EventContentBlockStart, Index: idx,
		ContentBlock: anthropicschema.ThinkingBlock{Thinking: ""},
	}}
}

func (s *StreamState) closeThinkingIfOpen() []any {
	if s.thinkingIndex == nil {
		return nil
	}
	idx := *s.thinkingIndex
	s.removeOpenBlock(idx)
	s.thinkingIndex = nil
	return []any{anthropicschema.ContentBlockStopEvent{Type: anthropicschema.EventContentBlockStop, Index: idx}}
}

func (s *StreamState) openTextIfNeeded() []any {
	if s.textIndex != nil {
		return nil
	}
	idx := s.allocIndex()
	s.textIndex = &idx
	s.openBlocks = append(s.openBlocks, openBlock{kind: blockText, index: idx})
	return []any{anthropicschema.ContentBlockStartEvent{
		Type: anthropicschema.EventContentBlockStart, Index: idx,
		ContentBlock: anthropicschema.TextBlock{Text: ""},
	}}
}

// processToolCallDeltas implements ghost-stream suppression: a tool-call
// id is only ever bound to the backend delta index that introduced it;
// any later entry for the same id under a different index is a duplicate
// SSE channel some upstream providers emit, and is dropped silently.
func (s *StreamState) processToolCallDeltas(calls []openaischema.ToolCall) []any {
	var events []any
	for _, call := range calls {
		backendIndex := 0
		if call.Index != nil {
			backendIndex = *call.Index
		}

		var blockIndex int
		switch {
		case call.ID != "":
			primary, seen := s.activeToolCallIDs[call.ID]
			if !seen {
				s.activeToolCallIDs[call.ID] = backendIndex
				idx := s.allocIndex()
				s.toolCallBlockIndex[call.ID] = idx
				s.openBlocks = append(s.openBlocks, openBlock{
					kind: blockToolCall, index: idx, toolCallID: call.ID, toolName: call.Function.Name,
				})
				events = append(events, anthropicschema.ContentBlockStartEvent{
					Type: anthropicschema.EventContentBlockStart, Index: idx,
					ContentBlock: anthropicschema.ToolUseBlock{ID: call.ID, Name: call.Function.Name, Input: json.RawMessage("{}")},
				})
				blockIndex = idx
			} else if primary != backendIndex {
				continue // ghost duplicate: drop entirely
			} else {
				blockIndex = s.toolCallBlockIndex[call.ID]
			}

		default:
			// No id: match by backend index against an already-registered
			// primary index. No match means this is an orphan ghost.
			matchedID := ""
			for id, primary := range s.activeToolCallIDs {
				if primary == backendIndex {
					matchedID = id
					break
				}
			}
			if matchedID == "" {
				continue
			}
			blockIndex = s.toolCallBlockIndex[matchedID]
		}

		if call.Function.Arguments != "" {
			for i := range s.openBlocks {
				if s.openBlocks[i].index == blockIndex {
					s.openBlocks[i].argsBuffer += call.Function.Arguments
					break
				}
			}
			events = append(events, anthropicschema.ContentBlockDeltaEvent{
				Type: anthropicschema.EventContentBlockDelta, Index: blockIndex,
				Delta: anthropicschema.InputJSONDelta(call.Function.Arguments),
			})
		}
	}
	return events
}

func (s *StreamState) allocIndex() int {
	idx := s.nextIndex
	s.nextIndex++
	return idx
}

func (s *StreamState) removeOpenBlock(index int) {
	for i, b := range s.openBlocks {
		if b.index == index {
			s.openBlocks = append(s.openBlocks[:i], s.openBlocks[i+1:]...)
			return
		}
	}
}

// Finish closes every remaining open block (in reverse order of opening)
// and emits the terminal message_delta and message_stop events. Call
// exactly once, on [DONE] or backend EOF.
func (StreamTransformer) Finish(s *StreamState) []any {
	var events []any

	if !s.started {
		events = append(events, s.messageStartEvent())
	}

	for i := len(s.openBlocks) - 1; i >= 0; i-- {
		b := s.openBlocks[i]
		events = append(events, anthropicschema.ContentBlockStopEvent{Type: anthropicschema.EventContentBlockStop, Index: b.index})
	}
	s.openBlocks = nil

	outputTokens := s.estimateOutputTokens()
	events = append(events, anthropicschema.MessageDeltaEvent{
		Type: anthropicschema.EventMessageDelta,
		Delta: anthropicschema.MessageDeltaBody{
			StopReason:   mapStopReason(s.finishReason),
			StopSequence: nil,
		},
		Usage: anthropicschema.MessageDeltaUsage{OutputTokens: outputTokens},
	})
	events = append(events, anthropicschema.MessageStopEvent{Type: anthropicschema.EventMessageStop})
	return events
}

// estimateOutputTokens prefers the backend's reported completion_tokens;
// absent that (some backends omit usage on every chunk but the last, or
// omit it entirely when the client disconnects early), it falls back to
// the thinking-character approximation from §4.5.B, char-length/4.
func (s *StreamState) estimateOutputTokens() int {
	if s.usage != nil {
		return s.usage.CompletionTokens
	}
	return s.thinkingChars / 4
}

// FinishReason exposes the last-observed finish_reason for the usage
// meter; empty when the backend never sent one.
func (s *StreamState) FinishReason() string { return s.finishReason }

// Usage exposes the last-observed usage object, if any.
func (s *StreamState) Usage() *openaischema.Usage { return s.usage }

// UsageInputTokens exposes the prompt token count observed at
// message_start, for the usage meter.
func (s *StreamState) UsageInputTokens() int { return s.inputTokens }

// UsageOutputTokens exposes the best available output token count: the
// backend's reported completion_tokens, or the thinking-character
// approximation when the backend never reported usage (including a
// client-cancelled stream cut short mid-flight).
func (s *StreamState) UsageOutputTokens() int { return s.estimateOutputTokens() }
