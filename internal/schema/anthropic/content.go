// Package anthropic models the Anthropic Messages API wire format: the
// request and response bodies the gateway exposes to clients, and the SSE
// event types it emits in streaming mode.
package anthropic

import (
	"encoding/json"
	"fmt"
)

// ContentBlock is the tagged union of everything that can appear in a
// Message's content or a MessagesResponse's content: Text, Image, ToolUse,
// ToolResult, and Thinking. Callers dispatch either on Type() or on the
// concrete Go type; an unknown "type" discriminator is rejected when the
// content is decoded in this package.
type ContentBlock interface {
	Type() string
}

// TextBlock is a plain text content block.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) Type() string { return "text" }

// ThinkingBlock carries a model's reasoning trace.
type ThinkingBlock struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

func (ThinkingBlock) Type() string { return "thinking" }

// ImageSource is the inline base64 payload of an ImageBlock.
type ImageSource struct {
	SourceType string `json:"type"`
	MediaType  string `json:"media_type"`
	Data       string `json:"data"`
}

// ImageBlock is an inline base64-encoded image.
type ImageBlock struct {
	Source ImageSource `json:"source"`
}

func (ImageBlock) Type() string { return "image" }

// ToolUseBlock is a model-initiated function call.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func (ToolUseBlock) Type() string { return "tool_use" }

// ToolResultBlock carries the outcome of executing a ToolUseBlock.
//
// Content holds the raw JSON of the "content" field, which may be a JSON
// string, an array of text blocks, or something else entirely (in which
// case the transformer passes those raw bytes through verbatim as the
// tool message's content).
type ToolResultBlock struct {
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

func (ToolResultBlock) Type() string { return "tool_result" }

// blockEnvelope is the shape used to sniff a content block's discriminator
// before unmarshaling into its concrete type.
type blockEnvelope struct {
	Type string `json:"type"`
}

// UnmarshalContentBlocks decodes a JSON array of discriminated content
// blocks into their concrete ContentBlock types.
func UnmarshalContentBlocks(raw json.RawMessage) ([]ContentBlock, error) {
	var envelopes []json.RawMessage
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return nil, fmt.Errorf("decode content block array: %w", err)
	}
	blocks := make([]ContentBlock, 0, len(envelopes))
	for _, env := range envelopes {
		block, err := unmarshalContentBlock(env)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func unmarshalContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var head blockEnvelope
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("sniff content block type: %w", err)
	}
	switch head.Type {
	case "text":
		var b TextBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decode text block: %w", err)
		}
		return b, nil
	case "thinking":
		var b ThinkingBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decode thinking block: %w", err)
		}
		return b, nil
	case "image":
		var b ImageBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decode image block: %w", err)
		}
		return b, nil
	case "tool_use":
		var b ToolUseBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decode tool_use block: %w", err)
		}
		return b, nil
	case "tool_result":
		var b ToolResultBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decode tool_result block: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown content block type %q", head.Type)
	}
}

// MarshalContentBlocks encodes a slice of ContentBlock back into a JSON
// array, tagging each element with its discriminator.
func MarshalContentBlocks(blocks []ContentBlock) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(blocks))
	for _, b := range blocks {
		tagged, err := marshalTagged(b)
		if err != nil {
			return nil, err
		}
		raw = append(raw, tagged)
	}
	return json.Marshal(raw)
}

func marshalTagged(b ContentBlock) (json.RawMessage, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal %s block: %w", b.Type(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("re-decode %s block: %w", b.Type(), err)
	}
	typeJSON, err := json.Marshal(b.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = typeJSON
	return json.Marshal(fields)
}
