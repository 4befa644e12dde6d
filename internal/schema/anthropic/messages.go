package anthropic

import (
	"encoding/json"
	"fmt"
)

// MessagesRequest is the body of a POST /v1/messages call.
type MessagesRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        json.RawMessage `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
	Thinking      *ThinkingConfig `json:"thinking,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Message is one turn of conversation. Content is the raw JSON of either a
// plain string or an array of ContentBlock; use Blocks to get it decoded.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// IsPlainString reports whether Content is a bare JSON string rather than a
// content block array.
func (m Message) IsPlainString() (string, bool) {
	var s string
	if err := json.Unmarshal(m.Content, &s); err != nil {
		return "", false
	}
	return s, true
}

// Blocks decodes Content as a content block array. Call IsPlainString first
// to handle the string-content shorthand.
func (m Message) Blocks() ([]ContentBlock, error) {
	return UnmarshalContentBlocks(m.Content)
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoice constrains which tool, if any, the model must call.
type ToolChoice struct {
	Type string `json:"type"` // "auto" | "any" | "tool"
	Name string `json:"name,omitempty"`
}

// ThinkingConfig requests a reasoning trace from the model.
type ThinkingConfig struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int    `json:"budget_tokens"`
}

// SystemText concatenates a MessagesRequest's system prompt into a single
// string, per the rule that a sequence of text blocks is joined with blank
// lines. Returns ("", false) when System is absent.
func SystemText(raw json.RawMessage) (string, bool, error) {
	if len(raw) == 0 {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true, nil
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false, fmt.Errorf("decode system prompt: %w", err)
	}
	text := ""
	for i, b := range blocks {
		if i > 0 {
			text += "\n\n"
		}
		text += b.Text
	}
	return text, len(blocks) > 0, nil
}

// Usage reports token consumption for a MessagesResponse.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// MessagesResponse is the body of a non-streaming POST /v1/messages reply.
type MessagesResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"` // always "message"
	Role       string          `json:"role"` // always "assistant"
	Model      string          `json:"model"`
	Content    json.RawMessage `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      Usage           `json:"usage"`
}

// NewMessagesResponse marshals blocks into Content and fills the constant
// fields of a MessagesResponse.
func NewMessagesResponse(id, model, stopReason string, blocks []ContentBlock, usage Usage) (MessagesResponse, error) {
	content, err := MarshalContentBlocks(blocks)
	if err != nil {
		return MessagesResponse{}, err
	}
	return MessagesResponse{
		ID:         id,
		Type:       "message",
		Role:       "assistant",
		Model:      model,
		Content:    content,
		StopReason: stopReason,
		Usage:      usage,
	}, nil
}
