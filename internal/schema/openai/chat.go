// Package openai models the OpenAI Chat Completions wire format: the
// request body the gateway sends to a backend, the unary response it may
// receive, and the SSE delta chunks of a streaming response.
package openai

import "encoding/json"

// ChatCompletionRequest is the body the gateway sends to an
// OpenAI-compatible backend. ExtraBody is excluded from marshaling and is
// not read by translate.MarshalBackendBody; the extra-body keys that reach
// the top level of the backend JSON are the separate map returned by
// translate.RequestTransformer.Transform, never a nested "extra_body".
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	Tools       []Tool        `json:"tools,omitempty"`
	ToolChoice  any           `json:"tool_choice,omitempty"`

	ExtraBody map[string]any `json:"-"`
}

// ChatMessage is one entry of a ChatCompletionRequest's messages array, or
// of a ChatCompletion choice's message. Content holds a plain string, a
// []ContentPart array, or nil, depending on what a given message needs.
type ChatMessage struct {
	Role       string        `json:"role"`
	Content    any           `json:"content,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	Name       string        `json:"name,omitempty"`
	Reasoning  string        `json:"reasoning,omitempty"`
}

// ContentPart is one element of a multimodal ChatMessage.Content array.
type ContentPart struct {
	Type     string    `json:"type"` // "text" | "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps a data: URL for an image_url content part.
type ImageURL struct {
	URL string `json:"url"`
}

// Tool is a function tool definition in OpenAI's schema.
type Tool struct {
	Type     string       `json:"type"` // "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction names a callable function and its JSON Schema parameters.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall is a model-requested function invocation, either complete (in a
// unary ChatCompletion) or in the middle of being assembled from SSE
// deltas (in a streaming chunk, where Index identifies which call a given
// delta belongs to).
type ToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction is the name/arguments payload of a ToolCall. Arguments
// accumulates incrementally across streaming deltas for a given call.
type ToolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Usage reports token consumption, optionally broken out by reasoning
// tokens when the backend supports that level of detail.
type Usage struct {
	PromptTokens            int                      `json:"prompt_tokens"`
	CompletionTokens        int                      `json:"completion_tokens"`
	TotalTokens             int                      `json:"total_tokens"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details,omitempty"`
}

// CompletionTokensDetails breaks completion_tokens down further.
type CompletionTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

// ChatCompletion is a non-streaming Chat Completions response.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion candidate. The gateway only ever consumes
// index 0.
type Choice struct {
	Index        int             `json:"index"`
	Message      CompletionMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// CompletionMessage is the message body of a unary Choice.
type CompletionMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Reasoning string     `json:"reasoning,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}
