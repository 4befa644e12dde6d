package openai

// ChatCompletionChunk is one SSE frame of a streaming Chat Completions
// response, decoded from the "data: " line between the "\n\n" frame
// delimiters. The stream ends with the literal frame "data: [DONE]",
// which never reaches this type.
type ChatCompletionChunk struct {
	ID      string      `json:"id"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage      `json:"usage,omitempty"`
}

// ChunkChoice is one candidate's incremental update within a chunk.
type ChunkChoice struct {
	Index        int          `json:"index"`
	Delta        ChunkDelta   `json:"delta"`
	FinishReason *string      `json:"finish_reason,omitempty"`
}

// ChunkDelta carries whichever subset of content/reasoning/tool_calls the
// backend chose to include in this frame.
type ChunkDelta struct {
	Role      string           `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	Reasoning string           `json:"reasoning,omitempty"`
	ToolCalls []ToolCall       `json:"tool_calls,omitempty"`
}
