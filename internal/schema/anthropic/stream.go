package anthropic

import "encoding/json"

// Event names emitted on the /v1/messages SSE stream, in the fixed order
// described by the streaming protocol: MessageStart once, then a
// ContentBlockStart/ContentBlockDelta*/ContentBlockStop run per block,
// then one MessageDelta and one MessageStop.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventError             = "error"
)

// MessageStartEvent opens a stream with a skeleton message.
type MessageStartEvent struct {
	Type    string           `json:"type"`
	Message MessageStartBody `json:"message"`
}

// MessageStartBody is the skeleton message carried by MessageStartEvent:
// empty content, zero output tokens, filled in as the stream progresses.
type MessageStartBody struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Role    string         `json:"role"`
	Model   string         `json:"model"`
	Content []ContentBlock `json:"content"`
	Usage   Usage          `json:"usage"`
}

// ContentBlockStartEvent opens a new content block at Index.
type ContentBlockStartEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// ContentBlockDeltaEvent carries an incremental update to the block at
// Index. Delta is one of TextDelta, ThinkingDelta, or InputJSONDelta.
type ContentBlockDeltaEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta Delta  `json:"delta"`
}

// Delta is the tagged payload of a ContentBlockDeltaEvent.
type Delta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

func TextDelta(text string) Delta        { return Delta{Type: "text_delta", Text: text} }
func ThinkingDelta(thinking string) Delta { return Delta{Type: "thinking_delta", Thinking: thinking} }
func InputJSONDelta(partial string) Delta { return Delta{Type: "input_json_delta", PartialJSON: partial} }

// ContentBlockStopEvent closes the block at Index.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDeltaEvent carries the terminal stop_reason and final usage
// tallies; emitted exactly once per stream, after every block has closed.
type MessageDeltaEvent struct {
	Type  string           `json:"type"`
	Delta MessageDeltaBody `json:"delta"`
	Usage MessageDeltaUsage `json:"usage"`
}

// MessageDeltaBody is the stop_reason payload of a MessageDeltaEvent.
type MessageDeltaBody struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// MessageDeltaUsage reports only output_tokens; input_tokens were already
// reported by MessageStartEvent.
type MessageDeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// MessageStopEvent closes the stream.
type MessageStopEvent struct {
	Type string `json:"type"`
}

// StreamErrorEvent is emitted in place of the remaining protocol events
// when the backend fails mid-stream, once the HTTP 200 and SSE headers
// have been sent, whether or not any earlier event has been written.
type StreamErrorEvent struct {
	Type  string          `json:"type"`
	Error StreamErrorBody `json:"error"`
}

// StreamErrorBody names the error kind and a human-readable message.
type StreamErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MarshalJSON implements json.Marshaler for ContentBlockStartEvent, tagging
// the embedded content block with its own discriminator via
// MarshalContentBlocks' single-element path.
func (e ContentBlockStartEvent) MarshalJSON() ([]byte, error) {
	tagged, err := marshalTagged(e.ContentBlock)
	if err != nil {
		return nil, err
	}
	type alias struct {
		Type         string          `json:"type"`
		Index        int             `json:"index"`
		ContentBlock json.RawMessage `json:"content_block"`
	}
	return json.Marshal(alias{Type: e.Type, Index: e.Index, ContentBlock: tagged})
}
