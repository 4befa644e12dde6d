// Package translate implements the two halves of the translation
// pipeline: turning an Anthropic MessagesRequest into an OpenAI
// ChatCompletionRequest, and turning an OpenAI ChatCompletion (unary or
// streamed) back into Anthropic response events.
package translate

import (
	"encoding/json"
	"fmt"

	"github.com/driftwell/clauding/internal/apierr"
	anthropicschema "github.com/driftwell/clauding/internal/schema/anthropic"
	openaischema "github.com/driftwell/clauding/internal/schema/openai"
	"github.com/driftwell/clauding/internal/router"
)

// RequestTransformer converts Anthropic Messages requests into OpenAI
// Chat Completions requests. MinTokensLimit/MaxTokensLimit clamp a
// client-supplied max_tokens when non-zero.
type RequestTransformer struct {
	MinTokensLimit int
	MaxTokensLimit int
}

// Transform produces a ChatCompletionRequest body-equivalent, plus the
// extra_body fields (reasoning/verbosity) that must be merged into the
// top level of the marshaled JSON rather than carried as a nested object.
func (t RequestTransformer) Transform(req anthropicschema.MessagesRequest, route router.TierRoute) (openaischema.ChatCompletionRequest, map[string]any, error) {
	out := openaischema.ChatCompletionRequest{
		Model:       route.ModelID,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}
	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}

	maxTokens := req.MaxTokens
	if t.MinTokensLimit > 0 && maxTokens < t.MinTokensLimit {
		maxTokens = t.MinTokensLimit
	}
	if t.MaxTokensLimit > 0 && maxTokens > t.MaxTokensLimit {
		maxTokens = t.MaxTokensLimit
	}
	out.MaxTokens = &maxTokens

	messages, err := buildMessages(req)
	if err != nil {
		return openaischema.ChatCompletionRequest{}, nil, err
	}
	out.Messages = messages

	if len(req.Tools) > 0 {
		out.Tools = make([]openaischema.Tool, 0, len(req.Tools))
		for _, tool := range req.Tools {
			out.Tools = append(out.Tools, openaischema.Tool{
				Type: "function",
				Function: openaischema.ToolFunction{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.InputSchema,
				},
			})
		}
	}
	if req.ToolChoice != nil {
		choice, err := mapToolChoice(*req.ToolChoice)
		if err != nil {
			return openaischema.ChatCompletionRequest{}, nil, err
		}
		out.ToolChoice = choice
	}

	extraBody := buildReasoningExtraBody(req, route)

	return out, extraBody, nil
}

func buildMessages(req anthropicschema.MessagesRequest) ([]openaischema.ChatMessage, error) {
	var out []openaischema.ChatMessage

	if systemText, ok, err := anthropicschema.SystemText(req.System); err != nil {
		return nil, apierr.New(apierr.InvalidRequest, err.Error())
	} else if ok {
		out = append(out, openaischema.ChatMessage{Role: "system", Content: systemText})
	}

	for _, msg := range req.Messages {
		converted, err := convertMessage(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, converted...)
	}
	return out, nil
}

func convertMessage(msg anthropicschema.Message) ([]openaischema.ChatMessage, error) {
	if text, ok := msg.IsPlainString(); ok {
		return []openaischema.ChatMessage{{Role: msg.Role, Content: text}}, nil
	}

	blocks, err := msg.Blocks()
	if err != nil {
		return nil, apierr.New(apierr.InvalidRequest, err.Error())
	}

	if msg.Role == "user" {
		if hasToolResult(blocks) {
			return convertToolResultMessage(blocks)
		}
	}
	if msg.Role == "assistant" && hasToolUse(blocks) {
		return convertAssistantToolUseMessage(blocks)
	}
	if hasImage(blocks) {
		parts, err := buildMultimodalParts(blocks)
		if err != nil {
			return nil, err
		}
		return []openaischema.ChatMessage{{Role: msg.Role, Content: parts}}, nil
	}

	text, err := joinTextBlocks(blocks)
	if err != nil {
		return nil, err
	}
	return []openaischema.ChatMessage{{Role: msg.Role, Content: text}}, nil
}

func hasToolResult(blocks []anthropicschema.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type() == "tool_result" {
			return true
		}
	}
	return false
}

func hasToolUse(blocks []anthropicschema.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type() == "tool_use" {
			return true
		}
	}
	return false
}

func hasImage(blocks []anthropicschema.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type() == "image" {
			return true
		}
	}
	return false
}

// convertToolResultMessage emits one {role:"tool"} message per tool_result
// block, in order, with any adjacent plain-text blocks split out into
// their own {role:"user"} messages so ordering survives the split.
func convertToolResultMessage(blocks []anthropicschema.ContentBlock) ([]openaischema.ChatMessage, error) {
	var out []openaischema.ChatMessage
	var pendingText []anthropicschema.ContentBlock

	flushText := func() error {
		if len(pendingText) == 0 {
			return nil
		}
		text, err := joinTextBlocks(pendingText)
		if err != nil {
			return err
		}
		out = append(out, openaischema.ChatMessage{Role: "user", Content: text})
		pendingText = nil
		return nil
	}

	for _, b := range blocks {
		tr, ok := b.(anthropicschema.ToolResultBlock)
		if !ok {
			pendingText = append(pendingText, b)
			continue
		}
		if err := flushText(); err != nil {
			return nil, err
		}
		if tr.ToolUseID == "" {
			return nil, apierr.New(apierr.InvalidRequest, "tool_result block missing tool_use_id")
		}
		content, err := stringifyToolResultContent(tr)
		if err != nil {
			return nil, err
		}
		out = append(out, openaischema.ChatMessage{Role: "tool", ToolCallID: tr.ToolUseID, Content: content})
	}
	if err := flushText(); err != nil {
		return nil, err
	}
	return out, nil
}

func stringifyToolResultContent(tr anthropicschema.ToolResultBlock) (string, error) {
	content := ""
	if len(tr.Content) > 0 {
		var asString string
		var asBlocks []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		switch {
		case json.Unmarshal(tr.Content, &asString) == nil:
			content = asString
		case json.Unmarshal(tr.Content, &asBlocks) == nil && allText(asBlocks):
			for i, b := range asBlocks {
				if i > 0 {
					content += "\n\n"
				}
				content += b.Text
			}
		default:
			content = string(tr.Content)
		}
	}
	if tr.IsError {
		content = "[ERROR] " + content
	}
	return content, nil
}

func allText(blocks []struct {
	Type string `json:"type"`
	Text string `json:"text"`
}) bool {
	if len(blocks) == 0 {
		return false
	}
	for _, b := range blocks {
		if b.Type != "text" {
			return false
		}
	}
	return true
}

// convertAssistantToolUseMessage emits one {role:"assistant"} message
// carrying every tool_use block as a tool_calls entry, with any text
// blocks joined into Content.
func convertAssistantToolUseMessage(blocks []anthropicschema.ContentBlock) ([]openaischema.ChatMessage, error) {
	var textParts []anthropicschema.ContentBlock
	var calls []openaischema.ToolCall
	for _, b := range blocks {
		switch v := b.(type) {
		case anthropicschema.ToolUseBlock:
			calls = append(calls, openaischema.ToolCall{
				ID:   v.ID,
				Type: "function",
				Function: openaischema.ToolCallFunction{
					Name:      v.Name,
					Arguments: string(v.Input),
				},
			})
		case anthropicschema.TextBlock:
			textParts = append(textParts, v)
		}
	}
	var content any
	if len(textParts) > 0 {
		text, err := joinTextBlocks(textParts)
		if err != nil {
			return nil, err
		}
		content = text
	}
	return []openaischema.ChatMessage{{Role: "assistant", Content: content, ToolCalls: calls}}, nil
}

func buildMultimodalParts(blocks []anthropicschema.ContentBlock) ([]openaischema.ContentPart, error) {
	parts := make([]openaischema.ContentPart, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case anthropicschema.TextBlock:
			parts = append(parts, openaischema.ContentPart{Type: "text", Text: v.Text})
		case anthropicschema.ImageBlock:
			if v.Source.SourceType != "base64" {
				return nil, apierr.Newf(apierr.InvalidRequest, "unsupported image source type %q: only base64 is supported", v.Source.SourceType)
			}
			url := fmt.Sprintf("data:%s;base64,%s", v.Source.MediaType, v.Source.Data)
			parts = append(parts, openaischema.ContentPart{Type: "image_url", ImageURL: &openaischema.ImageURL{URL: url}})
		}
	}
	return parts, nil
}

func joinTextBlocks(blocks []anthropicschema.ContentBlock) (string, error) {
	text := ""
	n := 0
	for _, b := range blocks {
		tb, ok := b.(anthropicschema.TextBlock)
		if !ok {
			continue
		}
		if n > 0 {
			text += "\n\n"
		}
		text += tb.Text
		n++
	}
	return text, nil
}

func mapToolChoice(tc anthropicschema.ToolChoice) (any, error) {
	switch tc.Type {
	case "auto":
		return "auto", nil
	case "any":
		return "required", nil
	case "tool":
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.Name},
		}, nil
	default:
		return nil, apierr.Newf(apierr.InvalidRequest, "unknown tool_choice type %q", tc.Type)
	}
}

// buildReasoningExtraBody implements the reasoning-injection rules: a
// per-request thinking config overrides the route's policy, an "off"
// policy emits nothing, and anything else is placed under extra_body so
// the caller merges it into the top level of the outbound JSON rather
// than sending a strict-SDK-hostile top-level "reasoning" field.
func buildReasoningExtraBody(req anthropicschema.MessagesRequest, route router.TierRoute) map[string]any {
	policy := route.ReasoningPolicy
	if req.Thinking != nil && req.Thinking.Type == "enabled" {
		policy = router.ReasoningPolicy{
			Mode:      router.ReasoningBudget,
			MaxTokens: router.ClampBudget(req.Thinking.BudgetTokens),
			Exclude:   false,
		}
	}

	if policy.Mode == router.ReasoningOff || policy.Mode == "" {
		return nil
	}

	reasoning := map[string]any{"enabled": true, "exclude": policy.Exclude}
	switch policy.Mode {
	case router.ReasoningEffort:
		reasoning["effort"] = policy.Effort
	case router.ReasoningBudget:
		reasoning["max_tokens"] = policy.MaxTokens
	}

	extra := map[string]any{"reasoning": reasoning}
	if policy.Verbosity != "" {
		extra["verbosity"] = policy.Verbosity
	}
	return extra
}
