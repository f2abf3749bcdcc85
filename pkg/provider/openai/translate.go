package openai

import (
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/rhuss/chatkit/pkg/provider"
)

func translateRequest(req *provider.ProviderRequest) goopenai.ChatCompletionRequest {
	out := goopenai.ChatCompletionRequest{
		Model:         req.Model,
		Stream:        true,
		StreamOptions: &goopenai.StreamOptions{IncludeUsage: true},
		User:          req.User,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		out.MaxCompletionTokens = *req.MaxTokens
	}
	return out
}

// translator turns stream chunks into provider events. The finish reason
// and usage can arrive in separate chunks, so the done event is held back
// until the stream ends.
type translator struct {
	sawText      bool
	textDone     bool
	finishReason string
	usage        *provider.Usage
}

func newTranslator() *translator {
	return &translator{}
}

func (t *translator) translate(chunk goopenai.ChatCompletionStreamResponse) []provider.ProviderEvent {
	var events []provider.ProviderEvent

	if chunk.Usage != nil {
		t.usage = &provider.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
			TotalTokens:  chunk.Usage.TotalTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return events
	}

	choice := chunk.Choices[0]
	delta := choice.Delta

	if delta.ReasoningContent != "" {
		events = append(events, provider.ProviderEvent{
			Type:  provider.ProviderEventReasoningDelta,
			Delta: delta.ReasoningContent,
		})
	}
	for _, tc := range delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		events = append(events, provider.ProviderEvent{
			Type:          provider.ProviderEventToolCallDelta,
			ToolCallIndex: idx,
			ToolCallID:    tc.ID,
			FunctionName:  tc.Function.Name,
			Delta:         tc.Function.Arguments,
		})
	}
	if delta.Content != "" {
		t.sawText = true
		events = append(events, provider.ProviderEvent{
			Type:  provider.ProviderEventTextDelta,
			Delta: delta.Content,
		})
	}
	if choice.FinishReason != "" {
		t.finishReason = string(choice.FinishReason)
		if t.sawText && !t.textDone {
			t.textDone = true
			events = append(events, provider.ProviderEvent{Type: provider.ProviderEventTextDone})
		}
	}
	return events
}

// finish returns the events that close a cleanly ended stream.
func (t *translator) finish() []provider.ProviderEvent {
	var events []provider.ProviderEvent
	if t.sawText && !t.textDone {
		t.textDone = true
		events = append(events, provider.ProviderEvent{Type: provider.ProviderEventTextDone})
	}
	reason := t.finishReason
	if reason == "" {
		reason = string(goopenai.FinishReasonStop)
	}
	events = append(events, provider.ProviderEvent{
		Type:         provider.ProviderEventDone,
		FinishReason: reason,
		Usage:        t.usage,
	})
	return events
}
