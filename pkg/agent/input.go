package agent

import (
	"fmt"
	"strings"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/provider"
)

const quotedTextPrefix = "The user is referring to this in particular:"

// SimpleToInput converts thread items, oldest first, into model input
// messages. It is pure: the same items always produce the same messages.
//
// Quoted text on a user message becomes its own user message placed
// before the message that quotes it. Hidden context and completed client
// tool calls are passed to the model as tagged user messages. Items with
// nothing to say to the model are skipped.
func SimpleToInput(items []api.ThreadItem) []provider.ProviderMessage {
	messages := make([]provider.ProviderMessage, 0, len(items))
	for _, item := range items {
		messages = append(messages, itemToMessages(item)...)
	}
	return messages
}

func itemToMessages(item api.ThreadItem) []provider.ProviderMessage {
	switch item.Type {
	case api.ItemTypeUserMessage:
		if item.UserMessage == nil {
			return nil
		}
		var out []provider.ProviderMessage
		if q := strings.TrimSpace(item.UserMessage.QuotedText); q != "" {
			out = append(out, provider.ProviderMessage{
				Role:    provider.RoleUser,
				Content: quotedTextPrefix + "\n" + q,
			})
		}
		if text := userText(item.UserMessage); text != "" {
			out = append(out, provider.ProviderMessage{Role: provider.RoleUser, Content: text})
		}
		return out

	case api.ItemTypeAssistantMessage:
		if item.AssistantMessage == nil {
			return nil
		}
		text := item.AssistantMessage.Text()
		if text == "" {
			return nil
		}
		return []provider.ProviderMessage{{Role: provider.RoleAssistant, Content: text}}

	case api.ItemTypeHiddenContext:
		if item.HiddenContext == nil || item.HiddenContext.Content == "" {
			return nil
		}
		return []provider.ProviderMessage{{
			Role:    provider.RoleUser,
			Content: "<hidden_context>\n" + item.HiddenContext.Content + "\n</hidden_context>",
		}}

	case api.ItemTypeClientToolCall:
		tc := item.ClientToolCall
		if tc == nil || tc.Status != api.ToolCallStatusCompleted {
			return nil
		}
		return []provider.ProviderMessage{{
			Role: provider.RoleUser,
			Content: fmt.Sprintf("<client_tool_call name=%q call_id=%q>\narguments: %s\noutput: %s\n</client_tool_call>",
				tc.Name, tc.CallID, tc.Arguments, tc.Output),
		}}

	default:
		return nil
	}
}

// userText renders user content parts. Tags are shown by their display
// text so the model sees what the user saw.
func userText(m *api.UserMessageData) string {
	var b strings.Builder
	for _, part := range m.Content {
		switch part.Type {
		case api.ContentTypeInputTag:
			b.WriteString("@")
			b.WriteString(part.Text)
		default:
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
