package api

import (
	"encoding/json"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Threads
// ---------------------------------------------------------------------------

// Thread is a conversation. Its metadata is fixed at creation time.
type Thread struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	CreatedAt time.Time         `json:"created_at"`
	Title     string            `json:"title,omitempty"`
	Metadata  map[string]string `json:"metadata"`
}

// ThreadCreateParams carries the caller-supplied fields of a new thread.
type ThreadCreateParams struct {
	Title    string            `json:"title,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ---------------------------------------------------------------------------
// Content types
// ---------------------------------------------------------------------------

// UserContent is one part of a user message: "input_text" carries Text,
// "input_tag" references an entity by ID with a display Text.
type UserContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
}

// AssistantContent is one part of an assistant message.
type AssistantContent struct {
	Type        string       `json:"-"`
	Text        string       `json:"-"`
	Annotations []Annotation `json:"-"`
}

// MarshalJSON ensures annotations are always an array, never null.
func (c AssistantContent) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type        string       `json:"type"`
		Text        string       `json:"text"`
		Annotations []Annotation `json:"annotations"`
	}
	w := wire{Type: c.Type, Text: c.Text, Annotations: c.Annotations}
	if w.Annotations == nil {
		w.Annotations = []Annotation{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes an AssistantContent.
func (c *AssistantContent) UnmarshalJSON(data []byte) error {
	var w struct {
		Type        string       `json:"type"`
		Text        string       `json:"text"`
		Annotations []Annotation `json:"annotations"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Type = w.Type
	c.Text = w.Text
	c.Annotations = w.Annotations
	return nil
}

// Annotation represents an annotation on output text, such as a citation.
type Annotation struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StartIndex int    `json:"start_index,omitempty"`
	EndIndex   int    `json:"end_index,omitempty"`
}

const (
	ContentTypeInputText  = "input_text"
	ContentTypeInputTag   = "input_tag"
	ContentTypeOutputText = "output_text"
)

// ---------------------------------------------------------------------------
// Item payloads
// ---------------------------------------------------------------------------

// ItemType discriminates the payload of a ThreadItem.
type ItemType string

const (
	ItemTypeUserMessage      ItemType = "user_message"
	ItemTypeAssistantMessage ItemType = "assistant_message"
	ItemTypeClientToolCall   ItemType = "client_tool_call"
	ItemTypeHiddenContext    ItemType = "hidden_context"
)

// ToolCallStatus is the status of a client tool call.
type ToolCallStatus string

const (
	ToolCallStatusPending   ToolCallStatus = "pending"
	ToolCallStatusCompleted ToolCallStatus = "completed"
)

// UserMessageData holds the data specific to a user message.
type UserMessageData struct {
	Content    []UserContent `json:"content"`
	QuotedText string        `json:"quoted_text,omitempty"`
}

// Text concatenates the text of all content parts.
func (m *UserMessageData) Text() string {
	var b strings.Builder
	for _, part := range m.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

// AssistantMessageData holds the data specific to an assistant message.
type AssistantMessageData struct {
	Content []AssistantContent `json:"content"`
}

// Text concatenates the text of all content parts.
func (m *AssistantMessageData) Text() string {
	var b strings.Builder
	for _, part := range m.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

// ClientToolCallData holds a tool call the client executes.
type ClientToolCallData struct {
	Name      string         `json:"name"`
	CallID    string         `json:"call_id"`
	Arguments string         `json:"arguments"`
	Output    string         `json:"output,omitempty"`
	Status    ToolCallStatus `json:"status"`
}

// HiddenContextData is context visible to the model but not to the user.
type HiddenContextData struct {
	Content string `json:"content"`
}

// ---------------------------------------------------------------------------
// ThreadItem
// ---------------------------------------------------------------------------

// ThreadItem is one unit of a thread. Exactly one payload pointer matching
// Type is set. The stores treat the payload as opaque.
type ThreadItem struct {
	ID        string
	ThreadID  string
	CreatedAt time.Time
	Type      ItemType

	UserMessage      *UserMessageData
	AssistantMessage *AssistantMessageData
	ClientToolCall   *ClientToolCallData
	HiddenContext    *HiddenContextData
}

// itemWireBase contains fields common to all item types.
type itemWireBase struct {
	ID        string    `json:"id"`
	Object    string    `json:"object"`
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
	Type      ItemType  `json:"type"`
}

// MarshalJSON serializes a ThreadItem to the flat wire format: the
// type-specific fields sit next to the common ones.
func (item ThreadItem) MarshalJSON() ([]byte, error) {
	base := itemWireBase{
		ID:        item.ID,
		Object:    "thread.item",
		ThreadID:  item.ThreadID,
		CreatedAt: item.CreatedAt,
		Type:      item.Type,
	}

	switch item.Type {
	case ItemTypeUserMessage:
		w := struct {
			itemWireBase
			Content    []UserContent `json:"content"`
			QuotedText string        `json:"quoted_text,omitempty"`
		}{itemWireBase: base, Content: []UserContent{}}
		if item.UserMessage != nil {
			if item.UserMessage.Content != nil {
				w.Content = item.UserMessage.Content
			}
			w.QuotedText = item.UserMessage.QuotedText
		}
		return json.Marshal(w)

	case ItemTypeAssistantMessage:
		w := struct {
			itemWireBase
			Content []AssistantContent `json:"content"`
		}{itemWireBase: base, Content: []AssistantContent{}}
		if item.AssistantMessage != nil && item.AssistantMessage.Content != nil {
			w.Content = item.AssistantMessage.Content
		}
		return json.Marshal(w)

	case ItemTypeClientToolCall:
		w := struct {
			itemWireBase
			ClientToolCallData
		}{itemWireBase: base}
		if item.ClientToolCall != nil {
			w.ClientToolCallData = *item.ClientToolCall
		}
		return json.Marshal(w)

	case ItemTypeHiddenContext:
		w := struct {
			itemWireBase
			Content string `json:"content"`
		}{itemWireBase: base}
		if item.HiddenContext != nil {
			w.Content = item.HiddenContext.Content
		}
		return json.Marshal(w)

	default:
		return json.Marshal(base)
	}
}

// UnmarshalJSON deserializes a ThreadItem from the flat wire format.
func (item *ThreadItem) UnmarshalJSON(data []byte) error {
	var base struct {
		ID        string    `json:"id"`
		ThreadID  string    `json:"thread_id"`
		CreatedAt time.Time `json:"created_at"`
		Type      ItemType  `json:"type"`

		Content    json.RawMessage `json:"content"`
		QuotedText string          `json:"quoted_text"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	*item = ThreadItem{
		ID:        base.ID,
		ThreadID:  base.ThreadID,
		CreatedAt: base.CreatedAt,
		Type:      base.Type,
	}

	switch base.Type {
	case ItemTypeUserMessage:
		msg := &UserMessageData{QuotedText: base.QuotedText}
		if len(base.Content) > 0 && string(base.Content) != "null" {
			if err := json.Unmarshal(base.Content, &msg.Content); err != nil {
				return err
			}
		}
		item.UserMessage = msg

	case ItemTypeAssistantMessage:
		msg := &AssistantMessageData{}
		if len(base.Content) > 0 && string(base.Content) != "null" {
			if err := json.Unmarshal(base.Content, &msg.Content); err != nil {
				return err
			}
		}
		item.AssistantMessage = msg

	case ItemTypeClientToolCall:
		var tc ClientToolCallData
		if err := json.Unmarshal(data, &tc); err != nil {
			return err
		}
		item.ClientToolCall = &tc

	case ItemTypeHiddenContext:
		hc := &HiddenContextData{}
		if len(base.Content) > 0 && string(base.Content) != "null" {
			if err := json.Unmarshal(base.Content, &hc.Content); err != nil {
				return err
			}
		}
		item.HiddenContext = hc
	}

	return nil
}

// NewUserMessage builds an unsaved user_message item from plain text.
func NewUserMessage(text string) ThreadItem {
	return ThreadItem{
		Type: ItemTypeUserMessage,
		UserMessage: &UserMessageData{
			Content: []UserContent{{Type: ContentTypeInputText, Text: text}},
		},
	}
}

// NewAssistantMessage builds an unsaved assistant_message item from plain text.
func NewAssistantMessage(text string) ThreadItem {
	return ThreadItem{
		Type: ItemTypeAssistantMessage,
		AssistantMessage: &AssistantMessageData{
			Content: []AssistantContent{{Type: ContentTypeOutputText, Text: text}},
		},
	}
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// UserMessageInput is the body of an inbound user message.
type UserMessageInput struct {
	Content    []UserContent `json:"content"`
	QuotedText string        `json:"quoted_text,omitempty"`
}

// Item converts the input into an unsaved user_message item.
func (in UserMessageInput) Item() ThreadItem {
	return ThreadItem{
		Type: ItemTypeUserMessage,
		UserMessage: &UserMessageData{
			Content:    in.Content,
			QuotedText: in.QuotedText,
		},
	}
}

// MessageRequest asks the server to answer a user message. An empty
// ThreadID means the thread is created first from Thread.
type MessageRequest struct {
	ThreadID string             `json:"thread_id,omitempty"`
	Thread   ThreadCreateParams `json:"thread,omitempty"`
	Input    UserMessageInput   `json:"input"`
}
