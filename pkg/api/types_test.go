package api

import (
	"encoding/json"
	"testing"
	"time"
)

func TestThreadItemFlatWireFormat(t *testing.T) {
	item := NewAssistantMessage("hello")
	item.ID = "msg_1"
	item.ThreadID = "thr_1"
	item.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["object"] != "thread.item" {
		t.Errorf("object = %v, want thread.item", m["object"])
	}
	if m["type"] != "assistant_message" {
		t.Errorf("type = %v, want assistant_message", m["type"])
	}
	content, ok := m["content"].([]any)
	if !ok || len(content) != 1 {
		t.Fatalf("content = %v, want one part", m["content"])
	}
	part := content[0].(map[string]any)
	if _, ok := part["annotations"].([]any); !ok {
		t.Errorf("annotations = %v, want empty array", part["annotations"])
	}
}

func TestThreadItemRoundTrip(t *testing.T) {
	created := time.Date(2026, 5, 6, 7, 8, 9, 10, time.UTC)
	tests := []struct {
		name  string
		item  ThreadItem
		check func(t *testing.T, got ThreadItem)
	}{
		{
			name: "user message with quote",
			item: ThreadItem{
				ID: "msg_1", ThreadID: "thr_1", CreatedAt: created, Type: ItemTypeUserMessage,
				UserMessage: &UserMessageData{
					Content: []UserContent{
						{Type: ContentTypeInputText, Text: "what about "},
						{Type: ContentTypeInputTag, ID: "doc-7", Text: "@roadmap"},
					},
					QuotedText: "Q3 goals",
				},
			},
			check: func(t *testing.T, got ThreadItem) {
				if got.UserMessage == nil {
					t.Fatal("UserMessage is nil")
				}
				if got.UserMessage.Text() != "what about @roadmap" {
					t.Errorf("Text() = %q", got.UserMessage.Text())
				}
				if got.UserMessage.QuotedText != "Q3 goals" {
					t.Errorf("QuotedText = %q", got.UserMessage.QuotedText)
				}
				if got.UserMessage.Content[1].ID != "doc-7" {
					t.Errorf("tag id = %q", got.UserMessage.Content[1].ID)
				}
			},
		},
		{
			name: "client tool call",
			item: ThreadItem{
				ID: "tc_1", ThreadID: "thr_1", CreatedAt: created, Type: ItemTypeClientToolCall,
				ClientToolCall: &ClientToolCallData{
					Name: "get_theme", CallID: "call_1", Arguments: `{"x":1}`,
					Status: ToolCallStatusCompleted, Output: "dark",
				},
			},
			check: func(t *testing.T, got ThreadItem) {
				if got.ClientToolCall == nil {
					t.Fatal("ClientToolCall is nil")
				}
				if got.ClientToolCall.Output != "dark" || got.ClientToolCall.Status != ToolCallStatusCompleted {
					t.Errorf("ClientToolCall = %+v", got.ClientToolCall)
				}
			},
		},
		{
			name: "hidden context",
			item: ThreadItem{
				ID: "ctx_1", ThreadID: "thr_1", CreatedAt: created, Type: ItemTypeHiddenContext,
				HiddenContext: &HiddenContextData{Content: "user prefers metric units"},
			},
			check: func(t *testing.T, got ThreadItem) {
				if got.HiddenContext == nil || got.HiddenContext.Content != "user prefers metric units" {
					t.Errorf("HiddenContext = %+v", got.HiddenContext)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.item)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got ThreadItem
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.ID != tt.item.ID || got.ThreadID != tt.item.ThreadID || got.Type != tt.item.Type {
				t.Errorf("common fields = %+v, want %+v", got, tt.item)
			}
			if !got.CreatedAt.Equal(created) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
			}
			tt.check(t, got)
		})
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage[Thread](nil, "cursor", false)
	if p.Data == nil {
		t.Error("Data should be an empty slice, not nil")
	}
	if p.After != nil {
		t.Errorf("After = %q, want nil when HasMore is false", *p.After)
	}

	p = NewPage([]Thread{{ID: "thr_1"}}, "cursor", true)
	if p.After == nil || *p.After != "cursor" {
		t.Errorf("After = %v, want cursor", p.After)
	}
	if p.Object != "list" {
		t.Errorf("Object = %q, want list", p.Object)
	}
}

func TestUserMessageInputItem(t *testing.T) {
	in := UserMessageInput{
		Content:    []UserContent{{Type: ContentTypeInputText, Text: "hi"}},
		QuotedText: "earlier",
	}
	item := in.Item()
	if item.Type != ItemTypeUserMessage {
		t.Errorf("Type = %q, want user_message", item.Type)
	}
	if item.UserMessage.Text() != "hi" || item.UserMessage.QuotedText != "earlier" {
		t.Errorf("UserMessage = %+v", item.UserMessage)
	}
}

func TestStreamEventJSON(t *testing.T) {
	ev := ItemUpdatedEvent("msg_1", &ItemUpdate{Type: UpdateTextDelta, Delta: "Hel"})
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["type"] != "thread.item.updated" {
		t.Errorf("type = %v", m["type"])
	}
	if m["item_id"] != "msg_1" {
		t.Errorf("item_id = %v", m["item_id"])
	}
	if _, ok := m["item"]; ok {
		t.Error("nil item should be omitted")
	}
	update := m["update"].(map[string]any)
	if update["delta"] != "Hel" {
		t.Errorf("update.delta = %v", update["delta"])
	}
}
