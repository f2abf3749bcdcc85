package api

import (
	"strings"
	"testing"
)

func TestNewThreadID(t *testing.T) {
	id := NewThreadID()
	if !ValidateThreadID(id) {
		t.Errorf("NewThreadID() = %q, want valid thread ID", id)
	}
}

func TestNewItemIDPrefix(t *testing.T) {
	tests := []struct {
		typ    ItemType
		prefix string
	}{
		{ItemTypeUserMessage, "msg_"},
		{ItemTypeAssistantMessage, "msg_"},
		{ItemTypeClientToolCall, "tc_"},
		{ItemTypeHiddenContext, "ctx_"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			id := NewItemID(tt.typ)
			if !strings.HasPrefix(id, tt.prefix) {
				t.Errorf("NewItemID(%s) = %q, want prefix %q", tt.typ, id, tt.prefix)
			}
			if !ValidateItemID(id) {
				t.Errorf("NewItemID(%s) = %q, want valid item ID", tt.typ, id)
			}
		})
	}
}

func TestValidateThreadID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "thr_0123456789abcdef0123456789abcdef", true},
		{"uppercase hex", "thr_0123456789ABCDEF0123456789ABCDEF", false},
		{"wrong prefix", "msg_0123456789abcdef0123456789abcdef", false},
		{"too short", "thr_0123", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateThreadID(tt.id); got != tt.want {
				t.Errorf("ValidateThreadID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewThreadID()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
