package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	threadIDPrefix = "thr_"
	messagePrefix  = "msg_"
	toolCallPrefix = "tc_"
	contextPrefix  = "ctx_"
)

var (
	threadIDPattern = regexp.MustCompile(`^thr_[0-9a-f]{32}$`)
	itemIDPattern   = regexp.MustCompile(`^(msg|tc|ctx)_[0-9a-f]{32}$`)
)

// NewThreadID generates a new thread ID with the "thr_" prefix followed by
// the 32 hex digits of a random UUID.
func NewThreadID() string {
	return threadIDPrefix + randomHex()
}

// NewItemID generates an item ID whose prefix reflects the item type:
// "tc_" for client tool calls, "ctx_" for hidden context, "msg_" otherwise.
func NewItemID(t ItemType) string {
	switch t {
	case ItemTypeClientToolCall:
		return toolCallPrefix + randomHex()
	case ItemTypeHiddenContext:
		return contextPrefix + randomHex()
	default:
		return messagePrefix + randomHex()
	}
}

// ValidateThreadID checks whether the given string is a valid thread ID.
func ValidateThreadID(id string) bool {
	return threadIDPattern.MatchString(id)
}

// ValidateItemID checks whether the given string is a valid item ID.
func ValidateItemID(id string) bool {
	return itemIDPattern.MatchString(id)
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
