package api

import (
	"fmt"
	"unicode/utf8"
)

// Limits on caller-supplied thread fields.
const (
	MaxMetadataKeys        = 16
	MaxMetadataKeyLength   = 64
	MaxMetadataValueLength = 512
	MaxTitleLength         = 256
)

// ValidationConfig holds configurable limits for message validation.
type ValidationConfig struct {
	MaxContentParts int
	MaxContentSize  int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxContentParts: 64,
		MaxContentSize:  1024 * 1024, // 1MB
	}
}

// ValidateThreadParams checks the title and metadata of a new thread. It
// returns an *APIError describing the first failure, or nil.
func ValidateThreadParams(p ThreadCreateParams) *APIError {
	if utf8.RuneCountInString(p.Title) > MaxTitleLength {
		return NewInvalidRequestError("title",
			fmt.Sprintf("title exceeds maximum of %d characters", MaxTitleLength))
	}
	return ValidateMetadata(p.Metadata)
}

// ValidateMetadata checks a metadata map against the key and size limits.
func ValidateMetadata(md map[string]string) *APIError {
	if len(md) > MaxMetadataKeys {
		return NewInvalidRequestError("metadata",
			fmt.Sprintf("metadata exceeds maximum of %d keys", MaxMetadataKeys))
	}
	for k, v := range md {
		n := utf8.RuneCountInString(k)
		if n == 0 {
			return NewInvalidRequestError("metadata", "metadata keys must not be empty")
		}
		if n > MaxMetadataKeyLength {
			return NewInvalidRequestError("metadata",
				fmt.Sprintf("metadata key %q exceeds maximum of %d characters", k, MaxMetadataKeyLength))
		}
		if utf8.RuneCountInString(v) > MaxMetadataValueLength {
			return NewInvalidRequestError("metadata",
				fmt.Sprintf("metadata value for %q exceeds maximum of %d characters", k, MaxMetadataValueLength))
		}
	}
	return nil
}

// ValidateUserMessage checks an inbound user message.
func ValidateUserMessage(in UserMessageInput, cfg ValidationConfig) *APIError {
	if len(in.Content) == 0 {
		return NewInvalidRequestError("input.content", "content must contain at least one part")
	}
	if cfg.MaxContentParts > 0 && len(in.Content) > cfg.MaxContentParts {
		return NewInvalidRequestError("input.content",
			fmt.Sprintf("content exceeds maximum of %d parts", cfg.MaxContentParts))
	}

	size := len(in.QuotedText)
	hasText := false
	for i, part := range in.Content {
		param := fmt.Sprintf("input.content[%d]", i)
		switch part.Type {
		case ContentTypeInputText:
			if part.Text != "" {
				hasText = true
			}
		case ContentTypeInputTag:
			if part.ID == "" {
				return NewInvalidRequestError(param+".id", "input_tag requires an id")
			}
			hasText = true
		default:
			return NewInvalidRequestError(param+".type",
				fmt.Sprintf("unsupported content type %q", part.Type))
		}
		size += len(part.Text)
	}
	if !hasText {
		return NewInvalidRequestError("input.content", "message must not be empty")
	}
	if cfg.MaxContentSize > 0 && size > cfg.MaxContentSize {
		return NewInvalidRequestError("input.content",
			fmt.Sprintf("content exceeds maximum size of %d bytes", cfg.MaxContentSize))
	}
	return nil
}

// ValidateMessageRequest checks a MessageRequest for validity.
func ValidateMessageRequest(req *MessageRequest, cfg ValidationConfig) *APIError {
	if req.ThreadID != "" && !ValidateThreadID(req.ThreadID) {
		return NewInvalidRequestError("thread_id", "malformed thread id")
	}
	if req.ThreadID == "" {
		if err := ValidateThreadParams(req.Thread); err != nil {
			return err
		}
	}
	return ValidateUserMessage(req.Input, cfg)
}
