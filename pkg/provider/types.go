package provider

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ProviderRequest is the backend-facing request.
type ProviderRequest struct {
	Model       string            `json:"model"`
	Messages    []ProviderMessage `json:"messages"`
	Temperature *float64          `json:"temperature,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	User        string            `json:"user,omitempty"`
}

// ProviderMessage is one chat message sent to the backend.
type ProviderMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one stream.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ProviderEventType classifies a streaming event from the backend.
type ProviderEventType int

const (
	ProviderEventTextDelta      ProviderEventType = iota // Incremental text content
	ProviderEventTextDone                                // Text content complete
	ProviderEventToolCallDelta                           // Incremental tool call arguments
	ProviderEventReasoningDelta                          // Incremental reasoning content
	ProviderEventDone                                    // Stream finished
	ProviderEventError                                   // Stream error
)

// String returns a short name for logs.
func (t ProviderEventType) String() string {
	switch t {
	case ProviderEventTextDelta:
		return "text_delta"
	case ProviderEventTextDone:
		return "text_done"
	case ProviderEventToolCallDelta:
		return "tool_call_delta"
	case ProviderEventReasoningDelta:
		return "reasoning_delta"
	case ProviderEventDone:
		return "done"
	case ProviderEventError:
		return "error"
	default:
		return "unknown"
	}
}

// ProviderEvent is a single streaming event from the backend.
type ProviderEvent struct {
	Type ProviderEventType

	// Delta contains incremental text or argument data.
	Delta string

	// ToolCallIndex, ToolCallID and FunctionName identify a tool call delta.
	ToolCallIndex int
	ToolCallID    string
	FunctionName  string

	// FinishReason is set on ProviderEventDone.
	FinishReason string

	// Usage is populated on ProviderEventDone when the backend reports it.
	Usage *Usage

	// Err is populated on ProviderEventError.
	Err error
}
