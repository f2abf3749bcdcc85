package agent

import (
	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/transport"
)

// Agent describes the assistant: its display name, its system prompt and
// the model it runs on.
type Agent struct {
	Name         string
	Instructions string
	Model        string

	// Temperature and MaxTokens are passed to the provider when set.
	Temperature *float64
	MaxTokens   *int
}

// Context is the per-request state handed to a run.
type Context struct {
	Thread *api.Thread
	Store  transport.ThreadStore

	// RequestContext carries opaque caller data such as the tenant or
	// client locale. The runner does not inspect it.
	RequestContext map[string]string
}
