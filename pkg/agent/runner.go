package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rhuss/chatkit/pkg/debug"
	"github.com/rhuss/chatkit/pkg/provider"
)

// Runner executes agent turns against a provider.
type Runner struct {
	Provider provider.Provider
}

// RunResult is a started, streaming run. Its events are consumed once,
// through StreamResponse.
type RunResult struct {
	Agent *Agent

	events <-chan provider.ProviderEvent
	ctx    context.Context
	cancel context.CancelFunc
}

// RunStreamed starts a streamed run of a with the given input. The
// agent's instructions are sent as the leading system message. Errors
// opening the stream are returned unchanged.
func (r *Runner) RunStreamed(ctx context.Context, a *Agent, input []provider.ProviderMessage, actx *Context) (*RunResult, error) {
	if r.Provider == nil {
		return nil, errors.New("agent: runner has no provider")
	}
	if a == nil {
		return nil, errors.New("agent: agent must not be nil")
	}

	messages := make([]provider.ProviderMessage, 0, len(input)+1)
	if a.Instructions != "" {
		messages = append(messages, provider.ProviderMessage{Role: provider.RoleSystem, Content: a.Instructions})
	}
	messages = append(messages, input...)

	req := &provider.ProviderRequest{
		Model:       a.Model,
		Messages:    messages,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	}
	if actx != nil && actx.Thread != nil {
		req.User = actx.Thread.ID
	}

	runCtx, cancel := context.WithCancel(ctx)
	events, err := r.Provider.Stream(runCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	if events == nil {
		cancel()
		return nil, fmt.Errorf("agent: provider %s returned no stream", r.Provider.Name())
	}

	debug.Log("agent", "run started", "agent", a.Name, "model", a.Model, "messages", len(messages))
	return &RunResult{Agent: a, events: events, ctx: runCtx, cancel: cancel}, nil
}
