package agent

import (
	"context"

	"github.com/rhuss/chatkit/pkg/provider"
)

// scriptedProvider replays a fixed list of events and records requests.
type scriptedProvider struct {
	events   []provider.ProviderEvent
	err      error
	requests []*provider.ProviderRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) Stream(ctx context.Context, req *provider.ProviderRequest) (<-chan provider.ProviderEvent, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan provider.ProviderEvent)
	go func() {
		defer close(ch)
		for _, ev := range p.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func textEvents(deltas ...string) []provider.ProviderEvent {
	var events []provider.ProviderEvent
	for _, d := range deltas {
		events = append(events, provider.ProviderEvent{Type: provider.ProviderEventTextDelta, Delta: d})
	}
	return append(events,
		provider.ProviderEvent{Type: provider.ProviderEventTextDone},
		provider.ProviderEvent{Type: provider.ProviderEventDone, FinishReason: "stop"},
	)
}
