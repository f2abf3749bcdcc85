package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/rhuss/chatkit/pkg/debug"
	"github.com/rhuss/chatkit/pkg/observability"
	"github.com/rhuss/chatkit/pkg/provider"
)

const providerName = "openai"

// Config holds connection settings for the Chat Completions backend.
type Config struct {
	// APIKey is sent as a bearer token. Required.
	APIKey string

	// BaseURL overrides the API endpoint, e.g. "http://localhost:8000/v1".
	BaseURL string

	// Organization is sent as the OpenAI-Organization header when set.
	Organization string

	// ConnectTimeout bounds dialing and TLS handshakes. Streams themselves
	// are bounded by the request context, not by a client timeout.
	ConnectTimeout time.Duration
}

// Provider streams chat completions from an OpenAI-compatible backend.
type Provider struct {
	client *goopenai.Client
}

var _ provider.Provider = (*Provider)(nil)

// New creates a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}

	ccfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		ccfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	ccfg.OrgID = cfg.Organization

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = 2 * time.Minute
	ccfg.HTTPClient = &http.Client{Transport: transport}

	return &Provider{client: goopenai.NewClientWithConfig(ccfg)}, nil
}

// Name returns "openai".
func (p *Provider) Name() string { return providerName }

// Close is a no-op; the HTTP client holds no dedicated resources.
func (p *Provider) Close() error { return nil }

// Stream opens a streaming chat completion. Errors establishing the stream
// are returned as *api.APIError; errors after that arrive as a
// ProviderEventError on the channel.
func (p *Provider) Stream(ctx context.Context, req *provider.ProviderRequest) (<-chan provider.ProviderEvent, error) {
	start := time.Now()
	debug.Log("provider", "stream request", "model", req.Model, "messages", len(req.Messages))

	stream, err := p.client.CreateChatCompletionStream(ctx, translateRequest(req))
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(providerName, req.Model, "error").Inc()
		return nil, mapError(err)
	}

	ch := make(chan provider.ProviderEvent, 16)
	go func() {
		defer close(ch)
		defer stream.Close()

		status := "ok"
		defer func() {
			observability.ProviderRequestsTotal.WithLabelValues(providerName, req.Model, status).Inc()
			observability.ProviderLatency.WithLabelValues(providerName, req.Model).Observe(time.Since(start).Seconds())
		}()

		t := newTranslator()
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				for _, ev := range t.finish() {
					if !send(ctx, ch, ev) {
						return
					}
				}
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					status = "cancelled"
					return
				}
				status = "error"
				send(ctx, ch, provider.ProviderEvent{Type: provider.ProviderEventError, Err: mapError(err)})
				return
			}

			for _, ev := range t.translate(chunk) {
				if ev.Usage != nil {
					recordUsage(req.Model, ev.Usage)
				}
				if !send(ctx, ch, ev) {
					status = "cancelled"
					return
				}
			}
		}
	}()

	return ch, nil
}

// send delivers ev unless ctx is cancelled first.
func send(ctx context.Context, ch chan<- provider.ProviderEvent, ev provider.ProviderEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func recordUsage(model string, u *provider.Usage) {
	observability.ProviderTokensTotal.WithLabelValues(providerName, model, "input").Add(float64(u.InputTokens))
	observability.ProviderTokensTotal.WithLabelValues(providerName, model, "output").Add(float64(u.OutputTokens))
}
