package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/provider"
)

func sseChunk(content, finish string) string {
	choice := map[string]any{"index": 0, "delta": map[string]any{"content": content}}
	if finish != "" {
		choice["finish_reason"] = finish
	}
	data, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"model":   "gpt-4o-mini",
		"choices": []any{choice},
	})
	return "data: " + string(data) + "\n\n"
}

const usageChunk = `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}` + "\n\n"

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func collect(t *testing.T, ch <-chan provider.ProviderEvent) []provider.ProviderEvent {
	t.Helper()
	var events []provider.ProviderEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for provider events")
		}
	}
}

func TestStreamTextAndUsage(t *testing.T) {
	var gotBody map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseChunk("Hel", ""))
		io.WriteString(w, sseChunk("lo", ""))
		io.WriteString(w, sseChunk("", "stop"))
		io.WriteString(w, usageChunk)
		io.WriteString(w, "data: [DONE]\n\n")
	})

	ch, err := p.Stream(context.Background(), &provider.ProviderRequest{
		Model: "gpt-4o-mini",
		Messages: []provider.ProviderMessage{
			{Role: provider.RoleSystem, Content: "be brief"},
			{Role: provider.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	events := collect(t, ch)

	var text strings.Builder
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type.String())
		if ev.Type == provider.ProviderEventTextDelta {
			text.WriteString(ev.Delta)
		}
	}
	if text.String() != "Hello" {
		t.Errorf("text = %q, want Hello", text.String())
	}
	want := "text_delta,text_delta,text_done,done"
	if got := strings.Join(types, ","); got != want {
		t.Errorf("event types = %s, want %s", got, want)
	}

	done := events[len(events)-1]
	if done.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", done.FinishReason)
	}
	if done.Usage == nil || done.Usage.InputTokens != 12 || done.Usage.OutputTokens != 3 {
		t.Errorf("Usage = %+v", done.Usage)
	}

	if gotBody["model"] != "gpt-4o-mini" || gotBody["stream"] != true {
		t.Errorf("request body = %v", gotBody)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("messages = %v, want 2", gotBody["messages"])
	}
}

func TestStreamRateLimited(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit_error"}}`)
	})

	_, err := p.Stream(context.Background(), &provider.ProviderRequest{Model: "m"})
	apiErr, ok := err.(*api.APIError)
	if !ok {
		t.Fatalf("error = %T %v, want *api.APIError", err, err)
	}
	if apiErr.Type != api.ErrorTypeTooManyRequests {
		t.Errorf("Type = %q, want too_many_requests", apiErr.Type)
	}
	if apiErr.Message != "slow down" {
		t.Errorf("Message = %q, want slow down", apiErr.Message)
	}
}

func TestStreamServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})

	_, err := p.Stream(context.Background(), &provider.ProviderRequest{Model: "m"})
	if apiErr, ok := err.(*api.APIError); !ok || apiErr.Type != api.ErrorTypeModelError {
		t.Errorf("error = %v, want model_error", err)
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	release := make(chan struct{})
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; ; i++ {
			if _, err := io.WriteString(w, sseChunk(fmt.Sprint(i), "")); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-release:
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Stream(ctx, &provider.ProviderRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	<-ch
	cancel()

	// The channel must be closed promptly after cancellation.
	collect(t, ch)
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without API key should fail")
	}
}

func TestMapErrorNetwork(t *testing.T) {
	err := mapError(io.ErrUnexpectedEOF)
	if err.Type != api.ErrorTypeModelError {
		t.Errorf("Type = %q, want model_error", err.Type)
	}
}
