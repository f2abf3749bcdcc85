// Package integration runs the chat server end to end: the HTTP surface,
// API key auth, the assistant and the OpenAI provider talking to a mock
// Chat Completions backend, all in-process on httptest servers.
package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/assistant"
	"github.com/rhuss/chatkit/pkg/auth"
	"github.com/rhuss/chatkit/pkg/auth/apikey"
	"github.com/rhuss/chatkit/pkg/chatkit"
	"github.com/rhuss/chatkit/pkg/provider/openai"
	"github.com/rhuss/chatkit/pkg/storage/cache"
	"github.com/rhuss/chatkit/pkg/storage/memory"
	"github.com/rhuss/chatkit/pkg/transport"
	transporthttp "github.com/rhuss/chatkit/pkg/transport/http"
	"github.com/rhuss/chatkit/test/mockllm"
)

const (
	aliceKey = "sk-alice"
	bobKey   = "sk-bob"
)

// testEnv holds one chat server wired to its own mock backend.
type testEnv struct {
	server  *httptest.Server
	backend  *mockllm.Server
	store    transport.ThreadStore
	inflight *transport.InFlightRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := mockllm.New()
	backendSrv := httptest.NewServer(backend.Handler())
	t.Cleanup(backendSrv.Close)

	prov, err := openai.New(openai.Config{APIKey: "sk-upstream", BaseURL: backendSrv.URL + "/v1"})
	if err != nil {
		t.Fatalf("creating provider: %v", err)
	}

	store, err := cache.New(memory.New(), 64)
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	inflight := transport.NewInFlightRegistry()
	handler, err := chatkit.New(store, assistant.New(store, prov), chatkit.WithInFlightRegistry(inflight))
	if err != nil {
		t.Fatalf("creating chat server: %v", err)
	}

	chain := &auth.AuthChain{
		Authenticators: []auth.Authenticator{apikey.New([]apikey.RawKeyEntry{
			{Key: aliceKey, Subject: "alice", Tenant: "org-a"},
			{Key: bobKey, Subject: "bob", Tenant: "org-b"},
		})},
		DefaultDecision: auth.No,
	}
	srv := transporthttp.NewServer(handler, store, inflight,
		transporthttp.WithMetrics(false, ""),
		transporthttp.WithHTTPMiddleware(auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)),
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, backend: backend, store: store, inflight: inflight}
}

func (e *testEnv) do(t *testing.T, key, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func userInput(text string) api.UserMessageInput {
	return api.UserMessageInput{Content: []api.UserContent{{Type: api.ContentTypeInputText, Text: text}}}
}

// sseFrame is one server-sent event. data is "[DONE]" for the end marker.
type sseFrame struct {
	event string
	data  string
}

func readSSE(t *testing.T, r io.Reader) []sseFrame {
	t.Helper()
	var frames []sseFrame
	var cur sseFrame
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			frames = append(frames, cur)
			cur = sseFrame{}
		}
	}
	return frames
}

func decodeEvent(t *testing.T, f sseFrame) api.ThreadStreamEvent {
	t.Helper()
	var ev api.ThreadStreamEvent
	if err := json.Unmarshal([]byte(f.data), &ev); err != nil {
		t.Fatalf("decoding %s event: %v", f.event, err)
	}
	return ev
}

func endsWithDone(frames []sseFrame) bool {
	return len(frames) > 0 && frames[len(frames)-1].data == "[DONE]"
}

// assistantText returns the text of the last assistant item.done event.
func assistantText(t *testing.T, frames []sseFrame) string {
	t.Helper()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].event != string(api.EventThreadItemDone) {
			continue
		}
		ev := decodeEvent(t, frames[i])
		if ev.Item != nil && ev.Item.Type == api.ItemTypeAssistantMessage {
			return ev.Item.AssistantMessage.Text()
		}
	}
	t.Fatal("no assistant item in stream")
	return ""
}
