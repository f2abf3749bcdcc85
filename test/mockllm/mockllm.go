// Package mockllm serves a deterministic Chat Completions backend for
// local runs and integration tests. The reply to a request echoes its
// last user message, streamed one word per chunk.
//
// Control markers in the last user message change the behavior:
//
//	[error:429]  respond with a rate limit error
//	[error:500]  respond with a server error
//	[fail-mid]   stream part of the reply, then break the stream
//	[slow]       pause between chunks until the client goes away
package mockllm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ReplyPrefix starts every reply.
const ReplyPrefix = "You said: "

// Request is the decoded body of a chat completion request.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	User     string    `json:"user,omitempty"`

	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options,omitempty"`
}

// Message is a single chat message. Content is either a string or a
// list of parts.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Text flattens the message content.
func (m Message) Text() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case []any:
		var sb strings.Builder
		for _, p := range c {
			if part, ok := p.(map[string]any); ok {
				if s, ok := part["text"].(string); ok {
					sb.WriteString(s)
				}
			}
		}
		return sb.String()
	}
	return ""
}

// Server records the requests it receives.
type Server struct {
	// ChunkDelay is the pause between chunks of a [slow] reply.
	ChunkDelay time.Duration

	mu       sync.Mutex
	requests []Request
}

// New creates a Server.
func New() *Server {
	return &Server{ChunkDelay: 50 * time.Millisecond}
}

// Handler returns the HTTP routes of the mock backend.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request and whether there was one.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// Reply returns the reply text for a user message.
func Reply(userText string) string {
	return ReplyPrefix + userText
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body")
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	last := lastUserMessage(req)
	switch {
	case strings.Contains(last, "[error:429]"):
		writeError(w, http.StatusTooManyRequests, "rate_limit_error", "slow down")
		return
	case strings.Contains(last, "[error:500]"):
		writeError(w, http.StatusInternalServerError, "server_error", "backend exploded")
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}
	text := Reply(last)

	if !req.Stream {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-mock",
			"object": "chat.completion",
			"model":  model,
			"choices": []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "stop",
			}},
			"usage": usage(req, text),
		})
		return
	}

	s.stream(w, r, &req, model, text, last)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, req *Request, model, text, last string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	tokens := tokenize(text)
	failMid := strings.Contains(last, "[fail-mid]")
	slow := strings.Contains(last, "[slow]")

	writeChunk(w, model, map[string]any{"role": "assistant", "content": ""}, nil)
	flusher.Flush()

	for i, tok := range tokens {
		if failMid && i == len(tokens)/2 {
			// A malformed frame makes the client's decoder fail.
			fmt.Fprint(w, "data: {not json\n\n")
			flusher.Flush()
			return
		}
		if slow {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.ChunkDelay):
			}
		}
		writeChunk(w, model, map[string]any{"content": tok}, nil)
		flusher.Flush()
	}

	stop := "stop"
	writeChunk(w, model, map[string]any{}, &stop)
	if req.StreamOptions != nil && req.StreamOptions.IncludeUsage {
		data, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-mock-stream",
			"object":  "chat.completion.chunk",
			"model":   model,
			"choices": []any{},
			"usage":   usage(*req, text),
		})
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeChunk(w http.ResponseWriter, model string, delta map[string]any, finish *string) {
	choice := map[string]any{"index": 0, "delta": delta, "finish_reason": nil}
	if finish != nil {
		choice["finish_reason"] = *finish
	}
	data, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-mock-stream",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{choice},
	})
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data": []any{map[string]any{
			"id":       "gpt-4o-mini",
			"object":   "model",
			"owned_by": "mock",
		}},
	})
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": typ},
	})
}

func lastUserMessage(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Text()
		}
	}
	return ""
}

// tokenize splits text into words, keeping the separating spaces so the
// chunks concatenate back to text.
func tokenize(text string) []string {
	var tokens []string
	for len(text) > 0 {
		i := strings.IndexByte(text[1:], ' ')
		if i < 0 {
			tokens = append(tokens, text)
			break
		}
		tokens = append(tokens, text[:i+1])
		text = text[i+1:]
	}
	return tokens
}

func usage(req Request, text string) map[string]int {
	prompt := 0
	for _, m := range req.Messages {
		prompt += len(strings.Fields(m.Text()))
	}
	completion := len(strings.Fields(text))
	return map[string]int{
		"prompt_tokens":     prompt,
		"completion_tokens": completion,
		"total_tokens":      prompt + completion,
	}
}
