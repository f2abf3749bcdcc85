package http

import (
	"context"
	"io"
	"net"
	gohttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/storage/memory"
	"github.com/rhuss/chatkit/pkg/transport"
)

func startServer(t *testing.T, srv *Server) (addr string, stop func() error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	return ln.Addr().String(), func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
			return nil
		}
	}
}

func TestServerStartsAndServesMetrics(t *testing.T) {
	srv := NewServer(transport.MessageHandlerFunc(func(context.Context, *api.MessageRequest, transport.EventWriter) error {
		return nil
	}), memory.New(), nil)
	addr, stop := startServer(t, srv)
	defer stop()

	resp, err := gohttp.Post("http://"+addr+"/v1/threads", "application/json", strings.NewReader(`{"title":"x"}`))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != gohttp.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}

	resp, err = gohttp.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `chatkit_requests_total{method="POST",route="POST /v1/threads",status="2xx"}`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}

func TestServerMetricsDisabled(t *testing.T) {
	srv := NewServer(nil, memory.New(), nil, WithMetrics(false, ""))
	addr, stop := startServer(t, srv)
	defer stop()

	resp, err := gohttp.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != gohttp.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServerHTTPMiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(gohttp.Handler) gohttp.Handler {
		return func(next gohttp.Handler) gohttp.Handler {
			return gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	srv := NewServer(nil, memory.New(), nil, WithHTTPMiddleware(mw("outer")), WithHTTPMiddleware(mw("inner")))

	addr, stop := startServer(t, srv)
	defer stop()
	resp, err := gohttp.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v, want outer,inner", order)
	}
}

func TestServerRequestIDOnMiddlewareRejection(t *testing.T) {
	var seen string
	reject := func(next gohttp.Handler) gohttp.Handler {
		return gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
			seen = transport.RequestIDFromContext(r.Context())
			transport.WriteAPIError(w, &api.APIError{Type: api.ErrorTypeInvalidRequest, Code: "unauthenticated", Message: "no"})
		})
	}
	srv := NewServer(nil, memory.New(), nil, WithHTTPMiddleware(reject))

	addr, stop := startServer(t, srv)
	defer stop()

	req, _ := gohttp.NewRequest(gohttp.MethodGet, "http://"+addr+"/v1/threads", nil)
	req.Header.Set("X-Request-ID", "req-rejected")
	resp, err := gohttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "req-rejected" {
		t.Errorf("X-Request-ID = %q, want req-rejected", got)
	}
	if seen != "req-rejected" {
		t.Errorf("middleware saw request ID %q, want req-rejected", seen)
	}

	resp, err = gohttp.Get("http://" + addr + "/v1/threads")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("rejected response without X-Request-ID header")
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	started := make(chan struct{})
	slow := transport.MessageHandlerFunc(func(ctx context.Context, req *api.MessageRequest, w transport.EventWriter) error {
		close(started)
		select {
		case <-time.After(200 * time.Millisecond):
			return w.WriteEvent(ctx, api.ThreadCreatedEvent(&api.Thread{ID: "thr_slow"}))
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	srv := NewServer(slow, memory.New(), nil, WithShutdownTimeout(5*time.Second))
	addr, stop := startServer(t, srv)

	bodyCh := make(chan string, 1)
	go func() {
		resp, err := gohttp.Post("http://"+addr+"/v1/threads", "application/json",
			strings.NewReader(`{"input":{"content":[{"type":"input_text","text":"hi"}]}}`))
		if err != nil {
			bodyCh <- ""
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		bodyCh <- string(b)
	}()

	<-started
	if err := stop(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	body := <-bodyCh
	if !strings.Contains(body, "thread.created") || !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("in-flight request was not completed: %q", body)
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	srv := NewServer(nil, memory.New(), nil,
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithPageSizes(10, 50),
		WithShutdownTimeout(10*time.Second),
		WithMetrics(true, "/internal/metrics"),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.adapter.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.adapter.config.MaxBodySize, 1024)
	}
	if srv.adapter.config.DefaultPageSize != 10 || srv.adapter.config.MaxPageSize != 50 {
		t.Errorf("page sizes = %d/%d, want 10/50", srv.adapter.config.DefaultPageSize, srv.adapter.config.MaxPageSize)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
	if srv.config.MetricsPath != "/internal/metrics" {
		t.Errorf("metrics path = %q", srv.config.MetricsPath)
	}
}
