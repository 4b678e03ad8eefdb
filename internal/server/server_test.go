package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"memoryhttpd/internal/runtime"
)

func fastShutdown() runtime.ShutdownConfig {
	return runtime.ShutdownConfig{
		Drain:           time.Millisecond,
		GracefulTimeout: time.Second,
		ForceClose:      time.Millisecond,
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStartServesAndShutsDown(t *testing.T) {
	var stopped atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv, err := Start(handler, "127.0.0.1:0", Options{
		Shutdown: fastShutdown(),
		Stoppers: []Stopper{StopFunc(func(context.Context) error {
			stopped.Store(true)
			return nil
		})},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + srv.Addr + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}

	if err := ShutdownAll(srv, nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !stopped.Load() {
		t.Fatalf("expected stopper to run")
	}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if _, err := client.Get("http://" + srv.Addr + "/"); err == nil {
		t.Fatalf("expected request after shutdown to fail")
	}
}

func TestShutdownWaitsForInflight(t *testing.T) {
	inflight := runtime.NewInflightTracker()
	release := make(chan struct{})
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		inflight.Inc()
		defer inflight.Dec()
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	srv, err := Start(handler, "127.0.0.1:0", Options{Shutdown: fastShutdown(), Inflight: inflight, Logger: logger})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	statusCh := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + srv.Addr + "/")
		if err != nil {
			statusCh <- 0
			return
		}
		resp.Body.Close()
		statusCh <- resp.StatusCode
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- srv.Shutdown()
	}()
	select {
	case <-done:
		t.Fatalf("shutdown returned with a request in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if status := <-statusCh; status != http.StatusOK {
		t.Fatalf("expected in-flight request to finish with 200, got %d", status)
	}
	if out := logs.String(); !strings.Contains(out, "waiting for in-flight requests") || !strings.Contains(out, "inflight=1") {
		t.Fatalf("expected in-flight count in shutdown log, got %q", out)
	}
}

func TestStartRejectsBadInput(t *testing.T) {
	if _, err := Start(nil, "127.0.0.1:0", Options{}); err == nil {
		t.Fatalf("expected nil handler to fail")
	}
	if _, err := Start(http.NotFoundHandler(), "", Options{}); err == nil {
		t.Fatalf("expected empty address to fail")
	}
}
