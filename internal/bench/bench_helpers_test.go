package bench

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"memoryhttpd/internal/api"
	"memoryhttpd/internal/kv"
	"memoryhttpd/internal/obs"
	"memoryhttpd/internal/registry"
	"memoryhttpd/internal/runtime"
)

func startBenchmarkStore(b *testing.B) (*httptest.Server, *http.Client, func()) {
	b.Helper()
	reg := registry.NewRegistry(-1, nil)
	metrics := obs.NewMetrics()
	handler := &api.Handler{
		Service:  kv.NewService(reg),
		Metrics:  metrics,
		Inflight: runtime.NewInflightTracker(),
	}

	server := httptest.NewServer(handler)
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 256,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	cleanup := func() {
		client.CloseIdleConnections()
		server.Close()
		reg.Close()
	}

	return server, client, cleanup
}

func buildRequest(method, url, host string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Host = host
	return req, nil
}

func doRequest(b *testing.B, client *http.Client, req *http.Request) {
	resp, err := client.Do(req)
	if err != nil {
		b.Fatalf("request: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
