package integration

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"memoryhttpd/internal/api"
	"memoryhttpd/internal/kv"
	"memoryhttpd/internal/limits"
	"memoryhttpd/internal/obs"
	"memoryhttpd/internal/registry"
	"memoryhttpd/internal/runtime"
	"memoryhttpd/internal/server"
)

type stack struct {
	kvURL      string
	metricsURL string
	registry   *registry.Registry
	kvServer   *server.Server
	client     *http.Client
}

// startStack wires the same components main does, on ephemeral ports.
func startStack(t *testing.T, sweepInterval time.Duration) *stack {
	t.Helper()
	shutdown := runtime.ShutdownConfig{
		Drain:           time.Millisecond,
		GracefulTimeout: time.Second,
		ForceClose:      time.Millisecond,
	}
	metrics := obs.NewMetrics()
	reg := registry.NewRegistry(sweepInterval, metrics.RecordSweep)
	metrics.TrackStats(func() (int, int) {
		stats := reg.Stats()
		return stats.Namespaces, stats.Entries
	})
	inflight := runtime.NewInflightTracker()
	handler := &api.Handler{
		Service:      kv.NewService(reg),
		Metrics:      metrics,
		Inflight:     inflight,
		MaxBodyBytes: limits.Default().MaxBodyBytes,
	}

	kvServer, err := server.Start(handler, "127.0.0.1:0", server.Options{
		Shutdown: shutdown,
		Inflight: inflight,
		Stoppers: []server.Stopper{reg},
	})
	if err != nil {
		reg.Close()
		t.Fatalf("start kv server: %v", err)
	}
	metricsServer, err := server.Start(metrics.Handler(), "127.0.0.1:0", server.Options{Shutdown: shutdown})
	if err != nil {
		_ = kvServer.Shutdown()
		t.Fatalf("start metrics server: %v", err)
	}
	t.Cleanup(func() {
		_ = server.ShutdownAll(kvServer, metricsServer)
	})

	return &stack{
		kvURL:      "http://" + kvServer.Addr,
		metricsURL: "http://" + metricsServer.Addr + "/metrics",
		registry:   reg,
		kvServer:   kvServer,
		client:     &http.Client{Timeout: 2 * time.Second},
	}
}

func (s *stack) send(t *testing.T, method, host, path, body string, expireMS string) (int, string) {
	t.Helper()
	status, data, err := s.do(method, host, path, body, expireMS)
	if err != nil {
		t.Fatalf("%s %s%s: %v", method, host, path, err)
	}
	return status, data
}

// do is safe to call from goroutines other than the test's.
func (s *stack) do(method, host, path, body string, expireMS string) (int, string, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.kvURL+path, reader)
	if err != nil {
		return 0, "", err
	}
	req.Host = host
	if expireMS != "" {
		req.Header.Set(api.ExpireHeader, expireMS)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(data), nil
}

func (s *stack) fetchMetrics(t *testing.T) string {
	t.Helper()
	resp, err := s.client.Get(s.metricsURL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

// metricValue sums every sample of metric whose labels include labels.
func metricValue(text string, metric string, labels map[string]string) (float64, bool) {
	total := 0.0
	found := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, metric+"{") && !strings.HasPrefix(line, metric+" ") {
			continue
		}
		match := true
		for key, value := range labels {
			if !strings.Contains(line, key+"=\""+value+"\"") {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		value, err := strconv.ParseFloat(parts[len(parts)-1], 64)
		if err != nil {
			return 0, false
		}
		found = true
		total += value
	}
	return total, found
}
