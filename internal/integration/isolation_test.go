package integration

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestNoCrossHostLeak(t *testing.T) {
	s := startStack(t, time.Second)

	const hosts = 16
	var wg sync.WaitGroup
	for i := 0; i < hosts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			host := fmt.Sprintf("tenant-%d.example", i)
			status, _, err := s.do(http.MethodPut, host, "/shared/key/", host, "")
			if err != nil || status != http.StatusOK {
				t.Errorf("put %s: status %d err %v", host, status, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < hosts; i++ {
		host := fmt.Sprintf("TENANT-%d.example", i)
		status, body := s.send(t, http.MethodGet, host, "/shared/key", "", "")
		if status != http.StatusOK {
			t.Fatalf("get %s: status %d", host, status)
		}
		if body != fmt.Sprintf("tenant-%d.example", i) {
			t.Fatalf("host %s read %q", host, body)
		}
	}
	if s.registry.Len() != hosts {
		t.Fatalf("expected %d namespaces, got %d", hosts, s.registry.Len())
	}
}

func TestReadsOnUnknownHostsDoNotGrowRegistry(t *testing.T) {
	s := startStack(t, time.Second)

	for i := 0; i < 25; i++ {
		host := fmt.Sprintf("ghost-%d.example", i)
		if status, _ := s.send(t, http.MethodGet, host, "/k", "", ""); status != http.StatusNotFound {
			t.Fatalf("get %s: expected 404, got %d", host, status)
		}
		if status, _ := s.send(t, http.MethodDelete, host, "/k", "", ""); status != http.StatusNotFound {
			t.Fatalf("delete %s: expected 404, got %d", host, status)
		}
	}
	if s.registry.Len() != 0 {
		t.Fatalf("expected no namespaces, got %d", s.registry.Len())
	}
	text := s.fetchMetrics(t)
	if value, ok := metricValue(text, "memoryhttpd_operations_total", map[string]string{"op": "get", "result": "unknown_host"}); !ok || value != 25 {
		t.Fatalf("expected 25 unknown_host gets, got %v", value)
	}
	if value, ok := metricValue(text, "memoryhttpd_namespaces", nil); !ok || value != 0 {
		t.Fatalf("expected namespaces gauge 0, got %v", value)
	}
}
