package testutil

import (
	"testing"
	"time"
)

// Eventually polls fn until it returns nil or timeout elapses, failing tb with
// the last error seen.
func Eventually(tb testing.TB, timeout time.Duration, interval time.Duration, fn func() error) {
	tb.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error

	for {
		lastErr = fn()
		if lastErr == nil {
			return
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(interval)
	}

	tb.Fatalf("condition not met: %v", lastErr)
}
