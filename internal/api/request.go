package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"memoryhttpd/internal/config"
)

const (
	RequestIDHeader = "X-Request-Id"
	ExpireHeader    = "X-Expire-ms"
	ActionHeader    = "X-memoryhttpd-action"
)

const maxExpireMS = config.MaxDurationMS

var errBadExpire = errors.New("X-Expire-ms is not a valid number")

// requestID keeps a caller-supplied id so requests can be traced through
// other hops, and mints one otherwise.
func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

// parseExpire reads the expiration header. ok is false when the header is
// absent. Values too large for a time.Duration are clamped.
func parseExpire(header http.Header) (ms int64, ok bool, err error) {
	values := header.Values(ExpireHeader)
	if len(values) == 0 {
		return 0, false, nil
	}
	if len(values) > 1 {
		return 0, false, errBadExpire
	}
	raw := strings.TrimSpace(values[0])
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, errBadExpire
	}
	if parsed > uint64(maxExpireMS) {
		return maxExpireMS, true, nil
	}
	return int64(parsed), true, nil
}
