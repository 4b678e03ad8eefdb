package obs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type AccessLogEntry struct {
	Timestamp     string `json:"ts"`
	RequestID     string `json:"request_id"`
	Method        string `json:"method"`
	Host          string `json:"host"`
	Path          string `json:"path"`
	Key           string `json:"key"`
	Action        string `json:"action"`
	ExpireMS      *int64 `json:"expire_ms,omitempty"`
	Status        int    `json:"status"`
	DurationMS    int64  `json:"duration_ms"`
	BytesIn       int64  `json:"bytes_in"`
	BytesOut      int64  `json:"bytes_out"`
	ErrorCategory string `json:"error_category"`
	UserAgent     string `json:"user_agent,omitempty"`
	RemoteAddr    string `json:"remote_addr,omitempty"`
}

var (
	accessLogMu  sync.Mutex
	accessLogOut io.Writer
)

// SetAccessLogOutput redirects access log lines; nil restores stdout.
func SetAccessLogOutput(w io.Writer) {
	accessLogMu.Lock()
	accessLogOut = w
	accessLogMu.Unlock()
}

func LogAccess(ctx RequestContext) {
	entry := AccessLogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:     defaultString(ctx.RequestID, "none"),
		Method:        ctx.Method,
		Host:          ctx.Host,
		Path:          ctx.Path,
		Key:           defaultString(ctx.Key, "none"),
		Action:        defaultString(ctx.Action, "none"),
		ExpireMS:      ctx.ExpireMS,
		Status:        ctx.Status,
		DurationMS:    ctx.Duration.Milliseconds(),
		BytesIn:       ctx.BytesIn,
		BytesOut:      ctx.BytesOut,
		ErrorCategory: defaultString(ctx.ErrorCategory, "none"),
		UserAgent:     ctx.UserAgent,
		RemoteAddr:    ctx.RemoteAddr,
	}

	accessLogMu.Lock()
	defer accessLogMu.Unlock()
	out := accessLogOut
	if out == nil {
		out = os.Stdout
	}

	data, err := json.Marshal(entry)
	if err != nil {
		_, _ = fmt.Fprintf(out, "log_marshal_error request_id=%s error=%v\n", entry.RequestID, err)
		return
	}
	_, _ = out.Write(append(data, '\n'))
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
