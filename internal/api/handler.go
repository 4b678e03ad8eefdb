package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"memoryhttpd/internal/kv"
	"memoryhttpd/internal/obs"
	"memoryhttpd/internal/runtime"
)

const allowedMethods = "GET, PUT, DELETE"

// Handler serves the key-value store over HTTP: the path is the key, the
// body is the value and the Host header picks the namespace.
type Handler struct {
	Service       *kv.Service
	Metrics       *obs.Metrics
	Logger        *slog.Logger
	Inflight      *runtime.InflightTracker
	MaxBodyBytes  int64
	DefaultExpire time.Duration
	AccessLog     bool
	// Now is sampled once per request; nil means time.Now.
	Now func() time.Time
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Service == nil {
		http.Error(w, "store not ready", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()
	now := start
	if h.Now != nil {
		now = h.Now()
	}
	h.Inflight.Inc()
	defer h.Inflight.Dec()

	id := requestID(r)
	w.Header().Set(RequestIDHeader, id)
	rec := NewResponseRecorder(w)
	reqCtx := obs.RequestContext{
		RequestID:  id,
		Method:     r.Method,
		Host:       r.Host,
		Path:       r.URL.Path,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
	}
	defer func() {
		reqCtx.Status = rec.Status()
		reqCtx.BytesOut = rec.BytesWritten()
		reqCtx.Duration = time.Since(start)
		h.Metrics.ObserveRequest(r.Method, reqCtx.Status, reqCtx.Duration)
		if h.AccessLog {
			obs.LogAccess(reqCtx)
		}
	}()

	if !strings.HasPrefix(r.URL.Path, "/") {
		reqCtx.ErrorCategory = "bad_request"
		writeText(rec, http.StatusBadRequest, "Path must start with a slash")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(rec, r, now, &reqCtx)
	case http.MethodPut:
		h.put(rec, r, now, &reqCtx)
	case http.MethodDelete:
		h.delete(rec, r, now, &reqCtx)
	default:
		reqCtx.ErrorCategory = "method_not_allowed"
		rec.Header().Set("Allow", allowedMethods)
		writeText(rec, http.StatusMethodNotAllowed, "")
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, now time.Time, reqCtx *obs.RequestContext) {
	reqCtx.Key = kv.NormalizeKey(r.URL.Path)
	value, err := h.Service.HandleGet(r.Host, r.URL.Path, now)
	if err != nil {
		h.notFound(w, "get", err, reqCtx)
		return
	}
	h.Metrics.RecordOperation("get", "hit")
	reqCtx.Action = "get"
	writeBody(w, http.StatusOK, value)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request, now time.Time, reqCtx *obs.RequestContext) {
	reqCtx.Key = kv.NormalizeKey(r.URL.Path)
	ttl, err := h.expiry(r, reqCtx)
	if err != nil {
		reqCtx.ErrorCategory = "bad_request"
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := h.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reqCtx.ErrorCategory = "body_too_large"
			writeText(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		reqCtx.ErrorCategory = "bad_request"
		h.logger().Warn("read body failed", "request_id", reqCtx.RequestID, "error", err)
		writeText(w, http.StatusBadRequest, "Could not read body")
		return
	}
	reqCtx.BytesIn = int64(len(body))

	result := h.Service.HandlePut(r.Host, r.URL.Path, body, ttl, now)
	action := string(result.Action())
	reqCtx.Action = action
	h.Metrics.RecordOperation("put", action)
	if ttl != nil {
		h.logger().Debug("key expires", "host", reqCtx.Host, "key", result.Key, "ttl", ttl.String())
	}

	w.Header().Set(ActionHeader, action)
	writeBody(w, http.StatusOK, body)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, now time.Time, reqCtx *obs.RequestContext) {
	reqCtx.Key = kv.NormalizeKey(r.URL.Path)
	if err := h.Service.HandleDelete(r.Host, r.URL.Path, now); err != nil {
		h.notFound(w, "delete", err, reqCtx)
		return
	}
	h.Metrics.RecordOperation("delete", "hit")
	reqCtx.Action = "delete"
	writeText(w, http.StatusOK, "")
}

func (h *Handler) notFound(w http.ResponseWriter, op string, err error, reqCtx *obs.RequestContext) {
	result := "miss"
	if errors.Is(err, kv.ErrHostNotFound) {
		result = "unknown_host"
	}
	h.Metrics.RecordOperation(op, result)
	reqCtx.ErrorCategory = "not_found"
	writeText(w, http.StatusNotFound, "")
}

// expiry resolves the ttl for a PUT: the header wins, then the configured
// default, otherwise the entry never expires.
func (h *Handler) expiry(r *http.Request, reqCtx *obs.RequestContext) (*time.Duration, error) {
	ms, ok, err := parseExpire(r.Header)
	if err != nil {
		return nil, err
	}
	if !ok {
		if h.DefaultExpire <= 0 {
			return nil, nil
		}
		ms = h.DefaultExpire.Milliseconds()
	}
	reqCtx.ExpireMS = &ms
	ttl := time.Duration(ms) * time.Millisecond
	return &ttl, nil
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body := r.Body
	if h.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	return io.ReadAll(body)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

func writeText(w http.ResponseWriter, status int, message string) {
	if message != "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	writeBody(w, status, []byte(message))
}
