package obs

import "time"

// RequestContext is what the HTTP layer knows about a request once it has
// been answered.
type RequestContext struct {
	RequestID     string
	Method        string
	Host          string
	Path          string
	Key           string
	Action        string
	ExpireMS      *int64
	Status        int
	Duration      time.Duration
	BytesIn       int64
	BytesOut      int64
	ErrorCategory string
	UserAgent     string
	RemoteAddr    string
}
