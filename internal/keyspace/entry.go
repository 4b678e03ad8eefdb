package keyspace

import "time"

// Entry is a stored value plus its optional expiry instant. A zero ExpiresAt
// never expires.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Live reports whether the entry is still visible at now.
func (e Entry) Live(now time.Time) bool {
	return e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt)
}

// ExpiryFor turns an optional ttl into an absolute expiry. A nil ttl never
// expires; a ttl <= 0 expires at now, so the entry is already dead for every
// access at or after now.
func ExpiryFor(ttl *time.Duration, now time.Time) time.Time {
	if ttl == nil {
		return time.Time{}
	}
	if *ttl <= 0 {
		return now
	}
	return now.Add(*ttl)
}

type record struct {
	entry Entry
	gen   uint64
}
