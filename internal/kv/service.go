package kv

import (
	"errors"
	"fmt"
	"time"

	"memoryhttpd/internal/registry"
)

var (
	ErrNotFound     = errors.New("kv: not found")
	ErrHostNotFound = fmt.Errorf("%w: unknown host", ErrNotFound)
	ErrKeyNotFound  = fmt.Errorf("%w: no live entry", ErrNotFound)
)

// Action names what a PUT did to its key.
type Action string

const (
	ActionCreate Action = "create"
	ActionSet    Action = "set"
)

type PutResult struct {
	Key     string
	Created bool
}

func (r PutResult) Action() Action {
	if r.Created {
		return ActionCreate
	}
	return ActionSet
}

// Service is the request-level contract over the namespace registry: raw
// host and path in, normalized lookups and outcomes out.
type Service struct {
	registry *registry.Registry
}

func NewService(reg *registry.Registry) *Service {
	return &Service{registry: reg}
}

func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// HandlePut creates or replaces the entry. A nil ttl never expires.
func (s *Service) HandlePut(host, rawPath string, body []byte, ttl *time.Duration, now time.Time) PutResult {
	key := NormalizeKey(rawPath)
	replaced := s.registry.GetOrCreate(host).Put(key, body, ttl, now)
	return PutResult{Key: key, Created: !replaced}
}

func (s *Service) HandleGet(host, rawPath string, now time.Time) ([]byte, error) {
	store, ok := s.registry.Get(host)
	if !ok {
		return nil, ErrHostNotFound
	}
	value, ok := store.Get(NormalizeKey(rawPath), now)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

// HandleDelete returns nil only if a live entry existed and was removed.
func (s *Service) HandleDelete(host, rawPath string, now time.Time) error {
	store, ok := s.registry.Get(host)
	if !ok {
		return ErrHostNotFound
	}
	if !store.Delete(NormalizeKey(rawPath), now) {
		return ErrKeyNotFound
	}
	return nil
}
