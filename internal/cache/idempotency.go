package cache

import (
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrKeyReused is returned when an idempotency key comes back with a
// different request body.
var ErrKeyReused = errors.New("idempotency key reused with a different request")

// Response is a stored HTTP outcome replayed for repeated keys.
type Response struct {
	Status      int
	Body        []byte
	Fingerprint string
}

// IdempotencyStore remembers successful responses by key for a while.
// Concurrent requests with the same key share one execution.
type IdempotencyStore struct {
	responses *LRUCache[Response]
	group     singleflight.Group
}

func NewIdempotencyStore(maxSize int, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{responses: NewLRUCache[Response](maxSize, ttl)}
}

// Do returns the stored response for key, or runs fn once for all
// concurrent callers. Only 2xx responses are stored, so a failed attempt
// can be retried with the same key. replayed reports whether the
// response came from an earlier or concurrent call.
func (s *IdempotencyStore) Do(key, fingerprint string, fn func() (Response, error)) (resp Response, replayed bool, err error) {
	if cached, ok := s.responses.Get(key); ok {
		if cached.Fingerprint != fingerprint {
			return Response{}, false, ErrKeyReused
		}
		return cached, true, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		if cached, ok := s.responses.Get(key); ok {
			return cached, nil
		}
		r, err := fn()
		if err != nil {
			return Response{}, err
		}
		r.Fingerprint = fingerprint
		if r.Status >= 200 && r.Status < 300 {
			s.responses.Set(key, r)
		}
		return r, nil
	})
	if err != nil {
		return Response{}, false, err
	}
	resp = v.(Response)
	if resp.Fingerprint != fingerprint {
		return Response{}, false, ErrKeyReused
	}
	return resp, shared, nil
}

// Cleaner exposes the backing cache for a Manager.
func (s *IdempotencyStore) Cleaner() Cleaner {
	return s.responses
}

func (s *IdempotencyStore) Size() int {
	return s.responses.Size()
}
