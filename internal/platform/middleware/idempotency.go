package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// DefaultIdempotencyTTL is the default time-to-live for cached idempotency
// responses. Payment and import endpoints cache for 24 hours so clients can
// safely retry writes that failed due to transient network issues.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyEntry represents a cached response for an idempotent request.
// When a client retries a write with the same idempotency key, the server
// replays the cached response instead of re-executing the request.
type IdempotencyEntry struct {
	Key        string
	Method     string
	Path       string
	StatusCode int
	Headers    http.Header
	Body       []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// IdempotencyStore defines the persistence interface for idempotency key
// storage. Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	Get(key string) (*IdempotencyEntry, bool)
	Set(key string, entry *IdempotencyEntry)
	Delete(key string)
}

// InMemoryIdempotencyStore is a concurrency-safe, in-memory implementation
// of IdempotencyStore with TTL-based expiration and background cleanup.
type InMemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]*IdempotencyEntry
	ttl     time.Duration
	nowFunc func() time.Time // for testing; defaults to time.Now
	stop    chan struct{}
}

// NewInMemoryIdempotencyStore creates a store with the given TTL for cached
// entries. A background goroutine runs every hour to evict expired entries.
// If ttl is zero or negative, DefaultIdempotencyTTL is used.
func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	s := &InMemoryIdempotencyStore{
		entries: make(map[string]*IdempotencyEntry),
		ttl:     ttl,
		nowFunc: time.Now,
		stop:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}

// Stop terminates the background cleanup goroutine.
func (s *InMemoryIdempotencyStore) Stop() {
	close(s.stop)
}

func (s *InMemoryIdempotencyStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	for key, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, key)
		}
	}
}

// Get retrieves a cached response by idempotency key. Returns nil, false if
// the key is not found or has expired.
func (s *InMemoryIdempotencyStore) Get(key string) (*IdempotencyEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.nowFunc().After(entry.ExpiresAt) {
		return nil, false
	}
	// Return a copy to prevent callers from mutating the stored entry.
	cp := *entry
	if entry.Headers != nil {
		cp.Headers = entry.Headers.Clone()
	}
	cp.Body = make([]byte, len(entry.Body))
	copy(cp.Body, entry.Body)
	return &cp, true
}

// Set stores a response for the given idempotency key. The entry's ExpiresAt
// field is set based on the store's TTL if it is zero.
func (s *InMemoryIdempotencyStore) Set(key string, entry *IdempotencyEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.nowFunc()
	}
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = cp.CreatedAt.Add(s.ttl)
	}
	if entry.Headers != nil {
		cp.Headers = entry.Headers.Clone()
	}
	cp.Body = make([]byte, len(entry.Body))
	copy(cp.Body, entry.Body)
	s.entries[key] = &cp
}

// Delete removes a cached response by idempotency key.
func (s *InMemoryIdempotencyStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Idempotency returns an Echo middleware that implements Idempotency-Key
// support for write operations. It is applied to routes whose effects must
// not duplicate on retry, such as payment capture and bulk import.
//
// Behaviour:
//   - GET and DELETE requests are passed through without inspection.
//   - If no Idempotency-Key (or legacy X-Idempotency-Key) header is present,
//     the request is passed through.
//   - If a key is present and a cached response exists for the same method
//     and path, the cached response is replayed with X-Idempotency-Replayed
//     set to "true". A method/path mismatch returns 422 to prevent key reuse
//     across different operations.
//   - Otherwise the handler runs, its response is captured and cached, and
//     then returned normally.
func Idempotency(store IdempotencyStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			method := c.Request().Method
			if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
				return next(c)
			}

			idempKey := c.Request().Header.Get("Idempotency-Key")
			if idempKey == "" {
				idempKey = c.Request().Header.Get("X-Idempotency-Key")
			}
			if idempKey == "" {
				return next(c)
			}

			path := c.Request().URL.Path

			if cached, ok := store.Get(idempKey); ok {
				if cached.Method != method || cached.Path != path {
					return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
						"status": false,
						"msg":    "idempotency key was already used for a different operation",
						"error": map[string]interface{}{
							"msg":     "idempotency key was already used for a different operation",
							"details": []interface{}{},
						},
					})
				}
				resp := c.Response()
				for k, vals := range cached.Headers {
					for _, v := range vals {
						resp.Header().Set(k, v)
					}
				}
				resp.Header().Set("X-Idempotency-Replayed", "true")
				resp.WriteHeader(cached.StatusCode)
				_, err := resp.Write(cached.Body)
				return err
			}

			// No cached response: execute the handler and capture the output.
			origWriter := c.Response().Writer
			rec := &idempotencyRecorder{
				ResponseWriter: origWriter,
				body:           &bytes.Buffer{},
				statusCode:     http.StatusOK,
				headers:        make(http.Header),
			}
			c.Response().Writer = rec

			if err := next(c); err != nil {
				c.Response().Writer = origWriter
				return err
			}

			c.Response().Writer = origWriter

			capturedHeaders := make(http.Header)
			for k, vals := range rec.Header() {
				capturedHeaders[k] = vals
			}

			store.Set(idempKey, &IdempotencyEntry{
				Key:        idempKey,
				Method:     method,
				Path:       path,
				StatusCode: rec.statusCode,
				Headers:    capturedHeaders,
				Body:       rec.body.Bytes(),
			})

			for k, vals := range capturedHeaders {
				for _, v := range vals {
					origWriter.Header().Set(k, v)
				}
			}
			origWriter.WriteHeader(rec.statusCode)
			_, err := origWriter.Write(rec.body.Bytes())
			return err
		}
	}
}

// idempotencyRecorder captures an HTTP response for idempotency caching.
type idempotencyRecorder struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
	headers    http.Header
	wroteHead  bool
}

func (r *idempotencyRecorder) Header() http.Header {
	return r.headers
}

func (r *idempotencyRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.wroteHead = true
}

func (r *idempotencyRecorder) Write(b []byte) (int, error) {
	if !r.wroteHead {
		r.statusCode = http.StatusOK
		r.wroteHead = true
	}
	return r.body.Write(b)
}
