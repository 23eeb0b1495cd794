package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"hostel/pkg/logger"
)

type cachedResponse struct {
	statusCode int
	header     http.Header
	body       []byte
	storedAt   time.Time
}

type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*cachedResponse
	ttl     time.Duration
}

func newIdempotencyStore(ttl time.Duration) *idempotencyStore {
	return &idempotencyStore{
		entries: make(map[string]*cachedResponse),
		ttl:     ttl,
	}
}

func (s *idempotencyStore) get(key string) (*cachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > s.ttl {
		delete(s.entries, key)
		return nil, false
	}
	return entry, true
}

func (s *idempotencyStore) put(key string, entry *cachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if time.Since(e.storedAt) > s.ttl {
			delete(s.entries, k)
		}
	}
	s.entries[key] = entry
}

type captureWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.statusCode = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.body.Write(b)
	return cw.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// mutating requests. Keys are scoped to method and path.
func Idempotency(log *logger.Logger, ttl time.Duration) func(http.Handler) http.Handler {
	store := newIdempotencyStore(ttl)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			scopedKey := r.Method + " " + r.URL.Path + " " + key

			if cached, ok := store.get(scopedKey); ok {
				log.Info("Replaying idempotent response",
					"request_id", requestIDFrom(r),
					"idempotency_key", key,
					"path", r.URL.Path,
				)

				for name, values := range cached.header {
					for _, v := range values {
						w.Header().Add(name, v)
					}
				}
				w.Header().Set("X-Idempotent-Replay", "true")
				w.WriteHeader(cached.statusCode)
				_, _ = w.Write(cached.body)
				return
			}

			cw := &captureWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(cw, r)

			// Only successful outcomes are replayable; errors may be retried.
			if cw.statusCode < 500 {
				store.put(scopedKey, &cachedResponse{
					statusCode: cw.statusCode,
					header:     cw.Header().Clone(),
					body:       cw.body.Bytes(),
					storedAt:   time.Now(),
				})
			}
		})
	}
}
