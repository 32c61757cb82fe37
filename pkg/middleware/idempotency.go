package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	httputil "trainerbook/pkg/http"
)

const (
	DefaultIdempotencyHeader = "Idempotency-Key"
	IdempotentReplayHeader   = "Idempotent-Replayed"

	idempotencySweepEvery = 10 * time.Minute
)

// IdempotencyStore keeps the first successful response per scoped key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, response *CachedResponse)
	Stop()
}

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (c *CachedResponse) expired(ttl time.Duration, at time.Time) bool {
	return at.Sub(c.CreatedAt) > ttl
}

// InMemoryIdempotencyStore is a per-process store. Entries older than the
// TTL are ignored on read and swept periodically.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*CachedResponse
	ttl     time.Duration
	done    chan struct{}
	stop    sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		entries: map[string]*CachedResponse{},
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *InMemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if entry.expired(s.ttl, time.Now()) {
		delete(s.entries, key)
		return nil, false
	}
	return entry, true
}

func (s *InMemoryIdempotencyStore) Set(_ context.Context, key string, response *CachedResponse) {
	response.CreatedAt = time.Now()

	s.mu.Lock()
	s.entries[key] = response
	s.mu.Unlock()
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	ticker := time.NewTicker(idempotencySweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case at := <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.entries {
				if entry.expired(s.ttl, at) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stop.Do(func() { close(s.done) })
}

// teeWriter passes the response through while keeping a copy of it.
type teeWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (tw *teeWriter) WriteHeader(code int) {
	if tw.status == 0 {
		tw.status = code
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *teeWriter) Write(b []byte) (int, error) {
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	tw.body.Write(b)
	return tw.ResponseWriter.Write(b)
}

// Idempotency replays the first successful response for a repeated key.
// Keys are scoped by caller, method and path so one client's key never
// answers another client's request. Failures are not cached, so the caller
// may retry with the same key.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = DefaultIdempotencyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(headerName)
			if clientKey == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.Join([]string{r.Header.Get(httputil.HeaderUserID), r.Method, r.URL.Path, clientKey}, "|")
			if cached, ok := store.Get(r.Context(), key); ok {
				replay(w, cached)
				return
			}

			tee := &teeWriter{ResponseWriter: w}
			next.ServeHTTP(tee, r)

			if tee.status < 200 || tee.status > 299 {
				return
			}
			store.Set(context.WithoutCancel(r.Context()), key, &CachedResponse{
				StatusCode: tee.status,
				Headers:    w.Header().Clone(),
				Body:       tee.body.Bytes(),
			})
		})
	}
}

// replay writes a cached response. Headers already set by outer middleware,
// such as the request id, win over the cached ones.
func replay(w http.ResponseWriter, cached *CachedResponse) {
	header := w.Header()
	for name, values := range cached.Headers {
		if _, set := header[name]; set {
			continue
		}
		header[name] = append([]string(nil), values...)
	}
	header.Set(IdempotentReplayHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
