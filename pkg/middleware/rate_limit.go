package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	apperrors "trainerbook/pkg/errors"
	httputil "trainerbook/pkg/http"
	"trainerbook/pkg/logger"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Stop()
}

// ClientKeyFunc picks the identity a request is counted against.
type ClientKeyFunc func(r *http.Request) string

// UserRateLimiter is a per-process sliding window limiter.
type UserRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	stopCh   chan struct{}
	once     sync.Once
}

func NewUserRateLimiter(limit int, window time.Duration) *UserRateLimiter {
	limiter := &UserRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		stopCh:   make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *UserRateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *UserRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *UserRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false, nil
	}

	rl.requests[key] = append(valid, now)
	return true, nil
}

// RateLimit rejects callers over budget with 429. Limiter errors fail open.
func RateLimit(limiter RateLimiter, keyFn ClientKeyFunc, log *logger.Logger) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = UserOrAddrKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn("Rate limiter unavailable, allowing request",
					"request_id", requestIDFrom(r),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				rejectRateLimited(w, log, r, key)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserOrAddrKey counts authenticated callers by user and anonymous ones by address.
func UserOrAddrKey(r *http.Request) string {
	if userID := r.Header.Get(httputil.HeaderUserID); userID != "" {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, key string) {
	log.Warn("Rate limit exceeded",
		"request_id", requestIDFrom(r),
		"client", key,
		"path", r.URL.Path,
	)

	_ = httputil.WriteError(w, apperrors.New(apperrors.CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests))
}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
