package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Store counts requests per key inside a fixed window.
type Store interface {
	Allow(ctx context.Context, key string) (bool, error)
	Window() time.Duration
}

// MemoryStore keeps counters in process. Close stops the cleanup goroutine.
type MemoryStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	count     int
	lastReset time.Time
}

func NewMemoryStore(limit int, window time.Duration) *MemoryStore {
	s := &MemoryStore{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	go s.cleanup(window * 2)
	return s
}

func (s *MemoryStore) Window() time.Duration { return s.window }

func (s *MemoryStore) Allow(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.visitors[key]
	now := time.Now()

	if !exists || now.Sub(v.lastReset) > s.window {
		s.visitors[key] = &visitor{count: 1, lastReset: now}
		return true, nil
	}

	v.count++
	return v.count <= s.limit, nil
}

func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for key, v := range s.visitors {
				if now.Sub(v.lastReset) > s.window*2 {
					delete(s.visitors, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// RedisStore shares counters between replicas. Keys are bucketed by window
// start and expire with the window.
type RedisStore struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisStore(client *redis.Client, limit int, window time.Duration) *RedisStore {
	return &RedisStore{client: client, limit: limit, window: window, prefix: "crm:ratelimit:"}
}

func (s *RedisStore) Window() time.Duration { return s.window }

func (s *RedisStore) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().UnixNano() / int64(s.window)
	k := fmt.Sprintf("%s%s:%d", s.prefix, key, bucket)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, s.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= int64(s.limit), nil
}

// RateLimit rejects clients over the limit with 429. Store errors fail open.
func RateLimit(store Store, logger *zap.Logger) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(store.Window().Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := store.Allow(r.Context(), ClientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				allowed = true
			}
			if !allowed {
				rateLimited.Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "RATE_LIMITED",
					"message": "Too many requests. Please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the remote address without its port. Forwarding headers are
// client-controlled and only count once the router's RealIP middleware (enabled
// with TrustProxyHeaders) has rewritten RemoteAddr.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
