package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window holds the counts of the current and the previous fixed window. The
// previous count is weighted by how much of it the sliding window still
// overlaps.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

type limiter struct {
	max  int
	size time.Duration

	mu      sync.Mutex
	clients map[string]*window
}

func newLimiter(n int, size time.Duration) *limiter {
	return &limiter{max: n, size: size, clients: make(map[string]*window)}
}

// take records a request for key at now. It returns the remaining budget,
// the end of the current window and whether the request is admitted.
func (l *limiter) take(key string, now time.Time) (int, time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[key]
	if !ok {
		w = &window{start: now.Truncate(l.size)}
		l.clients[key] = w
	}

	switch elapsed := now.Sub(w.start); {
	case elapsed >= 2*l.size:
		w.start, w.prev, w.curr = now.Truncate(l.size), 0, 0
	case elapsed >= l.size:
		w.start, w.prev, w.curr = w.start.Add(l.size), w.curr, 0
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(l.size)
	used := w.prev*max(overlap, 0) + w.curr
	reset := w.start.Add(l.size)

	if used >= float64(l.max) {
		return 0, reset, false
	}
	w.curr++
	return max(l.max-int(math.Ceil(used+1)), 0), reset, true
}

// evict forgets clients idle for two full windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.clients, key)
		}
	}
}

// RateLimit limits requests per client and answers 429 once the budget is
// spent. Idle clients are evicted until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	keyOf := cfg.KeyFunc
	if keyOf == nil {
		keyOf = ClientIP
	}
	l := newLimiter(cfg.Max, cfg.Window)

	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.evict(now)
			}
		}
	}()

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := l.take(keyOf(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retry := max(time.Until(reset), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			var e jx.Encoder
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusTooManyRequests) })
				e.Field("message", func(e *jx.Encoder) { e.Str("rate limit exceeded") })
			})
			_, _ = w.Write(e.Bytes())
		})
	}
}

// ClientIP keys requests by X-Forwarded-For, X-Real-IP or the remote address,
// in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// APIKeyOrIP keys requests by the value of header, falling back to ClientIP.
func APIKeyOrIP(header string) func(*http.Request) string {
	return func(r *http.Request) string {
		if key := r.Header.Get(header); key != "" {
			return "key:" + key
		}
		return "ip:" + ClientIP(r)
	}
}
