package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// maxTrackedClients 超过该数量时顺带清理过期窗口
const maxTrackedClients = 1024

var rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "photodrop_http_rate_limited_total",
	Help: "Requests rejected by the per-client rate limiter",
})

// RateLimit 按客户端 IP 做固定窗口限流。
// 客户端地址取自 RemoteAddr，需挂在 chi 的 RealIP 之后。
func RateLimit(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	if maxRequests <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := newWindowLimiter(maxRequests, window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.allow(clientIP(r))
			if !ok {
				rateLimitedTotal.Inc()
				seconds := strconv.Itoa(int(math.Ceil(wait.Seconds())))
				w.Header().Set("Retry-After", seconds)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests","message":"retry after ` + seconds + ` seconds"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// windowLimiter 为每个客户端维护一个计数窗口。
type windowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*clientWindow
	now     func() time.Time
}

type clientWindow struct {
	hits  int
	reset time.Time
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

// allow 记录一次请求；被拒绝时返回距窗口重置的剩余时间。
func (l *windowLimiter) allow(client string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) > maxTrackedClients {
		for key, cw := range l.windows {
			if !now.Before(cw.reset) {
				delete(l.windows, key)
			}
		}
	}

	cw, ok := l.windows[client]
	if !ok || !now.Before(cw.reset) {
		l.windows[client] = &clientWindow{hits: 1, reset: now.Add(l.window)}
		return true, 0
	}
	if cw.hits >= l.limit {
		return false, cw.reset.Sub(now)
	}
	cw.hits++
	return true, 0
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
