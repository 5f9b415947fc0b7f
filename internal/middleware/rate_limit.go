package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"opspulse/internal/config"
	"opspulse/internal/logger"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const clientIdleTTL = 10 * time.Minute

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	return ip
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CommandLimiter ограничивает частоту команд от одного клиента
type CommandLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewCommandLimiter создает ограничитель по настройкам сервера; rate <= 0 отключает ограничение
func NewCommandLimiter(cfg *config.ServerConfig) *CommandLimiter {
	limit := rate.Limit(cfg.CommandRate)
	if cfg.CommandRate <= 0 {
		limit = rate.Inf
	}
	burst := cfg.CommandBurst
	if burst <= 0 {
		burst = 1
	}
	return &CommandLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow сообщает, можно ли выполнить команду, и через сколько повторить при отказе
func (l *CommandLimiter) Allow(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	c, ok := l.clients[client]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = c
	}
	c.lastSeen = now

	res := c.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// prune удаляет давно неактивных клиентов
func (l *CommandLimiter) prune(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > clientIdleTTL {
			delete(l.clients, key)
		}
	}
}

// RateLimitMiddleware ограничивает изменяющие запросы; чтение не ограничивается
func RateLimitMiddleware(limiter *CommandLimiter, log *logger.Logger) func(http.Handler) http.Handler {
	entry := log.Component("rate_limit")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)
			allowed, retryAfter := limiter.Allow(ip)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.burst))

			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				entry.WithFields(logrus.Fields{
					"ip":          ip,
					"path":        r.URL.Path,
					"retry_after": seconds,
				}).Warn("Command rejected by rate limiter")

				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":       "rate_limit_exceeded",
					"message":     "Too many commands, retry later",
					"retry_after": seconds,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
