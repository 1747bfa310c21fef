// internal/httpserver/ratelimit.go
//
// Per-IP rate limiting for session creation.
// Responsibilities:
//   - One token bucket per client IP (RealIP has already run).
//   - 429 with Retry-After when a bucket is empty.
//   - A janitor that forgets clients idle for longer than limiterIdle.

package httpserver

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/robalobadob/gridentify/internal/metrics"
)

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*limitedClient
}

type limitedClient struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*limitedClient),
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[ip]
	if !ok {
		c = &limitedClient{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.seen = now
	return c.lim.AllowN(now, 1)
}

// prune forgets clients not seen since cutoff; their buckets are full again
// by then anyway. Returns how many were dropped.
func (l *ipLimiter) prune(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, c := range l.clients {
		if c.seen.Before(cutoff) {
			delete(l.clients, ip)
			n++
		}
	}
	return n
}

// middleware answers 429 once a client IP exceeds its rate.
func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip, time.Now()) {
			metrics.RateLimited.Inc()
			log.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("client got rate limited")
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr; after chi's RealIP there may be
// none.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RunJanitor prunes idle rate-limit entries every interval until ctx ends.
func (s *Server) RunJanitor(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if n := s.limiter.prune(now.Add(-limiterIdle)); n > 0 {
				log.Debug().Int("clients", n).Msg("pruned rate limiter")
			}
		}
	}
}
