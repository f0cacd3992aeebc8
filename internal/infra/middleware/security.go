// Package middleware holds HTTP middleware for the callback receiver,
// which is typically exposed to the internet through a tunnel.
package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SecurityHeaders sets the standard hardening headers on every
// response. The receiver serves JSON only.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// PerIPRateLimit applies a token bucket per client IP. Stale entries
// are evicted in the background until ctx is cancelled. Proxy headers
// are never trusted; the TCP peer address decides the bucket.
func PerIPRateLimit(ctx context.Context, requestsPerMin, burst int) func(http.Handler) http.Handler {
	type bucket struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var mu sync.Mutex
	buckets := make(map[string]*bucket)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				for ip, b := range buckets {
					if time.Since(b.lastSeen) > 3*time.Minute {
						delete(buckets, ip)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	perSec := rate.Limit(requestsPerMin) / 60.0

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r.RemoteAddr)

			mu.Lock()
			b, ok := buckets[ip]
			if !ok {
				b = &bucket{limiter: rate.NewLimiter(perSec, burst)}
				buckets[ip] = b
			}
			b.lastSeen = time.Now()
			mu.Unlock()

			if !b.limiter.Allow() {
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
