package api

import (
	"net/http"

	"github.com/quaverapp/quaver-server/internal/http/response"
)

// rateLimit rejects clients that exceed the per-IP request allowance with
// 429 Too Many Requests.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !s.limiter.Allow(key) {
			s.logger.Warn("rate limit exceeded", "ip", key, "path", r.URL.Path)
			response.TooManyRequests(w, "too many requests, slow down", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address for rate-limit keying. The
// RealIP middleware has already folded X-Forwarded-For and X-Real-IP
// into RemoteAddr; only the port needs stripping here.
func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}
