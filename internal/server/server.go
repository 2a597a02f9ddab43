// Package server exposes the listen store over an HTTP JSON API.
//
// Two authentication schemes are used: HTTP Basic for the scrobbling
// endpoints (what players and browser extensions send), and JWT bearer
// tokens for the management endpoints behind /api/auth and /api/admin.
package server

import (
	"net/http"
	"time"

	"github.com/maruel/musicmark/internal/server/ratelimit"
	"github.com/maruel/musicmark/internal/storage"
)

// Services groups the storage services the handlers depend on.
type Services struct {
	Users   *storage.UserService
	Listens *storage.ListenService
	Stats   *storage.StatsService
}

// Config carries server-level settings.
type Config struct {
	JWTSecret           []byte
	MaxRequestBodyBytes int64
	SiteName            string
	Version             string
	// RateLimitRPM throttles requests per client IP per minute; 0 disables.
	RateLimitRPM int
	RateBurst    int
}

// Server holds the handler state.
type Server struct {
	svc     *Services
	cfg     *Config
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// NewRouter builds the full API router.
func NewRouter(svc *Services, cfg *Config) http.Handler {
	s := &Server{svc: svc, cfg: cfg, now: time.Now}
	if cfg.RateLimitRPM > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = cfg.RateLimitRPM
		}
		s.limiter = ratelimit.NewLimiter(cfg.RateLimitRPM, time.Minute, burst)
	}

	mux := &http.ServeMux{}

	// Scrobbling API (Basic auth).
	mux.Handle("GET /api/ping", wrap(s, s.basicAuth, s.ping))
	mux.Handle("POST /api/listens", wrap(s, s.basicAuth, s.createListen))
	mux.Handle("GET /api/listens", wrap(s, s.basicAuth, s.listListens))
	mux.Handle("DELETE /api/listens", wrap(s, s.basicAuth, s.deleteListens))
	mux.HandleFunc("GET /api/listens/export", s.exportListens)
	mux.Handle("GET /api/stats", wrap(s, s.basicAuth, s.stats))
	mux.Handle("GET /api/stats/top", wrap(s, s.basicAuth, s.topSongs))

	// Session management (JWT bearer).
	mux.Handle("POST /api/auth/login", wrap(s, nil, s.login))
	mux.Handle("GET /api/auth/me", wrap(s, s.bearerAuth, s.me))
	mux.Handle("POST /api/auth/password", wrap(s, s.bearerAuth, s.changePassword))

	// Admin (JWT bearer, admin role).
	mux.Handle("GET /api/admin/users", wrap(s, s.adminAuth, s.listUsers))
	mux.Handle("POST /api/admin/users", wrap(s, s.adminAuth, s.createUser))
	mux.Handle("POST /api/admin/users/{id}/password", wrap(s, s.adminAuth, s.resetPassword))

	// Health check.
	mux.Handle("GET /api/health", wrap(s, nil, s.health))

	// JSON 404 for everything else.
	mux.HandleFunc("/", s.notFound)

	return accessLog(mux)
}
