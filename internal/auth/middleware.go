package auth

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"schoolshelf/internal/web"

	"golang.org/x/time/rate"
)

// HeaderPIN carries the admin PIN on every admin request.
const HeaderPIN = "X-Admin-PIN"

// Guard admits admin requests that carry a valid PIN. Each client address gets
// its own attempt budget.
type Guard struct {
	verifier *Verifier
	respond  *web.Responder
	logger   *slog.Logger
	every    time.Duration
	burst    int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewGuard allows burst attempts per client, refilled one per interval.
func NewGuard(verifier *Verifier, respond *web.Responder, logger *slog.Logger, every time.Duration, burst int) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		verifier: verifier,
		respond:  respond,
		logger:   logger,
		every:    every,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (g *Guard) limiterFor(client string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	limiter, ok := g.limiters[client]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(g.every), g.burst)
		g.limiters[client] = limiter
	}
	return limiter
}

// RequireAdmin is a middleware rejecting requests without a valid PIN.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !g.limiterFor(client).Allow() {
			g.logger.WarnContext(r.Context(), "admin request rate limited", "client", client)
			g.respond.Error(w, r, ErrRateLimited)
			return
		}
		if !g.verifier.Verify(r.Header.Get(HeaderPIN)) {
			g.logger.WarnContext(r.Context(), "admin PIN rejected", "client", client, "path", r.URL.Path)
			g.respond.Error(w, r, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
