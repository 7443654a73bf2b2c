package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"borrow-service/internal/config"
	"borrow-service/internal/gateway"
	"borrow-service/internal/logger"
)

const (
	headerRequestID     = "X-Request-ID"
	headerAuthorization = "Authorization"
	bearerPrefix        = "Bearer "
)

// RequestID propagates or assigns a request id and attaches it to the
// request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

// RateLimiter limits requests per client address. Clients idle for longer
// than the idle TTL are dropped by Cleanup.
type RateLimiter struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const defaultLimiterIdleTTL = 10 * time.Minute

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(requestsPerSecond),
		burst:   burst,
		idleTTL: defaultLimiterIdleTTL,
		now:     time.Now,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, exists := rl.clients[key]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = rl.now()
	return client.limiter
}

// Cleanup removes limiters of clients not seen within the idle TTL.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := rl.Cleanup(); removed > 0 {
					logger.Debug("Evicted idle rate limiters", "removed", removed)
				}
			}
		}
	}()
}

// Handler returns the rate limiting middleware
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.getLimiter(key).Allow() {
			logger.WarnContext(r.Context(), "Rate limit exceeded", "client", key, "path", r.URL.Path)
			writeErrorCode(w, r, http.StatusTooManyRequests, codeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Authenticator validates bearer tokens against the user service for every
// path that is not public.
type Authenticator struct {
	users gateway.UserGateway
}

func NewAuthenticator(users gateway.UserGateway) *Authenticator {
	return &Authenticator{users: users}
}

func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.GetSecurityLevel(r.URL.Path) == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(headerAuthorization)
		if !strings.HasPrefix(header, bearerPrefix) {
			writeErrorCode(w, r, http.StatusUnauthorized, codeUnauthorized, "authorization token is not provided")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if token == "" {
			writeErrorCode(w, r, http.StatusUnauthorized, codeUnauthorized, "authorization token is not provided")
			return
		}

		valid, err := a.users.ValidateToken(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !valid {
			writeErrorCode(w, r, http.StatusUnauthorized, codeUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
