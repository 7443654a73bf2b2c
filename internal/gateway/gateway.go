// Package gateway wraps the remote user and book services behind
// circuit-broken capability calls.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"borrow-service/internal/config"
	"borrow-service/internal/logger"
	"borrow-service/internal/metrics"
)

// Capability names, also used as breaker and metric labels.
const (
	CapabilityUserToken        = "user-token"
	CapabilityUserStatus       = "user-status"
	CapabilityBookAvailability = "book-availability"
	CapabilityBookStatus       = "book-status"
)

type UserGateway interface {
	ValidateToken(ctx context.Context, token string) (bool, error)
	CheckUserStatus(ctx context.Context, userID int64) (bool, error)
}

type BookGateway interface {
	CheckBookAvailability(ctx context.Context, bookID int64) (bool, error)
	UpdateBookStatus(ctx context.Context, bookID int64, status string) error
}

// Gateways bundles the configured gateways with their breakers.
type Gateways struct {
	Users    UserGateway
	Books    BookGateway
	Breakers map[string]*Breaker
}

// New builds the user and book gateways for services.mode. Both variants run
// behind the same breakers.
func New(cfg config.ServicesConfig) (*Gateways, error) {
	userToken := newCapability(CapabilityUserToken, cfg.User)
	userStatus := newCapability(CapabilityUserStatus, cfg.User)
	bookAvailability := newCapability(CapabilityBookAvailability, cfg.Book)
	bookStatus := newCapability(CapabilityBookStatus, cfg.Book)

	gw := &Gateways{
		Breakers: map[string]*Breaker{
			CapabilityUserToken:        userToken.Breaker,
			CapabilityUserStatus:       userStatus.Breaker,
			CapabilityBookAvailability: bookAvailability.Breaker,
			CapabilityBookStatus:       bookStatus.Breaker,
		},
	}

	switch cfg.Mode {
	case "live":
		gw.Users = NewHTTPUserGateway(cfg.User.URL, &http.Client{}, userToken, userStatus)
		gw.Books = NewHTTPBookGateway(cfg.Book.URL, &http.Client{}, bookAvailability, bookStatus)
	case "stub":
		gw.Users = NewStubUserGateway(userToken, userStatus)
		gw.Books = NewStubBookGateway(bookAvailability, bookStatus)
	default:
		return nil, fmt.Errorf("unknown services mode: %q", cfg.Mode)
	}

	logger.Info("Gateways initialized", "mode", cfg.Mode)
	return gw, nil
}

func newCapability(name string, svc config.ServiceConfig) *Capability {
	breaker := NewBreaker(name, BreakerConfig{
		FailureThreshold:     svc.Breaker.FailureThreshold,
		FailureRateThreshold: svc.Breaker.FailureRateThreshold,
		MinimumCalls:         svc.Breaker.MinimumCalls,
		WindowSize:           svc.Breaker.WindowSize,
		SuccessThreshold:     svc.Breaker.SuccessThreshold,
		OpenTimeout:          svc.Breaker.OpenTimeout(),
		OnStateChange:        logStateChange,
	})
	metrics.SetBreakerState(name, int(StateClosed))

	return &Capability{
		Breaker:       breaker,
		Timeout:       svc.Timeout(),
		RetryAttempts: svc.RetryAttempts,
		RetryDelay:    svc.RetryDelay(),
	}
}

func logStateChange(name string, from, to State) {
	metrics.SetBreakerState(name, int(to))
	if to == StateOpen {
		logger.Warn("Circuit breaker opened", "capability", name, "from", from.String())
		return
	}
	logger.Info("Circuit breaker state changed", "capability", name, "from", from.String(), "to", to.String())
}
