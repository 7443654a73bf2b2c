package gateway

import (
	"context"
	"strings"

	"borrow-service/internal/logger"
)

// stubTokenPrefix marks tokens the stub user gateway accepts.
const stubTokenPrefix = "valid-"

type stubUserGateway struct {
	tokenCap  *Capability
	statusCap *Capability
}

// NewStubUserGateway returns a UserGateway for local development: tokens are
// valid iff they start with "valid-" and every user is active.
func NewStubUserGateway(tokenCap, statusCap *Capability) UserGateway {
	return &stubUserGateway{tokenCap: tokenCap, statusCap: statusCap}
}

func (g *stubUserGateway) ValidateToken(ctx context.Context, token string) (bool, error) {
	return Call(ctx, g.tokenCap, false, func(ctx context.Context) (bool, error) {
		return strings.HasPrefix(token, stubTokenPrefix), nil
	})
}

func (g *stubUserGateway) CheckUserStatus(ctx context.Context, userID int64) (bool, error) {
	return Call(ctx, g.statusCap, false, func(ctx context.Context) (bool, error) {
		return true, nil
	})
}

type stubBookGateway struct {
	availabilityCap *Capability
	statusCap       *Capability
}

// NewStubBookGateway returns a BookGateway for local development: every book is
// available and status updates are only logged.
func NewStubBookGateway(availabilityCap, statusCap *Capability) BookGateway {
	return &stubBookGateway{availabilityCap: availabilityCap, statusCap: statusCap}
}

func (g *stubBookGateway) CheckBookAvailability(ctx context.Context, bookID int64) (bool, error) {
	return Call(ctx, g.availabilityCap, false, func(ctx context.Context) (bool, error) {
		return true, nil
	})
}

func (g *stubBookGateway) UpdateBookStatus(ctx context.Context, bookID int64, status string) error {
	_, err := Call(ctx, g.statusCap, struct{}{}, func(ctx context.Context) (struct{}, error) {
		logger.DebugContext(ctx, "Stub book status update", "book_id", bookID, "status", status)
		return struct{}{}, nil
	})
	return err
}
