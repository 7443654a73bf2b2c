package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"borrow-service/internal/logger"
)

type httpBookGateway struct {
	baseURL         string
	client          *http.Client
	availabilityCap *Capability
	statusCap       *Capability
}

// NewHTTPBookGateway returns a BookGateway backed by the book service REST API.
func NewHTTPBookGateway(baseURL string, client *http.Client, availabilityCap, statusCap *Capability) BookGateway {
	return &httpBookGateway{
		baseURL:         strings.TrimRight(baseURL, "/"),
		client:          client,
		availabilityCap: availabilityCap,
		statusCap:       statusCap,
	}
}

func (g *httpBookGateway) CheckBookAvailability(ctx context.Context, bookID int64) (bool, error) {
	return Call(ctx, g.availabilityCap, false, func(ctx context.Context) (bool, error) {
		logger.ExternalServiceCall(ctx, "book-service", "CheckBookAvailability", "book_id", bookID)
		url := fmt.Sprintf("%s/api/books/%d/availability", g.baseURL, bookID)

		var available bool
		err := doJSON(ctx, g.client, http.MethodGet, url, nil, nil, &available)
		logger.ExternalServiceResult(ctx, "book-service", "CheckBookAvailability", err, "book_id", bookID, "available", available)
		return available, err
	})
}

// UpdateBookStatus is a logged no-op while the breaker is open.
func (g *httpBookGateway) UpdateBookStatus(ctx context.Context, bookID int64, status string) error {
	_, err := Call(ctx, g.statusCap, struct{}{}, func(ctx context.Context) (struct{}, error) {
		logger.ExternalServiceCall(ctx, "book-service", "UpdateBookStatus", "book_id", bookID, "status", status)
		url := fmt.Sprintf("%s/api/books/%d/status", g.baseURL, bookID)

		err := doJSON(ctx, g.client, http.MethodPut, url, nil, map[string]string{"status": status}, nil)
		logger.ExternalServiceResult(ctx, "book-service", "UpdateBookStatus", err, "book_id", bookID)
		return struct{}{}, err
	})
	return err
}
