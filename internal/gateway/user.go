package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"borrow-service/internal/logger"
)

type httpUserGateway struct {
	baseURL   string
	client    *http.Client
	tokenCap  *Capability
	statusCap *Capability
}

// NewHTTPUserGateway returns a UserGateway backed by the user service REST API.
func NewHTTPUserGateway(baseURL string, client *http.Client, tokenCap, statusCap *Capability) UserGateway {
	return &httpUserGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		tokenCap:  tokenCap,
		statusCap: statusCap,
	}
}

func (g *httpUserGateway) ValidateToken(ctx context.Context, token string) (bool, error) {
	return Call(ctx, g.tokenCap, false, func(ctx context.Context) (bool, error) {
		logger.ExternalServiceCall(ctx, "user-service", "ValidateToken")
		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)

		var valid bool
		err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/api/auth/validate", header, nil, &valid)
		logger.ExternalServiceResult(ctx, "user-service", "ValidateToken", err, "valid", valid)
		return valid, err
	})
}

func (g *httpUserGateway) CheckUserStatus(ctx context.Context, userID int64) (bool, error) {
	return Call(ctx, g.statusCap, false, func(ctx context.Context) (bool, error) {
		logger.ExternalServiceCall(ctx, "user-service", "CheckUserStatus", "user_id", userID)
		url := fmt.Sprintf("%s/api/users/%d/status", g.baseURL, userID)

		var active bool
		err := doJSON(ctx, g.client, http.MethodGet, url, nil, nil, &active)
		logger.ExternalServiceResult(ctx, "user-service", "CheckUserStatus", err, "user_id", userID, "active", active)
		return active, err
	})
}
