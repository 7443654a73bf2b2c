package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"borrow-service/internal/domain"
	"borrow-service/internal/gateway"
)

const testToken = "valid-token"

func newTestRouter(t *testing.T) (*mux.Router, *MockBorrowService, *MockUserGateway) {
	t.Helper()
	svc := new(MockBorrowService)
	users := new(MockUserGateway)
	users.On("ValidateToken", mock.Anything, testToken).Return(true, nil).Maybe()

	router := NewRouter(RouterConfig{
		Borrows: svc,
		Users:   users,
		Store:   fakeStore{},
	})
	return router, svc, users
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sampleBorrow() *domain.Borrow {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Borrow{
		ID:         42,
		UserID:     7,
		BookID:     9,
		BorrowDate: now,
		DueDate:    now.AddDate(0, 0, 14),
		Status:     domain.BorrowStatusBorrowed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCreateBorrow(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("BorrowBook", mock.Anything, int64(7), int64(9)).Return(sampleBorrow(), nil)

		rec := doRequest(router, http.MethodPost, "/api/borrows", `{"userId":7,"bookId":9}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var body BorrowResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, int64(42), body.ID)
		assert.Equal(t, "BORROWED", body.Status)
		assert.Contains(t, rec.Body.String(), `"dueDate":"2024-05-15T10:00:00Z"`)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		svc.AssertExpectations(t)
	})

	t.Run("Malformed body", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)

		rec := doRequest(router, http.MethodPost, "/api/borrows", `{"userId":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "VALIDATION_FAILED", body.Code)
		assert.Equal(t, "/api/borrows", body.Path)
		assert.False(t, body.Timestamp.IsZero())
		svc.AssertNotCalled(t, "BorrowBook", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"User not active", domain.ErrUserNotActive, http.StatusForbidden, "USER_NOT_ACTIVE"},
		{"Book not available", domain.ErrBookNotAvailable, http.StatusConflict, "BOOK_NOT_AVAILABLE"},
		{"Too many borrows", domain.ErrMaximumBorrowsExceeded, http.StatusConflict, "MAXIMUM_BORROWS_EXCEEDED"},
		{"Validation", fmt.Errorf("%w: userId and bookId must be positive", domain.ErrValidation), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"Upstream", fmt.Errorf("%w: book-availability: timeout", domain.ErrUpstreamUnavailable), http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"Publish failure", fmt.Errorf("%w: redis down", domain.ErrEventPublish), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"Store failure", fmt.Errorf("failed to create borrow: %w", errDatabaseDown), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc, _ := newTestRouter(t)
			svc.On("BorrowBook", mock.Anything, int64(1), int64(2)).Return(nil, tt.err)

			rec := doRequest(router, http.MethodPost, "/api/borrows", `{"userId":1,"bookId":2}`)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestBorrowTransitions(t *testing.T) {
	t.Run("Return", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		returned := sampleBorrow()
		returned.Status = domain.BorrowStatusReturned
		svc.On("ReturnBook", mock.Anything, int64(42)).Return(returned, nil)

		rec := doRequest(router, http.MethodPost, "/api/borrows/42/return", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"RETURNED"`)
	})

	t.Run("Return unknown borrow", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("ReturnBook", mock.Anything, int64(404)).Return(nil, domain.ErrBorrowNotFound)

		rec := doRequest(router, http.MethodPost, "/api/borrows/404/return", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "BORROW_NOT_FOUND", decodeError(t, rec).Code)
	})

	t.Run("Extend past the limit", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("ExtendBorrow", mock.Anything, int64(42)).Return(nil, domain.ErrMaximumExtensionsExceeded)

		rec := doRequest(router, http.MethodPost, "/api/borrows/42/extend", "")

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "MAXIMUM_EXTENSIONS_EXCEEDED", decodeError(t, rec).Code)
	})

	t.Run("Extend returned borrow", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("ExtendBorrow", mock.Anything, int64(42)).Return(nil, domain.ErrInvalidBorrowStatus)

		rec := doRequest(router, http.MethodPost, "/api/borrows/42/extend", "")

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "INVALID_BORROW_STATUS", decodeError(t, rec).Code)
	})

	t.Run("Get", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("GetBorrow", mock.Anything, int64(42)).Return(sampleBorrow(), nil)

		rec := doRequest(router, http.MethodGet, "/api/borrows/42", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"userId":7`)
	})
}

func TestListBorrows(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("ListBorrows", mock.Anything, domain.PageRequest{Size: domain.DefaultPageSize}).
			Return(domain.Page[domain.Borrow]{Page: 0, Size: 20}, nil)

		rec := doRequest(router, http.MethodGet, "/api/borrows", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"content":[],"page":0,"size":20,"totalElements":0,"totalPages":0}`, rec.Body.String())
	})

	t.Run("Paging and sort by user", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		want := domain.PageRequest{
			Page: 1,
			Size: 2,
			Sort: []domain.SortOrder{
				{Field: "dueDate", Direction: domain.SortDesc},
				{Field: "id", Direction: domain.SortAsc},
			},
		}
		svc.On("ListUserBorrows", mock.Anything, int64(7), want).
			Return(domain.Page[domain.Borrow]{
				Content:       []domain.Borrow{*sampleBorrow()},
				Page:          1,
				Size:          2,
				TotalElements: 3,
			}, nil)

		rec := doRequest(router, http.MethodGet, "/api/borrows/user/7?page=1&size=2&sort=dueDate,desc&sort=id", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		var body PageResponse[BorrowResponse]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Content, 1)
		assert.Equal(t, int64(3), body.TotalElements)
		assert.Equal(t, 2, body.TotalPages)
	})

	t.Run("Size is capped", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("ListBookBorrows", mock.Anything, int64(9), domain.PageRequest{Size: domain.MaxPageSize}).
			Return(domain.Page[domain.Borrow]{Size: domain.MaxPageSize}, nil)

		rec := doRequest(router, http.MethodGet, "/api/borrows/book/9?size=500", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Overdue route is not an id", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("ListOverdueBorrows", mock.Anything, mock.Anything).
			Return(domain.Page[domain.Borrow]{Size: 20}, nil)

		rec := doRequest(router, http.MethodGet, "/api/borrows/overdue", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertNotCalled(t, "GetBorrow", mock.Anything, mock.Anything)
	})

	t.Run("Bad paging parameters", func(t *testing.T) {
		router, _, _ := newTestRouter(t)

		for _, query := range []string{
			"page=-1",
			"size=abc",
			"sort=dueDate,sideways",
			"sort=,asc",
			"page=92233720368547759&size=100",
			"page=9223372036854775807",
		} {
			rec := doRequest(router, http.MethodGet, "/api/borrows?"+query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		}
	})

	t.Run("Unknown sort field from the store", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("ListBorrows", mock.Anything, mock.Anything).
			Return(domain.Page[domain.Borrow]{}, fmt.Errorf("%w: unsupported sort field %q", domain.ErrValidation, "title"))

		rec := doRequest(router, http.MethodGet, "/api/borrows?sort=title", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "title")
	})
}

func TestListFines(t *testing.T) {
	t.Run("By status", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("ListFinesByStatus", mock.Anything, domain.FineStatusPending, mock.Anything).
			Return(domain.Page[domain.Fine]{
				Content:       []domain.Fine{{ID: 1, BorrowID: 42, AmountCents: 300, Status: domain.FineStatusPending}},
				Size:          20,
				TotalElements: 1,
			}, nil)

		rec := doRequest(router, http.MethodGet, "/api/fines?status=PENDING", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"amountCents":300`)
		assert.Contains(t, rec.Body.String(), `"borrowId":42`)
	})

	t.Run("Unknown status", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)

		rec := doRequest(router, http.MethodGet, "/api/fines?status=LOST", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "ListFinesByStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("By user", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		svc.On("ListUserFines", mock.Anything, int64(7), mock.Anything).
			Return(domain.Page[domain.Fine]{Size: 20}, nil)

		rec := doRequest(router, http.MethodGet, "/api/fines/user/7", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})
}

func TestAuthentication(t *testing.T) {
	t.Run("Missing token", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/api/borrows/42", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
		svc.AssertNotCalled(t, "GetBorrow", mock.Anything, mock.Anything)
	})

	t.Run("Invalid token", func(t *testing.T) {
		router, _, users := newTestRouter(t)
		users.On("ValidateToken", mock.Anything, "forged").Return(false, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/borrows/42", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("User service failing", func(t *testing.T) {
		router, _, users := newTestRouter(t)
		users.On("ValidateToken", mock.Anything, "slow").
			Return(false, fmt.Errorf("%w: user-token: timeout", domain.ErrUpstreamUnavailable))

		req := httptest.NewRequest(http.MethodGet, "/api/borrows/42", nil)
		req.Header.Set("Authorization", "Bearer slow")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("Health is public", func(t *testing.T) {
		router, _, users := newTestRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		users.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
	})
}

func TestHealth(t *testing.T) {
	breaker := gateway.NewBreaker(gateway.CapabilityBookStatus, gateway.BreakerConfig{})
	breaker.ForceOpen()

	router := NewRouter(RouterConfig{
		Borrows:  new(MockBorrowService),
		Users:    new(MockUserGateway),
		Store:    fakeStore{err: errDatabaseDown},
		Breakers: map[string]*gateway.Breaker{gateway.CapabilityBookStatus: breaker},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"DOWN","database":"DOWN","breakers":{"book-status":"open"}}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	svc := new(MockBorrowService)
	svc.On("GetBorrow", mock.Anything, int64(42)).Return(sampleBorrow(), nil)
	users := new(MockUserGateway)
	users.On("ValidateToken", mock.Anything, testToken).Return(true, nil)

	router := NewRouter(RouterConfig{
		Borrows: svc,
		Users:   users,
		Store:   fakeStore{},
		Limiter: NewRateLimiter(0.001, 1),
	})

	first := doRequest(router, http.MethodGet, "/api/borrows/42", "")
	second := doRequest(router, http.MethodGet, "/api/borrows/42", "")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, second).Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10, 10)
	rl.now = func() time.Time { return now }

	rl.getLimiter("10.0.0.1")
	now = now.Add(defaultLimiterIdleTTL - time.Minute)
	rl.getLimiter("10.0.0.2")
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, rl.Cleanup())
	assert.NotContains(t, rl.clients, "10.0.0.1")
	assert.Contains(t, rl.clients, "10.0.0.2")
}

func TestRequestIDPropagation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", rec.Header().Get("X-Request-ID"))
}
