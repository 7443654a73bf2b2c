package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"borrow-service/internal/domain"
	"borrow-service/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	codeUnauthorized        = "UNAUTHORIZED"
	codeRateLimited         = "RATE_LIMITED"
	codeNotFound            = "NOT_FOUND"
	codeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	codeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	codeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Status    int       `json:"status"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// PageResponse wraps one page of a list endpoint.
type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func toPageResponse[S, T any](p domain.Page[S], convert func(*S) T) PageResponse[T] {
	content := make([]T, 0, len(p.Content))
	for i := range p.Content {
		content = append(content, convert(&p.Content[i]))
	}
	return PageResponse[T]{
		Content:       content,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages(),
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Status:    status,
		Code:      code,
		Message:   message,
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}

// writeError maps err onto the API error taxonomy.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := domain.AsDomainError(err); ok {
		writeErrorCode(w, r, statusForCode(de.Code), de.Code, err.Error())
		return
	}
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		logger.WarnContext(r.Context(), "Upstream unavailable", "path", r.URL.Path, "error", err)
		writeErrorCode(w, r, http.StatusServiceUnavailable, codeUpstreamUnavailable, "a required service is unavailable, try again later")
		return
	}
	logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	writeErrorCode(w, r, http.StatusInternalServerError, codeInternal, "internal server error")
}

func statusForCode(code string) int {
	switch code {
	case domain.ErrBorrowNotFound.Code:
		return http.StatusNotFound
	case domain.ErrUserNotActive.Code:
		return http.StatusForbidden
	case domain.ErrValidation.Code:
		return http.StatusBadRequest
	case domain.ErrBookNotAvailable.Code,
		domain.ErrMaximumBorrowsExceeded.Code,
		domain.ErrInvalidBorrowStatus.Code,
		domain.ErrMaximumExtensionsExceeded.Code:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func validationError(message string) error {
	return &domain.Error{Code: domain.ErrValidation.Code, Message: message}
}

// parsePageRequest reads page, size and repeated sort=field[,asc|desc].
func parsePageRequest(r *http.Request) (domain.PageRequest, error) {
	q := r.URL.Query()
	var req domain.PageRequest

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 0 {
			return req, validationError("page must be a non-negative integer")
		}
		req.Page = page
	}
	if v := q.Get("size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return req, validationError("size must be a positive integer")
		}
		req.Size = size
	}

	for _, s := range q["sort"] {
		parts := strings.Split(s, ",")
		order := domain.SortOrder{Field: strings.TrimSpace(parts[0]), Direction: domain.SortAsc}
		if order.Field == "" {
			return req, validationError("sort field must not be empty")
		}
		if len(parts) > 1 {
			switch strings.ToLower(strings.TrimSpace(parts[1])) {
			case "asc":
			case "desc":
				order.Direction = domain.SortDesc
			default:
				return req, validationError("sort direction must be asc or desc")
			}
		}
		req.Sort = append(req.Sort, order)
	}

	req = req.Normalize()
	if req.Page > math.MaxInt/req.Size {
		return req, validationError("page is out of range")
	}
	return req, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError("id must be a positive integer")
	}
	return id, nil
}
