package http

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"borrow-service/internal/domain"
	"borrow-service/internal/service"
)

const maxRequestBody = 1 << 16

// BorrowHandler exposes the borrow lifecycle over REST.
type BorrowHandler struct {
	borrows service.BorrowService
}

func NewBorrowHandler(borrows service.BorrowService) *BorrowHandler {
	return &BorrowHandler{borrows: borrows}
}

// CreateBorrow handles POST /api/borrows
func (h *BorrowHandler) CreateBorrow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, r, validationError("failed to read request body"))
		return
	}

	var req CreateBorrowRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, validationError("request body must be a JSON object with userId and bookId"))
		return
	}

	borrow, err := h.borrows.BorrowBook(r.Context(), req.UserID, req.BookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBorrowResponse(borrow))
}

// GetBorrow handles GET /api/borrows/{id}
func (h *BorrowHandler) GetBorrow(w http.ResponseWriter, r *http.Request) {
	h.withBorrowID(w, r, h.borrows.GetBorrow)
}

// ReturnBorrow handles POST /api/borrows/{id}/return
func (h *BorrowHandler) ReturnBorrow(w http.ResponseWriter, r *http.Request) {
	h.withBorrowID(w, r, h.borrows.ReturnBook)
}

// ExtendBorrow handles POST /api/borrows/{id}/extend
func (h *BorrowHandler) ExtendBorrow(w http.ResponseWriter, r *http.Request) {
	h.withBorrowID(w, r, h.borrows.ExtendBorrow)
}

func (h *BorrowHandler) withBorrowID(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) (*domain.Borrow, error)) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	borrow, err := op(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowResponse(borrow))
}

// ListBorrows handles GET /api/borrows
func (h *BorrowHandler) ListBorrows(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeBorrowPage(w, r)(h.borrows.ListBorrows(r.Context(), page))
}

// ListUserBorrows handles GET /api/borrows/user/{userId}
func (h *BorrowHandler) ListUserBorrows(w http.ResponseWriter, r *http.Request) {
	userID, page, err := parseOwnerAndPage(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeBorrowPage(w, r)(h.borrows.ListUserBorrows(r.Context(), userID, page))
}

// ListBookBorrows handles GET /api/borrows/book/{bookId}
func (h *BorrowHandler) ListBookBorrows(w http.ResponseWriter, r *http.Request) {
	bookID, page, err := parseOwnerAndPage(r, "bookId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeBorrowPage(w, r)(h.borrows.ListBookBorrows(r.Context(), bookID, page))
}

// ListOverdueBorrows handles GET /api/borrows/overdue. It lists borrows with
// status OVERDUE plus BORROWED ones whose due date has passed but which the
// hourly sweep has not marked yet.
func (h *BorrowHandler) ListOverdueBorrows(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeBorrowPage(w, r)(h.borrows.ListOverdueBorrows(r.Context(), page))
}

func (h *BorrowHandler) writeBorrowPage(w http.ResponseWriter, r *http.Request) func(domain.Page[domain.Borrow], error) {
	return func(p domain.Page[domain.Borrow], err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPageResponse(p, toBorrowResponse))
	}
}

func parseOwnerAndPage(r *http.Request, key string) (int64, domain.PageRequest, error) {
	id, err := parseID(mux.Vars(r)[key])
	if err != nil {
		return 0, domain.PageRequest{}, err
	}
	page, err := parsePageRequest(r)
	return id, page, err
}
