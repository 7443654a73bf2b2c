package http

import (
	"net/http"

	"borrow-service/internal/domain"
	"borrow-service/internal/service"
)

// FineHandler exposes fine reads.
type FineHandler struct {
	borrows service.BorrowService
}

func NewFineHandler(borrows service.BorrowService) *FineHandler {
	return &FineHandler{borrows: borrows}
}

// ListUserFines handles GET /api/fines/user/{userId}
func (h *FineHandler) ListUserFines(w http.ResponseWriter, r *http.Request) {
	userID, page, err := parseOwnerAndPage(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	fines, err := h.borrows.ListUserFines(r.Context(), userID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(fines, toFineResponse))
}

// ListFinesByStatus handles GET /api/fines?status=PENDING
func (h *FineHandler) ListFinesByStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := domain.ParseFineStatus(r.URL.Query().Get("status"))
	if !ok {
		writeError(w, r, validationError("status must be one of PENDING, PAID, WAIVED"))
		return
	}
	page, err := parsePageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fines, err := h.borrows.ListFinesByStatus(r.Context(), status, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(fines, toFineResponse))
}
