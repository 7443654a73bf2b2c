package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"borrow-service/internal/gateway"
	"borrow-service/internal/metrics"
	"borrow-service/internal/service"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterConfig carries the dependencies of the REST surface.
type RouterConfig struct {
	Borrows  service.BorrowService
	Users    gateway.UserGateway
	Store    HealthChecker
	Breakers map[string]*gateway.Breaker
	Limiter  *RateLimiter
}

// NewRouter registers every route and middleware of the API.
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, r, http.StatusNotFound, codeNotFound, "no route for "+r.URL.Path)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	router.Use(RequestID, metrics.InstrumentHandler)
	if cfg.Limiter != nil {
		router.Use(cfg.Limiter.Handler)
	}
	router.Use(NewAuthenticator(cfg.Users).Handler)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", healthHandler(cfg.Store, cfg.Breakers)).Methods(http.MethodGet)

	borrows := NewBorrowHandler(cfg.Borrows)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/borrows", borrows.ListBorrows).Methods(http.MethodGet)
	api.HandleFunc("/borrows", borrows.CreateBorrow).Methods(http.MethodPost)
	api.HandleFunc("/borrows/overdue", borrows.ListOverdueBorrows).Methods(http.MethodGet)
	api.HandleFunc("/borrows/user/{userId}", borrows.ListUserBorrows).Methods(http.MethodGet)
	api.HandleFunc("/borrows/book/{bookId}", borrows.ListBookBorrows).Methods(http.MethodGet)
	api.HandleFunc("/borrows/{id:[0-9]+}", borrows.GetBorrow).Methods(http.MethodGet)
	api.HandleFunc("/borrows/{id:[0-9]+}/return", borrows.ReturnBorrow).Methods(http.MethodPost)
	api.HandleFunc("/borrows/{id:[0-9]+}/extend", borrows.ExtendBorrow).Methods(http.MethodPost)

	fines := NewFineHandler(cfg.Borrows)
	api.HandleFunc("/fines", fines.ListFinesByStatus).Methods(http.MethodGet)
	api.HandleFunc("/fines/user/{userId}", fines.ListUserFines).Methods(http.MethodGet)

	return router
}

type healthResponse struct {
	Status   string            `json:"status"`
	Database string            `json:"database"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

func healthHandler(store HealthChecker, breakers map[string]*gateway.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "UP", Database: "UP"}
		status := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			resp.Status, resp.Database = "DOWN", "DOWN"
			status = http.StatusServiceUnavailable
		}

		if len(breakers) > 0 {
			resp.Breakers = make(map[string]string, len(breakers))
			for name, b := range breakers {
				resp.Breakers[name] = b.State().String()
			}
		}

		writeJSON(w, status, resp)
	}
}
