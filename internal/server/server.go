package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"travesia_payments/internal/handlers"
	"travesia_payments/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
}

// NewRouter mounts /health, /metrics and the authenticated /api/v1 routes.
func NewRouter(h *handlers.Handlers, authMW mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	if authMW != nil {
		api.Use(authMW)
	}

	api.HandleFunc("/payment-methods", h.ListPaymentMethods).Methods(http.MethodGet)

	api.HandleFunc("/payment-sessions", h.OpenSession).Methods(http.MethodPost)
	api.HandleFunc("/payment-sessions/{id}", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/payment-sessions/{id}", h.CancelSession).Methods(http.MethodDelete)
	api.HandleFunc("/payment-sessions/{id}/header", h.SetHeader).Methods(http.MethodPut)
	api.HandleFunc("/payment-sessions/{id}/back", h.Back).Methods(http.MethodPost)
	api.HandleFunc("/payment-sessions/{id}/candidates", h.Candidates).Methods(http.MethodGet)
	api.HandleFunc("/payment-sessions/{id}/rows", h.AddRow).Methods(http.MethodPost)
	api.HandleFunc("/payment-sessions/{id}/rows/{index:[0-9]+}", h.PatchRow).Methods(http.MethodPatch)
	api.HandleFunc("/payment-sessions/{id}/rows/{index:[0-9]+}", h.DeleteRow).Methods(http.MethodDelete)
	api.HandleFunc("/payment-sessions/{id}/validation", h.Validation).Methods(http.MethodGet)
	api.HandleFunc("/payment-sessions/{id}/submit", h.Submit).Methods(http.MethodPost)
	api.HandleFunc("/payment-sessions/{id}/events", h.SessionEvents).Methods(http.MethodGet)

	api.HandleFunc("/imports", h.Import).Methods(http.MethodPost)
	api.HandleFunc("/imports", h.ListImports).Methods(http.MethodGet)
	api.HandleFunc("/imports/{id}", h.GetImport).Methods(http.MethodGet)
	api.HandleFunc("/imports/upload", h.Upload).Methods(http.MethodPost)

	return r
}

func NewServer(port string, h *handlers.Handlers, authMW mux.MiddlewareFunc) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      NewRouter(h, authMW),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
