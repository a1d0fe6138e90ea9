// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finflow-commitments/internal/api/handler"
)

// RouterOptions holds the router settings that come from configuration.
type RouterOptions struct {
	JWTSecret      []byte
	MetricsEnabled bool
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(
	commitmentHandler *handler.CommitmentHandler,
	settlementHandler *handler.SettlementHandler,
	opts RouterOptions,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Bound every request, gateway call included

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if opts.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// The catalog is public.
		r.Get("/products/{productID}", commitmentHandler.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(Authenticator(opts.JWTSecret, logger))

			r.Get("/wallet/balance", settlementHandler.GetBalance)

			r.Route("/commitments", func(r chi.Router) {
				r.Get("/", commitmentHandler.ListMine)
				r.Post("/investment", commitmentHandler.CreateInvestment)
				r.Post("/takaful", commitmentHandler.CreateTakaful)
				r.Post("/zakat", commitmentHandler.CreateZakat)
				r.Get("/{commitmentID}", commitmentHandler.Get)
				r.Delete("/{commitmentID}", commitmentHandler.Delete)
				r.Get("/{commitmentID}/settlements", commitmentHandler.ListSettlements)
			})

			// Settlement is a separate top-level endpoint as it spans the wallet and the registry
			r.Post("/settlements", settlementHandler.Settle)
		})
	})

	return r
}
