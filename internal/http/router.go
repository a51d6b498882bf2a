package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rudro-kalix/business-management/internal/http/ledgerapi"
	"github.com/rudro-kalix/business-management/internal/http/sessionapi"
)

func New(
	ledgerV1 *ledgerapi.Handler,
	sessionV1 *sessionapi.Handler,
	allowedOrigins []string,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			ledgerV1.TransactionRoutes(r)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			ledgerV1.ExpenseRoutes(r)
		})

		r.Route("/metrics", ledgerV1.MetricsRoutes)

		r.Route("/session", sessionV1.SessionRoutes)

		r.Route("/migrate", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			sessionV1.MigrateRoutes(r)
		})

		r.Route("/advisor", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			sessionV1.AdvisorRoutes(r)
		})
	})

	return router
}
