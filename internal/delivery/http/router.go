package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Pesokrava/review_service/internal/config"
	"github.com/Pesokrava/review_service/internal/delivery/http/handler"
	"github.com/Pesokrava/review_service/internal/delivery/http/middleware"
	"github.com/Pesokrava/review_service/internal/delivery/http/response"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
)

// Router holds HTTP handlers and router configuration
type Router struct {
	reviewHandler *handler.ReviewHandler
	logger        *logger.Logger
	cfg           *config.Config
}

// NewRouter creates a new HTTP router
func NewRouter(
	reviewHandler *handler.ReviewHandler,
	cfg *config.Config,
	log *logger.Logger,
) *Router {
	return &Router{
		reviewHandler: reviewHandler,
		logger:        log,
		cfg:           cfg,
	}
}

// Setup configures and returns the HTTP router
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logger(rt.logger))
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-Id"},
		ExposedHeaders:   []string{"Link", "X-Correlation-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Tracing())
	r.Use(middleware.Identity())

	r.Get("/health", rt.healthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/{id}/reviews", rt.reviewHandler.ListByProduct)

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/{id}", rt.reviewHandler.GetByID)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Post("/", rt.reviewHandler.Create)
				r.Put("/{id}", rt.reviewHandler.Update)
				r.Delete("/{id}", rt.reviewHandler.Delete)
				r.Post("/{id}/vote", rt.reviewHandler.Vote)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireModerator)
				r.Post("/{id}/moderate", rt.reviewHandler.Moderate)
				r.Post("/moderate", rt.reviewHandler.BulkModerate)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/users/me/reviews", rt.reviewHandler.ListMine)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireModerator)
			r.Get("/admin/reviews", rt.reviewHandler.AdminList)
		})
	})

	return r
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
