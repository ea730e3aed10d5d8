package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"photodrop/internal/config"
	pdmiddleware "photodrop/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 构建 HTTP 路由，集中注册所有对外服务的端点。
func NewRouter(cfg *config.Config, uploadHandler *UploadHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	startedAt := time.Now()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(pdmiddleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.SetHeader("X-Content-Type-Options", "nosniff"))
	r.Use(chimiddleware.SetHeader("X-Frame-Options", "DENY"))
	r.Use(chimiddleware.SetHeader("Referrer-Policy", "no-referrer"))
	r.Use(pdmiddleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(pdmiddleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
	r.Use(pdmiddleware.Metrics())

	r.Get("/health", healthHandler(cfg.Environment, startedAt))

	// Prometheus 指标端点
	r.Handle("/metrics", promhttp.Handler())

	if uploadHandler != nil {
		r.Route("/api", uploadHandler.RegisterRoutes)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorDetail(w, http.StatusNotFound, "Route not found",
			fmt.Sprintf("Cannot %s %s", r.Method, r.URL.RequestURI()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorDetail(w, http.StatusMethodNotAllowed, "Method not allowed",
			fmt.Sprintf("Cannot %s %s", r.Method, r.URL.RequestURI()))
	})

	return r
}
