// Package httpapi реализует REST API витрины поверх chi.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/health"
)

const defaultRequestTimeout = 30 * time.Second

// NewRouter собирает маршруты API и служебные probe-эндпоинты.
func NewRouter(h *Handler, healthHandler *health.Handler, requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/api", func(r chi.Router) {
		r.Post("/checkout", h.Checkout)

		r.Route("/orders/{id}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Get("/timeline", h.Timeline)
			r.Post("/cancel", h.CancelOrder)
			r.Post("/returns", h.RequestReturn)
			r.Post("/returns/review", h.ReviewReturn)
			r.Post("/complaints", h.FileComplaint)
			r.Post("/status", h.UpdateStatus)
		})
		r.Get("/customers/{id}/orders", h.ListCustomerOrders)
		r.Get("/vendors/{id}/orders", h.ListVendorOrders)

		r.Post("/products", h.CreateProduct)
		r.Get("/products/{id}", h.GetProduct)
		r.Post("/products/{id}/restock", h.Restock)
	})

	if healthHandler != nil {
		r.Method(http.MethodGet, "/healthz", healthHandler)
		r.Get("/readyz", healthHandler.ReadinessHandler)
	}
	r.Get("/livez", health.LivenessHandler)
	return r
}

// requestLogger пишет одну строку logrus на запрос.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.WithFields(log.Fields{
					"request_id":  middleware.GetReqID(r.Context()),
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"remote_addr": r.RemoteAddr,
				}).Debug("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
