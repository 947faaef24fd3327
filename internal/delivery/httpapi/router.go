package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter mounts the alert, seller and admin APIs. metrics is served at
// /metrics when non-nil.
func NewRouter(h *Handler, metrics http.Handler, requestTimeout time.Duration, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/health", h.Health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Put("/users/{userID}/email", h.UpdateEmail)
		r.Route("/users/{userID}/alerts", func(r chi.Router) {
			r.Get("/stats", h.AlertStats)
			r.Post("/{kind}", h.CreateAlert)
			r.Get("/{kind}", h.ListAlerts)
			r.Patch("/{kind}/{alertID}", h.UpdateAlert)
			r.Delete("/{kind}/{alertID}", h.DeleteAlert)
		})

		r.Route("/sellers/{sellerID}", func(r chi.Router) {
			r.Get("/dashboard", h.SellerDashboard)
			r.Post("/products/bulk", h.BulkUpdate)
			r.Put("/products/{productID}/price", h.UpdatePrice)
			r.Put("/products/{productID}/stock", h.UpdateStock)
			r.Get("/products/{productID}/alerts", h.ProductAlerts)
			r.Post("/catalog/import", h.ImportCatalog)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/catalog/refresh-prices", h.RefreshPrices)
			r.Get("/scheduler", h.SchedulerStatus)
			r.Post("/scheduler/run", h.RunCycle)
			r.Post("/scheduler/cleanup", h.Cleanup)
			r.Get("/notifications/stats", h.NotificationStats)
			r.Post("/notifications/test", h.TestNotification)
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(started)),
			)
		})
	}
}
