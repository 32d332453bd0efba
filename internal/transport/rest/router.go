package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/yuchialin/cvspay/internal/barcode"
	"github.com/yuchialin/cvspay/internal/clientauth"
	"github.com/yuchialin/cvspay/internal/order"
	"github.com/yuchialin/cvspay/internal/ratelimit"
	"github.com/yuchialin/cvspay/internal/transport/middleware"
	"github.com/yuchialin/cvspay/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *clientauth.Handler, orderHandler *order.Handler, webhookHandler *order.WebhookHandler, barcodeHandler *barcode.Handler, renderLimiter ratelimit.Limiter, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Gateway webhooks. No client auth: the gateway authenticates by
		// CheckMacValue, and the handlers always answer 200 with an ack token.
		if webhookHandler != nil {
			r.Post("/gateway/callback", webhookHandler.PaymentCallback)
			r.Post("/gateway/payment-info", webhookHandler.PaymentInfoCallback)
		}

		// Auth routes
		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/token", authHandler.Token)
			})
		}

		// Public barcode rendering (rate limited per caller)
		if barcodeHandler != nil {
			r.Group(func(br chi.Router) {
				br.Use(ratelimit.Middleware(renderLimiter))
				br.Get("/barcode/generate/{text}", barcodeHandler.Generate)
				br.Post("/barcode/generate-multi", barcodeHandler.GenerateMulti)
			})
		}

		if authHandler != nil && orderHandler != nil {
			// Protected routes that require a client system token
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)
				pr.Use(middleware.ClientContext)

				pr.Route("/orders", func(or chi.Router) {
					or.Post("/barcode", orderHandler.CreateOrder)           // POST /orders/barcode
					or.Get("/{id}/barcode", orderHandler.GetBarcodeStatus)  // GET /orders/:id/barcode
					or.Post("/{id}/barcode/query", orderHandler.QueryBarcode) // POST /orders/:id/barcode/query
					or.Post("/{id}/cancel", orderHandler.CancelOrder)       // POST /orders/:id/cancel
				})
			})
		}
	})
}
