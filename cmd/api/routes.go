package main

import (
	"call-scheduler/internal/orchestrator"
	"call-scheduler/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h orchestrator.Handlers) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/free-slots", h.FreeSlots)
		api.POST("/place-call", h.PlaceCall)
		api.GET("/call-status/:callID", h.CallStatus)

		// Provider webhook (public). When WEBHOOK_SECRET is set, deliveries
		// must carry the signed token minted into the callback URL.
		api.POST("/call-webhook", h.Webhook)

		api.GET("/active-calls", h.ActiveCalls)
		api.GET("/test-cors", h.TestCORS)
	}
}
