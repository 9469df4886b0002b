package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-exchange-reconciler/internal/api_gateway/handler"
	"github.com/go-exchange-reconciler/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the gateway
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	observer middleware.RequestObserver,
	metricsHandler http.Handler,
	smsHandler *handler.SMSHandler,
	userHandler *handler.UserHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	if observer != nil {
		r.Use(middleware.Metrics(observer))
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/sms/inbound", smsHandler.Inbound)

		users := v1.Group("/users")
		{
			users.GET("/:id/transactions", userHandler.Transactions)
			users.GET("/:id/balances", userHandler.Balances)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
}
