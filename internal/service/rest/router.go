package rest

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает маршруты API заказов.
// Служебные endpoints (metrics, health) живут на отдельном ops-сервере.
func NewRouter(orders *OrderHandler, tokens *TokenHandler, auth *Auth, logger *log.Logger) *gin.Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), metricsMiddleware(), loggingMiddleware(logger.WithField("component", "http")))

	r.POST("/v1/token", tokens.IssueToken)

	v1 := r.Group("/v1")
	{
		v1.POST("/orders", auth.Require(RoleCustomer, RoleAdmin), orders.CreateOrder)
		v1.GET("/orders", auth.Require(RoleAdmin), orders.ListOrders)
		v1.GET("/orders/:id", auth.Require(), orders.GetOrder)
		v1.GET("/orders/by-number/:number", auth.Require(), orders.GetOrderByNumber)
		v1.POST("/orders/:id/verify-payment", auth.Require(), orders.VerifyPayment)
		v1.POST("/orders/:id/prescription", auth.Require(), orders.UploadPrescription)
		v1.PUT("/orders/:id/verify-prescription", auth.Require(RoleAdmin), orders.VerifyPrescription)
		v1.PUT("/orders/:id/status", auth.Require(RoleAdmin), orders.UpdateStatus)
		v1.POST("/orders/:id/cancel", auth.Require(), orders.CancelOrder)

		v1.GET("/my/orders", auth.Require(), orders.ListMyOrders)
	}

	return r
}
