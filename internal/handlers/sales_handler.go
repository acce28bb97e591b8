package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/sales"
)

// RegisterSalesRoutes registers the admin sales listing.
func RegisterSalesRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.GET("/sales", RequireAdmin(cfg.AdminAPIKey), func(c *gin.Context) {
		list, err := cfg.Sales.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if list == nil {
			list = []sales.Sale{}
		}
		c.JSON(http.StatusOK, list)
	})
}
