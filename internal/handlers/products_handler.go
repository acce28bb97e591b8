package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/products"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/validation"
)

// RegisterProductRoutes registers the catalog API. Reads are public, writes need the admin key.
func RegisterProductRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.GET("/products", func(c *gin.Context) {
		list, err := cfg.Products.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if list == nil {
			list = []products.Product{}
		}
		c.JSON(http.StatusOK, list)
	})

	r.GET("/products/:id", func(c *gin.Context) {
		p, err := cfg.Products.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeProductError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})

	admin := r.Group("/products", RequireAdmin(cfg.AdminAPIKey))

	admin.POST("", func(c *gin.Context) {
		var req validation.CreateProductRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}
		p, err := cfg.Products.Create(c.Request.Context(), req.Product())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Location", "/products/"+p.ID)
		c.JSON(http.StatusCreated, p)
	})

	admin.PUT("/:id", func(c *gin.Context) {
		var req validation.UpdateProductRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		p, err := cfg.Products.Update(c.Request.Context(), c.Param("id"), req.Update())
		if err != nil {
			writeProductError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})

	admin.DELETE("/:id", func(c *gin.Context) {
		if err := cfg.Products.Delete(c.Request.Context(), c.Param("id")); err != nil {
			writeProductError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func writeProductError(c *gin.Context, err error) {
	if errors.Is(err, products.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product_not_found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
