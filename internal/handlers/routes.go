package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/products"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/sales"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/webhook"
)

// WebhookProcessor handles one raw webhook delivery.
type WebhookProcessor interface {
	Process(ctx context.Context, body []byte) (*webhook.Result, error)
}

// ProductCatalog is the product store used by the admin routes.
type ProductCatalog interface {
	Create(ctx context.Context, p products.Product) (*products.Product, error)
	Get(ctx context.Context, id string) (*products.Product, error)
	List(ctx context.Context) ([]products.Product, error)
	Update(ctx context.Context, id string, u products.Update) (*products.Product, error)
	Delete(ctx context.Context, id string) error
}

// SalesLister lists recorded sales.
type SalesLister interface {
	List(ctx context.Context) ([]sales.Sale, error)
}

// FileUploader stores an uploaded file and returns its public URL.
type FileUploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}

// HandlerConfig groups dependencies for the HTTP routes.
type HandlerConfig struct {
	Webhook     WebhookProcessor
	Products    ProductCatalog
	Sales       SalesLister
	Uploads     FileUploader
	AdminAPIKey string
	Logger      logrus.FieldLogger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	cfg.Logger = loggerOrDefault(cfg.Logger)

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(cfg.Logger))

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterWebhookRoutes(r, cfg)
	RegisterUploadRoutes(r, cfg)
	RegisterProductRoutes(r, cfg)
	RegisterSalesRoutes(r, cfg)

	return r
}

func loggerOrDefault(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}
