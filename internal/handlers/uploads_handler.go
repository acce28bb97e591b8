package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterUploadRoutes registers the admin file upload endpoint.
func RegisterUploadRoutes(r *gin.Engine, cfg HandlerConfig) {
	log := loggerOrDefault(cfg.Logger)
	g := r.Group("/uploads", CORS(), RequireAdmin(cfg.AdminAPIKey))
	// preflight must pass without credentials
	r.OPTIONS("/uploads", CORS())

	g.POST("", func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded", "message": "File is missing"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()

		url, err := cfg.Uploads.Upload(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
		if err != nil {
			log.WithError(err).WithField("filename", fh.Filename).Error("upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "File uploaded successfully", "url": url})
	})
}
