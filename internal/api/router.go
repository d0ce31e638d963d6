package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docrag/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// NewRouter registers the API routes on a fresh gin engine.
func NewRouter(service Service) *gin.Engine {
	if !logger.IsVerbose() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "docrag"})
	})

	ctrl := NewRAGController(service)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/documents", ctrl.IngestText)
		v1.POST("/documents/upload", ctrl.Upload)
		v1.GET("/chunks", ctrl.ListChunks)
		v1.GET("/chunks/:id", ctrl.GetChunk)
		v1.GET("/consistency", ctrl.Consistency)
		v1.POST("/query", ctrl.Query)
	}
	router.MaxMultipartMemory = MaxUploadBytes
	return router
}

// requestLogger tags each request with an id and logs it at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()
		logger.Debug("request %s: %s %s -> %d (%s)", id, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDHeader)
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
