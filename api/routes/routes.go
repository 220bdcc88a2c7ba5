package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/doc2md/api/handlers"
	"github.com/feichai0017/doc2md/api/middleware"
	"github.com/feichai0017/doc2md/pkg/logger"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handlers, allowedOrigins []string, log logger.Logger) {
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(middleware.CORS(allowedOrigins))

	r.GET("/health", handlers.Health)

	v1 := r.Group("/api/v1")

	docs := v1.Group("/documents")
	{
		docs.POST("/parse", h.Document.ParseDocument)
		docs.POST("/process", h.Document.ProcessDocument)
		docs.POST("/batch", h.Document.ProcessBatch)
		docs.POST("/sync", h.Document.SyncPrefix)
		docs.GET("/status/:taskId", h.Document.GetStatus)
		docs.GET("/download/:taskId", h.Document.DownloadResult)
		docs.DELETE("/task/:taskId", h.Document.CancelTask)
	}

	v1.POST("/config/check", h.Config.CheckConfig)
	v1.GET("/schema", h.Config.Schema)
}
