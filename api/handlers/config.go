package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/internal/service/document"
	"github.com/feichai0017/doc2md/pkg/logger"
)

type ConfigHandler struct {
	service document.DocumentProcessor
	logger  logger.Logger
}

type CheckResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewConfigHandler(service document.DocumentProcessor, log logger.Logger) *ConfigHandler {
	return &ConfigHandler{service: service, logger: log}
}

// CheckConfig checks the stream config in the body, or the server's own
// config when the body is empty.
func (h *ConfigHandler) CheckConfig(c *gin.Context) {
	var cfg *models.StreamConfig
	if c.Request.ContentLength > 0 {
		cfg = &models.StreamConfig{}
		if err := c.ShouldBindJSON(cfg); err != nil {
			handleError(c, h.logger, http.StatusBadRequest, "Invalid stream config", err)
			return
		}
	}

	ok, message := h.service.CheckConfig(c.Request.Context(), cfg)
	c.JSON(http.StatusOK, CheckResponse{OK: ok, Message: message})
}

func (h *ConfigHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Schema())
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
