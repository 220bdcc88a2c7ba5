package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/doc2md/internal/service/document"
	"github.com/feichai0017/doc2md/pkg/converters"
	"github.com/feichai0017/doc2md/pkg/logger"
)

type DocumentHandler struct {
	service document.DocumentProcessor
	html    *converters.HTMLConverter
	logger  logger.Logger
}

type ProcessResponse struct {
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"fileSize"`
	FileType  string `json:"fileType"`
	CreatedAt string `json:"createdAt"`
}

type SyncRequest struct {
	Prefix string `json:"prefix"`
}

func NewDocumentHandler(service document.DocumentProcessor, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		html:    converters.NewHTMLConverter(),
		logger:  log,
	}
}

// ParseDocument parses the uploaded file and returns the result inline.
func (h *DocumentHandler) ParseDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	doc, err := h.service.ParseUpload(c.Request.Context(), file, header)
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to parse file", err)
		return
	}
	h.writeDocument(c, doc)
}

func (h *DocumentHandler) ProcessDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	task, err := h.service.ProcessFile(c.Request.Context(), file, header)
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to process file", err)
		return
	}

	c.JSON(http.StatusAccepted, ProcessResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Filename:  header.Filename,
		FileSize:  header.Size,
		FileType:  task.Metadata["kind"],
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	})
}

func (h *DocumentHandler) ProcessBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		handleError(c, h.logger, http.StatusBadRequest, "No files provided", nil)
		return
	}

	tasks, err := h.service.ProcessBatch(c.Request.Context(), files)
	if err != nil && len(tasks) == 0 {
		handleError(c, h.logger, statusFor(err), "Failed to process files", err)
		return
	}

	responses := make([]ProcessResponse, len(tasks))
	for i, task := range tasks {
		size, _ := strconv.ParseInt(task.Metadata["size"], 10, 64)
		responses[i] = ProcessResponse{
			TaskID:    task.ID,
			Status:    string(task.Status),
			Filename:  task.Metadata["filename"],
			FileSize:  size,
			FileType:  task.Metadata["kind"],
			CreatedAt: task.CreatedAt.Format(time.RFC3339),
		}
	}

	body := gin.H{
		"message": fmt.Sprintf("Processing %d documents", len(tasks)),
		"tasks":   responses,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusAccepted, body)
}

func (h *DocumentHandler) SyncPrefix(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "Invalid sync request", err)
		return
	}

	result, err := h.service.SyncPrefix(c.Request.Context(), req.Prefix)
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to sync prefix", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *DocumentHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("taskId")

	task, err := h.service.GetProcessingStatus(c.Request.Context(), taskID)
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":    task.ID,
		"status":    string(task.Status),
		"progress":  task.Progress,
		"error":     task.Error,
		"metadata":  task.Metadata,
		"createdAt": task.CreatedAt.Format(time.RFC3339),
		"updatedAt": task.UpdatedAt.Format(time.RFC3339),
	})
}

// DownloadResult serves the result as json (default), markdown or html.
func (h *DocumentHandler) DownloadResult(c *gin.Context) {
	taskID := c.Param("taskId")

	result, err := h.service.GetProcessedDocument(c.Request.Context(), taskID)
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to get result", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=result_%s.%s", taskID, extensionFor(c.Query("format"))))
	h.writeDocument(c, result)
}

func extensionFor(format string) string {
	switch format {
	case "markdown", "md":
		return "md"
	case "html":
		return "html"
	default:
		return "json"
	}
}

func (h *DocumentHandler) writeDocument(c *gin.Context, doc *converters.ProcessedDocument) {
	switch extensionFor(c.Query("format")) {
	case "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(doc.Markdown()))
	case "html":
		html, err := h.html.Convert(doc.Markdown())
		if err != nil {
			handleError(c, h.logger, http.StatusInternalServerError, "Failed to render html", err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
	default:
		data, err := json.Marshal(doc)
		if err != nil {
			handleError(c, h.logger, http.StatusInternalServerError, "Failed to serialize result", err)
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	}
}

func (h *DocumentHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")

	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}
