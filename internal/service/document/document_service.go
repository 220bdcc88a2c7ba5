package document

import (
	"context"
	"mime/multipart"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/converters"
	"github.com/feichai0017/doc2md/pkg/queue"
)

type DocumentProcessor interface {
	// ParseUpload parses an uploaded file synchronously.
	ParseUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*converters.ProcessedDocument, error)
	ProcessFile(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*models.ProcessingTask, error)
	ProcessBatch(ctx context.Context, files []*multipart.FileHeader) ([]*models.ProcessingTask, error)
	// SyncPrefix parses every stored object under prefix.
	SyncPrefix(ctx context.Context, prefix string) (*SyncResult, error)
	HandleDocument(ctx context.Context, task *queue.Task) error
	GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error)
	GetProcessedDocument(ctx context.Context, taskID string) (*converters.ProcessedDocument, error)
	CancelTask(ctx context.Context, taskID string) error
	CleanupTasks(ctx context.Context) error
	// CheckConfig checks cfg, or the service's own stream config when cfg is nil.
	CheckConfig(ctx context.Context, cfg *models.StreamConfig) (bool, string)
	Schema() map[string]any
}

type SyncResult struct {
	Prefix string       `json:"prefix"`
	Files  []SyncedFile `json:"files"`
}

type SyncedFile struct {
	Key       string                  `json:"key"`
	Status    models.ProcessingStatus `json:"status"`
	ResultKey string                  `json:"resultKey,omitempty"`
}
