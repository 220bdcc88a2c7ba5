package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/doc2md/config"
	"github.com/feichai0017/doc2md/internal/agent"
	"github.com/feichai0017/doc2md/internal/agent/document/local"
	"github.com/feichai0017/doc2md/internal/agent/document/unstructured"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/internal/utils/validator"
	"github.com/feichai0017/doc2md/pkg/converters"
	"github.com/feichai0017/doc2md/pkg/logger"
	"github.com/feichai0017/doc2md/pkg/queue"
	"github.com/feichai0017/doc2md/pkg/storage"
)

var (
	ErrInvalidFile      = errors.New("invalid file")
	ErrBatchTooLarge    = errors.New("too many files in batch")
	ErrEmptyBatch       = errors.New("no files provided")
	ErrTaskNotCompleted = errors.New("task is not completed")
	ErrInvalidTask      = errors.New("invalid task")
)

const (
	defaultSyncLimit = 4

	metadataFilename = "filename"
	metadataSize     = "size"
	metadataKind     = "kind"
)

type DocumentService struct {
	parser    *unstructured.Parser
	stream    models.StreamConfig
	queue     queue.Queue
	storage   storage.Storage
	reader    unstructured.StreamReader
	validator *validator.DocumentValidator
	converter *converters.JSONConverter
	logger    logger.Logger
	config    *ServiceConfig
}

type ServiceConfig struct {
	MaxFileSize     int64
	MaxBatch        int
	UploadPrefix    string
	ResultPrefix    string
	QueuePriority   int
	MaxConcurrent   int
	RetentionPeriod time.Duration
}

func defaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxFileSize:     50 * 1024 * 1024,
		MaxBatch:        20,
		UploadPrefix:    "uploads",
		ResultPrefix:    "results",
		QueuePriority:   2,
		MaxConcurrent:   defaultSyncLimit,
		RetentionPeriod: 7 * 24 * time.Hour,
	}
}

func NewService(
	parser *unstructured.Parser,
	stream models.StreamConfig,
	q queue.Queue,
	store storage.Storage,
	log logger.Logger,
	cfg *ServiceConfig,
) *DocumentService {
	if cfg == nil {
		cfg = defaultServiceConfig()
	}

	allowUnsupported := true
	if format, err := unstructured.ExtractFormat(stream); err == nil {
		allowUnsupported = format.SkipUnprocessableFileTypes
	}

	return &DocumentService{
		parser:  parser,
		stream:  stream,
		queue:   q,
		storage: store,
		reader:  storage.NewStreamReader(store),
		validator: validator.NewDocumentValidator(log, &validator.ValidatorConfig{
			MaxFileSize:      cfg.MaxFileSize,
			AllowUnsupported: allowUnsupported,
		}),
		converter: converters.NewJSONConverter(),
		logger:    log,
		config:    cfg,
	}
}

// GetService wires the service from application config.
func GetService(ctx context.Context, cfg *config.Config, log logger.Logger) (*DocumentService, error) {
	store, err := storage.NewStorage(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	q, err := queue.NewAsynqQueue(queue.Config{
		RedisAddr:      cfg.Redis.Addr,
		RedisPassword:  cfg.Redis.Password,
		RedisDB:        cfg.Redis.DB,
		MaxRetries:     cfg.Queue.MaxRetries,
		ProcessTimeout: cfg.Queue.ProcessTimeout,
		StatusTTL:      cfg.Queue.StatusTTL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	stream, err := cfg.Unstructured.StreamConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build stream config: %w", err)
	}

	factory := agent.NewExtractorFactory(local.DefaultPartitioners(log), log)
	var opts []unstructured.Option
	if cfg.DeploymentMode != "" {
		opts = append(opts, unstructured.WithDeploymentMode(cfg.DeploymentMode))
	}
	parser := unstructured.NewParser(factory, log, opts...)

	return NewService(parser, stream, q, store, log, &ServiceConfig{
		MaxFileSize:     cfg.Upload.MaxFileSize,
		MaxBatch:        cfg.Upload.MaxBatch,
		UploadPrefix:    cfg.Upload.Prefix,
		ResultPrefix:    cfg.Upload.ResultPrefix,
		QueuePriority:   2,
		MaxConcurrent:   cfg.Queue.Concurrency,
		RetentionPeriod: cfg.Upload.Retention,
	}), nil
}

type uploadReader struct {
	data []byte
}

func (r uploadReader) OpenFile(ctx context.Context, file models.RemoteFile) (io.ReadSeekCloser, error) {
	return storage.NewBufferedFile(r.data), nil
}

func (s *DocumentService) validate(file multipart.File, header *multipart.FileHeader) (*validator.ValidationResult, error) {
	result, err := s.validator.Validate(file, header.Filename, header.Size, validator.MimeHint(header))
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return result, fmt.Errorf("%w: %s", ErrInvalidFile, result.Error())
	}
	return result, nil
}

func (s *DocumentService) ParseUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*converters.ProcessedDocument, error) {
	start := time.Now()
	result, err := s.validate(file, header)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	remoteFile := models.RemoteFile{
		URI:      header.Filename,
		MimeType: result.FileInfo.MimeType,
		Size:     header.Size,
	}
	records, err := s.parser.ParseRecords(ctx, s.stream, remoteFile, uploadReader{data: data})
	if err != nil {
		return nil, err
	}

	doc, err := s.converter.Convert(records)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}
	doc.Metadata.FileName = header.Filename
	doc.Metadata.FileType = string(result.FileInfo.Kind)
	doc.Metadata.FileSize = header.Size
	doc.Metadata.ProcessingMs = time.Since(start).Milliseconds()

	s.logger.Info("Parsed upload",
		logger.String("filename", header.Filename),
		logger.String("status", doc.Status),
		logger.Int64("processingMs", doc.Metadata.ProcessingMs),
	)
	return doc, nil
}

func (s *DocumentService) uploadKey(taskID, filename string) string {
	return path.Join(s.config.UploadPrefix, taskID, path.Base(strings.ReplaceAll(filename, "\\", "/")))
}

func (s *DocumentService) resultKey(taskID string) string {
	return path.Join(s.config.ResultPrefix, taskID+".json")
}

func (s *DocumentService) ProcessFile(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*models.ProcessingTask, error) {
	s.logger.Info("Starting file processing",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
	)

	result, err := s.validate(file, header)
	if err != nil {
		s.logger.Error("File validation failed",
			logger.String("filename", header.Filename),
			logger.Error(err),
		)
		return nil, err
	}

	taskID := uuid.New().String()
	now := time.Now()
	task := &models.ProcessingTask{
		ID:        taskID,
		Status:    models.StatusPending,
		Type:      queue.TaskTypeDocumentParse,
		Priority:  s.config.QueuePriority,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: map[string]string{
			metadataFilename: header.Filename,
			metadataSize:     strconv.FormatInt(header.Size, 10),
			metadataKind:     string(result.FileInfo.Kind),
		},
	}

	fileKey, err := s.storage.Store(ctx, file, s.uploadKey(taskID, header.Filename))
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	queueTask := &queue.Task{
		ID:       taskID,
		Type:     task.Type,
		Priority: task.Priority,
		Payload: map[string]string{
			queue.PayloadFileKey:  fileKey,
			queue.PayloadMimeType: result.FileInfo.MimeType,
		},
		Metadata:  task.Metadata,
		CreatedAt: task.CreatedAt,
	}
	if err := s.queue.Enqueue(ctx, queueTask); err != nil {
		s.logger.Error("Failed to enqueue task",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	if err := s.queue.SaveFinalStatus(ctx, &queue.TaskStatus{
		TaskID:    taskID,
		Status:    string(models.StatusPending),
		StartedAt: now,
	}); err != nil {
		s.logger.Error("Failed to save initial status",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
	}

	s.logger.Info("File processing task created",
		logger.String("taskId", taskID),
		logger.String("filename", header.Filename),
	)
	return task, nil
}

// ProcessBatch validates every file first and stores nothing when any is
// invalid. Tasks keep the order of files; on a later error the successfully
// enqueued tasks are still returned.
func (s *DocumentService) ProcessBatch(ctx context.Context, files []*multipart.FileHeader) ([]*models.ProcessingTask, error) {
	if len(files) == 0 {
		return nil, ErrEmptyBatch
	}
	if s.config.MaxBatch > 0 && len(files) > s.config.MaxBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(files), s.config.MaxBatch)
	}

	results, err := s.validator.ValidateFiles(files)
	if err != nil {
		return nil, fmt.Errorf("failed to validate batch: %w", err)
	}
	var invalid []string
	for i, result := range results {
		if !result.IsValid {
			invalid = append(invalid, fmt.Sprintf("%s: %s", files[i].Filename, result.Error()))
		}
	}
	if len(invalid) > 0 {
		s.logger.Warn("Batch rejected",
			logger.Int("files", len(files)),
			logger.Int("invalid", len(invalid)),
		)
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, strings.Join(invalid, "; "))
	}

	slots := make([]*models.ProcessingTask, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, header := range files {
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", header.Filename, err)
			}
			defer file.Close()

			task, err := s.ProcessFile(gctx, file, header)
			if err != nil {
				return fmt.Errorf("failed to process file %s: %w", header.Filename, err)
			}
			slots[i] = task
			return nil
		})
	}
	err = g.Wait()

	tasks := make([]*models.ProcessingTask, 0, len(files))
	for _, t := range slots {
		if t != nil {
			tasks = append(tasks, t)
		}
	}
	return tasks, err
}

// SyncPrefix parses every object under prefix. Files the skip policy drops
// are reported as skipped; any other per-file error aborts the whole sync.
func (s *DocumentService) SyncPrefix(ctx context.Context, prefix string) (*SyncResult, error) {
	objects, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	var files []models.RemoteFile
	for _, obj := range objects {
		if strings.HasPrefix(obj.URI, s.config.ResultPrefix+"/") {
			continue
		}
		files = append(files, obj)
	}

	result := &SyncResult{Prefix: prefix, Files: make([]SyncedFile, len(files))}
	g, gctx := errgroup.WithContext(ctx)
	limit := s.config.MaxConcurrent
	if limit <= 0 {
		limit = defaultSyncLimit
	}
	g.SetLimit(limit)

	for i, file := range files {
		g.Go(func() error {
			synced, err := s.syncFile(gctx, file)
			if err != nil {
				return err
			}
			result.Files[i] = synced
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Sync aborted",
			logger.String("prefix", prefix),
			logger.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Synced prefix",
		logger.String("prefix", prefix),
		logger.Int("files", len(files)),
	)
	return result, nil
}

func (s *DocumentService) syncFile(ctx context.Context, file models.RemoteFile) (SyncedFile, error) {
	synced := SyncedFile{Key: file.URI}

	records, err := s.parser.ParseRecords(ctx, s.stream, file, s.reader)
	if err != nil {
		return synced, fmt.Errorf("failed to sync %s: %w", file.URI, err)
	}
	if len(records) == 0 {
		synced.Status = models.StatusSkipped
		return synced, nil
	}

	resultKey := path.Join(s.config.ResultPrefix, "sync", file.URI+".md")
	if _, err := s.storage.Store(ctx, strings.NewReader(records[0].Content), resultKey); err != nil {
		return synced, fmt.Errorf("failed to store sync result for %s: %w", file.URI, err)
	}
	synced.Status = models.StatusCompleted
	synced.ResultKey = resultKey
	return synced, nil
}

func (s *DocumentService) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if err := s.queue.SaveFinalStatus(ctx, status); err != nil {
		s.logger.Error("Failed to save task status",
			logger.String("taskId", status.TaskID),
			logger.String("status", status.Status),
			logger.Error(err),
		)
	}
}

// HandleDocument is run by the worker for each queued task.
func (s *DocumentService) HandleDocument(ctx context.Context, task *queue.Task) error {
	if task == nil || task.ID == "" || task.Payload[queue.PayloadFileKey] == "" {
		return ErrInvalidTask
	}

	start := time.Now()
	s.logger.Info("Processing document",
		logger.String("taskId", task.ID),
		logger.String("filename", task.Metadata[metadataFilename]),
	)
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    string(models.StatusRunning),
		Progress:  0.5,
		StartedAt: start,
	})

	size, _ := strconv.ParseInt(task.Metadata[metadataSize], 10, 64)
	file := models.RemoteFile{
		URI:      task.Payload[queue.PayloadFileKey],
		MimeType: task.Payload[queue.PayloadMimeType],
		Size:     size,
	}

	// fail records the failed status so it never stays at running.
	fail := func(err error) error {
		s.saveStatus(ctx, &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     string(models.StatusFailed),
			Error:      err.Error(),
			StartedAt:  start,
			FinishedAt: time.Now(),
		})
		return err
	}

	records, err := s.parser.ParseRecords(ctx, s.stream, file, s.reader)
	if err != nil {
		return fail(fmt.Errorf("failed to process document: %w", err))
	}

	doc, err := s.converter.Convert(records)
	if err != nil {
		return fail(fmt.Errorf("failed to convert document: %w", err))
	}
	doc.TaskID = task.ID
	doc.Metadata.FileName = task.Metadata[metadataFilename]
	doc.Metadata.FileType = task.Metadata[metadataKind]
	doc.Metadata.FileSize = size
	doc.Metadata.ProcessingMs = time.Since(start).Milliseconds()

	resultData, err := json.Marshal(doc)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal result: %w", err))
	}
	resultKey, err := s.storage.Store(ctx, bytes.NewReader(resultData), s.resultKey(task.ID))
	if err != nil {
		return fail(fmt.Errorf("failed to store result: %w", err))
	}

	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     doc.Status,
		Progress:   1.0,
		ResultKey:  resultKey,
		StartedAt:  start,
		FinishedAt: time.Now(),
	})

	s.logger.Info("Document processing completed",
		logger.String("taskId", task.ID),
		logger.String("status", doc.Status),
		logger.Int("records", len(doc.Records)),
	)
	return nil
}

func toProcessingStatus(status string) models.ProcessingStatus {
	switch models.ProcessingStatus(status) {
	case models.StatusRunning, models.StatusCompleted, models.StatusSkipped,
		models.StatusFailed, models.StatusCancelled:
		return models.ProcessingStatus(status)
	case "active":
		return models.StatusRunning
	default:
		return models.StatusPending
	}
}

func (s *DocumentService) GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	metadata := make(map[string]string)
	if status.ResultKey != "" {
		metadata["resultKey"] = status.ResultKey
	}
	return &models.ProcessingTask{
		ID:        status.TaskID,
		Status:    toProcessingStatus(status.Status),
		Type:      queue.TaskTypeDocumentParse,
		Progress:  status.Progress,
		Error:     status.Error,
		Metadata:  metadata,
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

func (s *DocumentService) GetProcessedDocument(ctx context.Context, taskID string) (*converters.ProcessedDocument, error) {
	status, err := s.GetProcessingStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if status.Status != models.StatusCompleted && status.Status != models.StatusSkipped {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotCompleted, status.Status)
	}

	key := status.Metadata["resultKey"]
	if key == "" {
		key = s.resultKey(taskID)
	}
	reader, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	defer reader.Close()

	var result converters.ProcessedDocument
	if err := json.NewDecoder(reader).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}

func (s *DocumentService) CancelTask(ctx context.Context, taskID string) error {
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}

	s.logger.Info("Task cancelled", logger.String("taskId", taskID))
	return nil
}

// CleanupTasks removes expired uploads and results. Objects outside those
// prefixes, such as synced source documents, are never touched.
func (s *DocumentService) CleanupTasks(ctx context.Context) error {
	threshold := time.Now().Add(-s.config.RetentionPeriod)
	for _, prefix := range []string{s.config.UploadPrefix, s.config.ResultPrefix} {
		if prefix == "" {
			continue
		}
		if err := s.storage.CleanupBefore(ctx, prefix+"/", threshold); err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", prefix, err)
		}
	}

	s.logger.Info("Completed tasks cleanup", logger.Time("threshold", threshold))
	return nil
}

func (s *DocumentService) CheckConfig(ctx context.Context, cfg *models.StreamConfig) (bool, string) {
	stream := s.stream
	if cfg != nil {
		stream = *cfg
	}
	return s.parser.CheckConfig(ctx, stream)
}

func (s *DocumentService) Schema() map[string]any {
	return unstructured.Schema()
}
