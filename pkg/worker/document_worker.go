package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/doc2md/internal/agent/document/unstructured"
	"github.com/feichai0017/doc2md/internal/service/document"
	"github.com/feichai0017/doc2md/pkg/logger"
	"github.com/feichai0017/doc2md/pkg/queue"
)

// DocumentHandler is the part of the document service the worker drives.
type DocumentHandler interface {
	HandleDocument(ctx context.Context, task *queue.Task) error
	CleanupTasks(ctx context.Context) error
}

type DocumentWorker struct {
	BaseWorker
	handler DocumentHandler
}

func NewDocumentWorker(cfg Config, handler DocumentHandler, log logger.Logger) *DocumentWorker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = queue.Queues
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Minute
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * retryDelay
			},
			Logger: asynqLogger{logger: log.Named("asynq")},
		},
	)

	w := &DocumentWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		handler: handler,
	}
	w.registerHandlers()
	return w
}

func (w *DocumentWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeDocumentParse, w.HandleDocumentParse)
	w.mux.HandleFunc(queue.TaskTypeCleanup, w.HandleCleanup)
}

// permanent reports errors that will fail again on retry.
func permanent(err error) bool {
	return errors.Is(err, document.ErrInvalidTask) ||
		errors.Is(err, unstructured.ErrUnsupportedFileType) ||
		errors.Is(err, unstructured.ErrDecode)
}

// taskProgress is written to the asynq result for inspection tools.
type taskProgress struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

func writeResult(t *asynq.Task, progress taskProgress) error {
	rw := t.ResultWriter()
	if rw == nil {
		return nil
	}
	payload, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	_, err = rw.Write(payload)
	return err
}

func (w *DocumentWorker) HandleDocumentParse(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing document task",
		logger.String("taskId", task.ID),
		logger.Any("metadata", task.Metadata),
	)

	if err := writeResult(t, taskProgress{Status: "running"}); err != nil {
		w.logger.Error("Failed to write task status", logger.Error(err))
	}

	if err := w.handler.HandleDocument(ctx, &task); err != nil {
		if writeErr := writeResult(t, taskProgress{Status: "failed", Error: err.Error()}); writeErr != nil {
			w.logger.Error("Failed to write task failure", logger.Error(writeErr))
		}
		if permanent(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if err := writeResult(t, taskProgress{Status: "completed", Progress: 100}); err != nil {
		w.logger.Error("Failed to write task completion", logger.Error(err))
	}
	return nil
}

func (w *DocumentWorker) HandleCleanup(ctx context.Context, t *asynq.Task) error {
	return w.handler.CleanupTasks(ctx)
}

func (w *DocumentWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}
