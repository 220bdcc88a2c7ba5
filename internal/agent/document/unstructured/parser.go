// Package unstructured parses PDF, DOCX, PPTX and Markdown files into one
// Markdown record per file.
package unstructured

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/feichai0017/doc2md/internal/agent/document"
	"github.com/feichai0017/doc2md/internal/agent/document/filetype"
	"github.com/feichai0017/doc2md/internal/agent/document/remote"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

const (
	// MaxFilesForSchemaInference is 1 since the schema never depends on content.
	MaxFilesForSchemaInference = 1
	// MaxFilesForParsability is 0: parsing is too expensive to use as a probe.
	MaxFilesForParsability = 0

	CloudDeploymentMode = "cloud"
	deploymentModeEnv   = "DEPLOYMENT_MODE"
)

// StreamReader opens remote files for reading.
type StreamReader interface {
	OpenFile(ctx context.Context, file models.RemoteFile) (io.ReadSeekCloser, error)
}

// ExtractorProvider returns the extractor for a processing config.
type ExtractorProvider interface {
	GetExtractor(cfg models.ProcessingConfig) (document.Extractor, error)
}

type Parser struct {
	extractors     ExtractorProvider
	detector       *filetype.Detector
	deploymentMode string
	logger         logger.Logger
}

type Option func(*Parser)

// WithDeploymentMode overrides the DEPLOYMENT_MODE environment variable.
func WithDeploymentMode(mode string) Option {
	return func(p *Parser) {
		p.deploymentMode = mode
	}
}

func NewParser(extractors ExtractorProvider, log logger.Logger, opts ...Option) *Parser {
	p := &Parser{
		extractors:     extractors,
		detector:       filetype.NewDetector(log),
		deploymentMode: os.Getenv(deploymentModeEnv),
		logger:         log.Named("unstructured"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema is the record schema shared by every file.
func Schema() map[string]any {
	return map[string]any{
		"content":      map[string]any{"type": "string"},
		"document_key": map[string]any{"type": "string"},
	}
}

// InferSchema returns Schema after checking the file kind against the
// unprocessable file policy.
func (p *Parser) InferSchema(ctx context.Context, cfg models.StreamConfig, file models.RemoteFile, reader StreamReader) (map[string]any, error) {
	format, err := ExtractFormat(cfg)
	if err != nil {
		return nil, err
	}

	handle, err := reader.OpenFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.URI, err)
	}
	defer handle.Close()

	kind, err := p.detector.Detect(handle, file)
	if err != nil {
		return nil, err
	}
	if !filetype.IsSupported(kind) {
		if err := p.handleUnprocessable(file, kind, format); err != nil {
			return nil, err
		}
	}
	return Schema(), nil
}

// ParseRecords returns zero records for a skipped file and one otherwise.
func (p *Parser) ParseRecords(ctx context.Context, cfg models.StreamConfig, file models.RemoteFile, reader StreamReader) ([]models.ParsedRecord, error) {
	format, err := ExtractFormat(cfg)
	if err != nil {
		return nil, err
	}

	handle, err := reader.OpenFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.URI, err)
	}
	defer handle.Close()

	content, ok, err := p.readFile(ctx, handle, file, format)
	if err != nil || !ok {
		return nil, err
	}
	return []models.ParsedRecord{{
		Content:     content,
		DocumentKey: file.URI,
	}}, nil
}

// ParseAll parses files in order. Skipped files produce no record; any other
// error stops the run.
func (p *Parser) ParseAll(ctx context.Context, cfg models.StreamConfig, files []models.RemoteFile, reader StreamReader) ([]models.ParsedRecord, error) {
	records := make([]models.ParsedRecord, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parsed, err := p.ParseRecords(ctx, cfg, file, reader)
		if err != nil {
			return nil, err
		}
		records = append(records, parsed...)
	}

	p.logger.Info("Parsed files",
		logger.String("stream", cfg.Name),
		logger.Int("files", len(files)),
		logger.Int("records", len(records)),
	)
	return records, nil
}

// CheckConfig verifies that files could be parsed with cfg. Local processing
// always passes. The API is checked with a single request.
func (p *Parser) CheckConfig(ctx context.Context, cfg models.StreamConfig) (bool, string) {
	format, err := ExtractFormat(cfg)
	if err != nil {
		return false, err.Error()
	}

	api, ok := format.Processing.(models.APIProcessingConfig)
	if !ok {
		return true, ""
	}

	if strings.EqualFold(p.deploymentMode, CloudDeploymentMode) && !strings.HasPrefix(api.APIURL, "https://") {
		return false, "Base URL must start with https://"
	}

	if err := remote.NewClientFromConfig(api, p.logger).Check(ctx); err != nil {
		p.logger.Warn("Parsing API check failed",
			logger.String("apiURL", api.APIURL),
			logger.Error(err),
		)
		return false, err.Error()
	}
	return true, ""
}

// readFile reports ok=false when the file was skipped.
func (p *Parser) readFile(ctx context.Context, handle io.ReadSeeker, file models.RemoteFile, format *models.UnstructuredFormat) (string, bool, error) {
	kind, err := p.detector.Detect(handle, file)
	if err != nil {
		return "", false, err
	}

	if kind == models.FileKindMarkdown {
		content, err := document.ReadMarkdown(handle)
		if err != nil {
			return "", false, fmt.Errorf("failed to read %s: %w", file.URI, err)
		}
		return content, true, nil
	}

	if !filetype.IsSupported(kind) {
		return "", false, p.handleUnprocessable(file, kind, format)
	}

	extractor, err := p.extractors.GetExtractor(format.Processing)
	if err != nil {
		return "", false, err
	}
	content, err := extractor.Extract(ctx, handle, kind)
	if err != nil {
		return "", false, fmt.Errorf("failed to parse %s: %w", file.URI, err)
	}

	p.logger.Debug("Parsed file",
		logger.String("uri", file.URI),
		logger.String("kind", string(kind)),
		logger.String("mode", format.Processing.Mode()),
	)
	return content, true, nil
}

func (p *Parser) handleUnprocessable(file models.RemoteFile, kind models.FileKind, format *models.UnstructuredFormat) error {
	if format.SkipUnprocessableFileTypes {
		p.logger.Warn(fmt.Sprintf("File %s cannot be parsed. Skipping it.", file.URI),
			logger.String("kind", string(kind)),
		)
		return nil
	}
	return newUnsupportedFileError(file.URI)
}
