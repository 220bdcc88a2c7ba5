// Package remote extracts Markdown through an Unstructured compatible HTTP parsing API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/feichai0017/doc2md/internal/agent/document"
	"github.com/feichai0017/doc2md/internal/agent/document/filetype"
	"github.com/feichai0017/doc2md/internal/agent/document/markdown"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

const (
	partitionPath = "/general/v0/general"
	// DefaultMaxTries bounds the attempts made by PartitionWithRetries.
	DefaultMaxTries = 5
	// uploadFilename is sent instead of the real name of the file.
	uploadFilename = "filename"
)

// CheckPayload is the document sent by Check.
var CheckPayload = []byte("# doc2md source connection test")

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("parsing api returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// IsUserError reports whether err was caused by the request itself (HTTP 4xx).
// Such errors are not retried.
func IsUserError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

type Config struct {
	APIURL     string
	APIKey     string
	Parameters []models.APIParameter
	HTTPClient *http.Client
	// NewBackOff builds the wait policy between attempts. Defaults to exponential
	// backoff starting at one second.
	NewBackOff func() backoff.BackOff
	MaxTries   int
}

// Client is the remote document.Extractor.
type Client struct {
	cfg    Config
	logger logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if cfg.NewBackOff == nil {
		cfg.NewBackOff = defaultBackOff
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = DefaultMaxTries
	}
	return &Client{
		cfg:    cfg,
		logger: log.Named("remote"),
	}
}

// NewClientFromConfig builds a client for an API processing block.
func NewClientFromConfig(cfg models.APIProcessingConfig, log logger.Logger) *Client {
	return NewClient(Config{
		APIURL:     cfg.APIURL,
		APIKey:     cfg.APIKey,
		Parameters: cfg.Parameters,
	}, log)
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return b
}

func (c *Client) Extract(ctx context.Context, handle io.ReadSeeker, kind models.FileKind) (string, error) {
	if kind == models.FileKindMarkdown {
		return document.ReadMarkdown(handle)
	}
	if !filetype.IsSupported(kind) {
		return "", fmt.Errorf("%w: %s", document.ErrUnsupportedFileType, kind)
	}

	elements, err := c.PartitionWithRetries(ctx, handle, kind)
	if err != nil {
		return "", err
	}
	return markdown.Render(elements), nil
}

// Check sends CheckPayload once, without retries.
func (c *Client) Check(ctx context.Context) error {
	_, err := c.Partition(ctx, bytes.NewReader(CheckPayload), models.FileKindMarkdown)
	return err
}

// PartitionWithRetries retries Partition on transient failures. The handle is
// rewound before every attempt so each request carries the whole file.
func (c *Client) PartitionWithRetries(ctx context.Context, handle io.ReadSeeker, kind models.FileKind) ([]models.Element, error) {
	attempt := 0
	operation := func() ([]models.Element, error) {
		attempt++
		if _, err := handle.Seek(0, io.SeekStart); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to rewind file: %w", err))
		}
		elements, err := c.Partition(ctx, handle, kind)
		if err != nil && (IsUserError(err) || ctx.Err() != nil) {
			return nil, backoff.Permanent(err)
		}
		return elements, err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Parsing API request failed, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.cfg.NewBackOff(), uint64(c.cfg.MaxTries-1)), ctx)
	elements, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err != nil {
		return nil, fmt.Errorf("failed to partition %s after %d attempt(s): %w", kind, attempt, err)
	}
	return elements, nil
}

// Partition makes a single request to the parsing API.
func (c *Client) Partition(ctx context.Context, file io.Reader, kind models.FileKind) ([]models.Element, error) {
	body, contentType, err := c.buildBody(file, kind)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("accept", "application/json")
	req.Header.Set("unstructured-api-key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call parsing api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var elements []models.Element
	if err := json.Unmarshal(respBody, &elements); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("Parsing API request completed",
		logger.String("kind", string(kind)),
		logger.Int("elements", len(elements)),
		logger.Duration("duration", time.Since(start)),
	)
	return elements, nil
}

func (c *Client) endpoint() string {
	return strings.TrimSuffix(c.cfg.APIURL, "/") + partitionPath
}

// buildBody writes the parameters as form fields followed by the file part.
func (c *Client) buildBody(file io.Reader, kind models.FileKind) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, field := range coalesceParameters(c.cfg.Parameters) {
		for _, value := range field.values {
			if err := writer.WriteField(field.name, value); err != nil {
				return nil, "", fmt.Errorf("failed to write field %s: %w", field.name, err)
			}
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, uploadFilename))
	header.Set("Content-Type", filetype.MIMEForKind(kind))
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}

type formField struct {
	name   string
	values []string
}

// coalesceParameters groups repeated names into one field, keeping names in
// order of first appearance and values in their original order.
func coalesceParameters(params []models.APIParameter) []formField {
	var fields []formField
	index := make(map[string]int, len(params))
	for _, p := range params {
		if i, ok := index[p.Name]; ok {
			fields[i].values = append(fields[i].values, p.Value)
			continue
		}
		index[p.Name] = len(fields)
		fields = append(fields, formField{name: p.Name, values: []string{p.Value}})
	}
	return fields
}
