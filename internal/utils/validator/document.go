package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/doc2md/internal/agent/document/filetype"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

const (
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeEmptyFile       = "EMPTY_FILE"
	CodeUnsupportedType = "UNSUPPORTED_FILE_TYPE"
)

type DocumentValidator struct {
	logger   logger.Logger
	config   *ValidatorConfig
	detector *filetype.Detector
}

type ValidatorConfig struct {
	MaxFileSize int64
	// AllowUnsupported lets unsupported kinds through so the parser can skip them.
	AllowUnsupported bool
}

type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type FileInfo struct {
	Filename  string          `json:"filename"`
	Size      int64           `json:"size"`
	MimeType  string          `json:"mimeType,omitempty"`
	Extension string          `json:"extension"`
	Kind      models.FileKind `json:"kind"`
	Hash      string          `json:"hash"`
}

// Error joins the validation messages.
func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

func NewDocumentValidator(log logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize:      50 * 1024 * 1024,
			AllowUnsupported: true,
		}
	}

	return &DocumentValidator{
		logger:   log,
		config:   config,
		detector: filetype.NewDetector(log),
	}
}

// MimeHint returns the client supplied content type unless it is a generic one.
func MimeHint(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") || strings.HasPrefix(ct, "text/plain") {
		return ""
	}
	return ct
}

// ValidateFile opens and validates an uploaded file.
func (v *DocumentValidator) ValidateFile(header *multipart.FileHeader) (*ValidationResult, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return v.Validate(f, header.Filename, header.Size, MimeHint(header))
}

// Validate checks size and file kind. The reader is left at offset zero.
func (v *DocumentValidator) Validate(r io.ReadSeeker, filename string, size int64, mimeType string) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		Errors:  make([]ValidationError, 0),
		FileInfo: FileInfo{
			Filename:  filename,
			Size:      size,
			MimeType:  mimeType,
			Extension: strings.ToLower(filepath.Ext(filename)),
		},
	}

	hash, err := calculateHash(r)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	result.FileInfo.Hash = hash
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to reset file pointer: %w", err)
	}

	if errs := v.performBasicValidation(result.FileInfo); len(errs) > 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, errs...)
	}

	kind, err := v.detector.Detect(r, models.RemoteFile{URI: filename, MimeType: mimeType, Size: size})
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	result.FileInfo.Kind = kind

	if !filetype.IsSupported(kind) && !v.config.AllowUnsupported {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeUnsupportedType,
			Message: fmt.Sprintf("File type %s is not supported", kind),
			Field:   "kind",
		})
	}

	if !result.IsValid {
		v.logger.Debug("File failed validation",
			logger.String("filename", filename),
			logger.String("reason", result.Error()),
		)
	}
	return result, nil
}

// ValidateFiles validates uploads concurrently, keeping input order.
func (v *DocumentValidator) ValidateFiles(files []*multipart.FileHeader) ([]*ValidationResult, error) {
	results := make([]*ValidationResult, len(files))
	var g errgroup.Group

	for i, file := range files {
		g.Go(func() error {
			result, err := v.ValidateFile(file)
			if err != nil {
				return fmt.Errorf("%s: %w", file.Filename, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (v *DocumentValidator) performBasicValidation(fileInfo FileInfo) []ValidationError {
	var errors []ValidationError

	if fileInfo.Size == 0 {
		errors = append(errors, ValidationError{
			Code:    CodeEmptyFile,
			Message: "File is empty",
			Field:   "size",
		})
	}

	if fileInfo.Size > v.config.MaxFileSize {
		errors = append(errors, ValidationError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}

	return errors
}

func calculateHash(r io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
