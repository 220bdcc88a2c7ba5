package unstructured

import (
	"errors"
	"fmt"

	"github.com/feichai0017/doc2md/internal/agent/document"
)

// ErrorCode classifies a RecordParseError.
type ErrorCode string

const ErrorParsingRecord ErrorCode = "Error parsing record. This could be due to a mismatch between the config's file type and the actual file type, or because the file or record is not parseable."

var (
	// ErrInvalidFormat is returned when a stream config carries a non-unstructured format.
	ErrInvalidFormat = errors.New("invalid format config")
	// ErrDecode is returned for Markdown files that are not valid UTF-8.
	ErrDecode = document.ErrDecode
	// ErrUnsupportedFileType is wrapped by RecordParseError for files of an unsupported kind.
	ErrUnsupportedFileType = document.ErrUnsupportedFileType
)

// RecordParseError reports a file that could not be turned into a record.
type RecordParseError struct {
	Code     ErrorCode
	Filename string
	Err      error
}

func (e *RecordParseError) Error() string {
	msg := fmt.Sprintf("%s filename=%s", e.Code, e.Filename)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecordParseError) Unwrap() error {
	return e.Err
}

func newUnsupportedFileError(uri string) *RecordParseError {
	return &RecordParseError{
		Code:     ErrorParsingRecord,
		Filename: uri,
		Err:      ErrUnsupportedFileType,
	}
}
