package unstructured

import (
	"fmt"

	"github.com/feichai0017/doc2md/internal/models"
)

// ExtractFormat returns the unstructured format block of a stream config.
// Other formats are rejected with ErrInvalidFormat.
func ExtractFormat(cfg models.StreamConfig) (*models.UnstructuredFormat, error) {
	format, ok := cfg.Format.(*models.UnstructuredFormat)
	if !ok || format == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, describeFormat(cfg.Format))
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return format, nil
}

func describeFormat(f models.Format) string {
	if f == nil {
		return "<nil>"
	}
	return f.Filetype()
}
