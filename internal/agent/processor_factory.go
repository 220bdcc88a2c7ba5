package agent

import (
	"fmt"

	"github.com/feichai0017/doc2md/internal/agent/document"
	"github.com/feichai0017/doc2md/internal/agent/document/local"
	"github.com/feichai0017/doc2md/internal/agent/document/remote"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

// ExtractorFactory picks the extractor matching a processing config. The local
// extractor is shared; remote clients are built per config.
type ExtractorFactory struct {
	local  *local.Extractor
	logger logger.Logger
}

func NewExtractorFactory(partitioners local.Partitioners, log logger.Logger) *ExtractorFactory {
	return &ExtractorFactory{
		local:  local.NewExtractor(partitioners, log),
		logger: log,
	}
}

func (f *ExtractorFactory) GetExtractor(cfg models.ProcessingConfig) (document.Extractor, error) {
	switch c := cfg.(type) {
	case models.LocalProcessingConfig:
		return f.local, nil
	case models.APIProcessingConfig:
		f.logger.Debug("Using parsing API",
			logger.String("apiURL", c.APIURL),
			logger.Int("parameters", len(c.Parameters)),
		)
		return remote.NewClientFromConfig(c, f.logger), nil
	default:
		f.logger.Error("Unsupported processing config",
			logger.String("type", fmt.Sprintf("%T", cfg)),
		)
		return nil, fmt.Errorf("unsupported processing mode: %T", cfg)
	}
}
