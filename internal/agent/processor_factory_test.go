package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/doc2md/internal/agent/document/local"
	"github.com/feichai0017/doc2md/internal/agent/document/remote"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

func TestGetExtractor(t *testing.T) {
	factory := NewExtractorFactory(local.Partitioners{}, logger.NewTestLogger())

	ext, err := factory.GetExtractor(models.LocalProcessingConfig{})
	require.NoError(t, err)
	assert.IsType(t, &local.Extractor{}, ext)

	ext, err = factory.GetExtractor(models.APIProcessingConfig{APIURL: "https://parser.internal"})
	require.NoError(t, err)
	assert.IsType(t, &remote.Client{}, ext)

	_, err = factory.GetExtractor(nil)
	assert.Error(t, err)
}
