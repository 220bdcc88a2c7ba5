package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/doc2md/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, StorageTypeLocal, cfg.Storage.Type)
	assert.Equal(t, "./data", cfg.Storage.Local.Root)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)
	assert.Equal(t, 24*time.Hour, cfg.Queue.StatusTTL)
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, models.ProcessingModeLocal, cfg.Unstructured.Mode)
	assert.True(t, cfg.Unstructured.SkipUnprocessableFileTypes)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DOC2MD_SERVER_PORT", ":9090")
	t.Setenv("DOC2MD_STORAGE_TYPE", "s3")
	t.Setenv("AWS_S3_BUCKET_NAME", "legacy-bucket")
	t.Setenv("DOC2MD_QUEUE_RETRY_DELAY", "30s")
	t.Setenv("DOC2MD_UNSTRUCTURED_MODE", "api")
	t.Setenv("DOC2MD_UNSTRUCTURED_PARAMETERS", "strategy=hi_res,languages=eng")
	t.Setenv("DOC2MD_UNSTRUCTURED_SKIP_UNPROCESSABLE_FILE_TYPES", "false")
	t.Setenv("DEPLOYMENT_MODE", "cloud")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, StorageTypeS3, cfg.Storage.Type)
	assert.Equal(t, "legacy-bucket", cfg.Storage.S3.BucketName)
	assert.Equal(t, 30*time.Second, cfg.Queue.RetryDelay)
	assert.Equal(t, "cloud", cfg.DeploymentMode)
	assert.False(t, cfg.Unstructured.SkipUnprocessableFileTypes)
}

func TestLoadPrefixedNameWins(t *testing.T) {
	t.Setenv("DOC2MD_STORAGE_TYPE", "minio")
	t.Setenv("DOC2MD_STORAGE_MINIO_BUCKET_NAME", "new")
	t.Setenv("MINIO_BUCKET_NAME", "old")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Storage.Minio.BucketName)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc2md.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: ":7070"
upload:
  max_batch: 5
unstructured:
  mode: api
  api_url: https://parser.example.com
`), 0o644))
	t.Setenv("DOC2MD_CONFIG_FILE", path)
	t.Setenv("DOC2MD_UPLOAD_MAX_BATCH", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Upload.MaxBatch)
	assert.Equal(t, "https://parser.example.com", cfg.Unstructured.APIURL)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DOC2MD_STORAGE_TYPE", "ftp")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DOC2MD_STORAGE_TYPE", "s3")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BucketName")

	t.Setenv("DOC2MD_STORAGE_TYPE", "local")
	t.Setenv("DOC2MD_UNSTRUCTURED_MODE", "gpu")
	_, err = Load()
	assert.Error(t, err)
}

func TestUnstructuredStreamConfig(t *testing.T) {
	cfg := UnstructuredConfig{
		StreamName:                 "docs",
		Mode:                       models.ProcessingModeAPI,
		APIKey:                     "key",
		Parameters:                 "strategy=hi_res, languages=eng,languages=deu",
		SkipUnprocessableFileTypes: true,
	}

	stream, err := cfg.StreamConfig()
	require.NoError(t, err)
	assert.Equal(t, "docs", stream.Name)

	format := stream.Format.(*models.UnstructuredFormat)
	assert.True(t, format.SkipUnprocessableFileTypes)
	api := format.Processing.(models.APIProcessingConfig)
	assert.Equal(t, models.DefaultAPIURL, api.APIURL)
	assert.Equal(t, []models.APIParameter{
		{Name: "strategy", Value: "hi_res"},
		{Name: "languages", Value: "eng"},
		{Name: "languages", Value: "deu"},
	}, api.Parameters)

	listed, err := UnstructuredConfig{
		Mode:          models.ProcessingModeAPI,
		Parameters:    "ignored=1",
		ParameterList: []models.APIParameter{{Name: "extract_image_block_types", Value: `["Image","Table"]`}},
	}.StreamConfig()
	require.NoError(t, err)
	assert.Equal(t, []models.APIParameter{{Name: "extract_image_block_types", Value: `["Image","Table"]`}},
		listed.Format.(*models.UnstructuredFormat).Processing.(models.APIProcessingConfig).Parameters)

	local, err := UnstructuredConfig{Mode: models.ProcessingModeLocal}.StreamConfig()
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingModeLocal, local.Format.(*models.UnstructuredFormat).Processing.Mode())
}

func TestParseParameters(t *testing.T) {
	params, err := ParseParameters("")
	require.NoError(t, err)
	assert.Empty(t, params)

	params, err = ParseParameters("coordinates=true,,empty=")
	require.NoError(t, err)
	assert.Equal(t, []models.APIParameter{{Name: "coordinates", Value: "true"}, {Name: "empty", Value: ""}}, params)

	params, err = ParseParameters("filter=a=b")
	require.NoError(t, err)
	assert.Equal(t, []models.APIParameter{{Name: "filter", Value: "a=b"}}, params)

	_, err = ParseParameters("novalue")
	assert.Error(t, err)
	_, err = ParseParameters("=x")
	assert.Error(t, err)
}
