package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feichai0017/doc2md/pkg/logger"
)

const (
	envPrefix = "DOC2MD"
	// configFileEnv names an optional YAML file layered under the environment.
	configFileEnv = "DOC2MD_CONFIG_FILE"
)

var (
	once      sync.Once
	appConfig *Config
	loadErr   error
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          logger.Config      `mapstructure:"log"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Upload       UploadConfig       `mapstructure:"upload"`
	Unstructured UnstructuredConfig `mapstructure:"unstructured"`
	// DeploymentMode is read from the unprefixed DEPLOYMENT_MODE variable.
	DeploymentMode string `mapstructure:"deployment_mode"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QueueConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	StatusTTL      time.Duration `mapstructure:"status_ttl"`
}

type UploadConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
	MaxBatch    int   `mapstructure:"max_batch"`
	// Prefix is the storage prefix uploads are written under.
	Prefix string `mapstructure:"prefix"`
	// ResultPrefix is where parsed records are stored.
	ResultPrefix string `mapstructure:"result_prefix"`
	// Retention is how long uploads and results are kept by CleanupTasks.
	Retention time.Duration `mapstructure:"retention"`
}

// Validate checks the sections that have no safe fallback.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Storage),
		validation.Field(&c.Queue),
		validation.Field(&c.Upload),
		validation.Field(&c.Unstructured),
	)
}

func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required),
	)
}

func (c QueueConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	)
}

func (c UploadConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxFileSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxBatch, validation.Required, validation.Min(1)),
		validation.Field(&c.Prefix, validation.Required),
		validation.Field(&c.ResultPrefix, validation.Required),
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("log.error_paths", []string{"stderr"})
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.development", false)

	v.SetDefault("storage.type", string(StorageTypeLocal))
	v.SetDefault("storage.s3.bucket_name", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.region", "")
	v.SetDefault("storage.minio.bucket_name", "doc2md")
	v.SetDefault("storage.local.root", "./data")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.retry_delay", "1m")
	v.SetDefault("queue.process_timeout", "30m")
	v.SetDefault("queue.status_ttl", "24h")

	v.SetDefault("upload.max_file_size", 50<<20)
	v.SetDefault("upload.max_batch", 20)
	v.SetDefault("upload.prefix", "uploads")
	v.SetDefault("upload.result_prefix", "results")
	v.SetDefault("upload.retention", "168h")

	v.SetDefault("unstructured.stream_name", "documents")
	v.SetDefault("unstructured.mode", "local")
	v.SetDefault("unstructured.api_url", "")
	v.SetDefault("unstructured.api_key", "")
	v.SetDefault("unstructured.parameters", "")
	v.SetDefault("unstructured.skip_unprocessable_file_types", true)

	v.SetDefault("deployment_mode", "")
}

// envBindings lists environment names per key. The prefixed name comes first;
// older unprefixed names are still honoured.
var envBindings = map[string][]string{
	"storage.s3.bucket_name":    {"AWS_S3_BUCKET_NAME"},
	"storage.s3.region":         {"AWS_REGION"},
	"storage.s3.endpoint":       {"AWS_ENDPOINT"},
	"storage.s3.access_key":     {"AWS_ACCESS_KEY"},
	"storage.s3.secret_key":     {"AWS_SECRET_KEY"},
	"storage.minio.endpoint":    {"MINIO_ENDPOINT"},
	"storage.minio.access_key":  {"MINIO_ACCESS_KEY"},
	"storage.minio.secret_key":  {"MINIO_SECRET_KEY"},
	"storage.minio.region":      {"MINIO_REGION"},
	"storage.minio.bucket_name": {"MINIO_BUCKET_NAME"},
	"redis.addr":                {"REDIS_ADDR"},
	"deployment_mode":           {"DEPLOYMENT_MODE"},
}

func bindEnv(v *viper.Viper) error {
	replacer := strings.NewReplacer(".", "_")
	for _, key := range v.AllKeys() {
		names := []string{envPrefix + "_" + strings.ToUpper(replacer.Replace(key))}
		names = append(names, envBindings[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Load reads .env (when present), the optional YAML file named by
// DOC2MD_CONFIG_FILE and the environment, in increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv(configFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Get loads the configuration once and caches it for the process.
func Get() (*Config, error) {
	once.Do(func() {
		appConfig, loadErr = Load()
	})
	return appConfig, loadErr
}
