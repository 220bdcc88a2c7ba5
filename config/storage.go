package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
	StorageTypeLocal StorageType = "local"
)

type StorageConfig struct {
	Type  StorageType `mapstructure:"type"`
	S3    S3Config    `mapstructure:"s3"`
	Minio MinioConfig `mapstructure:"minio"`
	Local LocalConfig `mapstructure:"local"`
}

type S3Config struct {
	BucketName   string `mapstructure:"bucket_name"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type MinioConfig struct {
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Endpoint   string `mapstructure:"endpoint"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket_name"`
}

type LocalConfig struct {
	Root string `mapstructure:"root"`
}

// Validate requires the settings of the selected backend only.
func (c StorageConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required, validation.In(StorageTypeS3, StorageTypeMinio, StorageTypeLocal)),
		validation.Field(&c.S3, validation.When(c.Type == StorageTypeS3, validation.By(func(any) error {
			return validation.ValidateStruct(&c.S3,
				validation.Field(&c.S3.BucketName, validation.Required),
				validation.Field(&c.S3.Region, validation.Required),
			)
		}))),
		validation.Field(&c.Minio, validation.When(c.Type == StorageTypeMinio, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Minio,
				validation.Field(&c.Minio.Endpoint, validation.Required),
				validation.Field(&c.Minio.BucketName, validation.Required),
			)
		}))),
		validation.Field(&c.Local, validation.When(c.Type == StorageTypeLocal, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Local,
				validation.Field(&c.Local.Root, validation.Required),
			)
		}))),
	)
}
