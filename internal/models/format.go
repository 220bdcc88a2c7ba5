package models

import (
	"encoding/json"
	"fmt"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	FiletypeUnstructured = "unstructured"

	ProcessingModeLocal = "local"
	ProcessingModeAPI   = "api"

	DefaultAPIURL = "https://api.unstructured.io"
)

// StreamConfig is the generic per-stream connector configuration. Only the
// format block matters to the document parser.
type StreamConfig struct {
	Name   string   `json:"name"`
	Globs  []string `json:"globs,omitempty"`
	Format Format   `json:"-"`
}

// Format is implemented by every file format configuration block.
type Format interface {
	Filetype() string
}

// GenericFormat carries any format block this module does not parse itself.
type GenericFormat struct {
	Type string `json:"filetype"`
}

func (f *GenericFormat) Filetype() string { return f.Type }

// UnstructuredFormat configures document parsing.
type UnstructuredFormat struct {
	SkipUnprocessableFileTypes bool             `json:"skip_unprocessable_file_types"`
	Processing                 ProcessingConfig `json:"-"`
}

func (f *UnstructuredFormat) Filetype() string { return FiletypeUnstructured }

// Validate checks the processing block.
func (f *UnstructuredFormat) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Processing, validation.Required),
	)
}

// ProcessingConfig is either LocalProcessingConfig or APIProcessingConfig.
type ProcessingConfig interface {
	Mode() string
}

// LocalProcessingConfig selects the in-process partitioners.
type LocalProcessingConfig struct{}

func (LocalProcessingConfig) Mode() string { return ProcessingModeLocal }

// APIParameter is one extra form field sent to the parsing API.
type APIParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Validate requires a parameter name.
func (p APIParameter) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
	)
}

// APIProcessingConfig selects the remote parsing API.
type APIProcessingConfig struct {
	APIURL     string         `json:"api_url"`
	APIKey     string         `json:"api_key"`
	Parameters []APIParameter `json:"parameters,omitempty"`
}

func (APIProcessingConfig) Mode() string { return ProcessingModeAPI }

// Validate requires an absolute http(s) API URL.
func (c APIProcessingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.APIURL, validation.Required, validation.By(absoluteHTTPURL)),
		validation.Field(&c.Parameters),
	)
}

func absoluteHTTPURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validation.NewError("validation_api_url", "must be an absolute http or https URL")
	}
	return nil
}

type processingJSON struct {
	Mode       string         `json:"mode"`
	APIURL     string         `json:"api_url,omitempty"`
	APIKey     string         `json:"api_key,omitempty"`
	Parameters []APIParameter `json:"parameters,omitempty"`
}

type unstructuredFormatJSON struct {
	Filetype                   string          `json:"filetype"`
	SkipUnprocessableFileTypes *bool           `json:"skip_unprocessable_file_types,omitempty"`
	Processing                 *processingJSON `json:"processing,omitempty"`
}

// UnmarshalJSON decodes the processing union. A missing processing block means
// local mode and a missing skip flag means true.
func (f *UnstructuredFormat) UnmarshalJSON(data []byte) error {
	var raw unstructuredFormatJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.SkipUnprocessableFileTypes = true
	if raw.SkipUnprocessableFileTypes != nil {
		f.SkipUnprocessableFileTypes = *raw.SkipUnprocessableFileTypes
	}

	if raw.Processing == nil {
		f.Processing = LocalProcessingConfig{}
		return nil
	}
	switch raw.Processing.Mode {
	case "", ProcessingModeLocal:
		f.Processing = LocalProcessingConfig{}
	case ProcessingModeAPI:
		apiURL := raw.Processing.APIURL
		if apiURL == "" {
			apiURL = DefaultAPIURL
		}
		f.Processing = APIProcessingConfig{
			APIURL:     apiURL,
			APIKey:     raw.Processing.APIKey,
			Parameters: raw.Processing.Parameters,
		}
	default:
		return fmt.Errorf("unknown processing mode %q", raw.Processing.Mode)
	}
	return nil
}

// MarshalJSON encodes the processing union with its mode tag.
func (f *UnstructuredFormat) MarshalJSON() ([]byte, error) {
	skip := f.SkipUnprocessableFileTypes
	raw := unstructuredFormatJSON{
		Filetype:                   FiletypeUnstructured,
		SkipUnprocessableFileTypes: &skip,
	}
	switch p := f.Processing.(type) {
	case APIProcessingConfig:
		raw.Processing = &processingJSON{Mode: ProcessingModeAPI, APIURL: p.APIURL, APIKey: p.APIKey, Parameters: p.Parameters}
	case LocalProcessingConfig:
		raw.Processing = &processingJSON{Mode: ProcessingModeLocal}
	}
	return json.Marshal(raw)
}

type streamConfigJSON struct {
	Name   string          `json:"name"`
	Globs  []string        `json:"globs,omitempty"`
	Format json.RawMessage `json:"format"`
}

// UnmarshalJSON picks the format implementation from the filetype tag.
func (c *StreamConfig) UnmarshalJSON(data []byte) error {
	var raw streamConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Name = raw.Name
	c.Globs = raw.Globs
	c.Format = nil

	if len(raw.Format) == 0 || string(raw.Format) == "null" {
		return nil
	}

	var tag GenericFormat
	if err := json.Unmarshal(raw.Format, &tag); err != nil {
		return fmt.Errorf("failed to decode format: %w", err)
	}
	if tag.Type != FiletypeUnstructured {
		c.Format = &tag
		return nil
	}

	var format UnstructuredFormat
	if err := json.Unmarshal(raw.Format, &format); err != nil {
		return fmt.Errorf("failed to decode unstructured format: %w", err)
	}
	c.Format = &format
	return nil
}

// MarshalJSON writes the format block back under "format".
func (c StreamConfig) MarshalJSON() ([]byte, error) {
	raw := struct {
		Name   string   `json:"name"`
		Globs  []string `json:"globs,omitempty"`
		Format Format   `json:"format,omitempty"`
	}{Name: c.Name, Globs: c.Globs, Format: c.Format}
	return json.Marshal(raw)
}
