package config

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/feichai0017/doc2md/internal/models"
)

// UnstructuredConfig is the parser configuration used by the server, worker
// and CLI. It is converted into a models.StreamConfig per request.
type UnstructuredConfig struct {
	StreamName string `mapstructure:"stream_name"`
	Mode       string `mapstructure:"mode"`
	APIURL     string `mapstructure:"api_url"`
	APIKey     string `mapstructure:"api_key"`
	// Parameters is a comma separated list of name=value pairs. Names may repeat.
	Parameters                 string `mapstructure:"parameters"`
	SkipUnprocessableFileTypes bool   `mapstructure:"skip_unprocessable_file_types"`
	// ParameterList, when set, is used instead of Parameters. Values are kept
	// verbatim, commas included.
	ParameterList []models.APIParameter `mapstructure:"-"`
}

func (c UnstructuredConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(models.ProcessingModeLocal, models.ProcessingModeAPI)),
		validation.Field(&c.Parameters, validation.By(func(any) error {
			_, err := ParseParameters(c.Parameters)
			return err
		})),
	)
}

// StreamConfig builds the stream configuration the parser consumes. An empty
// api_url falls back to models.DefaultAPIURL.
func (c UnstructuredConfig) StreamConfig() (models.StreamConfig, error) {
	format := &models.UnstructuredFormat{
		SkipUnprocessableFileTypes: c.SkipUnprocessableFileTypes,
	}

	switch c.Mode {
	case "", models.ProcessingModeLocal:
		format.Processing = models.LocalProcessingConfig{}
	case models.ProcessingModeAPI:
		params := c.ParameterList
		if params == nil {
			var err error
			if params, err = ParseParameters(c.Parameters); err != nil {
				return models.StreamConfig{}, err
			}
		}
		apiURL := c.APIURL
		if apiURL == "" {
			apiURL = models.DefaultAPIURL
		}
		format.Processing = models.APIProcessingConfig{
			APIURL:     apiURL,
			APIKey:     c.APIKey,
			Parameters: params,
		}
	default:
		return models.StreamConfig{}, fmt.Errorf("unknown processing mode %q", c.Mode)
	}

	return models.StreamConfig{
		Name:   c.StreamName,
		Format: format,
	}, nil
}

// ParseParameters parses "strategy=hi_res,languages=eng,languages=deu" keeping order.
func ParseParameters(raw string) ([]models.APIParameter, error) {
	var params []models.APIParameter
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		param, err := ParseParameter(pair)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	return params, nil
}

// ParseParameter parses a single name=value pair. Only the first "=" splits,
// so the value may contain "=" and ",".
func ParseParameter(pair string) (models.APIParameter, error) {
	name, value, ok := strings.Cut(pair, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return models.APIParameter{}, fmt.Errorf("invalid parameter %q: expected name=value", pair)
	}
	return models.APIParameter{Name: name, Value: strings.TrimSpace(value)}, nil
}
