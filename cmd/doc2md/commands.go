package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/feichai0017/doc2md/config"
	"github.com/feichai0017/doc2md/internal/agent"
	"github.com/feichai0017/doc2md/internal/agent/document/local"
	"github.com/feichai0017/doc2md/internal/agent/document/unstructured"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
	"github.com/feichai0017/doc2md/pkg/storage"
	localstore "github.com/feichai0017/doc2md/pkg/storage/local"
)

// ProcessingFlags select local or API processing.
type ProcessingFlags struct {
	Mode       string   `enum:"local,api" default:"local" env:"DOC2MD_UNSTRUCTURED_MODE" help:"Processing mode."`
	APIURL     string   `name:"api-url" env:"DOC2MD_UNSTRUCTURED_API_URL" help:"Parsing API base URL."`
	APIKey     string   `name:"api-key" env:"DOC2MD_UNSTRUCTURED_API_KEY" help:"Parsing API key."`
	Param      []string `name:"param" short:"p" sep:"none" help:"Extra API form field as name=value. Repeatable; the value is taken verbatim."`
	NoSkip     bool     `name:"no-skip" help:"Fail on unsupported file types instead of skipping them."`
	Deployment string   `name:"deployment-mode" env:"DEPLOYMENT_MODE" help:"Deployment mode; cloud requires an https API URL."`
}

func (f ProcessingFlags) streamConfig() (models.StreamConfig, error) {
	params := make([]models.APIParameter, 0, len(f.Param))
	for _, raw := range f.Param {
		param, err := config.ParseParameter(raw)
		if err != nil {
			return models.StreamConfig{}, err
		}
		params = append(params, param)
	}
	return config.UnstructuredConfig{
		StreamName:                 "cli",
		Mode:                       f.Mode,
		APIURL:                     f.APIURL,
		APIKey:                     f.APIKey,
		ParameterList:              params,
		SkipUnprocessableFileTypes: !f.NoSkip,
	}.StreamConfig()
}

func (f ProcessingFlags) parser(log logger.Logger) *unstructured.Parser {
	factory := agent.NewExtractorFactory(local.DefaultPartitioners(log), log)
	return unstructured.NewParser(factory, log, unstructured.WithDeploymentMode(f.Deployment))
}

type ParseCmd struct {
	ProcessingFlags

	Files  []string `arg:"" type:"existingfile" help:"Files to parse."`
	Output string   `short:"o" type:"path" help:"Write one .md file per input into this directory instead of stdout."`
}

func (c *ParseCmd) Run(g *Globals) error {
	stream, err := c.streamConfig()
	if err != nil {
		return err
	}

	files := make([]models.RemoteFile, 0, len(c.Files))
	for _, name := range c.Files {
		abs, err := filepath.Abs(name)
		if err != nil {
			return err
		}
		files = append(files, models.RemoteFile{URI: filepath.ToSlash(abs)})
	}

	store, err := localstore.NewLocalStorage(afero.NewOsFs(), "", g.Log)
	if err != nil {
		return err
	}
	records, err := c.parser(g.Log).ParseAll(g.Ctx, stream, files, storage.NewStreamReader(store))
	if err != nil {
		return err
	}

	if c.Output == "" {
		parts := make([]string, 0, len(records))
		for _, r := range records {
			parts = append(parts, r.Content)
		}
		if len(parts) > 0 {
			_, err = fmt.Fprintln(g.Out, strings.Join(parts, "\n\n"))
		}
		return err
	}

	if err := os.MkdirAll(c.Output, 0o755); err != nil {
		return err
	}
	for _, r := range records {
		base := filepath.Base(filepath.FromSlash(r.DocumentKey))
		target := filepath.Join(c.Output, strings.TrimSuffix(base, filepath.Ext(base))+".md")
		if err := os.WriteFile(target, []byte(r.Content), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(g.Out, target)
	}
	return nil
}

type CheckCmd struct {
	ProcessingFlags
}

var errCheckFailed = errors.New("configuration check failed")

func (c *CheckCmd) Run(g *Globals) error {
	stream, err := c.streamConfig()
	if err != nil {
		return err
	}
	ok, msg := c.parser(g.Log).CheckConfig(g.Ctx, stream)
	if !ok {
		return fmt.Errorf("%w: %s", errCheckFailed, msg)
	}
	_, err = fmt.Fprintln(g.Out, "ok")
	return err
}

type SchemaCmd struct{}

func (c *SchemaCmd) Run(g *Globals) error {
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(unstructured.Schema())
}
