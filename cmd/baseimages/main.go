package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"github.com/feichai0017/doc2md/internal/agent/baseimages"
	service "github.com/feichai0017/doc2md/internal/service/baseimages"
	"github.com/feichai0017/doc2md/pkg/logger"
)

type CLI struct {
	Definitions string `arg:"" type:"existingfile" help:"YAML file with the base image definitions."`
	OutDir      string `name:"out-dir" default:"." type:"path" help:"Directory that receives generated/dockerfiles."`
	Changelog   string `name:"changelog" default:"CHANGELOG.md" type:"path" help:"Changelog written when every check passes."`
	Docker      string `name:"docker" default:"docker" env:"DOCKER_BINARY" help:"Docker CLI binary."`
	Parallelism int    `name:"parallelism" short:"j" default:"4" help:"Concurrent builds."`
	LogLevel    string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level written to stderr."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("baseimages"),
		kong.Description("Generate base image Dockerfiles, run their sanity checks and update the changelog."),
		kong.UsageOnError(),
	)

	log, err := logger.NewLogger(
		logger.WithLevel(cli.LogLevel),
		logger.WithEncoding("console"),
		logger.WithOutputPaths([]string{"stderr"}),
	)
	kctx.FatalIfErrorf(err)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ok, err := run(ctx, cli, log)
	kctx.FatalIfErrorf(err)
	if !ok {
		stop()
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cli CLI, log logger.Logger) (bool, error) {
	f, err := os.Open(cli.Definitions)
	if err != nil {
		return false, err
	}
	set, err := baseimages.LoadDefinitions(f)
	f.Close()
	if err != nil {
		return false, fmt.Errorf("%s: %w", cli.Definitions, err)
	}

	svc := service.NewService(set, afero.NewOsFs(), service.NewDockerChecker(cli.Docker, log), log, service.Config{
		OutDir:        cli.OutDir,
		ChangelogPath: cli.Changelog,
		Parallelism:   cli.Parallelism,
	})
	return svc.Build(ctx)
}
