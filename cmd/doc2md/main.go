package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/feichai0017/doc2md/pkg/logger"
)

type CLI struct {
	LogLevel string `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level written to stderr."`

	Parse  ParseCmd  `cmd:"" help:"Parse PDF, DOCX, PPTX and Markdown files into Markdown."`
	Check  CheckCmd  `cmd:"" help:"Check that the parser configuration works."`
	Schema SchemaCmd `cmd:"" help:"Print the record schema."`
}

// Globals is bound into every command's Run.
type Globals struct {
	Ctx context.Context
	Log logger.Logger
	Out io.Writer
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("doc2md"),
		kong.Description("Convert documents to Markdown."),
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

	err = kctx.Run(&Globals{Ctx: ctx, Log: log, Out: os.Stdout})
	kctx.FatalIfErrorf(err)
}
