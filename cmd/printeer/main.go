// Package main provides the entry point for printeer, a standalone
// URL-to-PDF/image conversion engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/printeer-go/printeer/internal/browserpool"
	"github.com/printeer-go/printeer/internal/config"
	"github.com/printeer-go/printeer/internal/engine"
	"github.com/printeer-go/printeer/internal/logging"
	"github.com/printeer-go/printeer/internal/scheduler"
	"github.com/printeer-go/printeer/internal/strategy"
	"github.com/printeer-go/printeer/pkg/rodbrowser"
	"github.com/printeer-go/printeer/pkg/version"
)

// batchFile is the on-disk shape accepted by --batch.
type batchFile struct {
	Jobs    []scheduler.BatchJob `json:"jobs"`
	Options scheduler.BatchOptions `json:"options"`
}

func main() {
	fs := pflag.NewFlagSet("printeer", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true // leftover flags are --dotted.config.paths

	url := fs.String("url", "", "page to convert")
	output := fs.String("output", "", "output file path (.pdf/.png/.jpg/.webp)")
	batch := fs.String("batch", "", "path to a JSON batch-job file, run via RunBatch instead of a single conversion")
	showVersion := fs.Bool("version", false, "print version and exit")
	serve := fs.Bool("serve", false, "stay resident running only the background engine (monitor/cleanup/hot-reload), no conversion")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *showVersion {
		fmt.Println("printeer " + version.Full())
		return
	}

	// Bootstrap-resolve configuration once just to size the logger before
	// the engine performs its own authoritative Load (cheap, deterministic).
	bootstrap, err := config.Load(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	loggingCfg := bootstrap.Get().Logging
	rootLog := logging.Setup(logging.Params{
		Level:       loggingCfg.Level,
		Format:      loggingCfg.Format,
		Destination: loggingCfg.Destination,
	}, "printeer")

	eng, err := engine.New(fs.Args(), newFactory, rodbrowser.NewRenderer(rootLog), rootLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- eng.Run(ctx) }()

	switch {
	case *serve:
		log.Info().Msg("printeer running in resident mode")
		if err := <-runDone; err != nil {
			log.Fatal().Err(err).Msg("engine exited with error")
		}
	case *batch != "":
		runBatchFile(ctx, eng, *batch)
		cancel()
	case *url != "" && *output != "":
		runSingle(ctx, eng, *url, *output)
		cancel()
	default:
		fmt.Fprintln(os.Stderr, "usage: printeer --url=<url> --output=<file> | --batch=<jobs.json> | --serve")
		cancel()
		os.Exit(2)
	}

	<-runDone
}

func runSingle(ctx context.Context, eng *engine.Engine, url, output string) {
	cfg := eng.Resolver.Get()
	desc, err := eng.Orchestrator.Convert(ctx, url, output, cfg, nil, strategy.Signals{Override: strategy.OverrideOneshot})
	if err != nil {
		log.Fatal().Err(err).Str("url", url).Msg("conversion failed")
	}
	log.Info().Str("path", desc.Path).Int64("bytes", desc.Bytes).Msg("conversion complete")
}

func runBatchFile(ctx context.Context, eng *engine.Engine, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to read batch file")
	}
	var bf batchFile
	if err := json.Unmarshal(raw, &bf); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to parse batch file")
	}

	report, err := eng.Scheduler.RunBatch(ctx, bf.Jobs, bf.Options)
	if err != nil {
		log.Fatal().Err(err).Msg("batch run failed")
	}
	log.Info().
		Int("total", report.Total).
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("duration", report.Duration).
		Msg("batch complete")
}

func newFactory(cfg config.BrowserConfig, logger zerolog.Logger) browserpool.Factory {
	return rodbrowser.New(cfg, logger)
}
