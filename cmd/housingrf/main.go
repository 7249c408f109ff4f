// Command housingrf trains a random forest on the California Housing data
// set, prints the evaluation report and writes the diagnostic charts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/housingrf/config"
	"github.com/YuminosukeSato/housingrf/pipeline"
	"github.com/YuminosukeSato/housingrf/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("housingrf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "YAML configuration file")
		envFile    = fs.String("env", ".env", "dotenv file loaded before HOUSINGRF_* overrides")
		scale      = fs.Bool("scale", false, "standardize features before fitting")
		source     = fs.String("source", "", "data set location: http(s) URL, s3://bucket/key or a local path")
		outDir     = fs.String("out", "", "directory for the charts")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(stderr, "housingrf: %+v\n", err)
		return 1
	}
	// 明示されたフラグだけ設定ファイルより優先する
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scale":
			cfg.Split.Scale = *scale
		case "source":
			cfg.Dataset.Source = *source
		case "out":
			cfg.Output.Dir = *outDir
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "housingrf: %+v\n", err)
		return 1
	}

	cfg.Log.Output = stderr
	closeLog, err := log.SetupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "housingrf: %+v\n", err)
		return 1
	}
	defer closeLog()

	logger := log.GetLoggerWithName("main")

	pcfg, err := cfg.PipelineConfig()
	if err != nil {
		logger.Error("Invalid configuration", err)
		fmt.Fprintf(stderr, "housingrf: %+v\n", err)
		return 1
	}

	result, err := pipeline.New(pcfg).Run(ctx)
	if err != nil {
		logger.Error("Pipeline failed", err)
		fmt.Fprintf(stderr, "housingrf: %+v\n", err)
		return 1
	}

	if err := pipeline.WriteReport(stdout, result); err != nil {
		logger.Error("Failed to write report", err)
		return 1
	}
	return 0
}
