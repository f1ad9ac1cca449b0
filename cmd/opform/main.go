package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	opform "github.com/goliatone/go-opform"
	"github.com/goliatone/go-opform/internal/logging"
	"github.com/goliatone/go-opform/internal/metrics"
	"github.com/goliatone/go-opform/pkg/config"
	"github.com/goliatone/go-opform/pkg/operation"
	"github.com/goliatone/go-opform/pkg/renderers/tui"
	"github.com/goliatone/go-opform/pkg/submission"
	"github.com/goliatone/go-opform/pkg/web"
	"github.com/goliatone/go-opform/pkg/zipcode"
)

const usage = `usage: opform [flags] <command>

commands:
  fill    fill the operation form in the terminal
  serve   serve the operation form over HTTP

flags:
`

func main() {
	fs := flag.NewFlagSet("opform", flag.ExitOnError)
	flags := config.BindFlags(fs)
	format := fs.String("format", string(tui.OutputFormatJSON), "fill output format (json, form, pretty)")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(flags, os.LookupEnv)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level := cfg.Log.Level
	if cfg.Dev {
		level = "debug"
	}
	logger, err := logging.New(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd := fs.Arg(0); cmd {
	case "fill":
		err = runFill(ctx, cfg, logger, tui.ParseOutputFormat(*format))
	case "serve":
		err = runServe(ctx, cfg, logger)
	default:
		fs.Usage()
		stop()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("opform failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newLookupClient(cfg config.Config, logger *slog.Logger, rec *metrics.Recorder) *zipcode.Client {
	return opform.NewLookupClient(
		zipcode.WithBaseURL(cfg.Lookup.BaseURL),
		zipcode.WithTimeout(cfg.Lookup.Timeout),
		zipcode.WithRateLimit(cfg.Lookup.RatePerSecond, cfg.Lookup.Burst),
		zipcode.WithLogger(logger),
		zipcode.WithMetrics(rec),
	)
}

func runFill(ctx context.Context, cfg config.Config, logger *slog.Logger, format tui.OutputFormat) error {
	reg, err := operation.NewRegistry()
	if err != nil {
		return err
	}

	opts := []submission.Option{
		submission.WithLookup(newLookupClient(cfg, logger, nil)),
		submission.WithSink(tui.Sink(os.Stdout, format)),
		submission.WithLogger(logger),
	}
	if cfg.Lookup.DiscardStale {
		opts = append(opts, submission.WithStaleLookupGuard())
	}
	ctrl := submission.New(reg, opts...)

	session, err := tui.NewSession(reg, ctrl, tui.WithOutput(os.Stderr), tui.WithLogger(logger))
	if err != nil {
		return err
	}
	res, err := session.Run(ctx, operation.Title)
	switch {
	case errors.Is(err, tui.ErrAborted), errors.Is(err, context.Canceled):
		logger.Info("fill aborted")
		return nil
	case err != nil:
		return err
	case !res.Accepted:
		return errors.New("operation not saved")
	}
	return nil
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	rec, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	srv, err := web.New(ctx,
		web.WithLookup(newLookupClient(cfg, logger, rec)),
		web.WithLogger(logger),
		web.WithMetrics(rec, prometheus.DefaultGatherer),
		web.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
		web.WithDevMode(cfg.Dev),
	)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
