package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/atlanticdynamic/scriptgate/internal/logging"
	"github.com/atlanticdynamic/scriptgate/internal/metrics"
	"github.com/atlanticdynamic/scriptgate/internal/plugins"
	"github.com/atlanticdynamic/scriptgate/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Start the scriptgate service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to TOML manifest file",
			Aliases: []string{"c"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (trace, debug, info, warn, error)",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format (text or json)",
			Value: "text",
		},
		&cli.IntFlag{
			Name:  "testgroup",
			Usage: "Pin the experiment test group (0-99) instead of assigning randomly",
			Value: -1,
		},
		&cli.StringFlag{
			Name:  "overrides",
			Usage: "Page query string with enable/disable plugin lists, e.g. \"enable=analytics&disable=all\"",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")
		if configPath == "" {
			return cli.Exit("The --config flag is required", 1)
		}

		logHandler := buildLogHandler(cmd.String("log-format"), cmd.String("log-level"), os.Stderr)
		logger := slog.New(logHandler)
		slog.SetDefault(logger)

		opts := []service.Option{
			service.WithContext(ctx),
			service.WithLogHandler(logHandler),
			service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		}
		if tg := cmd.Int("testgroup"); tg >= 0 {
			opts = append(opts, service.WithTestgroup(int(tg)))
		}
		if raw := cmd.String("overrides"); raw != "" {
			overrides, err := plugins.ParseOverrides(raw)
			if err != nil {
				return cli.Exit(fmt.Errorf("invalid --overrides value: %w", err), 1)
			}
			opts = append(opts, service.WithOverrides(overrides))
		}

		runner, err := service.NewRunner(configPath, opts...)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to create service runner: %w", err), 1)
		}

		super, err := supervisor.New(
			supervisor.WithContext(ctx),
			supervisor.WithLogHandler(logHandler),
			supervisor.WithRunnables(runner),
		)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to create supervisor: %w", err), 1)
		}
		if err := super.Run(); err != nil {
			return cli.Exit(fmt.Errorf("failed to run service: %w", err), 1)
		}

		logger.Info("Service shutdown complete")
		return nil
	},
}

func buildLogHandler(format, level string, w io.Writer) slog.Handler {
	if format == "json" {
		return logging.SetupHandlerJSON(level, w)
	}
	return logging.SetupHandlerText(level, w)
}
