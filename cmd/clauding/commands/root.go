package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/driftwell/clauding/internal/app"
	"github.com/driftwell/clauding/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "clauding",
		Usage: "Anthropic-to-OpenAI translating gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			startCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name: "start",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.StringFlag{
				Name:  "provider-base-url",
				Usage: "OpenAI-compatible backend base URL",
			},
			&cli.StringFlag{
				Name:  "provider-api-key",
				Usage: "backend credential (literal, or file://, env://, keyring:// reference)",
			},
			&cli.StringFlag{
				Name:  "proxy-auth-key",
				Usage: "required client credential; empty disables auth",
			},
			&cli.StringFlag{
				Name:  "big--model",
				Usage: "model id for the BIG tier",
			},
			&cli.StringFlag{
				Name:  "middle--model",
				Usage: "model id for the MIDDLE tier",
			},
			&cli.StringFlag{
				Name:  "small--model",
				Usage: "model id for the SMALL tier",
			},
			&cli.BoolFlag{
				Name:  "usage--track",
				Usage: "enable request accounting",
			},
			&cli.StringFlag{
				Name:  "usage--db-path",
				Usage: "usage accounting sqlite path",
				Value: app.DefaultUsageDBPath,
			},
		},
		Action: startAction,
	}
}

func startAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(ctx, cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
