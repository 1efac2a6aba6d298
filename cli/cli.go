// Package cli wires configuration and runs the service.
package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mnemolabs/mnemo/logging"
)

// Run executes the command line interface.
func Run(ctx context.Context, argv []string, version string) error {
	var logLevel, logFormat string

	cmd := &cli.Command{
		Name:    "mnemo",
		Usage:   "Conversational chat backend with externalized memory",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Sources:     cli.EnvVars("MNEMO_LOG_LEVEL"),
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (console, json)",
				Value:       "console",
				Sources:     cli.EnvVars("MNEMO_LOG_FORMAT"),
				Destination: &logFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logging.SetDefault(logging.New(logLevel, logFormat, os.Stderr))
			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return err
	}
	return nil
}
