package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

// Version is overwritten at build time
var Version = "dev"

func Run(ctx context.Context, argv []string) *Error {
	if err := newRootCommand().Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: userMessage(err),
		}
	}

	return nil
}

func newRootCommand() *cli.Command {
	var (
		logLevel  string
		logFormat string
	)

	return &cli.Command{
		Name:    "smartshelf",
		Usage:   "Package room concierge for apartment buildings",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Sources:     cli.EnvVars("SMARTSHELF_LOG_LEVEL"),
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (console, json)",
				Value:       string(logging.FormatConsole),
				Sources:     cli.EnvVars("SMARTSHELF_LOG_FORMAT"),
				Destination: &logFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			format, err := logging.ParseFormat(logFormat)
			if err != nil {
				return ctx, err
			}
			logger := logging.NewWithFormat(format, logLevel, c.Root().ErrWriter)
			logging.SetDefault(logger)
			return logging.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			storeCommand(),
			retrieveCommand(),
			spotsCommand(),
			sessionCommand(),
			chatCommand(),
			mcpCommand(),
		},
	}
}

// userMessage turns the engine's error kinds into text for the desk
func userMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return fmt.Sprintf("invalid input: %s", err.Error())
	case errors.Is(err, model.ErrMissingField):
		if field, ok := model.MissingField(err); ok {
			return fmt.Sprintf("missing %s: run the step that records it first", field)
		}
		return err.Error()
	case errors.Is(err, model.ErrStorageUnavailable):
		return fmt.Sprintf("storage is unavailable, try again later: %s", err.Error())
	}
	return err.Error()
}
