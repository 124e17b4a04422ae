package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Inspect or clear the desk's conversation record",
		Commands: []*cli.Command{
			sessionShowCommand(),
			sessionResetCommand(),
		},
	}
}

func sessionShowCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "show",
		Usage: "Print the fields recorded in the current conversation",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.engine.Snapshot(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to read session")
			}

			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to marshal session")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", string(data))
			return nil
		},
	}
}

func sessionResetCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "reset",
		Usage: "Delete every field of the current conversation",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.engine.Reset(ctx)
			if err != nil {
				return err
			}

			if deleted {
				fmt.Fprintf(c.Root().Writer, "Session %s cleared\n", a.engine.SessionID())
			} else {
				fmt.Fprintf(c.Root().Writer, "Session %s was already empty\n", a.engine.SessionID())
			}
			return nil
		},
	}
}
