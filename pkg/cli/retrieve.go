package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/usecase/flow"
	"github.com/urfave/cli/v3"
)

func retrieveCommand() *cli.Command {
	var (
		cfg       config
		apartment string
		assumeYes bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "apartment",
			Aliases:     []string{"a"},
			Usage:       "Apartment number of the resident",
			Destination: &apartment,
		},
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "Release the packages without asking",
			Destination: &assumeYes,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "retrieve",
		Usage: "Hand out every package held for an apartment",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			in := newConsole(c, assumeYes)
			defer in.Close()

			if apartment == "" {
				if apartment, err = in.Ask("Apartment number?"); err != nil {
					return goerr.Wrap(err, "apartment number is required")
				}
			}

			result, err := flow.New(a.engine, in).Retrieve(ctx, apartment)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.Root().Writer, result.Message())
			return nil
		},
	}
}
