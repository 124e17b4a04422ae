package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/usecase/flow"
	"github.com/urfave/cli/v3"
)

func storeCommand() *cli.Command {
	var (
		cfg       config
		size      string
		apartment string
		assumeYes bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "size",
			Aliases:     []string{"s"},
			Usage:       "Package size (S, M, L)",
			Destination: &size,
		},
		&cli.StringFlag{
			Name:        "apartment",
			Aliases:     []string{"a"},
			Usage:       "Apartment number of the resident",
			Destination: &apartment,
		},
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "Reserve the found spot without asking",
			Destination: &assumeYes,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "store",
		Usage: "Find and reserve a shelf spot for a package",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			in := newConsole(c, assumeYes)
			defer in.Close()

			if size == "" {
				if size, err = in.Ask("Package size (S/M/L)?"); err != nil {
					return goerr.Wrap(err, "package size is required")
				}
			}
			if apartment == "" {
				if apartment, err = in.Ask("Apartment number?"); err != nil {
					return goerr.Wrap(err, "apartment number is required")
				}
			}

			result, err := flow.New(a.engine, in).Store(ctx, size, apartment)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.Root().Writer, result.Message())
			return nil
		},
	}
}
