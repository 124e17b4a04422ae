package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func spotsCommand() *cli.Command {
	var (
		cfg     config
		summary bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "summary",
			Usage:       "Show occupancy per size instead of every spot",
			Destination: &summary,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "spots",
		Usage: "List shelf spots and their occupants",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			w := c.Root().Writer

			if summary {
				sizes, err := a.inventory.Summary(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to summarize spots")
				}
				for _, s := range sizes {
					fmt.Fprintf(w, "%s\t%d/%d occupied\n", s.Size, s.Occupied, s.Total)
				}
				return nil
			}

			spots, err := a.inventory.List(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list spots")
			}
			for _, s := range spots {
				status := "free"
				if s.Occupied {
					status = "held for " + s.Occupant
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Size, s.Location, status)
			}
			return nil
		},
	}
}
