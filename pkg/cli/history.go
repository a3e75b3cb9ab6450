package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/usecase/vision"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User ID to show history for",
			Sources:     cli.EnvVars("MIRU_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "Show a user's visual history",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, closer, err := newVisionUseCase(ctx, &cfg)
			if err != nil {
				return err
			}
			defer closer()

			entries, err := uc.History(ctx, userID)
			if err != nil {
				return goerr.Wrap(err, "failed to fetch history")
			}

			printEntries(c, entries)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	var (
		cfg    config
		userID string
		limit  int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User ID to search history for",
			Sources:     cli.EnvVars("MIRU_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of matching contexts to show",
			Value:       10,
			Sources:     cli.EnvVars("MIRU_SEARCH_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search a user's visual history by keywords",
		ArgsUsage: "<keyword> [keyword...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			keywords := c.Args().Slice()
			if len(keywords) == 0 {
				return goerr.New("at least one keyword is required")
			}

			uc, closer, err := newVisionUseCase(ctx, &cfg)
			if err != nil {
				return err
			}
			defer closer()

			entries, err := uc.Search(ctx, userID, keywords, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to search history")
			}

			printEntries(c, entries)
			return nil
		},
	}
}

func printEntries(c *cli.Command, entries []*vision.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(c.Root().Writer, "No visual contexts found\n")
		return
	}

	for i, e := range entries {
		fmt.Fprintf(c.Root().Writer, "%d. [%s] %s\n", i+1, e.RelativeTime, e.Context.ImageLocation)
		fmt.Fprintf(c.Root().Writer, "   %s\n", e.Context.Description)
		for j := range e.Context.Items {
			item := &e.Context.Items[j]
			fmt.Fprintf(c.Root().Writer, "   - %s (%s, %s)\n", item.Name, item.Color, item.Location)
		}
		fmt.Fprintf(c.Root().Writer, "\n")
	}
}
