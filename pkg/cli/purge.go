package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/model"
	"github.com/urfave/cli/v3"
)

func purgeCommand() *cli.Command {
	var (
		cfg      config
		recordID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "record-id",
			Aliases:     []string{"i"},
			Usage:       "Record ID to purge duplicates of",
			Sources:     cli.EnvVars("MIRU_RECORD_ID"),
			Destination: &recordID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "purge",
		Usage: "Scan a user's full visual history for duplicates of a record",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			engine, err := cfg.newEngine(repo, gemini)
			if err != nil {
				return err
			}

			deleted, err := engine.Purge(ctx, model.RecordID(recordID))
			if err != nil {
				return goerr.Wrap(err, "failed to purge duplicates")
			}

			if len(deleted) == 0 {
				fmt.Fprintf(c.Root().Writer, "No duplicates found\n")
				return nil
			}
			fmt.Fprintf(c.Root().Writer, "Deleted %d duplicate records:\n", len(deleted))
			for _, id := range deleted {
				fmt.Fprintf(c.Root().Writer, "  %s\n", id)
			}
			return nil
		},
	}
}
