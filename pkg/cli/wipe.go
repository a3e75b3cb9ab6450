package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func wipeCommand() *cli.Command {
	var (
		cfg          config
		userID       string
		visual       bool
		conversation bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User ID whose history is wiped",
			Sources:     cli.EnvVars("MIRU_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.BoolFlag{
			Name:        "visual",
			Usage:       "Wipe visual history only",
			Sources:     cli.EnvVars("MIRU_WIPE_VISUAL"),
			Destination: &visual,
		},
		&cli.BoolFlag{
			Name:        "conversation",
			Usage:       "Wipe conversation history only",
			Sources:     cli.EnvVars("MIRU_WIPE_CONVERSATION"),
			Destination: &conversation,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "wipe",
		Usage: "Clear a user's visual and/or conversation history",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			// Neither flag set means wipe both.
			wipeVisual := visual || !conversation
			wipeConversation := conversation || !visual

			if wipeVisual {
				if err := repo.WipeRecords(ctx, userID); err != nil {
					return goerr.Wrap(err, "failed to wipe visual history")
				}
				fmt.Fprintf(c.Root().Writer, "Visual history cleared\n")
			}
			if wipeConversation {
				if err := repo.WipeMessages(ctx, userID); err != nil {
					return goerr.Wrap(err, "failed to wipe conversation history")
				}
				fmt.Fprintf(c.Root().Writer, "Conversation history cleared\n")
			}
			return nil
		},
	}
}
