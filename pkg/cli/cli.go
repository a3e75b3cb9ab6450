package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "miru",
		Usage: "Visual memory assistant backend",
		Commands: []*cli.Command{
			ingestCommand(),
			contextCommand(),
			historyCommand(),
			searchCommand(),
			purgeCommand(),
			chatCommand(),
			wipeCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
