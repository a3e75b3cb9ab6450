package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/usecase/vision"
	"github.com/urfave/cli/v3"
)

func ingestCommand() *cli.Command {
	var (
		cfg       config
		userID    string
		imagePath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User ID owning the snapshot",
			Sources:     cli.EnvVars("MIRU_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "image",
			Aliases:     []string{"i"},
			Usage:       "Path to the snapshot image file",
			Sources:     cli.EnvVars("MIRU_IMAGE"),
			Destination: &imagePath,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Extract visual context from a snapshot image and store it",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			image, err := os.ReadFile(imagePath)
			if err != nil {
				return goerr.Wrap(err, "failed to read image file", goerr.Value("path", imagePath))
			}

			mimeType := mime.TypeByExtension(filepath.Ext(imagePath))
			if mimeType == "" {
				mimeType = "image/png"
			}

			uc, closer, err := newVisionUseCase(ctx, &cfg)
			if err != nil {
				return err
			}
			defer closer()

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " Analyzing snapshot..."
			sp.Start()
			result, err := uc.IngestImage(ctx, userID, image, mimeType)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to ingest snapshot")
			}

			printIngestResult(c, result)
			return nil
		},
	}
}

func contextCommand() *cli.Command {
	var (
		cfg       config
		userID    string
		inputPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User ID owning the snapshot",
			Sources:     cli.EnvVars("MIRU_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing a pre-extracted visual context",
			Sources:     cli.EnvVars("MIRU_INPUT"),
			Destination: &inputPath,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "context",
		Usage: "Store a pre-extracted visual context from JSON input",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			vc, err := readVisualContext(inputPath)
			if err != nil {
				return err
			}

			uc, closer, err := newVisionUseCase(ctx, &cfg)
			if err != nil {
				return err
			}
			defer closer()

			result, err := uc.SaveContext(ctx, userID, vc, nil)
			if err != nil {
				return goerr.Wrap(err, "failed to save visual context")
			}

			printIngestResult(c, result)
			return nil
		},
	}
}

func printIngestResult(c *cli.Command, result *vision.IngestResult) {
	fmt.Fprintf(c.Root().Writer, "Visual record created: %s (%d items)\n",
		result.Record.ID, len(result.Record.Context.Items))
	if result.DeletedID != "" {
		fmt.Fprintf(c.Root().Writer, "Suppressed near-duplicate record: %s\n", result.DeletedID)
	}
}
