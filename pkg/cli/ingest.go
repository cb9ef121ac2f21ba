package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

func cmdIngest() *cli.Command {
	var (
		title string

		llmCfg  config.LLM
		repoCfg config.Repository
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "title",
			Usage:       "Document title (defaults to the file name)",
			Destination: &title,
		},
	}
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Store a reference document in session memory",
		ArgsUsage: "<file>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return goerr.New("document file argument is required")
			}

			// #nosec G304 - path comes from CLI argument
			data, err := os.ReadFile(path)
			if err != nil {
				return goerr.Wrap(err, "failed to read document", goerr.V("path", path))
			}

			uc, closer, err := buildMemoryUseCases(ctx, &llmCfg, &repoCfg)
			if err != nil {
				return err
			}
			defer closer()

			docTitle := title
			if docTitle == "" {
				docTitle = filepath.Base(path)
			}

			status, err := uc.Ingest(ctx, path, docTitle, string(data))
			if err != nil {
				return err
			}

			fmt.Printf("%s: %s\n", status, docTitle)
			return nil
		},
	}
}
