package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

func cmdProcess() *cli.Command {
	var (
		configPath string

		llmCfg   config.LLM
		repoCfg  config.Repository
		transCfg config.Transcriber
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Application config file (TOML)",
			Sources:     cli.EnvVars("PILOT_CONFIG"),
			Destination: &configPath,
		},
	}
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, transCfg.Flags()...)

	return &cli.Command{
		Name:      "process",
		Aliases:   []string{"p"},
		Usage:     "Run the pipeline over an already-recorded WAV file",
		ArgsUsage: "<file.wav>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return goerr.New("audio file argument is required")
			}

			// The batch path carries the authority; streaming display
			// adds nothing for an offline file.
			uc, closer, err := buildUseCases(ctx, configPath, &llmCfg, &repoCfg, &transCfg, false)
			if err != nil {
				return err
			}
			defer closer()

			appCfg, err := config.LoadAppConfig(configPath)
			if err != nil {
				return err
			}

			session, reportPath, err := uc.ProcessFile(ctx, path, appCfg.UserIdentity())
			if err != nil {
				return err
			}

			printSummary(session, reportPath)
			return nil
		},
	}
}
