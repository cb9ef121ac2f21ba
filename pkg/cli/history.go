package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/secmon-lab/pilot/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

func cmdHistory() *cli.Command {
	var (
		limit int

		llmCfg  config.LLM
		repoCfg config.Repository
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of sessions to list (0 for all)",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "history",
		Usage: "List stored sessions, most recent first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := buildMemoryUseCases(ctx, &llmCfg, &repoCfg)
			if err != nil {
				return err
			}
			defer closer()

			records, err := uc.History(ctx, limit)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("No stored sessions.")
				return nil
			}

			title := color.New(color.Bold)
			for _, r := range records {
				title.Printf("%s", r.SessionID)
				fmt.Printf("  %s\n", r.Title)
				if r.Summary != "" {
					fmt.Printf("    %s\n", r.Summary)
				}
			}
			return nil
		},
	}
}
