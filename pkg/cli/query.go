package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/cli/config"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/service/analyze"
	"github.com/secmon-lab/pilot/pkg/usecase"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdQuery() *cli.Command {
	var (
		scope string
		limit int

		llmCfg  config.LLM
		repoCfg config.Repository
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "scope",
			Usage:       "Search scope (all, sessions, or documents)",
			Value:       "all",
			Sources:     cli.EnvVars("PILOT_QUERY_SCOPE"),
			Destination: &scope,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of results",
			Value:       5,
			Destination: &limit,
		},
	}
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:      "query",
		Aliases:   []string{"q"},
		Usage:     "Search past sessions and documents",
		ArgsUsage: "<query text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				return goerr.New("query text argument is required")
			}

			uc, closer, err := buildMemoryUseCases(ctx, &llmCfg, &repoCfg)
			if err != nil {
				return err
			}
			defer closer()

			records, err := uc.Query(ctx, text, model.QueryScope(scope), limit)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("No matching records.")
				return nil
			}

			title := color.New(color.Bold)
			meta := color.New(color.Faint)
			for _, r := range records {
				title.Printf("%s\n", r.Title)
				meta.Printf("  %s · %s\n", r.Kind, r.CreatedAt.Local().Format("2006-01-02 15:04"))
				if r.Summary != "" {
					fmt.Printf("  %s\n", r.Summary)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

// buildMemoryUseCases wires the dependency set for the memory-only commands
// (query, ingest, history), which need no transcription provider.
func buildMemoryUseCases(ctx context.Context, llmCfg *config.LLM, repoCfg *config.Repository) (*usecase.UseCases, func(), error) {
	store, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize memory store")
	}
	closer := func() {
		if err := store.Close(); err != nil {
			logging.Default().Error("failed to close memory store", "error", err.Error())
		}
	}

	llmClient, err := llmCfg.Configure(ctx)
	if err != nil {
		closer()
		return nil, nil, err
	}

	// Without a model, queries fall back to term matching
	var analyzer interfaces.Analyzer
	if llmClient != nil {
		svc, err := analyze.New(llmClient)
		if err != nil {
			closer()
			return nil, nil, err
		}
		analyzer = svc
	}

	return usecase.New(store, nil, analyzer), closer, nil
}
