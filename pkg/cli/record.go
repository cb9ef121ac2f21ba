package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/cli/config"
	httpctrl "github.com/secmon-lab/pilot/pkg/controller/http"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/service/analyze"
	"github.com/secmon-lab/pilot/pkg/service/audio"
	"github.com/secmon-lab/pilot/pkg/service/notify"
	"github.com/secmon-lab/pilot/pkg/usecase"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
	"github.com/secmon-lab/pilot/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdRecord() *cli.Command {
	var (
		input      string
		sampleRate int
		addr       string
		configPath string

		llmCfg   config.LLM
		repoCfg  config.Repository
		transCfg config.Transcriber
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Usage:       "Audio input: '-' for raw PCM16 on stdin, or a WAV file path",
			Value:       "-",
			Sources:     cli.EnvVars("PILOT_INPUT"),
			Destination: &input,
		},
		&cli.IntFlag{
			Name:        "sample-rate",
			Usage:       "Sample rate of the stdin PCM stream in Hz",
			Value:       16000,
			Sources:     cli.EnvVars("PILOT_SAMPLE_RATE"),
			Destination: &sampleRate,
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Local HTTP API address (empty disables the API)",
			Value:       "127.0.0.1:7777",
			Sources:     cli.EnvVars("PILOT_ADDR"),
			Destination: &addr,
		},
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
		Name:    "record",
		Aliases: []string{"r"},
		Usage:   "Capture a meeting and build its report",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := buildUseCases(ctx, configPath, &llmCfg, &repoCfg, &transCfg, true)
			if err != nil {
				return err
			}
			defer closer()

			appCfg, err := config.LoadAppConfig(configPath)
			if err != nil {
				return err
			}

			source, err := openSource(input, sampleRate)
			if err != nil {
				return err
			}
			defer safe.Close(ctx, source)

			recorder := uc.NewRecorder(appCfg.UserIdentity())

			if addr != "" {
				shutdown := startAPI(ctx, addr, uc, recorder)
				defer shutdown()
			}

			// First interrupt stops gracefully, second one aborts
			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-sigCh:
					logging.Default().Info("stopping, finishing in-flight chunks")
					recorder.Stop()
				case <-runCtx.Done():
					return
				}
				select {
				case <-sigCh:
					logging.Default().Warn("second interrupt, aborting")
					cancel()
				case <-runCtx.Done():
				}
			}()

			go displayEvents(recorder)

			session, err := recorder.Run(runCtx, source)
			if err != nil {
				return err
			}

			printSummary(session, recorder.ReportPath())
			return nil
		},
	}
}

// buildUseCases wires the shared dependency set for the pipeline commands.
// The returned closer releases the memory store.
func buildUseCases(ctx context.Context, configPath string, llmCfg *config.LLM, repoCfg *config.Repository, transCfg *config.Transcriber, withStream bool) (*usecase.UseCases, func(), error) {
	appCfg, err := config.LoadAppConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

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
	if llmClient == nil {
		closer()
		return nil, nil, goerr.New("LLM provider is not configured")
	}
	analyzer, err := analyze.New(llmClient,
		analyze.WithSystemContext(appCfg.Analysis.SystemContext))
	if err != nil {
		closer()
		return nil, nil, err
	}

	batch, err := transCfg.Configure()
	if err != nil {
		closer()
		return nil, nil, err
	}

	opts := []usecase.Option{
		usecase.WithConfig(appCfg.PipelineConfig()),
		usecase.WithNotifier(notify.NewConsole()),
	}
	if withStream {
		if stream := transCfg.ConfigureStream(); stream != nil {
			opts = append(opts, usecase.WithStreamTranscriber(stream))
		}
	}

	return usecase.New(store, batch, analyzer, opts...), closer, nil
}

func openSource(input string, sampleRate int) (interfaces.AudioSource, error) {
	if input == "-" || input == "" {
		return audio.NewReaderSource(os.Stdin, sampleRate)
	}
	return audio.OpenFile(input)
}

func startAPI(ctx context.Context, addr string, uc *usecase.UseCases, recorder *usecase.Recorder) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpctrl.New(uc, httpctrl.WithRecorder(recorder)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Default().Info("local API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Default().Error("local API failed", "error", err.Error())
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// displayEvents mirrors the live feed onto the terminal
func displayEvents(recorder *usecase.Recorder) {
	events, cancel := recorder.Feed().Subscribe()
	defer cancel()

	dim := color.New(color.Faint)
	state := color.New(color.FgCyan)

	for ev := range events {
		switch ev.Type {
		case model.EventStreamingText:
			dim.Fprintf(os.Stdout, "… %s\n", ev.Text)
		case model.EventChunkCommitted:
			fmt.Fprintf(os.Stdout, "%s\n", ev.Text)
		case model.EventStateChanged:
			state.Fprintf(os.Stdout, "-- %s --\n", ev.State)
		}
	}
}

func printSummary(session *model.Session, reportPath string) {
	bold := color.New(color.Bold)

	fmt.Println()
	bold.Printf("Session %s: %s\n", session.ID, session.Status)
	fmt.Printf("  duration:        %s\n", session.Duration().Round(time.Second))
	fmt.Printf("  chunks:          %d (%d gaps)\n", len(session.Chunks), len(session.GapChunks()))
	fmt.Printf("  action items:    %d\n", len(session.ActionItems))
	fmt.Printf("  decisions:       %d\n", len(session.Decisions))
	fmt.Printf("  clarifications:  %d\n", len(session.Clarifications))
	if session.Synopsis != "" {
		fmt.Printf("\n%s\n", session.Synopsis)
	}
	if reportPath != "" {
		bold.Printf("\nReport: %s\n", reportPath)
	}
	if session.AudioPath != "" {
		fmt.Printf("Recording: %s\n", session.AudioPath)
	}
}
