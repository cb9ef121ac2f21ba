package config

import (
	"log/slog"

	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/service/transcribe"
	"github.com/urfave/cli/v3"
)

// Transcriber holds CLI flags for the transcription provider endpoints
type Transcriber struct {
	endpoint       string
	streamEndpoint string
	apiKey         string
	language       string
}

// Flags returns CLI flags for transcriber configuration
func (t *Transcriber) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "transcribe-endpoint",
			Usage:       "Batch transcription HTTP endpoint",
			Required:    true,
			Sources:     cli.EnvVars("PILOT_TRANSCRIBE_ENDPOINT"),
			Destination: &t.endpoint,
		},
		&cli.StringFlag{
			Name:        "transcribe-stream-endpoint",
			Usage:       "Streaming transcription websocket endpoint (empty disables streaming)",
			Sources:     cli.EnvVars("PILOT_TRANSCRIBE_STREAM_ENDPOINT"),
			Destination: &t.streamEndpoint,
		},
		&cli.StringFlag{
			Name:        "transcribe-api-key",
			Usage:       "Transcription provider API key",
			Sources:     cli.EnvVars("PILOT_TRANSCRIBE_API_KEY"),
			Destination: &t.apiKey,
		},
		&cli.StringFlag{
			Name:        "transcribe-language",
			Usage:       "Transcription language hint",
			Sources:     cli.EnvVars("PILOT_TRANSCRIBE_LANGUAGE"),
			Destination: &t.language,
		},
	}
}

// LogAttrs returns log attributes for the transcriber configuration. The
// API key is never logged.
func (t *Transcriber) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("endpoint", t.endpoint),
		slog.String("stream_endpoint", t.streamEndpoint),
		slog.Bool("api_key_set", t.apiKey != ""),
		slog.String("language", t.language),
	}
}

// Configure creates the batch transcription client
func (t *Transcriber) Configure() (interfaces.BatchTranscriber, error) {
	var opts []transcribe.ClientOption
	if t.language != "" {
		opts = append(opts, transcribe.WithLanguage(t.language))
	}
	return transcribe.NewClient(t.endpoint, t.apiKey, opts...)
}

// ConfigureStream creates the streaming transcription client. Returns nil
// when no streaming endpoint is configured.
func (t *Transcriber) ConfigureStream() interfaces.StreamTranscriber {
	if t.streamEndpoint == "" {
		return nil
	}
	return transcribe.NewStreamClient(t.streamEndpoint, t.apiKey)
}
