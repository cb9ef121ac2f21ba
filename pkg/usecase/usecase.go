package usecase

import (
	"time"

	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/service/notify"
	"github.com/secmon-lab/pilot/pkg/service/report"
	"github.com/secmon-lab/pilot/pkg/utils/retry"
)

type UseCases struct {
	store    interfaces.MemoryStore
	batch    interfaces.BatchTranscriber
	stream   interfaces.StreamTranscriber
	analyzer interfaces.Analyzer
	notifier interfaces.Notifier
	renderer interfaces.Renderer
	config   Config
}

// Config carries the pipeline tuning knobs. Zero values fall back to the
// defaults in DefaultConfig via normalize.
type Config struct {
	ChunkDuration time.Duration

	// Confidence annotation thresholds
	ConfidenceThreshold float64
	VeryLowThreshold    float64
	MinSpanWords        int

	// MaxInFlight bounds concurrently processing chunks; the producer
	// blocks when the bound is reached.
	MaxInFlight int64

	FinalizeTimeout time.Duration

	// SilenceTimeout auto-stops recording after continuous inactivity.
	// Zero disables the monitor.
	SilenceTimeout time.Duration

	// Analyzer rolling context
	ContextWindow int
	MaxPriorItems int

	// PrimingWindow is how many recent sessions feed the pre-session
	// memory context summary
	PrimingWindow int

	Retry retry.Policy

	// OutputDir is where session reports and recordings are written
	OutputDir string
}

// DefaultConfig returns the tuned pipeline defaults
func DefaultConfig() Config {
	return Config{
		ChunkDuration:       30 * time.Second,
		ConfidenceThreshold: 0.70,
		VeryLowThreshold:    0.50,
		MinSpanWords:        3,
		MaxInFlight:         4,
		FinalizeTimeout:     120 * time.Second,
		SilenceTimeout:      0,
		ContextWindow:       3,
		MaxPriorItems:       5,
		PrimingWindow:       5,
		Retry:               retry.DefaultPolicy(),
		OutputDir:           ".",
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.ChunkDuration <= 0 {
		c.ChunkDuration = def.ChunkDuration
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if c.VeryLowThreshold <= 0 {
		c.VeryLowThreshold = def.VeryLowThreshold
	}
	if c.MinSpanWords <= 0 {
		c.MinSpanWords = def.MinSpanWords
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = def.MaxInFlight
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = def.FinalizeTimeout
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = def.ContextWindow
	}
	if c.MaxPriorItems <= 0 {
		c.MaxPriorItems = def.MaxPriorItems
	}
	if c.PrimingWindow <= 0 {
		c.PrimingWindow = def.PrimingWindow
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = def.Retry
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	return c
}

type Option func(*UseCases)

// WithStreamTranscriber enables the low-latency display path
func WithStreamTranscriber(st interfaces.StreamTranscriber) Option {
	return func(uc *UseCases) {
		uc.stream = st
	}
}

func WithNotifier(n interfaces.Notifier) Option {
	return func(uc *UseCases) {
		uc.notifier = n
	}
}

func WithRenderer(r interfaces.Renderer) Option {
	return func(uc *UseCases) {
		uc.renderer = r
	}
}

func WithConfig(cfg Config) Option {
	return func(uc *UseCases) {
		uc.config = cfg
	}
}

func New(store interfaces.MemoryStore, batch interfaces.BatchTranscriber, analyzer interfaces.Analyzer, opts ...Option) *UseCases {
	uc := &UseCases{
		store:    store,
		batch:    batch,
		analyzer: analyzer,
		config:   DefaultConfig(),
	}

	for _, opt := range opts {
		opt(uc)
	}
	uc.config = uc.config.normalize()

	if uc.notifier == nil {
		uc.notifier = notify.Discard{}
	}
	if uc.renderer == nil {
		uc.renderer = report.NewMarkdown(report.WithChunkDuration(uc.config.ChunkDuration))
	}

	return uc
}

// Config returns the normalized pipeline configuration
func (uc *UseCases) Config() Config {
	return uc.config
}
