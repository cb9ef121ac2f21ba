package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/usecase"
	"github.com/secmon-lab/pilot/pkg/utils/retry"
)

// AppConfig is the TOML application configuration: the user identity, the
// pipeline tuning knobs, and provider rate limits. Everything has a default
// so an empty file, or no file at all, is valid.
type AppConfig struct {
	Identity  Identity  `toml:"identity"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Retry     Retry     `toml:"retry"`
	RateLimit RateLimit `toml:"rate_limit"`
	Analysis  Analysis  `toml:"analysis"`
}

// Identity is the configured user identity
type Identity struct {
	Name       string   `toml:"name"`
	Variations []string `toml:"variations"`
}

// Pipeline holds the capture and commit tuning knobs
type Pipeline struct {
	ChunkDurationSec    int     `toml:"chunk_duration_sec"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	VeryLowThreshold    float64 `toml:"very_low_threshold"`
	MinSpanWords        int     `toml:"min_span_words"`
	MaxInFlight         int     `toml:"max_in_flight"`
	FinalizeTimeoutSec  int     `toml:"finalize_timeout_sec"`
	SilenceTimeoutSec   int     `toml:"silence_timeout_sec"`
	ContextWindow       int     `toml:"context_window"`
	MaxPriorItems       int     `toml:"max_prior_items"`
	PrimingWindow       int     `toml:"priming_window"`
	OutputDir           string  `toml:"output_dir"`
}

// Retry holds the provider retry budget
type Retry struct {
	MaxAttempts  int `toml:"max_attempts"`
	BaseDelaySec int `toml:"base_delay_sec"`
	MaxDelaySec  int `toml:"max_delay_sec"`
}

// RateLimit holds the provider call rate limit and circuit breaker
type RateLimit struct {
	CallsPerMinute     int `toml:"calls_per_minute"`
	BreakerThreshold   int `toml:"breaker_threshold"`
	BreakerCooldownSec int `toml:"breaker_cooldown_sec"`
}

// Analysis holds prompt-level configuration
type Analysis struct {
	// SystemContext is free-form background injected into analysis
	// prompts (key people, product, focus areas)
	SystemContext string `toml:"system_context"`
}

// Validate checks the configuration for inconsistent values
func (a *AppConfig) Validate() error {
	p := a.Pipeline
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return goerr.New("confidence_threshold must be within [0, 1]",
			goerr.V("value", p.ConfidenceThreshold))
	}
	if p.VeryLowThreshold < 0 || p.VeryLowThreshold > 1 {
		return goerr.New("very_low_threshold must be within [0, 1]",
			goerr.V("value", p.VeryLowThreshold))
	}
	if p.VeryLowThreshold > p.ConfidenceThreshold && p.ConfidenceThreshold > 0 {
		return goerr.New("very_low_threshold must not exceed confidence_threshold",
			goerr.V("very_low", p.VeryLowThreshold),
			goerr.V("threshold", p.ConfidenceThreshold))
	}
	if p.ChunkDurationSec < 0 {
		return goerr.New("chunk_duration_sec must not be negative",
			goerr.V("value", p.ChunkDurationSec))
	}
	if p.MaxInFlight < 0 {
		return goerr.New("max_in_flight must not be negative",
			goerr.V("value", p.MaxInFlight))
	}
	if a.Retry.MaxAttempts < 0 {
		return goerr.New("max_attempts must not be negative",
			goerr.V("value", a.Retry.MaxAttempts))
	}
	return nil
}

// UserIdentity converts the configured identity to the domain model
func (a *AppConfig) UserIdentity() model.Identity {
	return model.Identity{
		Name:       a.Identity.Name,
		Variations: a.Identity.Variations,
	}
}

// PipelineConfig converts the TOML values to the pipeline configuration.
// Zero values fall through to the pipeline defaults.
func (a *AppConfig) PipelineConfig() usecase.Config {
	cfg := usecase.Config{
		ChunkDuration:       time.Duration(a.Pipeline.ChunkDurationSec) * time.Second,
		ConfidenceThreshold: a.Pipeline.ConfidenceThreshold,
		VeryLowThreshold:    a.Pipeline.VeryLowThreshold,
		MinSpanWords:        a.Pipeline.MinSpanWords,
		MaxInFlight:         int64(a.Pipeline.MaxInFlight),
		FinalizeTimeout:     time.Duration(a.Pipeline.FinalizeTimeoutSec) * time.Second,
		SilenceTimeout:      time.Duration(a.Pipeline.SilenceTimeoutSec) * time.Second,
		ContextWindow:       a.Pipeline.ContextWindow,
		MaxPriorItems:       a.Pipeline.MaxPriorItems,
		PrimingWindow:       a.Pipeline.PrimingWindow,
		OutputDir:           a.Pipeline.OutputDir,
	}

	policy := retry.DefaultPolicy()
	if a.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = a.Retry.MaxAttempts
	}
	if a.Retry.BaseDelaySec > 0 {
		policy.BaseDelay = time.Duration(a.Retry.BaseDelaySec) * time.Second
	}
	if a.Retry.MaxDelaySec > 0 {
		policy.MaxDelay = time.Duration(a.Retry.MaxDelaySec) * time.Second
	}
	policy.RateLimiter = a.rateLimiter()
	cfg.Retry = policy

	return cfg
}

func (a *AppConfig) rateLimiter() *retry.RateLimiter {
	rl := a.RateLimit
	callsPerMinute := rl.CallsPerMinute
	if callsPerMinute <= 0 {
		callsPerMinute = 10
	}
	threshold := rl.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	cooldown := time.Duration(rl.BreakerCooldownSec) * time.Second
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return retry.NewRateLimiter(callsPerMinute, threshold, cooldown)
}

// LoadAppConfig loads the application configuration from a TOML file. An
// empty path returns the zero configuration, which resolves to defaults.
func LoadAppConfig(path string) (*AppConfig, error) {
	var config AppConfig
	if path == "" {
		return &config, nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V("path", path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V("path", path))
	}

	return &config, nil
}
