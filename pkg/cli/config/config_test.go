package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/pilot/pkg/cli/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0644)).Required()
	return path
}

func TestLoadAppConfig(t *testing.T) {
	path := writeConfig(t, `
[identity]
name = "Mizuki"
variations = ["Mizukee", "Mizuky"]

[pipeline]
chunk_duration_sec = 20
confidence_threshold = 0.8
max_in_flight = 2
output_dir = "out"

[retry]
max_attempts = 5
base_delay_sec = 2

[rate_limit]
calls_per_minute = 30

[analysis]
system_context = "Working on the pilot project."
`)

	cfg, err := config.LoadAppConfig(path)
	gt.NoError(t, err).Required()

	identity := cfg.UserIdentity()
	gt.Value(t, identity.Name).Equal("Mizuki")
	gt.Array(t, identity.Variations).Length(2)
	gt.Value(t, cfg.Analysis.SystemContext).Equal("Working on the pilot project.")

	pipeline := cfg.PipelineConfig()
	gt.Value(t, pipeline.ChunkDuration).Equal(20 * time.Second)
	gt.Value(t, pipeline.ConfidenceThreshold).Equal(0.8)
	gt.Value(t, pipeline.MaxInFlight).Equal(int64(2))
	gt.Value(t, pipeline.OutputDir).Equal("out")
	gt.Value(t, pipeline.Retry.MaxAttempts).Equal(5)
	gt.Value(t, pipeline.Retry.BaseDelay).Equal(2 * time.Second)
	gt.Value(t, pipeline.Retry.RateLimiter != nil).Equal(true)
}

func TestLoadAppConfigEmptyPath(t *testing.T) {
	cfg, err := config.LoadAppConfig("")
	gt.NoError(t, err).Required()
	gt.Value(t, cfg.UserIdentity().IsZero()).Equal(true)

	// Zero TOML values resolve to pipeline defaults
	pipeline := cfg.PipelineConfig()
	gt.Value(t, pipeline.ChunkDuration).Equal(time.Duration(0))
	gt.Value(t, pipeline.Retry.MaxAttempts).Equal(3)
}

func TestLoadAppConfigMissingFile(t *testing.T) {
	_, err := config.LoadAppConfig(filepath.Join(t.TempDir(), "absent.toml"))
	gt.Value(t, err).NotNil()
}

func TestLoadAppConfigInvalidTOML(t *testing.T) {
	path := writeConfig(t, "identity = not valid toml [")
	_, err := config.LoadAppConfig(path)
	gt.Value(t, err).NotNil()
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := []string{
		"[pipeline]\nconfidence_threshold = 1.5\n",
		"[pipeline]\nvery_low_threshold = -0.1\n",
		"[pipeline]\nconfidence_threshold = 0.5\nvery_low_threshold = 0.7\n",
		"[pipeline]\nchunk_duration_sec = -1\n",
		"[pipeline]\nmax_in_flight = -2\n",
		"[retry]\nmax_attempts = -1\n",
	}
	for _, body := range cases {
		path := writeConfig(t, body)
		_, err := config.LoadAppConfig(path)
		gt.Value(t, err).NotNil()
	}
}
