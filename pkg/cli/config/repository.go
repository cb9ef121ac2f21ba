package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/repository/local"
	"github.com/secmon-lab/pilot/pkg/repository/memory"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for memory store backend configuration
type Repository struct {
	backend string
	path    string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "memory-backend",
			Usage:       "Memory store backend (local or memory)",
			Value:       "local",
			Sources:     cli.EnvVars("PILOT_MEMORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "memory-path",
			Usage:       "Path of the local memory store file",
			Sources:     cli.EnvVars("PILOT_MEMORY_PATH"),
			Destination: &r.path,
		},
	}
}

// LogAttrs returns log attributes for the repository configuration
func (r *Repository) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", r.backend),
		slog.String("path", r.path),
	}
}

// Configure creates the memory store for the selected backend
func (r *Repository) Configure(ctx context.Context) (interfaces.MemoryStore, error) {
	switch r.backend {
	case "memory":
		return memory.New(), nil

	case "local", "":
		path := r.path
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, goerr.Wrap(err, "failed to resolve home directory")
			}
			path = filepath.Join(home, ".pilot", "memory.json")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, goerr.Wrap(err, "failed to create memory store directory",
				goerr.V("path", path))
		}
		store, err := local.New(ctx, path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open local memory store",
				goerr.V("path", path))
		}
		return store, nil

	default:
		return nil, goerr.New("unknown memory backend", goerr.V("backend", r.backend))
	}
}
