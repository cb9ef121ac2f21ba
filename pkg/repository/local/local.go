package local

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/repository/memory"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
)

// Sentinel errors for the local file store
var (
	ErrCorrupted = goerr.New("memory file is corrupted")
	ErrClosed    = goerr.New("local store is closed")
)

// Store is a durable MemoryStore backed by a single JSON file. Writes are
// atomic (temp file, verify, backup, rename) so a crash mid-write leaves
// either the previous file or the new one, never a torn state. A corrupted
// main file is recovered from the .bak backup; when both are unreadable the
// store starts fresh rather than failing.
type Store struct {
	mu      sync.RWMutex
	path    string
	records []*model.MemoryRecord
	closed  bool
}

var _ interfaces.MemoryStore = &Store{}

type fileFormat struct {
	Records []*model.MemoryRecord `json:"records"`
}

// New opens (or creates) the store at path
func New(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, goerr.Wrap(err, "failed to create store directory", goerr.V("path", path))
	}

	s := &Store{path: path}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	logger := logging.From(ctx)

	records, err := readRecords(s.path)
	if err == nil {
		s.records = records
		logger.Info("Loaded memory store", "path", s.path, "records", len(records))
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("No existing memory file, starting fresh", "path", s.path)
		return nil
	}

	logger.Error("Memory file unreadable, trying backup", "path", s.path, "error", err.Error())

	backup, backupErr := readRecords(s.path + ".bak")
	if backupErr != nil {
		logger.Warn("Backup also unreadable, starting with fresh memory", "error", backupErr.Error())
		s.records = nil
		return nil
	}

	s.records = backup
	logger.Info("Recovered memory store from backup", "records", len(backup))
	return nil
}

func readRecords(path string) ([]*model.MemoryRecord, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read memory file", goerr.V("path", path))
	}

	var content fileFormat
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, goerr.Wrap(ErrCorrupted, "failed to parse memory file",
			goerr.V("path", path), goerr.V("cause", err.Error()))
	}
	if content.Records == nil {
		content.Records = []*model.MemoryRecord{}
	}
	return content.Records, nil
}

// flush writes the full record set atomically: temp write, readback
// verification, backup of the previous file, then rename.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(fileFormat{Records: s.records}, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal memory records")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return goerr.Wrap(err, "failed to write temp memory file", goerr.V("path", tmp))
	}

	if _, err := readRecords(tmp); err != nil {
		_ = os.Remove(tmp)
		return goerr.Wrap(err, "temp memory file failed verification")
	}

	if _, err := os.Stat(s.path); err == nil {
		if data, err := os.ReadFile(s.path); err == nil { // #nosec G304
			_ = os.WriteFile(s.path+".bak", data, 0o600)
		}
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return goerr.Wrap(err, "failed to replace memory file", goerr.V("path", s.path))
	}
	return nil
}

// Put appends a record and persists the store
func (s *Store) Put(ctx context.Context, record *model.MemoryRecord) (model.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", goerr.Wrap(ErrClosed, "cannot put record")
	}

	stored := *record
	if stored.Embedding != nil {
		stored.Embedding = append([]float32(nil), record.Embedding...)
	}
	if stored.ID == "" {
		stored.ID = model.NewRecordID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.records = append(s.records, &stored)
	if err := s.flush(); err != nil {
		// Roll back the in-memory append so memory and disk stay in sync
		s.records = s.records[:len(s.records)-1]
		return "", err
	}
	return stored.ID, nil
}

// Query ranks records by similarity, recency breaking ties
func (s *Store) Query(ctx context.Context, text string, embedding []float32, scope model.QueryScope, limit int) ([]*model.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, goerr.Wrap(ErrClosed, "cannot query")
	}

	return memory.Rank(s.records, text, embedding, scope, limit), nil
}

// List returns all records of the given kind, most recent first
func (s *Store) List(ctx context.Context, kind model.RecordKind) ([]*model.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, goerr.Wrap(ErrClosed, "cannot list")
	}

	var result []*model.MemoryRecord
	for _, r := range s.records {
		if r.Kind == kind {
			copied := *r
			result = append(result, &copied)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Close marks the store closed. Data is already on disk after every Put.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
