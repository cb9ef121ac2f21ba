package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
)

// Sentinel errors for the in-memory store
var (
	ErrClosed = goerr.New("memory store is closed")
)

// Store is an in-process MemoryStore used for tests and ephemeral runs.
// Append-only: records are copied on write and on read, so a query never
// observes a record mid-write.
type Store struct {
	mu      sync.RWMutex
	records []*model.MemoryRecord
	closed  bool
}

var _ interfaces.MemoryStore = &Store{}

// New creates an empty in-process store
func New() *Store {
	return &Store{}
}

func copyRecord(r *model.MemoryRecord) *model.MemoryRecord {
	copied := *r
	if r.Embedding != nil {
		copied.Embedding = make([]float32, len(r.Embedding))
		copy(copied.Embedding, r.Embedding)
	}
	return &copied
}

// Put appends a record, generating an ID and timestamp when missing
func (s *Store) Put(ctx context.Context, record *model.MemoryRecord) (model.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", goerr.Wrap(ErrClosed, "cannot put record")
	}

	stored := copyRecord(record)
	if stored.ID == "" {
		stored.ID = model.NewRecordID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.records = append(s.records, stored)
	return stored.ID, nil
}

// Query ranks records by similarity, recency breaking ties
func (s *Store) Query(ctx context.Context, text string, embedding []float32, scope model.QueryScope, limit int) ([]*model.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, goerr.Wrap(ErrClosed, "cannot query")
	}

	return Rank(s.records, text, embedding, scope, limit), nil
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
			result = append(result, copyRecord(r))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Close marks the store closed
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Rank scores records against the query and returns up to limit matches,
// best first. Embedding cosine similarity is used when both the query and
// the record carry vectors; otherwise a term-overlap score over title,
// summary and text. Ties break by recency. Shared by all store backends.
func Rank(records []*model.MemoryRecord, text string, embedding []float32, scope model.QueryScope, limit int) []*model.MemoryRecord {
	type scored struct {
		record *model.MemoryRecord
		score  float64
	}

	var candidates []scored
	for _, r := range records {
		if !scope.Matches(r.Kind) {
			continue
		}
		score := 0.0
		if len(embedding) > 0 && len(r.Embedding) > 0 {
			score = cosineSimilarity(embedding, r.Embedding)
		} else if text != "" {
			score = termOverlap(text, r)
		}
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{record: copyRecord(r), score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].record.CreatedAt.After(candidates[j].record.CreatedAt)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*model.MemoryRecord, len(candidates))
	for i, c := range candidates {
		result[i] = c.record
	}
	return result
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func termOverlap(query string, r *model.MemoryRecord) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(r.Title + " " + r.Summary + " " + r.Text)
	matched := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
