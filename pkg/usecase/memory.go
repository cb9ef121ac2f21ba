package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/domain/types"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
)

// primingSummary builds the pre-session history context from the most
// recent stored sessions. Best effort: any store failure yields an empty
// context and the session proceeds without history.
func (uc *UseCases) primingSummary(ctx context.Context) string {
	records, err := uc.store.List(ctx, model.RecordKindSession)
	if err != nil {
		logging.From(ctx).Warn("memory priming unavailable", "error", err.Error())
		return ""
	}
	if len(records) > uc.config.PrimingWindow {
		records = records[:uc.config.PrimingWindow]
	}
	if len(records) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent sessions:\n")
	for _, r := range records {
		summary := r.Summary
		if summary == "" {
			summary = truncateText(r.Text, 200)
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n",
			r.CreatedAt.Format("2006-01-02"), r.Title, summary)
	}
	return sb.String()
}

// persistSession writes the finalized session into the memory store.
// Embedding generation is best effort; the record is stored without a
// vector when it fails.
func (uc *UseCases) persistSession(ctx context.Context, session *model.Session) error {
	transcript := session.Transcript()
	if transcript == "" && session.Synopsis == "" {
		logging.From(ctx).Info("nothing to persist, skipping memory write",
			"session", session.ID)
		return nil
	}

	summary := session.Synopsis
	if summary == "" {
		summary = truncateText(transcript, 500)
	}

	record := &model.MemoryRecord{
		Kind:      model.RecordKindSession,
		SessionID: session.ID,
		Title:     "Session " + session.StartedAt.Local().Format("2006-01-02 15:04"),
		Summary:   summary,
		Text:      transcript,
		CreatedAt: time.Now(),
	}

	record.Embedding = uc.embed(ctx, summary)

	if _, err := uc.store.Put(ctx, record); err != nil {
		return goerr.Wrap(err, "memory store write failed",
			goerr.T(types.ErrTagStoreUnavailable),
			goerr.V("session", session.ID))
	}
	return nil
}

// embed generates an embedding vector, best effort. Returns nil without a
// configured analyzer or on provider failure; the store then relies on term
// matching for this record.
func (uc *UseCases) embed(ctx context.Context, text string) []float32 {
	if uc.analyzer == nil {
		return nil
	}
	embedding, err := uc.analyzer.Embed(ctx, text)
	if err != nil {
		logging.From(ctx).Warn("embedding generation failed", "error", err.Error())
		return nil
	}
	return embedding
}

// Query runs an ad-hoc memory search. The query embedding is best effort;
// the store falls back to term matching when it is absent.
func (uc *UseCases) Query(ctx context.Context, text string, scope model.QueryScope, limit int) ([]*model.MemoryRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.New("query text is required")
	}
	if limit <= 0 {
		limit = 5
	}

	records, err := uc.store.Query(ctx, text, uc.embed(ctx, text), scope, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "memory query failed",
			goerr.T(types.ErrTagStoreUnavailable))
	}
	return records, nil
}

// IngestStatus reports the outcome of a document ingest
type IngestStatus string

const (
	IngestAdded     IngestStatus = "added"
	IngestDuplicate IngestStatus = "duplicate"
	IngestUpdated   IngestStatus = "updated"
)

// Ingest stores a reference document in the memory store. A document with
// the same source and identical text is a duplicate and is not re-stored; a
// changed text for a known source appends a superseding record.
func (uc *UseCases) Ingest(ctx context.Context, source, title, text string) (IngestStatus, error) {
	if strings.TrimSpace(text) == "" {
		return "", goerr.New("document text is required", goerr.V("source", source))
	}
	if title == "" {
		title = source
	}

	status := IngestAdded
	existing, err := uc.store.List(ctx, model.RecordKindDocument)
	if err != nil {
		return "", goerr.Wrap(err, "failed to list documents",
			goerr.T(types.ErrTagStoreUnavailable))
	}
	for _, r := range existing {
		if r.Source != source {
			continue
		}
		if r.Text == text {
			return IngestDuplicate, nil
		}
		status = IngestUpdated
		break
	}

	record := &model.MemoryRecord{
		Kind:      model.RecordKindDocument,
		Source:    source,
		Title:     title,
		Summary:   truncateText(text, 500),
		Text:      text,
		CreatedAt: time.Now(),
	}

	record.Embedding = uc.embed(ctx, truncateText(text, 2000))

	if _, err := uc.store.Put(ctx, record); err != nil {
		return "", goerr.Wrap(err, "memory store write failed",
			goerr.T(types.ErrTagStoreUnavailable),
			goerr.V("source", source))
	}
	return status, nil
}

// History lists stored sessions, most recent first
func (uc *UseCases) History(ctx context.Context, limit int) ([]*model.MemoryRecord, error) {
	records, err := uc.store.List(ctx, model.RecordKindSession)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list sessions",
			goerr.T(types.ErrTagStoreUnavailable))
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
