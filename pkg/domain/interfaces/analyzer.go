package interfaces

import (
	"context"

	"github.com/secmon-lab/pilot/pkg/domain/model"
)

// ChunkAnalysisRequest carries one cleaned chunk and the rolling session
// context the analyzer needs for cross-chunk deduplication and assignee
// resolution.
type ChunkAnalysisRequest struct {
	ChunkIndex int
	Text       string
	// PriorItems are already-committed items, for best-effort dedupe
	PriorItems []*model.ActionItem
	// RecentChunks are the last few committed chunk texts, for context
	RecentChunks []string
	// HistoryContext is the pre-session memory priming summary
	HistoryContext string
	Identity       model.Identity
}

// Analyzer is the text-generation collaborator boundary: per-chunk
// extraction, the cleanup pass, the finalize-time deep analysis, and
// embeddings for memory retrieval.
type Analyzer interface {
	// AnalyzeChunk extracts action items, decisions and clarifications
	// from one chunk of transcript text
	AnalyzeChunk(ctx context.Context, req ChunkAnalysisRequest) (*model.ChunkAnalysis, error)

	// CleanTranscript corrects ASR artifacts without altering meaning or
	// footnote anchor placement
	CleanTranscript(ctx context.Context, text string) (string, error)

	// Summarize runs the deep analysis pass over the fully assembled
	// transcript and item lists
	Summarize(ctx context.Context, session *model.Session) (*model.DeepAnalysis, error)

	// Embed generates an embedding vector for memory retrieval
	Embed(ctx context.Context, text string) ([]float32, error)
}
