package usecase

import (
	"sync"
	"time"

	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// snippetPadding widens the audio reference window around a chunk so a
// replayed snippet starts slightly before the extracted item was spoken.
const snippetPadding = 5 * time.Second

// chunkResult is one fully processed chunk arriving from a pipeline worker,
// in whatever order the workers finished.
type chunkResult struct {
	chunk     *model.Chunk
	footnotes []*model.FootnoteEntry
}

// assembler owns the session aggregate for the lifetime of the pipeline.
// Completed chunks park in a reorder buffer keyed by index; a commit cursor
// releases them strictly in order. All session mutation goes through the
// assembler's lock, so concurrent readers (the live HTTP surface) always
// observe a consistent committed prefix.
type assembler struct {
	mu      sync.RWMutex
	session *model.Session
	feed    *Feed

	pending map[int]*chunkResult
	cursor  int
}

func newAssembler(session *model.Session, feed *Feed) *assembler {
	return &assembler{
		session: session,
		feed:    feed,
		pending: make(map[int]*chunkResult),
	}
}

// add parks a completed chunk and commits every consecutively ready chunk
// at the cursor. Returns the results committed by this call, in index
// order; usually zero or one, more when this chunk unblocked parked ones.
func (a *assembler) add(res *chunkResult) []*chunkResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending[res.chunk.Index] = res

	var committed []*chunkResult
	for {
		next, ok := a.pending[a.cursor]
		if !ok {
			break
		}
		delete(a.pending, a.cursor)
		a.cursor++

		next.chunk.ReleaseSamples()
		a.session.Chunks = append(a.session.Chunks, next.chunk)
		a.session.Footnotes = append(a.session.Footnotes, next.footnotes...)
		committed = append(committed, next)
	}

	for _, res := range committed {
		a.feed.Publish(model.SessionEvent{
			Type:       model.EventChunkCommitted,
			SessionID:  a.session.ID,
			ChunkIndex: res.chunk.Index,
			Text:       res.chunk.Text(),
		})
	}

	return committed
}

// pendingIndices returns the indices still parked in the reorder buffer
func (a *assembler) pendingIndices() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	indices := make([]int, 0, len(a.pending))
	for idx := range a.pending {
		indices = append(indices, idx)
	}
	return indices
}

// setStatus applies a state machine transition, rejecting anything the
// lifecycle does not allow
func (a *assembler) setStatus(next types.SessionStatus) error {
	a.mu.Lock()
	current := a.session.Status
	if !current.CanTransitionTo(next) {
		a.mu.Unlock()
		return goerr.New("invalid session state transition",
			goerr.V("from", current), goerr.V("to", next))
	}
	a.session.Status = next
	if next.IsTerminal() {
		a.session.EndedAt = time.Now()
	}
	a.mu.Unlock()

	a.feed.Publish(model.SessionEvent{
		Type:      model.EventStateChanged,
		SessionID: a.session.ID,
		State:     next.String(),
	})
	return nil
}

// status returns the current session status
func (a *assembler) status() types.SessionStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Status
}

// analysisContext builds the rolling context for the incremental analyzer:
// the last few committed chunk texts and the most recent prior items.
func (a *assembler) analysisContext(contextWindow, maxPriorItems int) ([]string, []*model.ActionItem) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var recent []string
	start := len(a.session.Chunks) - 1 - contextWindow
	if start < 0 {
		start = 0
	}
	// Exclude the just-committed chunk itself; it is the analysis subject.
	for _, c := range a.session.Chunks[start : len(a.session.Chunks)-1] {
		if c.Status == types.ChunkStatusFailed {
			continue
		}
		if t := c.Text(); t != "" {
			recent = append(recent, t)
		}
	}

	items := a.session.ActionItems
	if len(items) > maxPriorItems {
		items = items[len(items)-maxPriorItems:]
	}
	prior := make([]*model.ActionItem, len(items))
	copy(prior, items)

	return recent, prior
}

// mergeAnalysis folds a chunk's analysis results into the session, stamping
// each item with its audio snippet window.
func (a *assembler) mergeAnalysis(chunk *model.Chunk, analysis *model.ChunkAnalysis, chunkDuration time.Duration) {
	if analysis.Empty() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	snippet := a.snippetFor(chunk, chunkDuration)
	for _, item := range analysis.ActionItems {
		item.Snippet = snippet
		a.session.ActionItems = append(a.session.ActionItems, item)
	}
	for _, d := range analysis.Decisions {
		d.Snippet = snippet
		a.session.Decisions = append(a.session.Decisions, d)
	}
	for _, c := range analysis.Clarifications {
		c.Snippet = snippet
		a.session.Clarifications = append(a.session.Clarifications, c)
	}
}

func (a *assembler) snippetFor(chunk *model.Chunk, chunkDuration time.Duration) model.SnippetRef {
	if a.session.AudioPath == "" {
		return model.SnippetRef{}
	}
	start := chunk.Offset(chunkDuration) - snippetPadding
	if start < 0 {
		start = 0
	}
	end := chunk.Offset(chunkDuration) + chunkDuration + snippetPadding
	return model.SnippetRef{
		AudioPath: a.session.AudioPath,
		Start:     start,
		End:       end,
	}
}

// withSession runs fn while holding the write lock. Used by finalize for
// the renumbering and deep analysis merge.
func (a *assembler) withSession(fn func(s *model.Session)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a.session)
}

// snapshot returns a copy of the session safe for concurrent readers.
// Chunks and footnotes are copied by value because finalize rewrites their
// anchors and numbers in place; items are pointer-shared, as they are
// append-only once merged.
func (a *assembler) snapshot() *model.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cp := *a.session
	cp.Chunks = make([]*model.Chunk, len(a.session.Chunks))
	for i, c := range a.session.Chunks {
		cc := *c
		cp.Chunks[i] = &cc
	}
	cp.Footnotes = make([]*model.FootnoteEntry, len(a.session.Footnotes))
	for i, f := range a.session.Footnotes {
		ff := *f
		cp.Footnotes[i] = &ff
	}
	cp.ActionItems = append([]*model.ActionItem(nil), a.session.ActionItems...)
	cp.Decisions = append([]*model.Decision(nil), a.session.Decisions...)
	cp.Clarifications = append([]*model.Clarification(nil), a.session.Clarifications...)
	cp.Milestones = append([]string(nil), a.session.Milestones...)
	return &cp
}
