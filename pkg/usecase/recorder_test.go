package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/domain/types"
	memrepo "github.com/secmon-lab/pilot/pkg/repository/memory"
	"github.com/secmon-lab/pilot/pkg/utils/retry"
)

// fakeSource emits a fixed number of blocks sized to one chunk each, then
// ends the stream.
type fakeSource struct {
	rate   int
	blocks [][]int16
	pos    int
}

func (s *fakeSource) SampleRate() int { return s.rate }

func (s *fakeSource) ReadBlock(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.blocks) {
		return nil, io.EOF
	}
	b := s.blocks[s.pos]
	s.pos++
	return b, nil
}

func (s *fakeSource) Close() error { return nil }

// blockingSource never yields samples and waits for cancellation
type blockingSource struct{ rate int }

func (s *blockingSource) SampleRate() int { return s.rate }

func (s *blockingSource) ReadBlock(ctx context.Context) ([]int16, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *blockingSource) Close() error { return nil }

type fakeBatch struct {
	mu       sync.Mutex
	delays   map[int]time.Duration
	failures map[int]error
	blockOn  map[int]bool
	calls    []int
}

func (b *fakeBatch) Transcribe(ctx context.Context, chunk *model.Chunk) ([]model.TranscriptSegment, error) {
	b.mu.Lock()
	b.calls = append(b.calls, chunk.Index)
	delay := b.delays[chunk.Index]
	failure := b.failures[chunk.Index]
	blocked := b.blockOn[chunk.Index]
	b.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if failure != nil {
		return nil, failure
	}
	return []model.TranscriptSegment{{
		Text:       fmt.Sprintf("chunk %d text", chunk.Index),
		Confidence: 0.95,
		Source:     types.SourceBatch,
	}}, nil
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	analyzed []int
	itemsFor map[int][]*model.ActionItem
}

func (a *fakeAnalyzer) AnalyzeChunk(ctx context.Context, req interfaces.ChunkAnalysisRequest) (*model.ChunkAnalysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyzed = append(a.analyzed, req.ChunkIndex)
	return &model.ChunkAnalysis{ActionItems: a.itemsFor[req.ChunkIndex]}, nil
}

func (a *fakeAnalyzer) CleanTranscript(ctx context.Context, text string) (string, error) {
	return text, nil
}

func (a *fakeAnalyzer) Summarize(ctx context.Context, session *model.Session) (*model.DeepAnalysis, error) {
	return &model.DeepAnalysis{
		Synopsis:   "discussed the rollout",
		Milestones: []string{"rollout plan settled"},
	}, nil
}

func (a *fakeAnalyzer) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (a *fakeAnalyzer) analyzedIndices() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.analyzed...)
}

type captureNotifier struct {
	items chan *model.ActionItem
}

func (n *captureNotifier) NotifyActionItem(ctx context.Context, item *model.ActionItem) error {
	select {
	case n.items <- item:
	default:
	}
	return nil
}

// failingStore errors on every operation, standing in for an unreachable
// memory backend.
type failingStore struct{}

func (failingStore) Put(context.Context, *model.MemoryRecord) (model.RecordID, error) {
	return "", errors.New("store unreachable")
}

func (failingStore) Query(context.Context, string, []float32, model.QueryScope, int) ([]*model.MemoryRecord, error) {
	return nil, errors.New("store unreachable")
}

func (failingStore) List(context.Context, model.RecordKind) ([]*model.MemoryRecord, error) {
	return nil, errors.New("store unreachable")
}

func (failingStore) Close() error { return errors.New("store unreachable") }

const testSampleRate = 16000

// chunkBlocks builds n source blocks, each exactly one chunk long at the
// given chunk duration
func chunkBlocks(n int, chunkDuration time.Duration) [][]int16 {
	samples := int(chunkDuration.Seconds() * testSampleRate)
	blocks := make([][]int16, n)
	for i := range blocks {
		block := make([]int16, samples)
		for j := range block {
			block[j] = 1000
		}
		blocks[i] = block
	}
	return blocks
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		ChunkDuration:   100 * time.Millisecond,
		FinalizeTimeout: 5 * time.Second,
		Retry: retry.Policy{
			MaxAttempts: 1,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond,
		},
		OutputDir: t.TempDir(),
	}
}

func TestRecorderRunToCompletion(t *testing.T) {
	cfg := testConfig(t)
	store := memrepo.New()
	batch := &fakeBatch{}
	analyzer := &fakeAnalyzer{
		itemsFor: map[int][]*model.ActionItem{
			1: {{
				ID:             model.NewItemID(),
				Description:    "send the deploy schedule",
				Assignee:       "Sam",
				AssignedToUser: true,
				Confidence:     types.ConfidenceHigh,
				ChunkIndex:     1,
			}},
		},
	}
	notifier := &captureNotifier{items: make(chan *model.ActionItem, 4)}

	uc := New(store, batch, analyzer, WithConfig(cfg), WithNotifier(notifier))
	rec := uc.NewRecorder(model.Identity{Name: "Sam"})

	events, cancel := rec.Feed().Subscribe()
	defer cancel()

	source := &fakeSource{rate: testSampleRate, blocks: chunkBlocks(3, cfg.ChunkDuration)}
	session, err := rec.Run(context.Background(), source)
	gt.NoError(t, err).Required()

	gt.Value(t, session.Status).Equal(types.SessionStatusDone)
	gt.Array(t, session.Chunks).Length(3)
	for i, c := range session.Chunks {
		gt.Value(t, c.Index).Equal(i)
		gt.Value(t, c.Status).Equal(types.ChunkStatusAnalyzed)
		gt.Value(t, c.Text()).Equal(fmt.Sprintf("chunk %d text", i))
	}
	gt.Value(t, session.Synopsis).Equal("discussed the rollout")
	gt.Array(t, session.ActionItems).Length(1)

	// Report on disk
	gt.Value(t, rec.ReportPath()).NotEqual("")
	report, rerr := os.ReadFile(rec.ReportPath())
	gt.NoError(t, rerr).Required()
	gt.Value(t, strings.Contains(string(report), "chunk 1 text")).Equal(true)

	// Session persisted to memory
	records, lerr := store.List(context.Background(), model.RecordKindSession)
	gt.NoError(t, lerr).Required()
	gt.Array(t, records).Length(1)
	gt.Value(t, records[0].SessionID).Equal(session.ID)

	// Live notification for the user-assigned high-confidence item
	select {
	case item := <-notifier.items:
		gt.Value(t, item.Description).Equal("send the deploy schedule")
	case <-time.After(2 * time.Second):
		t.Fatal("no action item notification delivered")
	}

	// The feed saw commits in index order and the terminal state change
	var commits []int
	var lastState string
	for ev := range events {
		switch ev.Type {
		case model.EventChunkCommitted:
			commits = append(commits, ev.ChunkIndex)
		case model.EventStateChanged:
			lastState = ev.State
		}
	}
	gt.Value(t, commits).Equal([]int{0, 1, 2})
	gt.Value(t, lastState).Equal(types.SessionStatusDone.String())
}

func TestRecorderCompletesWithUnreachableStore(t *testing.T) {
	cfg := testConfig(t)
	uc := New(failingStore{}, &fakeBatch{}, &fakeAnalyzer{}, WithConfig(cfg))
	rec := uc.NewRecorder(model.Identity{Name: "Sam"})

	source := &fakeSource{rate: testSampleRate, blocks: chunkBlocks(2, cfg.ChunkDuration)}
	session, err := rec.Run(context.Background(), source)
	gt.NoError(t, err).Required()

	// The session still completes, priming is silently empty, and the
	// local report is written even though every store call failed.
	gt.Value(t, session.Status).Equal(types.SessionStatusDone)
	gt.Value(t, rec.history).Equal("")

	gt.Value(t, rec.ReportPath()).NotEqual("")
	report, rerr := os.ReadFile(rec.ReportPath())
	gt.NoError(t, rerr).Required()
	gt.Value(t, strings.Contains(string(report), "chunk 0 text")).Equal(true)
}

func TestRecorderCommitsGapForFailedChunk(t *testing.T) {
	cfg := testConfig(t)
	batch := &fakeBatch{failures: map[int]error{
		1: fmt.Errorf("provider rejected audio"),
	}}
	analyzer := &fakeAnalyzer{}

	uc := New(memrepo.New(), batch, analyzer, WithConfig(cfg))
	rec := uc.NewRecorder(model.Identity{})

	source := &fakeSource{rate: testSampleRate, blocks: chunkBlocks(3, cfg.ChunkDuration)}
	session, err := rec.Run(context.Background(), source)
	gt.NoError(t, err).Required()

	gt.Value(t, session.Status).Equal(types.SessionStatusDone)
	gt.Array(t, session.Chunks).Length(3)
	gt.Value(t, session.GapChunks()).Equal([]int{1})
	gt.Value(t, session.Chunks[1].Text()).Equal(model.GapPlaceholderText)

	// Failed chunks are committed but never analyzed
	for _, idx := range analyzer.analyzedIndices() {
		gt.Value(t, idx).NotEqual(1)
	}
}

func TestRecorderOutOfOrderCompletion(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxInFlight = 4
	batch := &fakeBatch{delays: map[int]time.Duration{
		0: 150 * time.Millisecond,
	}}
	analyzer := &fakeAnalyzer{}

	uc := New(memrepo.New(), batch, analyzer, WithConfig(cfg))
	rec := uc.NewRecorder(model.Identity{})

	source := &fakeSource{rate: testSampleRate, blocks: chunkBlocks(4, cfg.ChunkDuration)}
	session, err := rec.Run(context.Background(), source)
	gt.NoError(t, err).Required()

	gt.Value(t, session.Status).Equal(types.SessionStatusDone)
	gt.Array(t, session.Chunks).Length(4)
	for i, c := range session.Chunks {
		gt.Value(t, c.Index).Equal(i)
	}

	// Analysis follows commit order, not completion order
	gt.Value(t, analyzer.analyzedIndices()).Equal([]int{0, 1, 2, 3})
}

func TestRecorderFinalizeTimeoutForceFailsChunks(t *testing.T) {
	cfg := testConfig(t)
	cfg.FinalizeTimeout = 200 * time.Millisecond
	batch := &fakeBatch{blockOn: map[int]bool{2: true}}
	analyzer := &fakeAnalyzer{}

	uc := New(memrepo.New(), batch, analyzer, WithConfig(cfg))
	rec := uc.NewRecorder(model.Identity{})

	source := &fakeSource{rate: testSampleRate, blocks: chunkBlocks(3, cfg.ChunkDuration)}
	session, err := rec.Run(context.Background(), source)
	gt.NoError(t, err).Required()

	// The stuck chunk resolved as a gap; the sequence stayed complete
	gt.Value(t, session.Status).Equal(types.SessionStatusDone)
	gt.Array(t, session.Chunks).Length(3)
	gt.Value(t, session.GapChunks()).Equal([]int{2})

	// Force-failed chunks carry the timeout tag, unlike ordinary failures
	gerr := rec.gapError(session.Chunks[2], context.Canceled)
	gt.Value(t, goerr.HasTag(gerr, types.ErrTagFinalizeTimeout)).Equal(true)
}

func TestRecorderGapErrorTagging(t *testing.T) {
	uc := New(memrepo.New(), &fakeBatch{}, &fakeAnalyzer{}, WithConfig(testConfig(t)))
	rec := uc.NewRecorder(model.Identity{})
	chunk := model.NewChunk(0, time.Now(), testSampleRate)

	plain := rec.gapError(chunk, errors.New("provider down"))
	gt.Value(t, goerr.HasTag(plain, types.ErrTagFinalizeTimeout)).Equal(false)

	rec.timedOut.Store(true)
	tagged := rec.gapError(chunk, context.Canceled)
	gt.Value(t, goerr.HasTag(tagged, types.ErrTagFinalizeTimeout)).Equal(true)
}

func TestRecorderStopBeforeAnyAudio(t *testing.T) {
	cfg := testConfig(t)
	uc := New(memrepo.New(), &fakeBatch{}, &fakeAnalyzer{}, WithConfig(cfg))
	rec := uc.NewRecorder(model.Identity{})
	rec.Stop()

	session, err := rec.Run(context.Background(), &blockingSource{rate: testSampleRate})
	gt.NoError(t, err).Required()

	gt.Value(t, session.Status).Equal(types.SessionStatusDone)
	gt.Array(t, session.Chunks).Length(0)
}

func TestRecorderSilenceAutoStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.SilenceTimeout = 10 * time.Millisecond
	uc := New(memrepo.New(), &fakeBatch{}, &fakeAnalyzer{}, WithConfig(cfg))
	rec := uc.NewRecorder(model.Identity{})

	done := make(chan *model.Session, 1)
	go func() {
		session, _ := rec.Run(context.Background(), &blockingSource{rate: testSampleRate})
		done <- session
	}()

	select {
	case session := <-done:
		gt.Value(t, session.Status).Equal(types.SessionStatusDone)
	case <-time.After(5 * time.Second):
		t.Fatal("silence monitor did not stop the session")
	}
}
