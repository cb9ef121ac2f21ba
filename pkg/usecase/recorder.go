package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/domain/types"
	"github.com/secmon-lab/pilot/pkg/service/audio"
	"github.com/secmon-lab/pilot/pkg/utils/async"
	"github.com/secmon-lab/pilot/pkg/utils/errutil"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
	"github.com/secmon-lab/pilot/pkg/utils/safe"
	"golang.org/x/sync/semaphore"
)

// Recorder runs one capture session end to end: chunk production, the
// bounded worker pool, the in-order commit path, and the drain/finalize
// sequence. One Recorder per session; it is not reusable.
type Recorder struct {
	uc   *UseCases
	asm  *assembler
	feed *Feed

	history string

	stopOnce sync.Once
	stopCh   chan struct{}

	// Set when the finalize timeout expires, so force-failed chunks carry
	// the timeout tag rather than a plain cancellation.
	timedOut atomic.Bool

	reportPath string
}

// NewRecorder prepares a session for the given user identity
func (uc *UseCases) NewRecorder(identity model.Identity) *Recorder {
	session := model.NewSession(time.Now(), identity)
	feed := NewFeed()
	return &Recorder{
		uc:     uc,
		asm:    newAssembler(session, feed),
		feed:   feed,
		stopCh: make(chan struct{}),
	}
}

// Feed returns the live event feed for this session
func (r *Recorder) Feed() *Feed {
	return r.feed
}

// Snapshot returns a consistent copy of the session for concurrent readers
func (r *Recorder) Snapshot() *model.Session {
	return r.asm.snapshot()
}

// ReportPath returns the written report location, empty until finalize
// completes or when the write failed
func (r *Recorder) ReportPath() string {
	return r.reportPath
}

// Stop requests a graceful stop: the producer emits its final partial chunk
// and the pipeline drains. Safe to call from any goroutine, any number of
// times, including before Run.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// Run captures from the source until Stop, source end, or an unrecoverable
// capture failure. It returns the finalized session; the session reaches
// Done on every path except capture failure, where it is Aborted.
func (r *Recorder) Run(ctx context.Context, source interfaces.AudioSource) (*model.Session, error) {
	cfg := r.uc.config
	logger := logging.From(ctx)
	session := r.asm.session

	if err := r.asm.setStatus(types.SessionStatusRecording); err != nil {
		return nil, err
	}
	defer r.feed.Close()

	// Memory priming happens before any audio is consumed so history
	// context is ready for the first chunk's analysis.
	r.history = r.uc.primingSummary(ctx)

	producer := r.newProducer(ctx, source)

	prodCtx, stopRecording := context.WithCancel(ctx)
	defer stopRecording()
	go func() {
		select {
		case <-r.stopCh:
			stopRecording()
		case <-prodCtx.Done():
		}
	}()

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	streamHandle := r.openStream(ctx, source.SampleRate())
	if streamHandle != nil {
		defer safe.Close(ctx, streamHandle)
		go r.forwardStream(streamHandle)
	}

	results := make(chan *chunkResult)
	go r.consume(workCtx, producer, streamHandle, results)

	commitDone := make(chan struct{})
	go func() {
		defer close(commitDone)
		for res := range results {
			r.commit(workCtx, res)
		}
	}()

	if cfg.SilenceTimeout > 0 {
		go r.silenceMonitor(prodCtx, producer)
	}

	if err := producer.Run(prodCtx); err != nil {
		cancelWork()
		<-commitDone
		if serr := r.asm.setStatus(types.SessionStatusAborted); serr != nil {
			errutil.Handle(ctx, serr, "failed to abort session")
		}
		return r.asm.snapshot(), goerr.Wrap(err, "capture failed",
			goerr.V("session", session.ID))
	}

	if err := r.asm.setStatus(types.SessionStatusDraining); err != nil {
		return r.asm.snapshot(), err
	}

	select {
	case <-commitDone:
	case <-time.After(cfg.FinalizeTimeout):
		logger.Warn("finalize timeout, force-failing unresolved chunks",
			"timeout", cfg.FinalizeTimeout.String(),
			"parked", r.asm.pendingIndices(),
		)
		r.timedOut.Store(true)
		cancelWork()
		<-commitDone
	}

	if err := r.asm.setStatus(types.SessionStatusFinalizing); err != nil {
		return r.asm.snapshot(), err
	}
	r.finalize(ctx)
	if err := r.asm.setStatus(types.SessionStatusDone); err != nil {
		return r.asm.snapshot(), err
	}

	return r.asm.snapshot(), nil
}

func (r *Recorder) newProducer(ctx context.Context, source interfaces.AudioSource) *audio.Producer {
	cfg := r.uc.config
	session := r.asm.session

	opts := []audio.Option{audio.WithChunkDuration(cfg.ChunkDuration)}

	audioPath := filepath.Join(cfg.OutputDir, session.ID.String()+".wav")
	writer, err := audio.NewSessionWriter(audioPath, source.SampleRate())
	if err != nil {
		// Recording tee failure is reported, never fatal
		logging.From(ctx).Warn("session recording unavailable",
			"path", audioPath, "error", err.Error())
	} else {
		session.AudioPath = audioPath
		opts = append(opts, audio.WithSessionWriter(writer))
	}

	return audio.NewProducer(source, opts...)
}

func (r *Recorder) openStream(ctx context.Context, sampleRate int) interfaces.StreamHandle {
	if r.uc.stream == nil {
		return nil
	}
	handle, err := r.uc.stream.Open(ctx, sampleRate)
	if err != nil {
		// Display path only; the batch path is unaffected
		logging.From(ctx).Warn("streaming transcription unavailable", "error", err.Error())
		return nil
	}
	return handle
}

// forwardStream relays provisional streaming segments onto the event feed
func (r *Recorder) forwardStream(handle interfaces.StreamHandle) {
	for seg := range handle.Results() {
		r.feed.Publish(model.SessionEvent{
			Type:      model.EventStreamingText,
			SessionID: r.asm.session.ID,
			Text:      seg.Text,
		})
	}
}

// consume drains the producer channel, handing each chunk to a worker under
// the in-flight bound. Closes results after the last worker finishes.
func (r *Recorder) consume(ctx context.Context, producer *audio.Producer, stream interfaces.StreamHandle, results chan<- *chunkResult) {
	defer close(results)

	sem := semaphore.NewWeighted(r.uc.config.MaxInFlight)
	var wg sync.WaitGroup

	for chunk := range producer.Chunks() {
		if stream != nil {
			if err := stream.Push(chunk.Samples); err != nil {
				logging.From(ctx).Debug("stream push failed", "error", err.Error())
			}
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Shutdown while waiting for capacity: the chunk still must
			// reach the assembler so the committed sequence stays gapless.
			results <- r.failChunk(ctx, chunk, err)
			continue
		}

		wg.Add(1)
		go func(c *model.Chunk) {
			defer wg.Done()
			defer sem.Release(1)
			results <- r.processChunk(ctx, c)
		}(chunk)
	}

	wg.Wait()
}

// processChunk runs the order-independent stages on one chunk: batch
// transcription under the retry budget, confidence annotation, and the LLM
// cleanup pass. Analysis is deferred to the commit path, where the rolling
// context is deterministic.
func (r *Recorder) processChunk(ctx context.Context, chunk *model.Chunk) *chunkResult {
	cfg := r.uc.config
	chunk.Status = types.ChunkStatusTranscribing

	var segments []model.TranscriptSegment
	err := cfg.Retry.Do(ctx, "transcribe", func(ctx context.Context) error {
		var terr error
		segments, terr = r.uc.batch.Transcribe(ctx, chunk)
		return terr
	})
	if err != nil {
		return r.failChunk(ctx, chunk, err)
	}
	chunk.Segments = segments

	annotated, footnotes := newAnnotator(cfg).annotate(chunk)

	cleaned := annotated
	if annotated != "" {
		err = cfg.Retry.Do(ctx, "cleanup", func(ctx context.Context) error {
			var cerr error
			cleaned, cerr = r.uc.analyzer.CleanTranscript(ctx, annotated)
			return cerr
		})
		if err != nil {
			// Degrade to the uncorrected annotated text
			logging.From(ctx).Warn("cleanup pass failed, keeping raw transcript",
				"chunk", chunk.Index, "error", err.Error())
			cleaned = annotated
		}
	}
	chunk.Annotated = cleaned
	chunk.Status = types.ChunkStatusAnalyzed

	return &chunkResult{chunk: chunk, footnotes: footnotes}
}

// gapError wraps a chunk failure for the error handler, carrying the
// finalize-timeout tag when the chunk was force-failed during drain.
func (r *Recorder) gapError(chunk *model.Chunk, err error) error {
	opts := []goerr.Option{goerr.V("chunk", chunk.Index)}
	if r.timedOut.Load() {
		opts = append(opts, goerr.T(types.ErrTagFinalizeTimeout))
	}
	return goerr.Wrap(err, "chunk failed, committing gap placeholder", opts...)
}

// failChunk resolves a chunk as an explicit transcript gap
func (r *Recorder) failChunk(ctx context.Context, chunk *model.Chunk, err error) *chunkResult {
	errutil.Handle(ctx, r.gapError(chunk, err), "chunk processing failed")

	chunk.Status = types.ChunkStatusFailed
	chunk.Segments = []model.TranscriptSegment{model.GapSegment(chunk.Duration)}
	chunk.Annotated = ""
	return &chunkResult{chunk: chunk}
}

// commit hands a result to the assembler and runs incremental analysis for
// every chunk it released, in index order.
func (r *Recorder) commit(ctx context.Context, res *chunkResult) {
	for _, committed := range r.asm.add(res) {
		if committed.chunk.Status == types.ChunkStatusFailed {
			continue
		}
		r.analyzeCommitted(ctx, committed.chunk)
	}
}

func (r *Recorder) analyzeCommitted(ctx context.Context, chunk *model.Chunk) {
	cfg := r.uc.config
	recent, prior := r.asm.analysisContext(cfg.ContextWindow, cfg.MaxPriorItems)

	req := interfaces.ChunkAnalysisRequest{
		ChunkIndex:     chunk.Index,
		Text:           chunk.Text(),
		PriorItems:     prior,
		RecentChunks:   recent,
		HistoryContext: r.history,
		Identity:       r.asm.session.Identity,
	}

	var analysis *model.ChunkAnalysis
	err := cfg.Retry.Do(ctx, "analyze", func(ctx context.Context) error {
		a, aerr := r.uc.analyzer.AnalyzeChunk(ctx, req)
		if aerr == nil {
			analysis = a
		}
		return aerr
	})
	if err != nil {
		// The transcript is already committed; losing one chunk's item
		// extraction does not block the session.
		errutil.Handle(ctx, err, "incremental analysis failed")
		return
	}

	r.asm.mergeAnalysis(chunk, analysis, cfg.ChunkDuration)

	for _, item := range analysis.ActionItems {
		if !item.AssignedToUser || item.Confidence != types.ConfidenceHigh {
			continue
		}
		r.feed.Publish(model.SessionEvent{
			Type:      model.EventActionNotification,
			SessionID: r.asm.session.ID,
			Item:      item,
		})
		item := item
		async.Dispatch(ctx, func(ctx context.Context) error {
			return r.uc.notifier.NotifyActionItem(ctx, item)
		})
	}
}

// finalize runs the ordered end-of-session passes: footnote renumbering,
// deep analysis, memory persistence, and report rendering. Each pass after
// renumbering is non-fatal; the session reaches Done regardless.
func (r *Recorder) finalize(ctx context.Context) {
	cfg := r.uc.config

	r.asm.withSession(func(s *model.Session) {
		renumberFootnotes(ctx, s)
	})

	var deep *model.DeepAnalysis
	err := cfg.Retry.Do(ctx, "deep_analysis", func(ctx context.Context) error {
		d, derr := r.uc.analyzer.Summarize(ctx, r.asm.snapshot())
		if derr == nil {
			deep = d
		}
		return derr
	})
	if err != nil {
		errutil.Handle(ctx, err, "deep analysis failed")
	} else {
		r.asm.withSession(func(s *model.Session) {
			s.Synopsis = deep.Synopsis
			s.Milestones = deep.Milestones
		})
	}

	snapshot := r.asm.snapshot()

	if err := r.uc.persistSession(ctx, snapshot); err != nil {
		errutil.Handle(ctx, err, "failed to persist session to memory store")
	}

	rendered, err := r.uc.renderer.Render(ctx, snapshot)
	if err != nil {
		errutil.Handle(ctx, err, "report rendering failed")
		return
	}
	path := filepath.Join(cfg.OutputDir, snapshot.ID.String()+".md")
	if err := os.WriteFile(path, []byte(rendered), 0644); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to write report",
			goerr.V("path", path)), "report write failed")
		return
	}
	r.reportPath = path
	logging.From(ctx).Info("report written", "path", path)
}

// silenceMonitor auto-stops recording after continuous inactivity
func (r *Recorder) silenceMonitor(ctx context.Context, producer *audio.Producer) {
	timeout := r.uc.config.SilenceTimeout
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.asm.status() != types.SessionStatusRecording {
				return
			}
			idle := time.Since(producer.LastActivity())
			if idle >= timeout {
				logging.From(ctx).Info("auto-stopping after silence",
					"idle", idle.Round(time.Second).String())
				r.Stop()
				return
			}
		}
	}
}
