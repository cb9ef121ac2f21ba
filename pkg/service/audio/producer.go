package audio

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
	"github.com/secmon-lab/pilot/pkg/utils/safe"
)

// activityThreshold is the mean absolute amplitude above which a block
// counts as voice activity for the silence monitor.
const activityThreshold = 200

// Producer slices the continuous audio stream into fixed-duration,
// sequentially indexed chunks, and tees the raw stream into the session
// recording file. Chunk indices are gapless and strictly increasing; the
// final partial chunk is always emitted on stop, never silently dropped.
type Producer struct {
	source        interfaces.AudioSource
	chunkDuration time.Duration
	out           chan *model.Chunk
	tee           *SessionWriter
	teeFailed     bool

	lastActivity atomic.Int64
}

// Option is a functional option for Producer configuration
type Option func(*Producer)

// WithChunkDuration overrides the default 30s chunk duration
func WithChunkDuration(d time.Duration) Option {
	return func(p *Producer) {
		if d > 0 {
			p.chunkDuration = d
		}
	}
}

// WithSessionWriter enables the continuous session recording tee. Write
// failures are reported and disable the tee; chunk production continues.
func WithSessionWriter(w *SessionWriter) Option {
	return func(p *Producer) {
		p.tee = w
	}
}

// NewProducer creates a chunk producer for the given source
func NewProducer(source interfaces.AudioSource, opts ...Option) *Producer {
	p := &Producer{
		source:        source,
		chunkDuration: 30 * time.Second,
		out:           make(chan *model.Chunk),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastActivity.Store(time.Now().UnixNano())
	return p
}

// Chunks returns the chunk output channel. The channel is unbuffered: the
// consumer's in-flight bound provides backpressure by blocking the producer
// rather than dropping chunks.
func (p *Producer) Chunks() <-chan *model.Chunk {
	return p.out
}

// LastActivity returns the time of the most recent voice-active block
func (p *Producer) LastActivity() time.Time {
	return time.Unix(0, p.lastActivity.Load())
}

// Run reads the source until ctx is cancelled or the source ends, emitting
// one chunk per chunk duration plus the final partial chunk. It closes the
// chunk channel on return. A source read failure is an unrecoverable
// capture failure and is returned to the caller.
func (p *Producer) Run(ctx context.Context) error {
	defer close(p.out)
	if p.tee != nil {
		// Close patches the WAV header sizes; skipping it leaves the
		// recording unreadable.
		defer safe.Close(ctx, p.tee)
	}

	logger := logging.From(ctx)
	sampleRate := p.source.SampleRate()
	chunkSamples := int(p.chunkDuration.Seconds() * float64(sampleRate))

	var buf []int16
	index := 0
	chunkStart := time.Now()

	flush := func(final bool) bool {
		if len(buf) == 0 {
			return true
		}
		chunk := model.NewChunk(index, chunkStart, sampleRate)
		chunk.Samples = buf
		chunk.Duration = time.Duration(len(buf)) * time.Second / time.Duration(sampleRate)
		chunk.Final = final

		select {
		case p.out <- chunk:
		case <-ctx.Done():
			if !final {
				return false
			}
			// The final chunk must not be dropped: hand it over without
			// the cancelled context gating it.
			p.out <- chunk
		}

		index++
		buf = nil
		chunkStart = time.Now()
		return true
	}

	for {
		block, err := p.source.ReadBlock(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				flush(true)
				return nil
			}
			flush(true)
			return goerr.Wrap(err, "audio source read failed")
		}

		if isActive(block) {
			p.lastActivity.Store(time.Now().UnixNano())
		}

		p.writeTee(ctx, block)
		buf = append(buf, block...)

		if len(buf) >= chunkSamples {
			if !flush(false) {
				logger.Warn("chunk emit interrupted by cancellation", "index", index)
				flush(true)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			flush(true)
			return nil
		default:
		}
	}
}

func (p *Producer) writeTee(ctx context.Context, block []int16) {
	if p.tee == nil || p.teeFailed {
		return
	}
	if err := p.tee.Append(block); err != nil {
		// Non-fatal to chunk processing, but must be reported
		logging.From(ctx).Error("session recording write failed, disabling tee", "error", err.Error())
		p.teeFailed = true
	}
}

// TeeFailed reports whether the continuous session recording was lost
func (p *Producer) TeeFailed() bool {
	return p.teeFailed
}

func isActive(block []int16) bool {
	if len(block) == 0 {
		return false
	}
	var sum int64
	for _, s := range block {
		if s < 0 {
			sum -= int64(s)
		} else {
			sum += int64(s)
		}
	}
	return sum/int64(len(block)) > activityThreshold
}
