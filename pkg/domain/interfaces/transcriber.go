package interfaces

import (
	"context"

	"github.com/secmon-lab/pilot/pkg/domain/model"
)

// BatchTranscriber produces the authoritative transcript for one chunk. The
// call blocks until the provider returns; retry policy is the caller's
// concern. The returned segments carry per-span confidence and offsets
// relative to the chunk start.
type BatchTranscriber interface {
	Transcribe(ctx context.Context, chunk *model.Chunk) ([]model.TranscriptSegment, error)
}

// StreamTranscriber is the low-latency path used only for live display.
// Open starts a provider connection for one chunk; provisional segments
// arrive on the returned channel, which is closed when the provider
// finishes or ctx is cancelled. Output is best-effort and never gates
// committed state.
type StreamTranscriber interface {
	Open(ctx context.Context, sampleRate int) (StreamHandle, error)
}

// StreamHandle is one open streaming transcription connection
type StreamHandle interface {
	// Push feeds PCM16 samples to the provider
	Push(samples []int16) error
	// Results returns the channel of provisional segments
	Results() <-chan model.TranscriptSegment
	// Close tears down the connection and closes Results
	Close() error
}
