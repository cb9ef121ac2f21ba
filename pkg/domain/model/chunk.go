package model

import (
	"strings"
	"time"

	"github.com/secmon-lab/pilot/pkg/domain/types"
)

// Chunk is one fixed-duration slice of captured audio, the unit of pipeline
// processing. Index is a gapless, strictly increasing sequence within the
// session; completion order is unconstrained. A chunk is mutated only by the
// stage currently holding it and never after its status becomes resolved.
type Chunk struct {
	Index      int
	CapturedAt time.Time
	Duration   time.Duration
	Status     types.ChunkStatus

	// Final marks the shorter trailing chunk emitted when recording stops
	Final bool

	// Raw PCM16 mono samples while the chunk is in flight. Cleared after
	// the batch transcript is committed to keep session memory bounded.
	Samples    []int16
	SampleRate int

	// AudioRef points at the persisted chunk audio, when available
	AudioRef string

	// Segments is the authoritative batch-sourced segment set after
	// reconciliation. Streaming segments are never stored here.
	Segments []TranscriptSegment

	// Annotated is the chunk text after confidence annotation and cleanup,
	// carrying inline footnote anchors. Empty until annotation runs.
	Annotated string
}

// NewChunk creates a pending chunk
func NewChunk(index int, capturedAt time.Time, sampleRate int) *Chunk {
	return &Chunk{
		Index:      index,
		CapturedAt: capturedAt,
		SampleRate: sampleRate,
		Status:     types.ChunkStatusPending,
	}
}

// Text returns the committed text of the chunk: the annotated form when the
// annotation pass has run, otherwise the raw segment concatenation.
func (c *Chunk) Text() string {
	if c.Annotated != "" {
		return c.Annotated
	}
	parts := make([]string, 0, len(c.Segments))
	for _, seg := range c.Segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}

// ReleaseSamples drops the raw audio buffer once it is no longer needed
func (c *Chunk) ReleaseSamples() {
	c.Samples = nil
}

// Offset returns the chunk's start offset from the session start, derived
// from its index and the nominal chunk duration.
func (c *Chunk) Offset(chunkDuration time.Duration) time.Duration {
	return time.Duration(c.Index) * chunkDuration
}
