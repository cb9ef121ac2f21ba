package model

import (
	"time"

	"github.com/secmon-lab/pilot/pkg/domain/types"
)

// GapPlaceholderText is committed in place of a chunk whose transcription
// exhausted its retry budget. The final report must show the gap explicitly
// rather than silently omitting the time range.
const GapPlaceholderText = "[transcription unavailable]"

// TranscriptSegment is one scored span of transcript text. Offsets are
// relative to the start of the owning chunk.
type TranscriptSegment struct {
	Text       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
	Source     types.SegmentSource
}

// GapSegment builds the placeholder segment for a failed chunk
func GapSegment(duration time.Duration) TranscriptSegment {
	return TranscriptSegment{
		Text:       GapPlaceholderText,
		Start:      0,
		End:        duration,
		Confidence: 0,
		Source:     types.SourceBatch,
	}
}

// FootnoteEntry records one low-confidence span flagged by the annotator.
// Number is session-scoped and assigned only at finalize time, over the
// fully ordered transcript, so numbering is stable regardless of the order
// in which chunks completed. Number is zero until then.
type FootnoteEntry struct {
	Number     int
	Confidence float64
	Text       string
	ChunkIndex int
}
