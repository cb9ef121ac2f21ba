package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/domain/types"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
)

// annotator flags low-confidence transcript spans with inline footnote
// anchors. Anchors are numbered per chunk; session-scoped numbers are
// assigned only at finalize, over the index-ordered transcript, so numbering
// does not depend on chunk completion order.
type annotator struct {
	threshold    float64
	veryLow      float64
	minSpanWords int
}

func newAnnotator(cfg Config) annotator {
	return annotator{
		threshold:    cfg.ConfidenceThreshold,
		veryLow:      cfg.VeryLowThreshold,
		minSpanWords: cfg.MinSpanWords,
	}
}

// flagged reports whether a segment needs a footnote. Spans below the main
// threshold are flagged only at minSpanWords or longer; spans below the
// very-low tier are flagged at any length.
func (a annotator) flagged(seg model.TranscriptSegment) bool {
	if seg.Confidence >= a.threshold {
		return false
	}
	if seg.Confidence < a.veryLow {
		return true
	}
	return len(strings.Fields(seg.Text)) >= a.minSpanWords
}

// annotate builds the chunk's annotated text and its footnote entries.
// Consecutive flagged segments merge into one span carrying the lowest
// confidence of its members. Entry numbers stay zero here.
func (a annotator) annotate(chunk *model.Chunk) (string, []*model.FootnoteEntry) {
	var (
		sb      strings.Builder
		entries []*model.FootnoteEntry

		spanParts []string
		spanConf  float64
	)

	flush := func() {
		if len(spanParts) == 0 {
			return
		}
		text := strings.Join(spanParts, " ")
		entries = append(entries, &model.FootnoteEntry{
			Confidence: spanConf,
			Text:       text,
			ChunkIndex: chunk.Index,
		})
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s[%d]", text, len(entries))
		spanParts = nil
	}

	for _, seg := range chunk.Segments {
		if seg.Text == "" {
			continue
		}
		if a.flagged(seg) {
			if len(spanParts) == 0 || seg.Confidence < spanConf {
				spanConf = seg.Confidence
			}
			spanParts = append(spanParts, seg.Text)
			continue
		}
		flush()
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(seg.Text)
	}
	flush()

	return sb.String(), entries
}

var anchorPattern = regexp.MustCompile(`\[\d+\]`)

// renumberFootnotes rewrites chunk-local anchors into session-scoped
// numbers across the committed, index-ordered transcript, and assigns the
// matching numbers to the session's footnote entries. Runs exactly once,
// during finalize.
func renumberFootnotes(ctx context.Context, session *model.Session) {
	next := 0
	for _, chunk := range session.Chunks {
		if chunk.Status == types.ChunkStatusFailed || chunk.Annotated == "" {
			continue
		}
		chunk.Annotated = anchorPattern.ReplaceAllStringFunc(chunk.Annotated, func(string) string {
			next++
			return fmt.Sprintf("[%d]", next)
		})
	}

	if next != len(session.Footnotes) {
		logging.From(ctx).Warn("footnote anchor count mismatch",
			"anchors", next, "entries", len(session.Footnotes))
	}
	for i, fn := range session.Footnotes {
		fn.Number = i + 1
	}
}
