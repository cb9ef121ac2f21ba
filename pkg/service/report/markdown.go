package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/domain/types"
)

// Markdown renders the assembled session into the final meeting report.
// It consumes only committed session state; by the time Render runs, chunk
// ordering, footnote numbering and item lists are already settled.
type Markdown struct {
	chunkDuration time.Duration
}

var _ interfaces.Renderer = &Markdown{}

// Option is a functional option for Markdown configuration
type Option func(*Markdown)

// WithChunkDuration sets the nominal chunk duration used for timestamp
// headings in the transcript section
func WithChunkDuration(d time.Duration) Option {
	return func(m *Markdown) {
		m.chunkDuration = d
	}
}

// NewMarkdown creates a markdown report renderer
func NewMarkdown(opts ...Option) *Markdown {
	m := &Markdown{chunkDuration: 30 * time.Second}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Render produces the complete markdown report for a finalized session
func (m *Markdown) Render(ctx context.Context, session *model.Session) (string, error) {
	if session == nil {
		return "", goerr.New("session is required")
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "# Meeting Notes — %s\n\n", session.StartedAt.Local().Format("2006-01-02 15:04"))
	m.renderMetadata(&sb, session)

	if session.Synopsis != "" {
		sb.WriteString("## Summary\n\n")
		sb.WriteString(session.Synopsis)
		sb.WriteString("\n\n")
	}

	if len(session.Milestones) > 0 {
		sb.WriteString("## Milestones\n\n")
		for _, ms := range session.Milestones {
			fmt.Fprintf(&sb, "- %s\n", ms)
		}
		sb.WriteString("\n")
	}

	m.renderActionItems(&sb, session)
	m.renderDecisions(&sb, session)
	m.renderClarifications(&sb, session)
	m.renderTranscript(&sb, session)
	m.renderFootnotes(&sb, session)

	return sb.String(), nil
}

func (m *Markdown) renderMetadata(sb *strings.Builder, session *model.Session) {
	fmt.Fprintf(sb, "- **Session**: `%s`\n", session.ID)
	if d := session.Duration(); d > 0 {
		fmt.Fprintf(sb, "- **Duration**: %s\n", formatClock(d))
	}
	if session.AudioPath != "" {
		fmt.Fprintf(sb, "- **Recording**: [%s](%s)\n", session.AudioPath, session.AudioPath)
	}
	if gaps := session.GapChunks(); len(gaps) > 0 {
		fmt.Fprintf(sb, "- **Gaps**: %d segment(s) could not be transcribed\n", len(gaps))
	}
	sb.WriteString("\n")
}

func (m *Markdown) renderActionItems(sb *strings.Builder, session *model.Session) {
	if len(session.ActionItems) == 0 {
		return
	}
	sb.WriteString("## Action Items\n\n")
	for _, item := range session.ActionItems {
		fmt.Fprintf(sb, "- [ ] %s", item.Description)
		var tags []string
		if item.Assignee != "" {
			assignee := item.Assignee
			if item.AssignedToUser {
				assignee = "**" + assignee + "**"
			}
			tags = append(tags, "assignee: "+assignee)
		}
		if item.DueDate != "" {
			tags = append(tags, "due: "+item.DueDate)
		}
		if item.Confidence != types.ConfidenceHigh {
			tags = append(tags, "confidence: "+string(item.Confidence))
		}
		if len(tags) > 0 {
			fmt.Fprintf(sb, " _(%s)_", strings.Join(tags, ", "))
		}
		if ref := snippetLink(item.Snippet); ref != "" {
			fmt.Fprintf(sb, " %s", ref)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (m *Markdown) renderDecisions(sb *strings.Builder, session *model.Session) {
	if len(session.Decisions) == 0 {
		return
	}
	sb.WriteString("## Decisions\n\n")
	for _, d := range session.Decisions {
		fmt.Fprintf(sb, "- %s", d.Description)
		if d.Confidence != types.ConfidenceHigh {
			fmt.Fprintf(sb, " _(confidence: %s)_", d.Confidence)
		}
		if ref := snippetLink(d.Snippet); ref != "" {
			fmt.Fprintf(sb, " %s", ref)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (m *Markdown) renderClarifications(sb *strings.Builder, session *model.Session) {
	if len(session.Clarifications) == 0 {
		return
	}
	sb.WriteString("## Needs Clarification\n\n")
	for _, c := range session.Clarifications {
		fmt.Fprintf(sb, "- %s\n", c.Description)
	}
	sb.WriteString("\n")
}

func (m *Markdown) renderTranscript(sb *strings.Builder, session *model.Session) {
	if len(session.Chunks) == 0 {
		return
	}
	sb.WriteString("## Transcript\n\n")
	for _, c := range session.Chunks {
		fmt.Fprintf(sb, "**[%s]**\n\n", formatClock(c.Offset(m.chunkDuration)))
		if c.Status == types.ChunkStatusFailed {
			fmt.Fprintf(sb, "_%s_\n\n", model.GapPlaceholderText)
			continue
		}
		sb.WriteString(c.Text())
		sb.WriteString("\n\n")
	}
}

func (m *Markdown) renderFootnotes(sb *strings.Builder, session *model.Session) {
	if len(session.Footnotes) == 0 {
		return
	}
	sb.WriteString("## Low-Confidence Spans\n\n")
	sb.WriteString("| # | Text | Confidence |\n")
	sb.WriteString("|---|------|------------|\n")
	for _, fn := range session.Footnotes {
		fmt.Fprintf(sb, "| %d | %s | %.2f |\n", fn.Number, escapeCell(fn.Text), fn.Confidence)
	}
	sb.WriteString("\n")
}

func snippetLink(ref model.SnippetRef) string {
	if ref.AudioPath == "" {
		return ""
	}
	return fmt.Sprintf("[🔊 %s](%s#t=%d)", formatClock(ref.Start), ref.AudioPath, int(ref.Start.Seconds()))
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
