package model

import (
	"strings"
	"time"

	"github.com/secmon-lab/pilot/pkg/domain/types"
)

// SessionID identifies a capture session by its start timestamp
type SessionID string

// NewSessionID generates a SessionID from the session start time
func NewSessionID(start time.Time) SessionID {
	return SessionID(start.UTC().Format("20060102-150405"))
}

// String returns the string representation of SessionID
func (s SessionID) String() string {
	return string(s)
}

// Session is the aggregate owned by the pipeline for the lifetime of one
// recording. Chunks is the committed transcript in strict index order;
// pending chunks live in the assembler's reorder buffer, never here.
type Session struct {
	ID        SessionID
	StartedAt time.Time
	EndedAt   time.Time
	Status    types.SessionStatus
	Identity  Identity

	Chunks         []*Chunk
	ActionItems    []*ActionItem
	Decisions      []*Decision
	Clarifications []*Clarification
	Footnotes      []*FootnoteEntry

	// Populated by the deep analysis pass during finalize
	Synopsis   string
	Milestones []string

	// Path of the continuous session recording (playback embedding).
	// Empty if the session file tee failed; failure is non-fatal.
	AudioPath string
}

// NewSession creates a Session in Idle state
func NewSession(start time.Time, identity Identity) *Session {
	return &Session{
		ID:        NewSessionID(start),
		StartedAt: start,
		Status:    types.SessionStatusIdle,
		Identity:  identity,
	}
}

// Transcript returns the committed transcript text in chunk index order.
// Annotated chunk text already carries inline footnote markers.
func (s *Session) Transcript() string {
	parts := make([]string, 0, len(s.Chunks))
	for _, c := range s.Chunks {
		if t := c.Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Duration returns the wall-clock duration of the session
func (s *Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// GapChunks returns the indices of chunks committed as failure placeholders
func (s *Session) GapChunks() []int {
	var gaps []int
	for _, c := range s.Chunks {
		if c.Status == types.ChunkStatusFailed {
			gaps = append(gaps, c.Index)
		}
	}
	return gaps
}
