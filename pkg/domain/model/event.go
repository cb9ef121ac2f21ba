package model

import "time"

// EventType identifies a live pipeline event
type EventType string

const (
	// EventStreamingText carries a provisional streaming segment for live
	// display. No ordering guarantee relative to commits.
	EventStreamingText EventType = "streaming_text"
	// EventChunkCommitted fires when the assembler commits a chunk to the
	// session transcript, always in index order.
	EventChunkCommitted EventType = "chunk_committed"
	// EventStateChanged fires on session state machine transitions
	EventStateChanged EventType = "state_changed"
	// EventActionNotification fires for a high-confidence action item
	// assigned to the configured user
	EventActionNotification EventType = "action_notification"
)

// SessionEvent is one entry on the live event feed. The feed is a bounded
// buffer: consumers that fall behind lose the oldest events, never block
// the pipeline.
type SessionEvent struct {
	Type       EventType
	At         time.Time
	SessionID  SessionID
	ChunkIndex int
	Text       string
	State      string
	Item       *ActionItem
}
