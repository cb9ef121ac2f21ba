package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/pilot/pkg/domain/types"
)

// ItemID is a UUID-based identifier for extracted items
type ItemID string

// NewItemID generates a new UUID v4 ItemID
func NewItemID() ItemID {
	return ItemID(uuid.New().String())
}

// SnippetRef points at the audio window around an extracted item inside the
// continuous session recording. Extraction of the actual clip is the
// renderer's concern; the pipeline only computes the window.
type SnippetRef struct {
	AudioPath string
	Start     time.Duration
	End       time.Duration
}

// ActionItem is a task extracted from a chunk. Assignee is the name as
// detected in the transcript; AssignedToUser is set when it resolves to the
// configured user identity (directly or via a spelling variant).
type ActionItem struct {
	ID             ItemID
	Description    string
	Assignee       string
	AssignedToUser bool
	DueDate        string
	Confidence     types.ConfidenceLevel
	ChunkIndex     int
	Snippet        SnippetRef
}

// Decision is a decision extracted from a chunk
type Decision struct {
	ID          ItemID
	Description string
	Confidence  types.ConfidenceLevel
	ChunkIndex  int
	Snippet     SnippetRef
}

// Clarification is a point flagged as ambiguous or requiring follow-up
type Clarification struct {
	ID          ItemID
	Description string
	Confidence  types.ConfidenceLevel
	ChunkIndex  int
	Snippet     SnippetRef
}
