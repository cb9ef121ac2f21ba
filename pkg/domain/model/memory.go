package model

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDimension is the vector size used for similarity search
const EmbeddingDimension = 768

// RecordID is a UUID-based identifier for MemoryRecord
type RecordID string

// NewRecordID generates a new UUID v4 RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// RecordKind distinguishes persisted sessions from uploaded reference documents
type RecordKind string

const (
	RecordKindSession  RecordKind = "session"
	RecordKindDocument RecordKind = "document"
)

// MemoryRecord is one durable entry in the cross-session memory store.
// Records are append-only: never mutated after write, only superseded by
// newer records.
type MemoryRecord struct {
	ID        RecordID
	Kind      RecordKind
	SessionID SessionID // set for RecordKindSession
	Source    string    // file path for RecordKindDocument
	Title     string
	Summary   string
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// QueryScope restricts which record kinds a memory query considers
type QueryScope string

const (
	ScopeAll       QueryScope = "all"
	ScopeSessions  QueryScope = "sessions"
	ScopeDocuments QueryScope = "documents"
)

// Matches reports whether a record kind falls within the scope
func (s QueryScope) Matches(kind RecordKind) bool {
	switch s {
	case ScopeSessions:
		return kind == RecordKindSession
	case ScopeDocuments:
		return kind == RecordKindDocument
	default:
		return true
	}
}
