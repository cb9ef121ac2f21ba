package types

import "fmt"

// SessionStatus represents the lifecycle state of a capture session
type SessionStatus string

const (
	SessionStatusIdle       SessionStatus = "IDLE"
	SessionStatusRecording  SessionStatus = "RECORDING"
	SessionStatusDraining   SessionStatus = "DRAINING"
	SessionStatusFinalizing SessionStatus = "FINALIZING"
	SessionStatusDone       SessionStatus = "DONE"
	SessionStatusAborted    SessionStatus = "ABORTED"
)

// AllSessionStatuses returns all valid session statuses
func AllSessionStatuses() []SessionStatus {
	return []SessionStatus{
		SessionStatusIdle,
		SessionStatusRecording,
		SessionStatusDraining,
		SessionStatusFinalizing,
		SessionStatusDone,
		SessionStatusAborted,
	}
}

// IsValid checks if the session status is valid
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusIdle,
		SessionStatusRecording,
		SessionStatusDraining,
		SessionStatusFinalizing,
		SessionStatusDone,
		SessionStatusAborted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a terminal state
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusDone || s == SessionStatusAborted
}

// CanTransitionTo reports whether the transition from s to next is allowed.
// Aborted is reachable only from Recording (unrecoverable capture failure).
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusIdle:
		return next == SessionStatusRecording
	case SessionStatusRecording:
		return next == SessionStatusDraining || next == SessionStatusAborted
	case SessionStatusDraining:
		return next == SessionStatusFinalizing
	case SessionStatusFinalizing:
		return next == SessionStatusDone
	default:
		return false
	}
}

// String returns the string representation of the session status
func (s SessionStatus) String() string {
	return string(s)
}

// ParseSessionStatus parses a string into a SessionStatus
func ParseSessionStatus(s string) (SessionStatus, error) {
	status := SessionStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid session status: %s", s)
	}
	return status, nil
}
