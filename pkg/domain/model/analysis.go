package model

// ChunkAnalysis is the structured result of the incremental analysis pass
// over one chunk of cleaned transcript text.
type ChunkAnalysis struct {
	ActionItems    []*ActionItem
	Decisions      []*Decision
	Clarifications []*Clarification
	KeyPoints      []string
	Participants   []string
}

// Empty reports whether the analysis extracted nothing
func (a *ChunkAnalysis) Empty() bool {
	if a == nil {
		return true
	}
	return len(a.ActionItems) == 0 && len(a.Decisions) == 0 &&
		len(a.Clarifications) == 0 && len(a.KeyPoints) == 0
}

// DeepAnalysis is the result of the finalize-time pass over the full
// transcript, distinct from per-chunk incremental analysis.
type DeepAnalysis struct {
	Synopsis   string
	Milestones []string
}
