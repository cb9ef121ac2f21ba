package analyze

import "github.com/m-mizutani/gollem"

// chunkResponseSchema is the structured output contract for per-chunk
// incremental analysis
func chunkResponseSchema() *gollem.Parameter {
	confidence := &gollem.Parameter{
		Type:        gollem.TypeString,
		Description: "Extraction confidence: high, medium or low",
		Enum:        []string{"high", "medium", "low"},
		Required:    true,
	}

	return &gollem.Parameter{
		Title:       "ChunkAnalysisResponse",
		Description: "Structured meeting intelligence extracted from one transcript chunk",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"action_items": {
				Type:        gollem.TypeArray,
				Description: "Tasks, follow-ups or deliverables mentioned in this segment",
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"item": {
							Type:        gollem.TypeString,
							Description: "What needs to be done",
							Required:    true,
						},
						"assignee": {
							Type:        gollem.TypeString,
							Description: "Who is responsible, exactly as named in the transcript; empty if unknown",
						},
						"deadline": {
							Type:        gollem.TypeString,
							Description: "Deadline or timeframe as stated; empty if none",
						},
						"confidence": confidence,
					},
				},
				Required: true,
			},
			"decisions": {
				Type:        gollem.TypeArray,
				Description: "Decisions made or agreed upon",
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"decision": {
							Type:        gollem.TypeString,
							Description: "What was decided",
							Required:    true,
						},
						"confidence": confidence,
					},
				},
				Required: true,
			},
			"clarifications": {
				Type:        gollem.TypeArray,
				Description: "Ambiguous points or items requiring follow-up",
				Items:       &gollem.Parameter{Type: gollem.TypeString},
			},
			"key_points": {
				Type:        gollem.TypeArray,
				Description: "Important discussion topics in this segment",
				Items:       &gollem.Parameter{Type: gollem.TypeString},
			},
			"participants": {
				Type:        gollem.TypeArray,
				Description: "Participant names, with roles when identifiable",
				Items:       &gollem.Parameter{Type: gollem.TypeString},
			},
		},
	}
}

// deepResponseSchema is the structured output contract for the
// finalize-time deep analysis pass
func deepResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "DeepAnalysisResponse",
		Description: "Session synopsis and milestone list",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"synopsis": {
				Type:        gollem.TypeString,
				Description: "Narrative summary of the whole meeting",
				Required:    true,
			},
			"milestones": {
				Type:        gollem.TypeArray,
				Description: "Significant outcomes, commitments and dates",
				Items:       &gollem.Parameter{Type: gollem.TypeString},
				Required:    true,
			},
		},
	}
}
