package analyze

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/pilot/pkg/domain/model"
)

func TestIsDuplicate(t *testing.T) {
	prior := []*model.ActionItem{
		{Description: "Send the deploy schedule to the infra team"},
		{Description: "Book the quarterly review room"},
	}

	dup, match := isDuplicate("Send the deploy schedule to the infra team.", prior)
	gt.Value(t, dup).Equal(true)
	gt.Value(t, match).Equal("Send the deploy schedule to the infra team")

	// Case and punctuation do not matter
	dup, _ = isDuplicate("send THE deploy schedule, to the infra team", prior)
	gt.Value(t, dup).Equal(true)

	dup, _ = isDuplicate("Write the incident postmortem", prior)
	gt.Value(t, dup).Equal(false)

	dup, _ = isDuplicate("", prior)
	gt.Value(t, dup).Equal(false)

	dup, _ = isDuplicate("at of to", prior)
	gt.Value(t, dup).Equal(false)
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	tokens := tokenize("Go to the BIG meeting at 9am!")
	_, hasTo := tokens["to"]
	gt.Value(t, hasTo).Equal(false)
	_, hasBig := tokens["big"]
	gt.Value(t, hasBig).Equal(true)
	_, hasMeeting := tokens["meeting"]
	gt.Value(t, hasMeeting).Equal(true)
}

func TestJaccard(t *testing.T) {
	a := tokenize("ship the release build")
	gt.Value(t, jaccard(a, a)).Equal(1.0)
	gt.Value(t, jaccard(a, tokenize("completely different words"))).Equal(0.0)
	gt.Value(t, jaccard(a, map[string]struct{}{})).Equal(0.0)
}

func TestAnchorsPreserved(t *testing.T) {
	original := "we decided maybe thursday[1] and the budget cap[2] holds"

	gt.Value(t, anchorsPreserved(original,
		"We decided maybe Thursday[1] and the budget cap[2] holds.")).Equal(true)

	// Dropped anchor
	gt.Value(t, anchorsPreserved(original,
		"We decided maybe Thursday and the budget cap[2] holds.")).Equal(false)

	// Reordered anchors
	gt.Value(t, anchorsPreserved(original,
		"We decided maybe Thursday[2] and the budget cap[1] holds.")).Equal(false)

	// Invented anchor
	gt.Value(t, anchorsPreserved(original,
		"We decided maybe Thursday[1] and[3] the budget cap[2] holds.")).Equal(false)

	gt.Value(t, anchorsPreserved("no anchors here", "still none")).Equal(true)
}
