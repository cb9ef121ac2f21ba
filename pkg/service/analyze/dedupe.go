package analyze

import (
	"regexp"
	"strings"

	"github.com/secmon-lab/pilot/pkg/domain/model"
)

var nonWordPattern = regexp.MustCompile(`[^a-z0-9\s]+`)

// isDuplicate reports whether a candidate description is close enough to a
// prior item to be the same task. Token Jaccard overlap; best-effort, not
// an exactness guarantee.
func isDuplicate(candidate string, prior []*model.ActionItem) (bool, string) {
	candTokens := tokenize(candidate)
	if len(candTokens) == 0 {
		return false, ""
	}

	for _, item := range prior {
		if jaccard(candTokens, tokenize(item.Description)) >= dedupeSimilarity {
			return true, item.Description
		}
	}
	return false, ""
}

func tokenize(s string) map[string]struct{} {
	s = nonWordPattern.ReplaceAllString(strings.ToLower(s), " ")
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		if len(t) < 3 {
			continue
		}
		tokens[t] = struct{}{}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
