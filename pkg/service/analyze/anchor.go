package analyze

import "regexp"

var anchorPattern = regexp.MustCompile(`\[\d+\]`)

// anchorsPreserved verifies the cleaned text still carries every footnote
// anchor of the original, in the same order. A model that rewrites or drops
// anchors invalidates the footnote table, so callers fall back to the
// original text when this fails.
func anchorsPreserved(original, cleaned string) bool {
	want := anchorPattern.FindAllString(original, -1)
	got := anchorPattern.FindAllString(cleaned, -1)
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}
