package model

import "strings"

// Identity is the configured user identity: a canonical name plus the
// spelling variants a transcription provider commonly produces for it.
type Identity struct {
	Name       string
	Variations []string
}

// IsZero reports whether no identity is configured
func (i Identity) IsZero() bool {
	return i.Name == ""
}

// Matches reports whether the detected name refers to the configured user.
// Comparison is case-insensitive and tolerates surrounding whitespace; a
// detected full name matches when any of its words equals the canonical
// name or a variant.
func (i Identity) Matches(detected string) bool {
	if i.IsZero() || detected == "" {
		return false
	}

	candidates := append([]string{i.Name}, i.Variations...)
	detected = strings.ToLower(strings.TrimSpace(detected))

	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if detected == c {
			return true
		}
		for _, word := range strings.Fields(detected) {
			if word == c {
				return true
			}
		}
	}
	return false
}
