package classify

import (
	"strings"
	"unicode"
)

// normalize lower-cases s, turns every run of non-alphanumerics into a single
// space and pads the result so keywords can be matched on word boundaries.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// keywordSet is a list of normalized phrases, each padded with spaces.
type keywordSet []string

func newKeywordSet(words ...string) keywordSet {
	set := make(keywordSet, 0, len(words))
	for _, w := range words {
		n := normalize(w)
		if strings.TrimSpace(n) == "" {
			continue
		}
		set = append(set, n)
	}
	return set
}

// matches expects text already passed through normalize.
func (k keywordSet) matches(text string) bool {
	if len(text) <= 1 {
		return false
	}
	for _, w := range k {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
