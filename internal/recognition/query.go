package recognition

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxQueries        = 10
	maxEntityQueries  = 8
	minEntityScore    = 0.2
	minQueryTermRunes = 3
)

var (
	genericEntity   = regexp.MustCompile(`(?i)\b(books?|novels?|series|comics?)\b`)
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}\s':\-]`)
	spaces          = regexp.MustCompile(`\s+`)
)

// BuildQueries turns signals into deduplicated exact-title queries: labels
// first, then confident web entities, then OCR lines.
func BuildQueries(s Signals) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(term string) {
		term = strings.TrimSpace(spaces.ReplaceAllString(term, " "))
		if utf8.RuneCountInString(term) < minQueryTermRunes {
			return
		}
		q := `intitle:"` + term + `"`
		if _, dup := seen[q]; dup {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}

	for _, label := range s.BestGuessLabels {
		add(label)
	}

	taken := 0
	for _, e := range s.WebEntities {
		if e.Score <= minEntityScore {
			continue
		}
		if taken == maxEntityQueries {
			break
		}
		taken++
		if e.Description == "" || genericEntity.MatchString(e.Description) {
			continue
		}
		add(e.Description)
	}

	for _, line := range s.TitleLines {
		add(disallowedChars.ReplaceAllString(line, ""))
	}

	if len(out) > maxQueries {
		out = out[:maxQueries]
	}
	return out
}
