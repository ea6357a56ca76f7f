package recognition

import (
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultCandidateCount = 5
	minCandidateCount     = 3
	maxCandidateCount     = 8

	titleMatchWeight  = 2.0
	authorMatchWeight = 1.5
	koreanBonus       = 1.0
	coverBonus        = 0.5
)

// ClampCount maps a requested candidate count into [3, 8]. Zero or negative
// means the default of 5.
func ClampCount(n int) int {
	switch {
	case n <= 0:
		return DefaultCandidateCount
	case n < minCandidateCount:
		return minCandidateCount
	case n > maxCandidateCount:
		return maxCandidateCount
	}
	return n
}

// SignalBags holds the normalized evidence a candidate is matched against.
type SignalBags struct {
	Labels   []string
	Entities []string
	Lines    []string
}

// NewSignalBags keeps the top 3 labels, up to 5 entities scored at least 0.3
// and the top 3 OCR lines.
func NewSignalBags(s Signals) SignalBags {
	var b SignalBags
	for _, l := range firstN(s.BestGuessLabels, 3) {
		b.Labels = appendNormalized(b.Labels, l)
	}
	for _, e := range s.WebEntities {
		if len(b.Entities) == 5 {
			break
		}
		if e.Score >= 0.3 {
			b.Entities = appendNormalized(b.Entities, e.Description)
		}
	}
	for _, l := range firstN(s.TitleLines, 3) {
		b.Lines = appendNormalized(b.Lines, l)
	}
	return b
}

func (b SignalBags) all() [][]string {
	return [][]string{b.Labels, b.Entities, b.Lines}
}

// Score computes the additive substring-match score of c.
func Score(c Candidate, bags SignalBags) float64 {
	title := Normalize(c.Title)
	authors := Normalize(strings.Join(c.Authors, " "))

	var score float64
	for _, bag := range bags.all() {
		for _, sig := range bag {
			if strings.Contains(title, sig) {
				score += titleMatchWeight
			}
			if authors != "" && strings.Contains(authors, sig) {
				score += authorMatchWeight
			}
		}
	}
	if c.Language == "ko" {
		score += koreanBonus
	}
	if c.CoverURL != "" {
		score += coverBonus
	}
	return score
}

// Rank scores every candidate, sorts by descending score keeping insertion
// order for ties and truncates to ClampCount(count).
func Rank(cands []Candidate, bags SignalBags, count int) []Candidate {
	for i := range cands {
		cands[i].Score = Score(cands[i], bags)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score > cands[j].Score
	})
	if n := ClampCount(count); len(cands) > n {
		cands = cands[:n]
	}
	return cands
}

// Normalize lowercases s and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ParseYear reads the leading four digits of a date-like string.
func ParseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil
	}
	return &y
}

func appendNormalized(dst []string, s string) []string {
	if n := Normalize(s); n != "" {
		dst = append(dst, n)
	}
	return dst
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
