package recognition

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	minTitleLineRunes = 3
	maxTitleLines     = 5
)

// Lines that look like links, barcodes or edition/series markers rarely carry
// the title.
var noiseLine = regexp.MustCompile(`(?i)(https?://|www\.|\.com\b|isbn|barcode|\bsubtitle\b|\bseries\b|\bedition\b|\bvol(ume)?\.?\s*\d|부제|시리즈|개정판|초판|특별판|에디션|\d+\s*권)`)

// ExtractTitleLines reduces OCR text to at most five title-like lines, longest
// first.
func ExtractTitleLines(text string) []string {
	text = norm.NFC.String(text)

	seen := make(map[string]struct{})
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if utf8.RuneCountInString(line) < minTitleLineRunes {
			continue
		}
		if noiseLine.MatchString(line) {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return utf8.RuneCountInString(lines[i]) > utf8.RuneCountInString(lines[j])
	})
	if len(lines) > maxTitleLines {
		lines = lines[:maxTitleLines]
	}
	return lines
}
