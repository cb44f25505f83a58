package grid

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// PreviewRunes is the longest preview shown on a square.
const PreviewRunes = 60

// fencePattern matches fenced code block delimiters (``` or ~~~), allowing
// up to three spaces of indentation.
var fencePattern = regexp.MustCompile("^[ ]{0,3}(`{3,}|~{3,})")

// markerPattern strips the leading markdown syntax of a line: headings,
// quotes, list bullets, numbered items and task boxes.
var markerPattern = regexp.MustCompile(`^(?:#{1,6}\s+|>\s*|[-*+]\s+(?:\[[ xX]\]\s+)?|\d+[.)]\s+)+`)

// Preview returns the first line of a markdown memo that carries text,
// without its markdown markers, cut to PreviewRunes. Lines inside fenced
// code blocks are skipped; a closing fence must use the opening character
// and be at least as long.
func Preview(memo string) string {
	var fenceChar byte
	var fenceLen int

	for _, line := range strings.Split(memo, "\n") {
		if m := fencePattern.FindStringSubmatch(line); m != nil {
			fence := m[1]
			switch {
			case fenceLen == 0:
				fenceChar, fenceLen = fence[0], len(fence)
			case fence[0] == fenceChar && len(fence) >= fenceLen:
				fenceLen = 0
			}
			continue
		}
		if fenceLen > 0 {
			continue
		}

		text := strings.TrimSpace(markerPattern.ReplaceAllString(strings.TrimSpace(line), ""))
		if text == "" || strings.Trim(text, "-=*_ ") == "" {
			continue
		}
		return truncate(text, PreviewRunes)
	}
	return ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n-1]), " ") + "…"
}
