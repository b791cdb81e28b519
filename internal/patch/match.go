package patch

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// expectedLines reconstructs the hunk's original-side content, the sequence
// a correctly-positioned hunk should find at its target line.
func expectedLines(h Hunk) []string {
	out := make([]string, 0, len(h.ContextBefore)+len(h.Removals)+len(h.ContextAfter))
	out = append(out, h.ContextBefore...)
	out = append(out, h.Removals...)
	out = append(out, h.ContextAfter...)
	return out
}

func replacementLines(h Hunk) []string {
	out := make([]string, 0, len(h.ContextBefore)+len(h.Additions)+len(h.ContextAfter))
	out = append(out, h.ContextBefore...)
	out = append(out, h.Additions...)
	out = append(out, h.ContextAfter...)
	return out
}

func rstrip(s string) string {
	return strings.TrimRight(s, " \t\r")
}

func stripEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if rstrip(a[i]) != rstrip(b[i]) {
			return false
		}
	}
	return true
}

func windowMatchFraction(window, expected []string) float64 {
	if len(expected) == 0 {
		return 0
	}
	n := len(window)
	if n > len(expected) {
		n = len(expected)
	}
	matches := 0
	for i := 0; i < n; i++ {
		if strings.TrimSpace(window[i]) == strings.TrimSpace(expected[i]) {
			matches++
		}
	}
	return float64(matches) / float64(len(expected))
}

// applyHunk attempts exact matching at the hunk's declared position, then
// falls back to a fuzzy window search within +/-20 lines, accepting only a
// match whose whitespace-stripped line fraction is >= 0.80. It returns the
// new full line slice, whether a match was found, whether it was fuzzy, and
// the similarity score of the accepted window (1.0 for an exact match).
func applyHunk(lines []string, h Hunk) (result []string, ok bool, fuzzy bool, score float64) {
	expected := expectedLines(h)
	replacement := replacementLines(h)
	pos := h.OriginalStart - 1
	if pos < 0 {
		pos = 0
	}

	if pos+len(expected) <= len(lines) && stripEqual(lines[pos:pos+len(expected)], expected) {
		out := make([]string, 0, len(lines)-len(expected)+len(replacement))
		out = append(out, lines[:pos]...)
		out = append(out, replacement...)
		out = append(out, lines[pos+len(expected):]...)
		return out, true, false, 1.0
	}

	bestScore := 0.0
	bestPos := -1
	lo := pos - 20
	if lo < 0 {
		lo = 0
	}
	hi := pos + 20
	if hi > len(lines)-len(expected) {
		hi = len(lines) - len(expected)
	}
	for candidate := lo; candidate <= hi; candidate++ {
		if candidate < 0 || candidate+len(expected) > len(lines) {
			continue
		}
		s := windowMatchFraction(lines[candidate:candidate+len(expected)], expected)
		if s > bestScore {
			bestScore = s
			bestPos = candidate
		}
	}

	if bestPos >= 0 && bestScore >= 0.80 {
		out := make([]string, 0, len(lines)-len(expected)+len(replacement))
		out = append(out, lines[:bestPos]...)
		out = append(out, replacement...)
		out = append(out, lines[bestPos+len(expected):]...)
		return out, true, true, bestScore
	}

	return nil, false, false, 0
}
