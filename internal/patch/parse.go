package patch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
var hashCommentRe = regexp.MustCompile(`^# original_hash:\s*(\S+)`)

// ParseUnifiedDiff parses standard unified-diff text (possibly containing
// several files) into an ordered list of FilePatches. Omitted hunk-header
// counts default to 1, matching the unified diff convention.
func ParseUnifiedDiff(diffText string) ([]FilePatch, error) {
	lines := strings.Split(diffText, "\n")

	var patches []FilePatch
	var cur *FilePatch
	var curHunk *Hunk
	pendingHash := ""

	flushHunk := func() {
		if cur != nil && curHunk != nil {
			cur.Hunks = append(cur.Hunks, *curHunk)
			curHunk = nil
		}
	}
	flushPatch := func() {
		flushHunk()
		if cur != nil {
			patches = append(patches, *cur)
			cur = nil
		}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]

		if m := hashCommentRe.FindStringSubmatch(line); m != nil {
			pendingHash = m[1]
			i++
			continue
		}

		if strings.HasPrefix(line, "--- ") {
			flushPatch()
			cur = &FilePatch{
				OriginalFile: cleanFileHeader(line[4:]),
				OriginalHash: pendingHash,
			}
			pendingHash = ""
			i++
			// expect a +++ line next
			if i < len(lines) && strings.HasPrefix(lines[i], "+++ ") {
				cur.ModifiedFile = cleanFileHeader(lines[i][4:])
				i++
			}
			continue
		}

		if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
			if cur == nil {
				return nil, fmt.Errorf("hunk header before any file header at line %d", i+1)
			}
			flushHunk()
			curHunk = &Hunk{
				OriginalStart: atoiDefault(m[1], 0),
				OriginalCount: atoiDefaultOne(m[2]),
				ModifiedStart: atoiDefault(m[3], 0),
				ModifiedCount: atoiDefaultOne(m[4]),
			}
			i++
			continue
		}

		if curHunk != nil {
			if line == "" && i == len(lines)-1 {
				i++
				continue
			}
			switch {
			case strings.HasPrefix(line, " "):
				text := line[1:]
				curHunk.ContextBefore, curHunk.ContextAfter = appendContext(curHunk, text)
			case strings.HasPrefix(line, "-"):
				curHunk.Removals = append(curHunk.Removals, line[1:])
			case strings.HasPrefix(line, "+"):
				curHunk.Additions = append(curHunk.Additions, line[1:])
			case strings.HasPrefix(line, "\\"):
				// "\ No newline at end of file" — ignored for matching purposes.
			default:
				// A line with no diff prefix ends the current hunk's body.
				flushHunk()
			}
			i++
			continue
		}

		i++
	}
	flushPatch()

	return patches, nil
}

// appendContext routes a context line to ContextBefore while no removal or
// addition has been seen yet for this hunk, and to ContextAfter once one has.
func appendContext(h *Hunk, text string) ([]string, []string) {
	if len(h.Removals) == 0 && len(h.Additions) == 0 {
		return append(h.ContextBefore, text), h.ContextAfter
	}
	return h.ContextBefore, append(h.ContextAfter, text)
}

func cleanFileHeader(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\t"); idx != -1 {
		s = s[:idx]
	}
	return s
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atoiDefaultOne(s string) int {
	if s == "" {
		return 1
	}
	return atoiDefault(s, 1)
}
