package model

import (
	"errors"
	"strings"
)

var errNoJSON = errors.New("no valid JSON object found in response")

// extractJSONObject locates the first top-level JSON object in response,
// preferring a fenced ```json block. Brace matching tracks nested depth
// rather than slicing from the first "{" to the last "}", so a "}" inside
// a string value elsewhere in the response does not truncate the object
// early or swallow trailing content.
func extractJSONObject(response string) ([]byte, error) {
	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return []byte(strings.TrimSpace(response[start : start+end])), nil
		}
	}

	start := strings.IndexByte(response, '{')
	if start == -1 {
		return nil, errNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(response[start : i+1]), nil
			}
		}
	}

	return nil, errNoJSON
}

var diffLinePrefixes = []string{"---", "+++", "@@", "+", "-", " ", "\\"}

// extractDiff pulls a unified diff out of a free-form response: a
// ```diff fence first, then a generic fence containing diff markers, then a
// manual scan that starts at the first "---"/"+++" line and stops at the
// first subsequent line that doesn't carry a diff-line prefix. If nothing
// diff-shaped is found, the response is returned verbatim.
func extractDiff(response string) string {
	if idx := strings.Index(response, "```diff"); idx != -1 {
		start := idx + len("```diff")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	if strings.Contains(response, "```") && (strings.Contains(response, "---") || strings.Contains(response, "+++")) {
		start := strings.Index(response, "```") + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	lines := strings.Split(response, "\n")
	var diffLines []string
	inDiff := false

	for _, line := range lines {
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			inDiff = true
		}

		if inDiff {
			diffLines = append(diffLines, line)
		}

		if inDiff && line != "" && !hasDiffPrefix(line) {
			break
		}
	}

	if len(diffLines) > 0 {
		return strings.Join(diffLines, "\n")
	}

	return strings.TrimSpace(response)
}

func hasDiffPrefix(line string) bool {
	for _, p := range diffLinePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
