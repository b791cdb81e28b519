package contextengine

import (
	"github.com/codeorc/orchestrator/internal/patch"
)

// AnalyzeChanges parses a unified diff's hunk headers to extract modified
// line ranges per file, then reports every indexed Symbol whose range
// intersects a modified range, plus every test mapped to an impacted file.
func (e *Engine) AnalyzeChanges(diffText string) (AnalyzeResult, error) {
	patches, err := patch.ParseUnifiedDiff(diffText)
	if err != nil {
		return AnalyzeResult{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var result AnalyzeResult
	testSet := make(map[string]bool)

	for _, p := range patches {
		filePath := p.TargetPath()
		result.Files = append(result.Files, filePath)

		var ranges []LineRange
		for _, h := range p.Hunks {
			count := h.ModifiedCount
			if count <= 0 {
				count = 1
			}
			ranges = append(ranges, LineRange{Start: h.ModifiedStart, End: h.ModifiedStart + count - 1})
		}

		fc, ok := e.fileIndex[filePath]
		if !ok {
			continue
		}

		impacted := false
		for _, sym := range fc.Symbols {
			if symbolIntersectsAny(sym, ranges) {
				result.Symbols = append(result.Symbols, sym)
				impacted = true
			}
		}
		if len(ranges) > 0 {
			impacted = true
		}

		if impacted {
			for t := range e.testMapping[filePath] {
				testSet[t] = true
			}
		}
	}

	for t := range testSet {
		result.Tests = append(result.Tests, t)
	}

	return result, nil
}

func symbolIntersectsAny(sym Symbol, ranges []LineRange) bool {
	for _, r := range ranges {
		if sym.LineStart <= r.End && r.Start <= sym.LineEnd {
			return true
		}
	}
	return false
}
