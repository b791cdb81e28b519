package contextengine

import (
	"regexp"
	"sort"
	"strings"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "with": true,
	"this": true, "from": true, "have": true, "are": true, "was": true,
	"were": true, "has": true, "not": true, "but": true, "can": true,
}

var fileMentionRe = regexp.MustCompile(`["']?([\w./-]+\.\w{1,5})["']?`)
var wordRe = regexp.MustCompile(`[\w]+`)

// extractKeyTerms returns lowercase tokens of length >= 3 with stop words
// removed.
func extractKeyTerms(goal string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, w := range wordRe.FindAllString(strings.ToLower(goal), -1) {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// extractFileMentions returns explicit file-like tokens quoted or dotted in
// the goal text (e.g. "server.py", pkg/bar.go).
func extractFileMentions(goal string) []string {
	var mentions []string
	for _, m := range fileMentionRe.FindAllStringSubmatch(goal, -1) {
		mentions = append(mentions, m[1])
	}
	return mentions
}

func mentionsFile(mentions []string, path string) bool {
	base := strings.ToLower(pathBase(path))
	for _, m := range mentions {
		lm := strings.ToLower(m)
		if lm == strings.ToLower(path) || lm == base || strings.HasSuffix(strings.ToLower(path), lm) {
			return true
		}
	}
	return false
}

func pathBase(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx == -1 {
		return path
	}
	return path[idx+1:]
}

// scoreFile implements the weighted relevance scoring over a goal's terms.
func (e *Engine) scoreFile(fc *FileContext, terms, mentions []string) float64 {
	var score float64

	if mentionsFile(mentions, fc.Path) {
		score += 10
	}

	lowerPath := strings.ToLower(fc.Path)
	lowerContent := strings.ToLower(fc.Content)

	for _, t := range terms {
		if strings.Contains(lowerPath, t) {
			score += 2
		}
		occ := strings.Count(lowerContent, t)
		if occ > 5 {
			occ = 5
		}
		score += float64(occ) * 0.5

		for _, sym := range fc.Symbols {
			if strings.Contains(strings.ToLower(sym.Name), t) {
				score += 3
			}
			if sym.Docstring != "" && strings.Contains(strings.ToLower(sym.Docstring), t) {
				score += 1
			}
		}
	}

	for imp := range e.importGraph[fc.Path] {
		if mentionsFile(mentions, imp) {
			score += 1.5
		}
	}

	return score
}

func estimateCost(s string) int {
	// character count / 4, the engine's approximation of token cost.
	return len(s) / 4
}

// Retrieve ranks indexed files by relevance to goal and emits a
// budget-bounded bundle: full content for top-ranked files until the
// running estimated cost would exceed budgetTokens, then path-and-hash-only
// stubs for every remaining ranked file so none are silently dropped.
func (e *Engine) Retrieve(goal string, budgetTokens int) RetrievalResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	terms := extractKeyTerms(goal)
	mentions := extractFileMentions(goal)

	type scored struct {
		fc    *FileContext
		score float64
	}
	var ranked []scored
	for _, fc := range e.fileIndex {
		s := e.scoreFile(fc, terms, mentions)
		if s > 0 {
			ranked = append(ranked, scored{fc, s})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].fc.Path < ranked[j].fc.Path
	})

	result := RetrievalResult{ConfigFiles: append([]string{}, e.configFiles...)}

	budget := budgetTokens
	overflowed := false
	used := 0

	for _, r := range ranked {
		if overflowed {
			// every remaining ranked file still appears, path+hash only
			entry := RetrievedFile{Path: r.fc.Path, Hash: r.fc.Hash, Score: r.score, Truncated: true}
			cost := estimateCost(entry.Path + entry.Hash)
			used += cost
			result.Files = append(result.Files, entry)
			continue
		}

		cost := estimateCost(r.fc.Content)
		if used+cost > budget {
			ranges := findRelevantRanges(r.fc.Content, terms)
			entry := RetrievedFile{Path: r.fc.Path, Hash: r.fc.Hash, Score: r.score, Ranges: ranges, Truncated: true}
			entryCost := estimateCost(entry.Path + entry.Hash)
			for _, rg := range ranges {
				entryCost += estimateCost(extractLines(r.fc.Content, rg))
			}
			used += entryCost
			result.Files = append(result.Files, entry)
			overflowed = true
			continue
		}

		used += cost
		result.Files = append(result.Files, RetrievedFile{
			Path:    r.fc.Path,
			Hash:    r.fc.Hash,
			Score:   r.score,
			Content: r.fc.Content,
		})
	}

	result.TokenCount = used
	return result
}

// findRelevantRanges locates lines containing a key term, expands each hit
// by +/-2 lines, and merges ranges that touch or overlap.
func findRelevantRanges(content string, terms []string) []LineRange {
	lines := strings.Split(content, "\n")
	var raw []LineRange
	for i, line := range lines {
		lower := strings.ToLower(line)
		hit := false
		for _, t := range terms {
			if strings.Contains(lower, t) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		start := i - 1
		if start < 0 {
			start = 0
		}
		end := i + 3
		if end > len(lines) {
			end = len(lines)
		}
		raw = append(raw, LineRange{Start: start + 1, End: end})
	}
	if len(raw) == 0 {
		return nil
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].Start < raw[j].Start })

	merged := []LineRange{raw[0]}
	for _, r := range raw[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

func extractLines(content string, r LineRange) string {
	lines := strings.Split(content, "\n")
	start := r.Start - 1
	if start < 0 {
		start = 0
	}
	end := r.End
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}
