package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codeorc/orchestrator/internal/orcerr"
	"github.com/codeorc/orchestrator/internal/tool"
)

// Engine applies and rolls back unified diffs against a working directory.
// One Engine instance is scoped to a single task so that its snapshot map
// lives exactly as long as the task does.
type Engine struct {
	workDir string

	mu               sync.Mutex
	originalContents map[string]string // path -> pre-mutation snapshot
	appliedContents  map[string]string // path -> content written by the last Apply
}

// New constructs an Engine rooted at workDir.
func New(workDir string) *Engine {
	return &Engine{
		workDir:          workDir,
		originalContents: make(map[string]string),
		appliedContents:  make(map[string]string),
	}
}

// abs resolves path against the engine's working directory and rejects it
// if it would escape that directory, the same guard the tool layer applies
// to every file-touching tool call.
func (e *Engine) abs(path string) (string, error) {
	return tool.ValidatePathWithinWorkDir(path, e.workDir)
}

// Validate parses diffText and checks it for structural validity without
// mutating anything.
func (e *Engine) Validate(diffText string) (PatchValidation, []FilePatch, error) {
	patches, err := ParseUnifiedDiff(diffText)
	if err != nil {
		return PatchValidation{IsValid: false, Errors: []string{err.Error()}}, nil, nil
	}
	if len(patches) == 0 {
		return PatchValidation{IsValid: false, Errors: []string{orcerr.ErrNoValidPatches.Error()}}, nil, orcerr.ErrNoValidPatches
	}

	v := PatchValidation{IsValid: true}
	v.Stats.FilesChanged = len(patches)

	for _, p := range patches {
		v.Stats.HunksTotal += len(p.Hunks)

		var fileLineCount int
		var existingContent string
		target, pathErr := e.abs(p.TargetPath())
		if pathErr != nil {
			v.IsValid = false
			v.Errors = append(v.Errors, pathErr.Error())
			continue
		}
		if data, readErr := os.ReadFile(target); readErr == nil {
			existingContent = string(data)
			fileLineCount = strings.Count(existingContent, "\n") + 1
		}

		if !p.IsCreate() && p.OriginalHash != "" && existingContent != "" {
			if contentHash(existingContent) != p.OriginalHash {
				v.IsValid = false
				v.Errors = append(v.Errors, fmt.Sprintf("hash mismatch for %s", p.TargetPath()))
			}
		}

		changedLines := 0
		for _, h := range p.Hunks {
			v.Stats.Additions += len(h.Additions)
			v.Stats.Deletions += len(h.Removals)
			changedLines += len(h.Additions) + len(h.Removals)
		}

		if fileLineCount > 0 && float64(changedLines)/float64(fileLineCount) > 0.8 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("%s: hunk modifies more than 80%% of file lines", p.TargetPath()))
		}
	}

	if v.Stats.Additions > 1000 {
		v.Warnings = append(v.Warnings, "diff adds more than 1000 lines")
	}
	if v.Stats.Deletions > 500 {
		v.Warnings = append(v.Warnings, "diff removes more than 500 lines")
	}

	return v, patches, nil
}

// Apply mutates the working directory according to patches, in input order.
// A file whose own hunks fail to place is left untouched (its snapshot is
// restored if any hunk had already been applied) — failures are scoped per
// file, never shared across the whole diff.
func (e *Engine) Apply(patches []FilePatch) ApplyResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := ApplyResult{Success: true}

	for _, p := range patches {
		switch {
		case p.IsCreate():
			target, pathErr := e.abs(p.ModifiedFile)
			if pathErr != nil {
				result.Rejects = append(result.Rejects, Reject{File: p.ModifiedFile, Reason: pathErr.Error()})
				result.FailedHunks += len(p.Hunks)
				result.Success = false
				continue
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				result.Rejects = append(result.Rejects, Reject{File: p.ModifiedFile, Reason: err.Error()})
				result.FailedHunks += len(p.Hunks)
				result.Success = false
				continue
			}
			var parts []string
			for _, h := range p.Hunks {
				parts = append(parts, h.Additions...)
			}
			content := strings.Join(parts, "\n")
			if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
				result.Rejects = append(result.Rejects, Reject{File: p.ModifiedFile, Reason: err.Error()})
				result.FailedHunks += len(p.Hunks)
				result.Success = false
				continue
			}
			e.appliedContents[p.ModifiedFile] = content
			result.AppliedHunks += len(p.Hunks)
			result.ModifiedFiles = append(result.ModifiedFiles, p.ModifiedFile)

		case p.IsDelete():
			target, pathErr := e.abs(p.OriginalFile)
			if pathErr != nil {
				result.Rejects = append(result.Rejects, Reject{File: p.OriginalFile, Reason: pathErr.Error()})
				result.FailedHunks += len(p.Hunks)
				result.Success = false
				continue
			}
			if data, err := os.ReadFile(target); err == nil {
				e.snapshot(p.OriginalFile, string(data))
				_ = os.Remove(target)
				result.ModifiedFiles = append(result.ModifiedFiles, p.OriginalFile)
			}
			result.AppliedHunks += len(p.Hunks)

		default:
			e.applyModify(p, &result)
		}
	}

	return result
}

func (e *Engine) snapshot(path, content string) {
	if _, ok := e.originalContents[path]; !ok {
		e.originalContents[path] = content
	}
}

func (e *Engine) applyModify(p FilePatch, result *ApplyResult) {
	target, pathErr := e.abs(p.TargetPath())
	if pathErr != nil {
		result.Rejects = append(result.Rejects, Reject{File: p.TargetPath(), Reason: pathErr.Error()})
		result.FailedHunks += len(p.Hunks)
		result.Success = false
		return
	}
	data, err := os.ReadFile(target)
	if err != nil {
		for _, h := range p.Hunks {
			result.Rejects = append(result.Rejects, Reject{File: p.TargetPath(), OriginalStart: h.OriginalStart, Reason: "file not found"})
		}
		result.FailedHunks += len(p.Hunks)
		result.Success = false
		return
	}
	original := string(data)
	e.snapshot(p.TargetPath(), original)

	lines := strings.Split(original, "\n")

	hunks := make([]Hunk, len(p.Hunks))
	copy(hunks, p.Hunks)
	sortHunksDescending(hunks)

	var fileRejects []Reject
	fileFailed := 0
	fileApplied := 0
	var annotations []string

	for _, h := range hunks {
		newLines, ok, fuzzy, score := applyHunk(lines, h)
		if !ok {
			fileRejects = append(fileRejects, Reject{File: p.TargetPath(), OriginalStart: h.OriginalStart, Reason: "no matching context"})
			fileFailed++
			continue
		}
		lines = newLines
		fileApplied++
		if fuzzy {
			annotations = append(annotations, fmt.Sprintf("%s: hunk at line %d applied via fuzzy match (similarity %.2f)", p.TargetPath(), h.OriginalStart, score))
		}
	}

	if fileFailed > 0 {
		// atomic per-file apply: restore the snapshot rather than leaving a
		// partially-edited file on disk.
		result.Rejects = append(result.Rejects, fileRejects...)
		result.FailedHunks += fileFailed
		result.Success = false
		return
	}

	newContent := strings.Join(lines, "\n")
	if err := os.WriteFile(target, []byte(newContent), 0o644); err != nil {
		result.Rejects = append(result.Rejects, Reject{File: p.TargetPath(), Reason: err.Error()})
		result.FailedHunks += len(hunks)
		result.Success = false
		return
	}

	e.appliedContents[p.TargetPath()] = newContent
	result.AppliedHunks += fileApplied
	result.ModifiedFiles = append(result.ModifiedFiles, p.TargetPath())
	result.Annotations = append(result.Annotations, annotations...)
}

func sortHunksDescending(hunks []Hunk) {
	for i := 1; i < len(hunks); i++ {
		for j := i; j > 0 && hunks[j].OriginalStart > hunks[j-1].OriginalStart; j-- {
			hunks[j], hunks[j-1] = hunks[j-1], hunks[j]
		}
	}
}

// Rollback restores every snapshotted path to its pre-mutation content and
// clears the snapshot map. Idempotent.
func (e *Engine) Rollback() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for path, content := range e.originalContents {
		target, err := e.abs(path)
		if err != nil {
			return fmt.Errorf("rollback %s: %w", path, err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("rollback %s: %w", path, err)
		}
	}
	e.originalContents = make(map[string]string)
	e.appliedContents = make(map[string]string)
	return nil
}
