// Package patch parses, validates, and applies unified diffs. It is the
// sole component permitted to mutate files in the working directory, and
// the sole component that can undo those mutations.
package patch

// Hunk is a single contiguous change block within a unified diff.
type Hunk struct {
	OriginalStart int
	OriginalCount int
	ModifiedStart int
	ModifiedCount int
	ContextBefore []string
	Removals      []string
	Additions     []string
	ContextAfter  []string
}

// FilePatch groups every hunk touching one file. OriginalFile or
// ModifiedFile may be the sentinel "/dev/null" to denote creation/deletion.
type FilePatch struct {
	OriginalFile string
	ModifiedFile string
	OriginalHash string
	Hunks        []Hunk
}

const DevNull = "/dev/null"

// IsCreate reports whether this patch creates a new file.
func (p FilePatch) IsCreate() bool { return p.OriginalFile == DevNull }

// IsDelete reports whether this patch deletes an existing file.
func (p FilePatch) IsDelete() bool { return p.ModifiedFile == DevNull }

// TargetPath returns the path the patch ultimately refers to (working-dir
// relative), preferring the modified side unless this is a deletion.
func (p FilePatch) TargetPath() string {
	if p.IsDelete() {
		return p.OriginalFile
	}
	return p.ModifiedFile
}

// Reject describes a hunk that could not be placed against current content.
type Reject struct {
	File          string
	OriginalStart int
	Reason        string
}

// PatchValidation is the result of Validate.
type PatchValidation struct {
	IsValid bool
	Stats   Stats
	Errors  []string
	Warnings []string
}

// Stats summarizes a diff's size.
type Stats struct {
	FilesChanged int
	HunksTotal   int
	Additions    int
	Deletions    int
}

// ApplyResult is the result of Apply.
type ApplyResult struct {
	Success       bool
	AppliedHunks  int
	FailedHunks   int
	Rejects       []Reject
	ModifiedFiles []string
	Annotations   []string
}
