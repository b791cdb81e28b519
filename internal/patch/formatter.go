package patch

import (
	"os"

	"github.com/aymanbagabas/go-udiff"
)

// GetFormatterDiff compares on-disk content against the pre-apply snapshots
// and returns a unified diff describing any out-of-band change (for example
// one made by a formatter run between Apply and this call). It returns the
// empty string if nothing changed outside of what Apply itself wrote.
func (e *Engine) GetFormatterDiff() (string, error) {
	e.mu.Lock()
	applied := make(map[string]string, len(e.appliedContents))
	for k, v := range e.appliedContents {
		applied[k] = v
	}
	e.mu.Unlock()

	var combined string
	for path, appliedContent := range applied {
		target, pathErr := e.abs(path)
		if pathErr != nil {
			continue
		}
		data, err := os.ReadFile(target)
		if err != nil {
			continue
		}
		current := string(data)
		if current == appliedContent {
			continue
		}

		edits := udiff.Strings(appliedContent, current)
		if len(edits) == 0 {
			continue
		}
		unified, err := udiff.ToUnified(path, path, appliedContent, edits, udiff.DefaultContextLines)
		if err != nil {
			return "", err
		}
		combined += unified
	}

	return combined, nil
}
