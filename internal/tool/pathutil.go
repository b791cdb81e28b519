package tool

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinWorkDir resolves filePath (absolute or working-dir
// relative) to an absolute path and rejects it if it escapes workDir,
// guarding file-touching tools against path traversal.
func ValidatePathWithinWorkDir(filePath, workDir string) (string, error) {
	target := filePath
	if !filepath.IsAbs(target) {
		target = filepath.Join(workDir, target)
	}

	absPath, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}

	withSep := absWorkDir
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep += string(filepath.Separator)
	}

	if absPath != absWorkDir && !strings.HasPrefix(absPath, withSep) {
		return "", fmt.Errorf("access denied: path outside working directory")
	}

	return absPath, nil
}
