package testrunner

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var testNamePatterns = []string{
	"test_%s.py", "%s_test.py", "%s.test.js", "%s.spec.js", "%s_test.go",
}

// findTargetedTests mirrors the original _find_targeted_tests: start from
// the test files the Context Engine already mapped as impacted, add any
// test file matching a naming convention against an impacted file's base
// name, then scan every test file in the repo for a literal reference to an
// impacted symbol name (generalized across all test-file languages, not
// just *_test.py, since a Go or JS symbol rename needs the same treatment).
func findTargetedTests(workDir string, impacted Impacted) []string {
	targeted := make(map[string]bool)

	for _, t := range impacted.Tests {
		targeted[t] = true
	}

	for _, file := range impacted.Files {
		base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		for _, pattern := range testNamePatterns {
			name := strings.Replace(pattern, "%s", base, 1)
			for _, match := range findByName(workDir, name) {
				targeted[match] = true
			}
		}
	}

	if len(impacted.Symbols) > 0 {
		testFiles := findTestFiles(workDir)
		for _, symbol := range impacted.Symbols {
			for _, tf := range testFiles {
				if fileContains(filepath.Join(workDir, tf), symbol) {
					targeted[tf] = true
				}
			}
		}
	}

	out := make([]string, 0, len(targeted))
	for t := range targeted {
		out = append(out, t)
	}
	return out
}

func findByName(workDir, name string) []string {
	var matches []string
	_ = filepath.Walk(workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if info.Name() == "node_modules" || info.Name() == ".git" || info.Name() == "venv" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == name {
			rel, relErr := filepath.Rel(workDir, path)
			if relErr == nil {
				matches = append(matches, rel)
			}
		}
		return nil
	})
	return matches
}

func findTestFiles(workDir string) []string {
	var files []string
	_ = filepath.Walk(workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if info.Name() == "node_modules" || info.Name() == ".git" || info.Name() == "venv" {
				return filepath.SkipDir
			}
			return nil
		}
		base := strings.ToLower(info.Name())
		dir := strings.ToLower(filepath.Base(filepath.Dir(path)))
		if strings.Contains(base, "test") || strings.Contains(base, "spec") || dir == "test" || dir == "tests" {
			rel, relErr := filepath.Rel(workDir, path)
			if relErr == nil {
				files = append(files, rel)
			}
		}
		return nil
	})
	return files
}

func fileContains(path, needle string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), needle) {
			return true
		}
	}
	return false
}

// buildCommand assembles the shell command string for a framework, with or
// without a set of targeted test paths.
func buildCommand(fw FrameworkConfig, targeted []string) string {
	parts := append([]string{fw.Command}, fw.Args...)

	if len(targeted) == 0 {
		return strings.Join(parts, " ")
	}

	switch fw.Framework {
	case "jest":
		pattern := strings.Join(escapeAll(targeted), "|")
		parts = append(parts, `--testPathPattern="`+pattern+`"`)
	case "go":
		pkgs := make(map[string]bool)
		for _, t := range targeted {
			pkgs[filepath.Dir(t)] = true
		}
		parts = []string{"go", "test"}
		parts = append(parts, fw.Args...)
		for p := range pkgs {
			parts = append(parts, p)
		}
	default:
		parts = append(parts, targeted...)
	}

	return strings.Join(parts, " ")
}

func escapeAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = regexp.QuoteMeta(s)
	}
	return out
}
