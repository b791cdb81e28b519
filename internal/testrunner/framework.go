package testrunner

import (
	"os"
	"path/filepath"
)

// FrameworkConfig describes how to detect and invoke one test framework.
type FrameworkConfig struct {
	Language    string
	Framework   string
	ConfigFiles []string
	TestGlob    string
	Command     string
	Args        []string
}

// frameworkTable mirrors the original implementation's language -> framework
// -> config table, in probe order.
var frameworkTable = []FrameworkConfig{
	{
		Language:    "python",
		Framework:   "pytest",
		ConfigFiles: []string{"pytest.ini", "pyproject.toml", "setup.cfg"},
		TestGlob:    "test_*.py",
		Command:     "pytest",
		Args:        []string{"-v", "--json-report", "--json-report-file=.test_report.json"},
	},
	{
		Language:  "python",
		Framework: "unittest",
		TestGlob:  "test_*.py",
		Command:   "python -m unittest",
		Args:      []string{"-v"},
	},
	{
		Language:    "javascript",
		Framework:   "jest",
		ConfigFiles: []string{"jest.config.js", "jest.config.json"},
		TestGlob:    "*.test.js",
		Command:     "jest",
		Args:        []string{"--json", "--outputFile=.test_report.json"},
	},
	{
		Language:    "javascript",
		Framework:   "mocha",
		ConfigFiles: []string{".mocharc.js", ".mocharc.json"},
		TestGlob:    "*.spec.js",
		Command:     "mocha",
		Args:        []string{"--reporter", "json"},
	},
	{
		Language:    "typescript",
		Framework:   "jest",
		ConfigFiles: []string{"jest.config.js", "jest.config.ts"},
		TestGlob:    "*.test.ts",
		Command:     "jest",
		Args:        []string{"--json", "--outputFile=.test_report.json"},
	},
	{
		Language:    "rust",
		Framework:   "cargo",
		ConfigFiles: []string{"Cargo.toml"},
		Command:     "cargo test",
		Args:        []string{"--", "--format", "json"},
	},
	{
		Language:    "go",
		Framework:   "go",
		ConfigFiles: []string{"go.mod"},
		Command:     "go test",
		Args:        []string{"-json", "./..."},
	},
}

// DetectFramework probes config files first, then falls back to glob-based
// file pattern detection. Returns (config, true) on success.
func DetectFramework(workDir string) (FrameworkConfig, bool) {
	for _, fw := range frameworkTable {
		for _, cfgFile := range fw.ConfigFiles {
			if _, err := os.Stat(filepath.Join(workDir, cfgFile)); err == nil {
				return fw, true
			}
		}
	}

	if found := globRecursive(workDir, "test_*.py"); found {
		return FrameworkConfig{Language: "python", Framework: "pytest", Command: "pytest", Args: []string{"-v"}}, true
	}
	if found := globRecursive(workDir, "*.test.js"); found {
		return FrameworkConfig{Language: "javascript", Framework: "jest", Command: "jest"}, true
	}

	return FrameworkConfig{}, false
}

// globRecursive reports whether any file under root matches pattern,
// walking the tree since filepath.Glob has no recursive wildcard.
func globRecursive(root, pattern string) bool {
	found := false
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || found {
			return nil
		}
		if info.IsDir() {
			if info.Name() == "node_modules" || info.Name() == ".git" || info.Name() == "venv" {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, info.Name()); ok {
			found = true
		}
		return nil
	})
	return found
}
