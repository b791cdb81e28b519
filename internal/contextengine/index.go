package contextengine

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var skipDirs = map[string]bool{
	"node_modules": true,
	"venv":         true,
	"env":          true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
}

var skipExtensions = map[string]bool{
	".pyc": true, ".pyo": true, ".so": true, ".dylib": true, ".dll": true, ".exe": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true,
}

var languageByExt = map[string]string{
	".py":   "python",
	".go":   "go",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
}

var configFileNames = map[string]bool{
	"package.json":      true,
	"requirements.txt":  true,
	"pyproject.toml":    true,
	"Cargo.toml":        true,
	"go.mod":            true,
	"pom.xml":           true,
	"build.gradle":      true,
	"Gemfile":           true,
	"pytest.ini":        true,
	"tsconfig.json":     true,
}

var jestConfigRe = regexp.MustCompile(`^jest\.config\.`)
var mochaConfigRe = regexp.MustCompile(`^\.mocharc\.`)
var guideFileRe = regexp.MustCompile(`(?i)^(README|CONTRIBUTING|CHANGELOG)(\..+)?$`)

// Engine is the Context Engine. A single instance is scoped to one task.
type Engine struct {
	root string

	mu          sync.RWMutex
	fileIndex   map[string]*FileContext   // Path -> FileContext
	symbolIndex map[string][]Symbol       // Name -> Symbols
	importGraph map[string]map[string]bool // Path -> set of Path (resolved imports only)
	testMapping map[string]map[string]bool // source Path -> set of test Path
	configFiles []string
}

// New constructs an unindexed Engine rooted at root.
func New(root string) *Engine {
	return &Engine{
		root:        root,
		fileIndex:   make(map[string]*FileContext),
		symbolIndex: make(map[string][]Symbol),
		importGraph: make(map[string]map[string]bool),
		testMapping: make(map[string]map[string]bool),
	}
}

func shouldIndex(path string, info os.FileInfo) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if info.IsDir() {
		return !skipDirs[base]
	}
	ext := strings.ToLower(filepath.Ext(base))
	return !skipExtensions[ext]
}

func detectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "unknown"
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// isTestFile reports whether a path looks like a test file: basename
// contains "test" or "spec", or the parent directory is named test/tests.
func isTestFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if strings.Contains(base, "test") || strings.Contains(base, "spec") {
		return true
	}
	parent := strings.ToLower(filepath.Base(filepath.Dir(path)))
	return parent == "test" || parent == "tests"
}

func isConfigFile(name string) bool {
	if configFileNames[name] {
		return true
	}
	return jestConfigRe.MatchString(name) || mochaConfigRe.MatchString(name)
}

// IndexRepository recursively walks root, populating the engine's indices.
// Unreadable files are silently skipped; unparseable ones are kept with a
// warning flag but without symbols/imports.
func (e *Engine) IndexRepository(root string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.root = root
	e.fileIndex = make(map[string]*FileContext)
	e.symbolIndex = make(map[string][]Symbol)
	e.importGraph = make(map[string]map[string]bool)
	e.testMapping = make(map[string]map[string]bool)
	e.configFiles = nil

	var warnings []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable path: silently skipped
		}
		if path != root && !shouldIndex(path, info) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil // unreadable file: silently skipped
		}
		content := string(data)

		if isConfigFile(filepath.Base(path)) || guideFileRe.MatchString(filepath.Base(path)) {
			e.configFiles = append(e.configFiles, rel)
		}

		lang := detectLanguage(path)
		fc := &FileContext{
			Path:     rel,
			Content:  content,
			Hash:     contentHash(content),
			Language: lang,
		}

		imports, symbols, parseErr := parseFile(lang, content)
		if parseErr != nil {
			fc.Unparseable = true
			warnings = append(warnings, "could not parse "+rel+": "+parseErr.Error())
		} else {
			fc.Imports = imports
			for i := range symbols {
				symbols[i].File = rel
			}
			fc.Symbols = symbols
		}

		if isTestFile(rel) {
			fc.Tests = []string{rel}
		}

		e.fileIndex[rel] = fc
		for _, sym := range fc.Symbols {
			e.symbolIndex[sym.Name] = append(e.symbolIndex[sym.Name], sym)
		}
		return nil
	})
	if err != nil {
		return warnings, err
	}

	e.buildImportGraph()
	e.mapTests()

	return warnings, nil
}

// buildImportGraph resolves each file's raw import strings to paths already
// present in the index; unresolved imports are dropped from the graph (the
// raw strings remain available on FileContext.Imports).
func (e *Engine) buildImportGraph() {
	for path, fc := range e.fileIndex {
		resolved := make(map[string]bool)
		for _, imp := range fc.Imports {
			if target := e.resolveImport(path, imp); target != "" {
				resolved[target] = true
			}
		}
		e.importGraph[path] = resolved
	}
}

func (e *Engine) resolveImport(fromPath, importStr string) string {
	normalized := strings.ReplaceAll(importStr, ".", "/")
	candidates := []string{
		importStr,
		normalized + ".py",
		normalized + ".go",
		normalized + ".js",
		normalized + ".ts",
		filepath.Join(filepath.Dir(fromPath), filepath.Base(normalized)+".py"),
	}
	for _, c := range candidates {
		c = filepath.Clean(c)
		if _, ok := e.fileIndex[c]; ok {
			return c
		}
	}
	return ""
}

// mapTests maps every source file to the test files that import it (tests
// importing a non-test file are considered to cover it).
func (e *Engine) mapTests() {
	for path, fc := range e.fileIndex {
		if !isTestFile(path) {
			continue
		}
		for _, imp := range fc.Imports {
			target := e.resolveImport(path, imp)
			if target == "" || isTestFile(target) {
				continue
			}
			if e.testMapping[target] == nil {
				e.testMapping[target] = make(map[string]bool)
			}
			e.testMapping[target][path] = true
		}
	}
}

// Stats reports basic counts, mirroring the reference implementation's
// get_stats() introspection helper.
func (e *Engine) Stats() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	symCount := 0
	for _, syms := range e.symbolIndex {
		symCount += len(syms)
	}
	return map[string]int{
		"files":   len(e.fileIndex),
		"symbols": symCount,
	}
}
