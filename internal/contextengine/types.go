// Package contextengine builds and queries an in-memory semantic index of a
// working directory: file contents, symbols, import graph, and a
// source-to-test mapping. It is the only component permitted to own these
// indices for a task's lifetime.
package contextengine

// SymbolKind enumerates the kinds of named entities the engine extracts.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindClass    SymbolKind = "class"
	KindMethod   SymbolKind = "method"
	KindVariable SymbolKind = "variable"
)

// Symbol is a named entity discovered while indexing a file.
type Symbol struct {
	Name       string     `json:"name"`
	Kind       SymbolKind `json:"kind"`
	File       string     `json:"file"`
	LineStart  int        `json:"line_start"`
	LineEnd    int        `json:"line_end"`
	Signature  string     `json:"signature,omitempty"`
	Docstring  string     `json:"docstring,omitempty"`
}

// FileContext is the per-file index record.
type FileContext struct {
	Path     string   `json:"path"`
	Content  string   `json:"-"`
	Hash     string   `json:"hash"`
	Language string   `json:"language"`
	Imports  []string `json:"imports"`
	Exports  []string `json:"exports"`
	Symbols  []Symbol `json:"symbols"`
	Tests    []string `json:"tests"`

	Unparseable bool `json:"unparseable,omitempty"`
}

// LineRange is an inclusive [Start, End] span of 1-indexed line numbers.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// RetrievedFile is one entry in a RetrievalResult.
type RetrievedFile struct {
	Path      string      `json:"path"`
	Hash      string      `json:"hash"`
	Score     float64     `json:"score"`
	Content   string      `json:"content,omitempty"`
	Ranges    []LineRange `json:"ranges,omitempty"`
	Truncated bool        `json:"truncated"`
}

// RetrievalResult is the budgeted bundle returned by Retrieve.
type RetrievalResult struct {
	Files       []RetrievedFile `json:"files"`
	ConfigFiles []string        `json:"config_files"`
	TokenCount  int             `json:"token_count"`
}

// AnalyzeResult is the output of AnalyzeChanges.
type AnalyzeResult struct {
	Files   []string `json:"files"`
	Symbols []Symbol `json:"symbols"`
	Tests   []string `json:"tests"`
}
