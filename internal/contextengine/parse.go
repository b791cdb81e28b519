package contextengine

import (
	"bufio"
	"regexp"
	"strings"
)

// parseFile dispatches to a language-specific regex-based extractor. A full
// parser is unavailable for any of these languages from the standard
// library alone (Python and JavaScript/TypeScript have none; Go's own
// go/parser only understands Go), so every non-Go language is handled with
// regex extraction of imports, top-level functions, and classes, with line
// ranges collapsing to the declaration line when a full parser is
// unavailable. Go gets a slightly richer treatment since its declaration
// grammar is simple enough to do dependably with a handful of patterns.
func parseFile(language, content string) ([]string, []Symbol, error) {
	switch language {
	case "python":
		return parsePython(content)
	case "go":
		return parseGo(content)
	default:
		return parseGeneric(content)
	}
}

var (
	pyImportRe    = regexp.MustCompile(`^\s*(?:from\s+([\w.]+)\s+import|import\s+([\w.]+))`)
	pyClassRe     = regexp.MustCompile(`^class\s+(\w+)`)
	pyDefRe       = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(`)
	pyDocstringRe = regexp.MustCompile(`^\s*("""|''')(.*)`)
)

// openClass is an entry on parsePython's open-class stack: the class's name
// and the indentation of its own header line.
type openClass struct {
	name   string
	indent int
}

// parsePython extracts imports and symbols using Python's indentation rules:
// a `def` at column 0 is a top-level function; a `def` indented under a
// `class` block is a method named "Class.method" and is reported only once,
// never duplicated as a bare function.
func parsePython(content string) ([]string, []Symbol, error) {
	lines := strings.Split(content, "\n")
	var imports []string
	var symbols []Symbol

	var classStack []openClass

	for i, line := range lines {
		lineNo := i + 1

		if m := pyImportRe.FindStringSubmatch(line); m != nil {
			if m[1] != "" {
				imports = append(imports, m[1])
			} else if m[2] != "" {
				imports = append(imports, m[2])
			}
			continue
		}

		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			indent := leadingSpaces(line)
			classStack = popClasses(classStack, indent)
			end := blockEnd(lines, i, indent)
			symbols = append(symbols, Symbol{
				Name:      m[1],
				Kind:      KindClass,
				LineStart: lineNo,
				LineEnd:   end,
				Docstring: firstDocstring(lines, i+1),
			})
			classStack = append(classStack, openClass{name: m[1], indent: indent})
			continue
		}

		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			classStack = popClasses(classStack, indent)
			name := m[2]
			end := blockEnd(lines, i, indent)
			kind := KindFunction
			if len(classStack) > 0 && indent > classStack[len(classStack)-1].indent {
				name = classStack[len(classStack)-1].name + "." + name
				kind = KindMethod
			}
			symbols = append(symbols, Symbol{
				Name:      name,
				Kind:      kind,
				LineStart: lineNo,
				LineEnd:   end,
				Docstring: firstDocstring(lines, i+1),
			})
		}
	}

	return imports, symbols, nil
}

func leadingSpaces(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 4
		} else {
			break
		}
	}
	return n
}

// popClasses drops any class whose body indentation has ended (i.e. the
// current line's indent is not deeper than the class header's own indent).
func popClasses(stack []openClass, indent int) []openClass {
	for len(stack) > 0 && indent <= stack[len(stack)-1].indent {
		stack = stack[:len(stack)-1]
	}
	return stack
}

// blockEnd returns the last line (1-indexed) belonging to the block opened
// at line index start, defined as the declaration line plus every
// subsequent line indented deeper than the declaration until one is not.
func blockEnd(lines []string, start, declIndent int) int {
	end := start + 1
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if leadingSpaces(lines[i]) <= declIndent {
			break
		}
		end = i + 1
	}
	return end
}

func firstDocstring(lines []string, from int) string {
	for i := from; i < len(lines) && i < from+2; i++ {
		if m := pyDocstringRe.FindStringSubmatch(lines[i]); m != nil {
			return strings.TrimSpace(m[2])
		}
	}
	return ""
}

var (
	goImportRe     = regexp.MustCompile(`^\s*"([\w./-]+)"`)
	goFuncRe       = regexp.MustCompile(`^func\s+(\w+)\s*\(`)
	goMethodRe     = regexp.MustCompile(`^func\s+\(\s*\w+\s+\*?(\w+)\s*\)\s+(\w+)\s*\(`)
	goTypeRe       = regexp.MustCompile(`^type\s+(\w+)\s+(struct|interface)\b`)
)

// parseGo extracts Go import paths, functions, methods (named "Type.Name"),
// and struct/interface type declarations as classes.
func parseGo(content string) ([]string, []Symbol, error) {
	lines := strings.Split(content, "\n")
	var imports []string
	var symbols []Symbol

	inImportBlock := false
	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if trimmed == "import (" {
			inImportBlock = true
			continue
		}
		if inImportBlock {
			if trimmed == ")" {
				inImportBlock = false
				continue
			}
			if m := goImportRe.FindStringSubmatch(trimmed); m != nil {
				imports = append(imports, m[1])
			}
			continue
		}
		if strings.HasPrefix(trimmed, "import ") {
			if m := goImportRe.FindStringSubmatch(strings.TrimPrefix(trimmed, "import ")); m != nil {
				imports = append(imports, m[1])
			}
			continue
		}

		if m := goMethodRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{
				Name:      m[1] + "." + m[2],
				Kind:      KindMethod,
				LineStart: lineNo,
				LineEnd:   blockEnd(lines, i, 0),
			})
			continue
		}
		if m := goFuncRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{
				Name:      m[1],
				Kind:      KindFunction,
				LineStart: lineNo,
				LineEnd:   blockEnd(lines, i, 0),
			})
			continue
		}
		if m := goTypeRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{
				Name:      m[1],
				Kind:      KindClass,
				LineStart: lineNo,
				LineEnd:   blockEnd(lines, i, 0),
			})
		}
	}

	return imports, symbols, nil
}

var (
	jsImportRe = regexp.MustCompile(`^\s*import\s+.*from\s+['"]([^'"]+)['"]`)
	jsRequireRe = regexp.MustCompile(`require\(['"]([^'"]+)['"]\)`)
	jsFuncRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`)
	jsClassRe   = regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)
)

// parseGeneric handles JavaScript/TypeScript and is the fallback for any
// other language: single-line symbol ranges, regex import extraction.
func parseGeneric(content string) ([]string, []Symbol, error) {
	var imports []string
	var symbols []Symbol

	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if m := jsImportRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, m[1])
		}
		if m := jsRequireRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, m[1])
		}
		if m := jsFuncRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{Name: m[1], Kind: KindFunction, LineStart: lineNo, LineEnd: lineNo})
		}
		if m := jsClassRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{Name: m[1], Kind: KindClass, LineStart: lineNo, LineEnd: lineNo})
		}
	}

	return imports, symbols, nil
}
