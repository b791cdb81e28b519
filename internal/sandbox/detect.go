package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

const probeTimeout = 5 * time.Second

type fileStackInfo struct {
	languages  []string
	buildTools []string
}

var stackFiles = map[string]fileStackInfo{
	"package.json":     {languages: []string{"javascript", "typescript"}, buildTools: []string{"npm", "yarn"}},
	"requirements.txt": {languages: []string{"python"}, buildTools: []string{"pip"}},
	"pyproject.toml":   {languages: []string{"python"}, buildTools: []string{"poetry", "pip"}},
	"Cargo.toml":       {languages: []string{"rust"}, buildTools: []string{"cargo"}},
	"go.mod":           {languages: []string{"go"}, buildTools: []string{"go"}},
	"pom.xml":          {languages: []string{"java"}, buildTools: []string{"maven"}},
	"build.gradle":     {languages: []string{"java", "kotlin"}, buildTools: []string{"gradle"}},
	"Gemfile":          {languages: []string{"ruby"}, buildTools: []string{"bundler"}},
}

type toolCheck struct {
	binary   string
	args     []string
	category string
}

var toolChecks = []toolCheck{
	{"black", []string{"--version"}, "formatters"},
	{"ruff", []string{"--version"}, "linters"},
	{"pytest", []string{"--version"}, "test_frameworks"},
	{"mypy", []string{"--version"}, "linters"},
	{"prettier", []string{"--version"}, "formatters"},
	{"eslint", []string{"--version"}, "linters"},
	{"jest", []string{"--version"}, "test_frameworks"},
	{"rustfmt", []string{"--version"}, "formatters"},
	{"clippy-driver", []string{"--version"}, "linters"},
	{"gofmt", []string{"-h"}, "formatters"},
	{"golangci-lint", []string{"--version"}, "linters"},
}

// DetectStack infers a project's languages and build tools from marker
// files, then probes PATH directly for each known formatter/linter/test
// binary (not shelled through detect_stack's own Exec, since a probe is a
// fixed two-argument invocation with no user-controlled command string).
func (l *Local) DetectStack(ctx context.Context, projectDir string) (Stack, error) {
	stack := Stack{}
	langSet := map[string]bool{}
	toolSet := map[string]bool{}

	for name, info := range stackFiles {
		if _, err := os.Stat(filepath.Join(projectDir, name)); err == nil {
			for _, lang := range info.languages {
				langSet[lang] = true
			}
			for _, bt := range info.buildTools {
				toolSet[bt] = true
			}
		}
	}
	for lang := range langSet {
		stack.Languages = append(stack.Languages, lang)
	}
	for bt := range toolSet {
		stack.BuildTools = append(stack.BuildTools, bt)
	}

	for _, check := range toolChecks {
		result, err := l.Exec(ctx, joinArgs(check.binary, check.args), projectDir, probeTimeout)
		if err != nil || result.ExitCode != 0 {
			continue
		}
		switch check.category {
		case "formatters":
			stack.Formatters = append(stack.Formatters, check.binary)
		case "linters":
			stack.Linters = append(stack.Linters, check.binary)
		case "test_frameworks":
			stack.TestFrameworks = append(stack.TestFrameworks, check.binary)
		}
	}

	return stack, nil
}

func joinArgs(binary string, args []string) string {
	cmd := binary
	for _, a := range args {
		cmd += " " + a
	}
	return cmd
}
