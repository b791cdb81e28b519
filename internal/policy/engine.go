package policy

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codeorc/orchestrator/internal/patch"
	"github.com/codeorc/orchestrator/internal/plan"
)

// Engine evaluates a Config's rule set against plans, diffs, and command
// lists.
type Engine struct {
	cfg Config
}

// New constructs an Engine with the given configuration.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) isPathAllowed(path string) (bool, string) {
	for _, pattern := range e.cfg.DeniedPaths {
		if matched, _ := filepath.Match(pattern, path); matched {
			return false, fmt.Sprintf("path %s matches denied pattern %s", path, pattern)
		}
	}
	if len(e.cfg.AllowedPaths) == 0 {
		return true, ""
	}
	for _, pattern := range e.cfg.AllowedPaths {
		if matched, _ := filepath.Match(pattern, path); matched {
			return true, ""
		}
	}
	return false, fmt.Sprintf("path %s does not match any allowed pattern", path)
}

func (e *Engine) isDependencyAllowed(dep string) (bool, string) {
	name := stripVersionSpec(dep)
	for _, forbidden := range e.cfg.ForbiddenDependencies {
		if strings.EqualFold(forbidden, name) {
			return false, fmt.Sprintf("dependency %s is forbidden", name)
		}
	}
	if len(e.cfg.AllowedDependencies) > 0 {
		for _, allowed := range e.cfg.AllowedDependencies {
			if strings.EqualFold(allowed, name) {
				return true, ""
			}
		}
		return false, fmt.Sprintf("dependency %s is not in the allow-list", name)
	}
	if suspiciousDependency(name) {
		return false, fmt.Sprintf("dependency %s matches a suspicious-keyword heuristic", name)
	}
	return true, ""
}

func stripVersionSpec(dep string) string {
	for _, sep := range []string{"==", ">=", "<=", "~=", "^", "@", "="} {
		if idx := strings.Index(dep, sep); idx > 0 {
			return strings.TrimSpace(dep[:idx])
		}
	}
	return strings.TrimSpace(dep)
}

var suspiciousKeywords = []string{"backdoor", "keylog", "exfil", "reverse-shell", "cryptominer"}

func suspiciousDependency(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range suspiciousKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ValidatePlan applies path and dependency rules to a proposed Plan. A
// step's Parameters["files"] (a list of path strings) is checked against
// path policy; Metadata["dependencies"] (a map with "add"/"remove" lists) is
// checked against dependency policy.
func (e *Engine) ValidatePlan(p plan.Plan) Result {
	r := newResult()

	for _, step := range p.Steps() {
		files, _ := step.Parameters["files"].([]interface{})
		for _, f := range files {
			path, ok := f.(string)
			if !ok {
				continue
			}
			if ok, reason := e.isPathAllowed(path); !ok {
				r.violate(reason)
			}
		}
	}

	if deps, ok := p.Metadata["dependencies"].(map[string]interface{}); ok {
		if adds, ok := deps["add"].([]interface{}); ok {
			for _, d := range adds {
				name, ok := d.(string)
				if !ok {
					continue
				}
				if allowed, reason := e.isDependencyAllowed(name); !allowed {
					r.violate(reason)
				}
			}
		}
	}

	return *r
}

// ValidateDiff parses diffText and applies every configured rule: path
// allow/deny, forbidden/required patterns over added lines, built-in
// credential/telemetry/license regexes, sensitive-file deletion, and size
// thresholds.
func (e *Engine) ValidateDiff(diffText string) Result {
	r := newResult()

	patches, err := patch.ParseUnifiedDiff(diffText)
	if err != nil {
		r.violate("could not parse diff: " + err.Error())
		return *r
	}

	totalAdditions := 0
	totalDeletions := 0

	forbidden := compileAll(e.cfg.ForbiddenPatterns)
	required := compileAll(e.cfg.RequiredPatterns)
	requiredSeen := make([]bool, len(required))

	for _, p := range patches {
		target := p.TargetPath()

		if allowed, reason := e.isPathAllowed(target); !allowed {
			r.violate(reason)
		}

		if p.IsDelete() && isSensitiveFile(target) {
			r.violate(fmt.Sprintf("deletion of sensitive file %s is forbidden", target))
		}

		if isLicenseFile(target) && e.cfg.ForbidLicenseChanges {
			r.violate(fmt.Sprintf("change to license file %s is forbidden", target))
		}

		for _, h := range p.Hunks {
			totalAdditions += len(h.Additions)
			totalDeletions += len(h.Removals)

			for _, line := range h.Additions {
				if e.cfg.ForbidLicenseChanges {
					for _, lp := range licensePatterns {
						if lp.MatchString(line) {
							r.violate(fmt.Sprintf("%s: added line matches a license pattern", target))
						}
					}
				}
				if e.cfg.ForbidCredentials {
					for _, cp := range credentialPatterns {
						if cp.MatchString(line) {
							r.violate(fmt.Sprintf("%s: added line matches a credential pattern", target))
						}
					}
				}
				if e.cfg.ForbidTelemetry {
					for _, tp := range telemetryPatterns {
						if tp.MatchString(line) {
							r.warn(fmt.Sprintf("%s: added line matches a telemetry pattern", target))
						}
					}
				}
				for _, fp := range forbidden {
					if fp.MatchString(line) {
						r.violate(fmt.Sprintf("%s: added line matches forbidden pattern %s", target, fp.String()))
					}
				}
				for i, rp := range required {
					if rp.MatchString(line) {
						requiredSeen[i] = true
					}
				}
			}
		}
	}

	for i, rp := range required {
		if !requiredSeen[i] {
			r.violate(fmt.Sprintf("required pattern %s not found in any added line", rp.String()))
		}
	}

	if e.cfg.MaxFilesChanged > 0 && len(patches) > e.cfg.MaxFilesChanged {
		r.warn(fmt.Sprintf("diff changes %d files, exceeding max_files_changed=%d", len(patches), e.cfg.MaxFilesChanged))
	}
	if e.cfg.MaxDiffSize > 0 && len(diffText) > e.cfg.MaxDiffSize {
		r.warn(fmt.Sprintf("diff size %d exceeds max_diff_size=%d", len(diffText), e.cfg.MaxDiffSize))
	}

	return *r
}

// ValidateCommands checks a list of shell command strings against the
// dangerous-command table: most substrings produce warnings; privilege
// escalation and system-service mutation produce violations.
func (e *Engine) ValidateCommands(cmds []string) Result {
	r := newResult()

	for _, cmd := range cmds {
		lower := strings.ToLower(cmd)
		for _, v := range dangerousCommandViolations {
			if strings.Contains(lower, v) {
				r.violate(fmt.Sprintf("command %q is a privilege-escalation or service-mutation command", cmd))
			}
		}
		for _, w := range dangerousCommandWarnings {
			if strings.Contains(lower, w) {
				r.warn(fmt.Sprintf("command %q matches a dangerous-command heuristic", cmd))
			}
		}
	}

	return *r
}

func compileAll(patterns []string) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			out = append(out, re)
		}
	}
	return out
}

func isSensitiveFile(path string) bool {
	base := filepath.Base(path)
	for _, s := range sensitiveFiles {
		if strings.Contains(s, "*") {
			if matched, _ := filepath.Match(s, base); matched {
				return true
			}
			continue
		}
		if strings.HasSuffix(s, "/") {
			if strings.Contains(path, s) {
				return true
			}
			continue
		}
		if base == s || path == s {
			return true
		}
	}
	return false
}

func isLicenseFile(path string) bool {
	base := filepath.Base(path)
	for _, lp := range licensePatterns[:2] {
		if lp.MatchString(base) {
			return true
		}
	}
	return false
}
