package testrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const execTimeout = 5 * time.Minute

const reportFileName = ".test_report.json"

// Runner detects a project's test framework and executes targeted or full
// test runs against a working directory.
type Runner struct {
	workDir string
}

// New constructs a Runner rooted at workDir.
func New(workDir string) *Runner {
	return &Runner{workDir: workDir}
}

// RunTargeted runs only the tests related to impacted code, falling back to
// a full run when no targeted tests can be found.
func (r *Runner) RunTargeted(ctx context.Context, impacted Impacted) Report {
	fw, ok := DetectFramework(r.workDir)
	if !ok {
		return noFrameworkReport()
	}

	targeted := findTargetedTests(r.workDir, impacted)
	if len(targeted) == 0 {
		return r.runWithFramework(ctx, fw, nil)
	}

	return r.runWithFramework(ctx, fw, targeted)
}

// RunFull runs the entire detected test suite.
func (r *Runner) RunFull(ctx context.Context) Report {
	fw, ok := DetectFramework(r.workDir)
	if !ok {
		return noFrameworkReport()
	}
	return r.runWithFramework(ctx, fw, nil)
}

func (r *Runner) runWithFramework(ctx context.Context, fw FrameworkConfig, targeted []string) Report {
	command := buildCommand(fw, targeted)
	report := r.execute(ctx, fw, command)
	report.Command = command
	return report
}

func (r *Runner) execute(ctx context.Context, fw FrameworkConfig, command string) Report {
	runCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	start := time.Now()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start).Seconds()

	if runCtx.Err() == context.DeadlineExceeded {
		return Report{
			Duration: execTimeout.Seconds(),
			Failures: []Failure{{"reason": "test execution timeout"}},
		}
	}

	returncode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			returncode = exitErr.ExitCode()
		} else {
			return Report{
				Duration: duration,
				Failures: []Failure{{"reason": "test execution error: " + err.Error()}},
			}
		}
	}

	return r.parseOutput(fw, stdout.String(), stderr.String(), returncode, duration)
}

func (r *Runner) parseOutput(fw FrameworkConfig, stdout, stderr string, returncode int, duration float64) Report {
	report := Report{
		Passed:   returncode == 0,
		Duration: duration,
		Stdout:   stdout,
		Stderr:   stderr,
	}

	reportPath := filepath.Join(r.workDir, reportFileName)
	if data, err := os.ReadFile(reportPath); err == nil {
		var parsed map[string]interface{}
		if json.Unmarshal(data, &parsed) == nil {
			parseJSONReport(parsed, &report)
			report.Passed = report.FailedCount == 0
			_ = os.Remove(reportPath)
			return report
		}
		_ = os.Remove(reportPath)
	}

	switch fw.Framework {
	case "pytest":
		parsePytestOutput(stdout, &report)
		report.Passed = report.FailedCount == 0 && returncode == 0
	case "jest":
		parseJestOutput(stdout, &report)
		report.Passed = report.FailedCount == 0 && returncode == 0
	case "go":
		parseGoTestOutput(stdout, &report)
		report.Passed = report.FailedCount == 0
	default:
		parseGenericOutput(stdout, returncode, &report)
	}

	return report
}

// ExtractMinimalFailure trims a Report's first failure down to the test
// name, message, file, and surrounding stdout/stderr context a repair
// attempt actually needs.
func ExtractMinimalFailure(report Report) MinimalFailure {
	if len(report.Failures) == 0 {
		return MinimalFailure{}
	}

	first := report.Failures[0]
	testName := first["test"]

	var context string
	if testName != "" {
		for _, output := range []string{report.Stdout, report.Stderr} {
			lines := strings.Split(output, "\n")
			for i, line := range lines {
				if strings.Contains(line, testName) {
					start := i - 3
					if start < 0 {
						start = 0
					}
					end := i + 10
					if end > len(lines) {
						end = len(lines)
					}
					context = strings.Join(lines[start:end], "\n")
					break
				}
			}
			if context != "" {
				break
			}
		}
	}

	if context == "" {
		stderr := report.Stderr
		if len(stderr) > 500 {
			stderr = stderr[:500]
		}
		context = stderr
	}

	return MinimalFailure{
		TestName:      defaultString(testName, "unknown"),
		Message:       first["message"],
		File:          first["file"],
		Context:       context,
		TotalFailures: len(report.Failures),
	}
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
