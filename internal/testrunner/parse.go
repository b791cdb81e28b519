package testrunner

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var pytestSummaryRe = regexp.MustCompile(`=+\s*(\d+)\s+passed(?:,\s*(\d+)\s+failed)?(?:,\s*(\d+)\s+skipped)?.*=+`)
var pytestFailedRe = regexp.MustCompile(`^FAILED (.*?)(?:\[.*?\])? - (.*)$`)
var jestSummaryRe = regexp.MustCompile(`(\d+) passed(?:, (\d+) failed)?(?:, (\d+) skipped)?`)
var jestJSONRe = regexp.MustCompile(`(?s)\{.*"testResults".*\}`)
var genericPassedRe = regexp.MustCompile(`(?i)(\d+) tests? passed`)

func atoiOr0(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// parsePytestOutput parses pytest's human-readable summary and FAILED lines.
func parsePytestOutput(output string, report *Report) {
	lines := strings.Split(output, "\n")

	for _, line := range lines {
		if m := pytestSummaryRe.FindStringSubmatch(line); m != nil {
			report.PassedCount = atoiOr0(m[1])
			report.FailedCount = atoiOr0(m[2])
			report.SkippedCount = atoiOr0(m[3])
			report.Total = report.PassedCount + report.FailedCount + report.SkippedCount
			break
		}
	}

	var current Failure
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "FAILED "):
			if m := pytestFailedRe.FindStringSubmatch(line); m != nil {
				current = Failure{"test": m[1], "message": m[2]}
			}
		case current != nil && strings.HasPrefix(line, "_"):
			report.Failures = append(report.Failures, current)
			current = nil
		}
	}
}

// parseJestOutput tries embedded JSON first, then the "Tests:" summary line.
func parseJestOutput(output string, report *Report) {
	if m := jestJSONRe.FindString(output); m != "" {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(m), &data); err == nil {
			parseJSONReport(data, report)
			return
		}
	}

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Tests:") {
			continue
		}
		if m := jestSummaryRe.FindStringSubmatch(line); m != nil {
			report.PassedCount = atoiOr0(m[1])
			report.FailedCount = atoiOr0(m[2])
			report.SkippedCount = atoiOr0(m[3])
			report.Total = report.PassedCount + report.FailedCount + report.SkippedCount
		}
	}
}

type goTestEvent struct {
	Action  string  `json:"Action"`
	Test    string  `json:"Test"`
	Package string  `json:"Package"`
	Elapsed float64 `json:"Elapsed"`
}

// parseGoTestOutput consumes `go test -json`'s newline-delimited JSON event
// stream.
func parseGoTestOutput(output string, report *Report) {
	seen := make(map[string]Result)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev goTestEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Test == "" {
			continue
		}
		switch ev.Action {
		case "pass":
			report.PassedCount++
			seen[ev.Test] = Result{Name: ev.Test, Status: StatusPassed, Duration: ev.Elapsed}
		case "fail":
			report.FailedCount++
			seen[ev.Test] = Result{Name: ev.Test, Status: StatusFailed, Duration: ev.Elapsed}
			report.Failures = append(report.Failures, Failure{"test": ev.Test, "package": ev.Package})
		}
	}

	for _, r := range seen {
		report.TestResults = append(report.TestResults, r)
	}
	report.Total = report.PassedCount + report.FailedCount
}

// parseJSONReport handles the --json-report (pytest) and --json (jest) file
// formats when a structured report file was written to disk.
func parseJSONReport(data map[string]interface{}, report *Report) {
	if testResults, ok := data["testResults"].([]interface{}); ok {
		for _, tf := range testResults {
			tfMap, ok := tf.(map[string]interface{})
			if !ok {
				continue
			}
			fileName, _ := tfMap["name"].(string)
			assertions, _ := tfMap["assertionResults"].([]interface{})
			for _, a := range assertions {
				aMap, ok := a.(map[string]interface{})
				if !ok {
					continue
				}
				title, _ := aMap["title"].(string)
				status, _ := aMap["status"].(string)
				passed := status == "passed"
				report.TestResults = append(report.TestResults, Result{
					Name:   title,
					Status: statusFromBool(passed),
					File:   fileName,
				})
				if passed {
					report.PassedCount++
				} else {
					report.FailedCount++
					msgs, _ := aMap["failureMessages"].([]interface{})
					var parts []string
					for _, m := range msgs {
						if s, ok := m.(string); ok {
							parts = append(parts, s)
						}
					}
					report.Failures = append(report.Failures, Failure{
						"test": title, "file": fileName, "message": strings.Join(parts, " "),
					})
				}
			}
		}
	} else if tests, ok := data["tests"].([]interface{}); ok {
		for _, tv := range tests {
			tMap, ok := tv.(map[string]interface{})
			if !ok {
				continue
			}
			nodeID, _ := tMap["nodeid"].(string)
			outcome, _ := tMap["outcome"].(string)
			passed := outcome == "passed"
			report.TestResults = append(report.TestResults, Result{Name: nodeID, Status: statusFromBool(passed)})
			if passed {
				report.PassedCount++
			} else {
				report.FailedCount++
				message := ""
				if call, ok := tMap["call"].(map[string]interface{}); ok {
					if lr, ok := call["longrepr"].(string); ok {
						message = lr
					}
				}
				report.Failures = append(report.Failures, Failure{"test": nodeID, "message": message})
			}
		}
	}

	report.Total = report.PassedCount + report.FailedCount + report.SkippedCount
}

func statusFromBool(passed bool) Status {
	if passed {
		return StatusPassed
	}
	return StatusFailed
}

// parseGenericOutput is the last-resort parser for frameworks with no
// dedicated handler: a zero exit code is a pass, otherwise scan for
// FAILED/FAIL/Error markers.
func parseGenericOutput(stdout string, returncode int, report *Report) {
	if returncode == 0 {
		report.Passed = true
		if m := genericPassedRe.FindStringSubmatch(strings.ToLower(stdout)); m != nil {
			report.PassedCount = atoiOr0(m[1])
			report.Total = report.PassedCount
		}
		return
	}

	report.Passed = false
	if strings.Contains(stdout, "FAILED") || strings.Contains(stdout, "FAIL") {
		report.FailedCount = strings.Count(stdout, "FAILED") + strings.Count(stdout, "FAIL")
		report.Total = report.FailedCount
	}

	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, "FAILED") || strings.Contains(line, "FAIL") || strings.Contains(line, "Error") {
			report.Failures = append(report.Failures, Failure{"message": strings.TrimSpace(line)})
			break
		}
	}
}
