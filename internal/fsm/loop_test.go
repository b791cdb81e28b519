package fsm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codeorc/orchestrator/internal/model"
)

// fakeClient is a deterministic model.Client whose responses are chosen by
// matching a distinctive phrase in the Model Adapter's own prompt text,
// the same way OfflineClient stands in for a live provider in unit tests
// elsewhere in this module.
type fakeClient struct {
	mu            sync.Mutex
	planJSON      string
	diffs         []string
	diffCalls     int
	queryResponse string
	repairJSON    string
}

func (f *fakeClient) Chat(messages []model.Message) (string, error) {
	prompt := messages[len(messages)-1].Content

	switch {
	case strings.Contains(prompt, "step-by-step plan"):
		return f.planJSON, nil
	case strings.Contains(prompt, "unified diff patch"):
		if f.queryResponse != "" {
			return f.queryResponse, nil
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		idx := f.diffCalls
		if idx >= len(f.diffs) {
			idx = len(f.diffs) - 1
		}
		f.diffCalls++
		return f.diffs[idx], nil
	case strings.Contains(prompt, "previous change failed"):
		if f.repairJSON != "" {
			return f.repairJSON, nil
		}
		return `{"analysis":"test failed","repair_strategy":"retry","modified_plan":{},"confidence":"medium"}`, nil
	}
	return "", fmt.Errorf("fakeClient: unrecognized prompt")
}

func (f *fakeClient) ChatStream(messages []model.Message, cb model.StreamCallback) (string, error) {
	out, err := f.Chat(messages)
	if err == nil && cb != nil {
		cb(out)
	}
	return out, err
}

func (f *fakeClient) CheckConnection() error { return nil }
func (f *fakeClient) GetModel() string       { return "fake" }

const fixturePlan = `{"steps":[{"id":1,"description":"fix the bug in Add","action":"edit","files":["math.go"],"rationale":"Add returns the wrong result"}],"estimated_changes":1,"risk_level":"low","dependencies":{"add":[],"remove":[]},"test_strategy":"run go test"}`

// writeGoFixture lays out a minimal, independently-moduled Go package with
// one source file (whose body is supplied by the caller) and one test that
// fails unless Add(2, 3) == 5, so the control loop's TEST state exercises a
// real `go test` invocation rather than a mock.
func writeGoFixture(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()

	mustWrite(t, filepath.Join(dir, "go.mod"), "module fixture\n\ngo 1.21\n")
	mustWrite(t, filepath.Join(dir, "math.go"), body)
	mustWrite(t, filepath.Join(dir, "math_test.go"), `package mathpkg

import "testing"

func TestAdd(t *testing.T) {
	if got := Add(2, 3); got != 5 {
		t.Fatalf("Add(2, 3) = %d, want 5", got)
	}
}
`)
	return dir
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func runFixtureTask(t *testing.T, orch *Orchestrator, workDir, goal string, overrides func(*Task)) Report {
	t.Helper()
	task := Task{
		ID:          "t-" + t.Name(),
		WorkDir:     workDir,
		Goal:        goal,
		MaxRetries:  3,
		MaxDuration: 60 * time.Second,
		MaxTokens:   60_000,
	}
	if overrides != nil {
		overrides(&task)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	return orch.Run(ctx, task)
}

// Scenario: a goal that resolves to a direct answer rather than a code
// change. ProposePatch's response carries no diff markers, so EDIT routes
// straight to DONE without ever touching the Patch Engine or Test Runner.
func TestScenarioQueryOnly(t *testing.T) {
	dir := writeGoFixture(t, buggyAddBody)
	client := &fakeClient{
		planJSON:      fixturePlan,
		queryResponse: "Add currently adds an extra 1 because of a stray off-by-one constant.",
	}
	orch := &Orchestrator{Adapter: model.NewAdapter(client)}

	report := runFixtureTask(t, orch, dir, "explain the bug in math.go", nil)

	if report.Status != "success" || report.FinalState != string(StateDone) {
		t.Fatalf("expected a successful query-only run, got %+v", report)
	}
	if queryOnly, _ := report.Artifacts["query_only"].(bool); !queryOnly {
		t.Fatalf("expected query_only artifact to be set, got %+v", report.Artifacts)
	}
	if diff, _ := report.Artifacts["final_diff"].(string); diff != "# No changes needed for query" {
		t.Fatalf("expected the query-only final_diff sentinel, got %q", diff)
	}
}

const buggyAddBody = `package mathpkg

func Add(a, b int) int {
	return a + b + 1 // bug
}
`

const fixDiff = `--- a/math.go
+++ b/math.go
@@ -1,5 +1,5 @@
 package mathpkg

 func Add(a, b int) int {
-	return a + b + 1 // bug
+	return a + b
 }
`

// Scenario: the model proposes a correct patch on the first attempt and
// the full test suite passes without any iteration.
func TestScenarioHappyPath(t *testing.T) {
	dir := writeGoFixture(t, buggyAddBody)
	client := &fakeClient{planJSON: fixturePlan, diffs: []string{fixDiff}}
	orch := &Orchestrator{Adapter: model.NewAdapter(client)}

	report := runFixtureTask(t, orch, dir, "fix the bug in math.go so Add returns the correct sum", nil)

	if report.Status != "success" || report.FinalState != string(StateDone) {
		t.Fatalf("expected happy-path completion, got %+v", report)
	}
	if report.RetryCount != 0 {
		t.Fatalf("expected zero retries on the happy path, got %d", report.RetryCount)
	}
	if diff, _ := report.Artifacts["final_diff"].(string); diff != fixDiff {
		t.Fatalf("expected final_diff to equal the applied diff, got %q", diff)
	}
}

const stillBuggyDiff = `--- a/math.go
+++ b/math.go
@@ -1,5 +1,5 @@
 package mathpkg

 func Add(a, b int) int {
-	return a + b + 1 // bug
+	return a + b - 1 // still wrong
 }
`

const secondFixDiff = `--- a/math.go
+++ b/math.go
@@ -1,5 +1,5 @@
 package mathpkg

 func Add(a, b int) int {
-	return a + b - 1 // still wrong
+	return a + b
 }
`

// Scenario: the first patch applies cleanly but leaves the test failing;
// ITERATE requests a repair, and the second attempt fixes it.
func TestScenarioSingleRepairLoop(t *testing.T) {
	dir := writeGoFixture(t, buggyAddBody)
	client := &fakeClient{planJSON: fixturePlan, diffs: []string{stillBuggyDiff, secondFixDiff}}
	orch := &Orchestrator{Adapter: model.NewAdapter(client)}

	report := runFixtureTask(t, orch, dir, "fix the bug in math.go so Add returns the correct sum", nil)

	if report.Status != "success" || report.FinalState != string(StateDone) {
		t.Fatalf("expected completion after one repair loop, got %+v", report)
	}
	if report.RetryCount != 1 {
		t.Fatalf("expected exactly one retry, got %d", report.RetryCount)
	}
}

const stillBuggyDiff2 = `--- a/math.go
+++ b/math.go
@@ -1,5 +1,5 @@
 package mathpkg

 func Add(a, b int) int {
-	return a + b - 1 // still wrong
+	return a + b - 2 // still wrong again
 }
`

// Scenario: every attempt keeps failing the test until the retry budget is
// exhausted, ending in ABORT with "Retry limit exceeded".
func TestScenarioRetryExhaustion(t *testing.T) {
	dir := writeGoFixture(t, buggyAddBody)
	client := &fakeClient{planJSON: fixturePlan, diffs: []string{stillBuggyDiff, stillBuggyDiff2}}
	orch := &Orchestrator{Adapter: model.NewAdapter(client)}

	report := runFixtureTask(t, orch, dir, "fix the bug in math.go so Add returns the correct sum", func(task *Task) {
		task.MaxRetries = 2
	})

	if report.Status != "aborted" || report.FinalState != string(StateAbort) {
		t.Fatalf("expected an aborted run after exhausting retries, got %+v", report)
	}
	if report.RetryCount != 2 {
		t.Fatalf("expected retry_count to equal the configured budget (2), got %d", report.RetryCount)
	}
	reason, _ := report.Artifacts["abort_reason"].(string)
	if reason != "Retry limit exceeded" {
		t.Fatalf("expected abort_reason %q, got %q", "Retry limit exceeded", reason)
	}
}

const credentialDiff = `--- a/math.go
+++ b/math.go
@@ -1,5 +1,6 @@
 package mathpkg

 func Add(a, b int) int {
+	// access key AKIA1234567890ABCDEF
 	return a + b + 1 // bug
 }
`

// Scenario: the proposed diff adds a line matching a credential pattern;
// the Policy Engine rejects it before the Patch Engine ever sees it.
func TestScenarioPolicyViolationOnDiff(t *testing.T) {
	dir := writeGoFixture(t, buggyAddBody)
	client := &fakeClient{planJSON: fixturePlan, diffs: []string{credentialDiff}}
	orch := &Orchestrator{Adapter: model.NewAdapter(client)}

	report := runFixtureTask(t, orch, dir, "annotate math.go with a reference key", nil)

	if report.Status != "aborted" || report.FinalState != string(StateAbort) {
		t.Fatalf("expected policy violation to abort the run, got %+v", report)
	}
	reason, _ := report.Artifacts["abort_reason"].(string)
	if !strings.Contains(reason, "credential pattern") {
		t.Fatalf("expected abort_reason to cite a credential pattern violation, got %q", reason)
	}
}

// buggyAddBodyShifted wraps the same buggy function in ten leading comment
// lines, so a diff whose hunk header still claims the original line numbers
// can only be placed by the fuzzy fallback.
const buggyAddBodyShifted = `// note 1
// note 2
// note 3
// note 4
// note 5
// note 6
// note 7
// note 8
// note 9
// note 10
package mathpkg

func Add(a, b int) int {
	return a + b + 1 // bug
}
`

// Scenario: the model's diff carries stale line numbers (as if proposed
// against an earlier revision); the Patch Engine's fuzzy window search
// still finds and applies it correctly.
func TestScenarioPatchFuzzyMatch(t *testing.T) {
	dir := writeGoFixture(t, buggyAddBodyShifted)
	client := &fakeClient{planJSON: fixturePlan, diffs: []string{fixDiff}}
	orch := &Orchestrator{Adapter: model.NewAdapter(client)}

	report := runFixtureTask(t, orch, dir, "fix the bug in math.go so Add returns the correct sum", nil)

	if report.Status != "success" || report.FinalState != string(StateDone) {
		t.Fatalf("expected the fuzzy-matched patch to lead to completion, got %+v", report)
	}

	data, err := os.ReadFile(filepath.Join(dir, "math.go"))
	if err != nil {
		t.Fatalf("reading patched file: %v", err)
	}
	if !strings.Contains(string(data), "return a + b\n") {
		t.Fatalf("expected the fuzzy-applied patch to fix Add, got:\n%s", data)
	}
}
