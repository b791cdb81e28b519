package testrunner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectFrameworkByConfigFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pytest.ini"), []byte("[pytest]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fw, ok := DetectFramework(dir)
	if !ok || fw.Framework != "pytest" {
		t.Fatalf("expected pytest detection via config file, got %+v ok=%v", fw, ok)
	}
}

func TestDetectFrameworkByGlobFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "test_foo.py"), []byte("def test_x():\n    pass\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fw, ok := DetectFramework(dir)
	if !ok || fw.Framework != "pytest" {
		t.Fatalf("expected pytest glob fallback, got %+v ok=%v", fw, ok)
	}
}

func TestNoFrameworkReportReason(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	report := r.RunFull(context.Background())
	if report.Passed {
		t.Fatalf("expected an unpassed report when no framework is detected")
	}
	if len(report.Failures) != 1 || report.Failures[0]["reason"] != "no framework" {
		t.Fatalf("expected a 'no framework' failure reason, got %+v", report.Failures)
	}
}

func TestBuildCommandTargetedPytest(t *testing.T) {
	fw := FrameworkConfig{Framework: "pytest", Command: "pytest", Args: []string{"-v"}}
	cmd := buildCommand(fw, []string{"test_a.py", "test_b.py"})
	if cmd != "pytest -v test_a.py test_b.py" {
		t.Fatalf("unexpected command: %q", cmd)
	}
}

func TestBuildCommandTargetedGoGroupsByPackage(t *testing.T) {
	fw := FrameworkConfig{Framework: "go", Command: "go test", Args: []string{"-json"}}
	cmd := buildCommand(fw, []string{"internal/plan/plan_test.go"})
	if cmd != "go test -json internal/plan" {
		t.Fatalf("unexpected command: %q", cmd)
	}
}

func TestParsePytestOutputSummaryAndFailures(t *testing.T) {
	output := "===== 2 passed, 1 failed in 0.12s =====\nFAILED test_a.py::test_x - assert False\n____\n"
	report := Report{}
	parsePytestOutput(output, &report)
	if report.PassedCount != 2 || report.FailedCount != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0]["test"] != "test_a.py::test_x" {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
}

func TestParseGoTestOutputNDJSON(t *testing.T) {
	output := `{"Action":"pass","Test":"TestFoo","Package":"pkg","Elapsed":0.01}
{"Action":"fail","Test":"TestBar","Package":"pkg","Elapsed":0.02}
`
	report := Report{}
	parseGoTestOutput(output, &report)
	if report.PassedCount != 1 || report.FailedCount != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0]["test"] != "TestBar" {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
}

func TestFindTargetedTestsByNamingConvention(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, dir, "widget.py", "def render():\n    pass\n")
	mustWrite(t, dir, "test_widget.py", "def test_render():\n    pass\n")

	targeted := findTargetedTests(dir, Impacted{Files: []string{"widget.py"}})
	found := false
	for _, tt := range targeted {
		if filepath.Base(tt) == "test_widget.py" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected test_widget.py to be targeted, got %v", targeted)
	}
}

func TestExtractMinimalFailureTrimsContext(t *testing.T) {
	report := Report{
		Failures: []Failure{{"test": "test_a.py::test_x", "message": "boom"}},
		Stdout:   "line1\nline2\ntest_a.py::test_x failed\nline4\nline5\n",
	}
	mf := ExtractMinimalFailure(report)
	if mf.TestName != "test_a.py::test_x" || mf.Message != "boom" {
		t.Fatalf("unexpected minimal failure: %+v", mf)
	}
	if mf.Context == "" {
		t.Fatalf("expected non-empty context")
	}
}

func mustWrite(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
