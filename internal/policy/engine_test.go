package policy

import (
	"testing"

	"github.com/codeorc/orchestrator/internal/plan"
)

func TestValidateDiffCredentialIsViolationNotWarning(t *testing.T) {
	e := New(DefaultConfig())
	diff := "--- a.py\n+++ a.py\n@@ -1,1 +1,2 @@\n context\n+api_key = \"sk_live_abcdefghijklmnop\"\n"
	r := e.ValidateDiff(diff)
	if r.IsValid {
		t.Fatalf("expected credential-like line to invalidate the diff")
	}
	if len(r.Violations) == 0 {
		t.Fatalf("expected a violation, got only warnings: %v", r.Warnings)
	}
}

func TestValidateDiffTelemetryIsWarningOnly(t *testing.T) {
	e := New(DefaultConfig())
	diff := "--- a.js\n+++ a.js\n@@ -1,1 +1,2 @@\n context\n+gtag('event', 'click');\n"
	r := e.ValidateDiff(diff)
	if !r.IsValid {
		t.Fatalf("telemetry should only warn, got violations: %v", r.Violations)
	}
	if len(r.Warnings) == 0 {
		t.Fatalf("expected a telemetry warning")
	}
}

func TestValidateDiffDeniedPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeniedPaths = []string{"secrets/*"}
	e := New(cfg)
	diff := "--- /dev/null\n+++ secrets/token.txt\n@@ -0,0 +1,1 @@\n+hello\n"
	r := e.ValidateDiff(diff)
	if r.IsValid {
		t.Fatalf("expected denied-path diff to be invalid")
	}
}

func TestValidateDiffSensitiveFileDeletion(t *testing.T) {
	e := New(DefaultConfig())
	diff := "--- .env\n+++ /dev/null\n@@ -1,1 +0,0 @@\n-SECRET=1\n"
	r := e.ValidateDiff(diff)
	if r.IsValid {
		t.Fatalf("expected deletion of .env to be a violation")
	}
}

func TestValidateCommandsPrivilegeEscalationIsViolation(t *testing.T) {
	e := New(DefaultConfig())
	r := e.ValidateCommands([]string{"sudo rm -rf /var/lib"})
	if r.IsValid {
		t.Fatalf("expected sudo command to be a violation")
	}
}

func TestValidateCommandsRmRfIsWarningOnly(t *testing.T) {
	e := New(DefaultConfig())
	r := e.ValidateCommands([]string{"rm -rf build/"})
	if !r.IsValid {
		t.Fatalf("rm -rf alone should warn, not invalidate: %v", r.Violations)
	}
	if len(r.Warnings) == 0 {
		t.Fatalf("expected a warning for rm -rf")
	}
}

func TestValidatePlanDeniedPathInStepFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeniedPaths = []string{"secrets/*"}
	e := New(cfg)

	p := plan.New()
	p.Todo = append(p.Todo, plan.NewStep("edit_file", "touch a secret", map[string]interface{}{
		"files": []interface{}{"secrets/token.txt"},
	}))

	r := e.ValidatePlan(p)
	if r.IsValid {
		t.Fatalf("expected plan touching a denied path to be invalid")
	}
}

func TestValidatePlanForbiddenDependency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ForbiddenDependencies = []string{"left-pad"}
	e := New(cfg)

	p := plan.New()
	p.Metadata["dependencies"] = map[string]interface{}{
		"add": []interface{}{"left-pad==1.3.0"},
	}

	r := e.ValidatePlan(p)
	if r.IsValid {
		t.Fatalf("expected forbidden dependency to invalidate the plan")
	}
}

func TestValidateDiffCleanPasses(t *testing.T) {
	e := New(DefaultConfig())
	diff := "--- a.py\n+++ a.py\n@@ -1,1 +1,2 @@\n context\n+x = 1\n"
	r := e.ValidateDiff(diff)
	if !r.IsValid {
		t.Fatalf("expected a clean diff to pass, got violations: %v", r.Violations)
	}
}
