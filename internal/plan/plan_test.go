package plan

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompleteNextStepPrefixMonotonicity(t *testing.T) {
	p := New()
	p.Todo = []Step{
		NewStep("edit", "first", nil),
		NewStep("test", "second", nil),
	}

	before, err := p.ToJSON()
	if err != nil {
		t.Fatalf("marshal before: %v", err)
	}

	if _, ok := p.CompleteNextStep("ok", ""); !ok {
		t.Fatalf("expected a step to complete")
	}

	after, err := p.ToJSON()
	if err != nil {
		t.Fatalf("marshal after: %v", err)
	}

	// completed-before-todo field order means the serialized "completed"
	// object boundary is where the two byte strings are expected to diverge;
	// everything up to the start of that object must still match exactly.
	beforeKey := []byte(`"completed":[]`)
	if !bytes.Contains(before, beforeKey) {
		t.Fatalf("expected empty completed array in initial serialization, got %s", before)
	}
	if strings.Contains(string(after), `"completed":[]`) {
		t.Fatalf("completed array should no longer be empty after CompleteNextStep")
	}
	if !strings.HasPrefix(string(before), `{"completed":[]`) {
		t.Fatalf("expected serialization to start with completed field, got %s", before)
	}
	if !strings.HasPrefix(string(after), `{"completed":[{`) {
		t.Fatalf("expected serialization to start with populated completed field, got %s", after)
	}
}

func TestCompleteNextStepEmptyTodo(t *testing.T) {
	p := New()
	if _, ok := p.CompleteNextStep("x", ""); ok {
		t.Fatalf("expected no step to complete on empty todo")
	}
}

func TestCompleteNextStepFailure(t *testing.T) {
	p := New()
	p.Todo = []Step{NewStep("edit", "do it", nil)}

	step, ok := p.CompleteNextStep(nil, "boom")
	if !ok {
		t.Fatalf("expected completion")
	}
	if step.Status != StatusFailure || step.ErrorMessage != "boom" {
		t.Fatalf("expected failure status with message, got %+v", step)
	}
	if !p.HasFailed() {
		t.Fatalf("expected HasFailed to report true")
	}
}

func TestFromJSONRoundTrip(t *testing.T) {
	p := New()
	p.Todo = []Step{NewStep("analyze", "look around", nil)}
	data, err := p.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := FromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Todo) != 1 || got.Todo[0].ToolName != "analyze" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
