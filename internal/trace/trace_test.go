package trace

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTraceNestsChildUnderParent(t *testing.T) {
	c := New("session-1")

	outer := c.Start("task-1", "FSM", "PLAN", nil)
	inner := c.Start("task-1", "ContextEngine", "Retrieve", nil)
	c.End("task-1", inner, 0, "", "")
	c.End("task-1", outer, 0, "", "")

	doc := c.Document()
	if len(doc.CallStack) != 1 {
		t.Fatalf("expected one top-level call, got %d", len(doc.CallStack))
	}
	if len(doc.CallStack[0].Children) != 1 {
		t.Fatalf("expected the inner call to nest under the outer call, got %+v", doc.CallStack[0])
	}
	if doc.TotalCalls != 2 {
		t.Fatalf("expected total_calls=2, got %d", doc.TotalCalls)
	}
}

func TestTraceRecordsError(t *testing.T) {
	c := New("session-1")
	err := c.Trace("task-1", "PatchEngine", "Apply", nil, func() error {
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected Trace to propagate the error")
	}

	doc := c.Document()
	if len(doc.CallStack) != 1 || doc.CallStack[0].Error != "boom" {
		t.Fatalf("expected the error to be recorded on the call, got %+v", doc.CallStack)
	}
}

func TestSaveToFileFieldNames(t *testing.T) {
	c := New("session-1")
	c.Trace("task-1", "FSM", "INGEST", nil, func() error { return nil })

	path := filepath.Join(t.TempDir(), "nested", "trace.json")
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"session_id", "start_time", "end_time", "total_calls", "call_stack"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected top-level key %q in trace file", key)
		}
	}
}
