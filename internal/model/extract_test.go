package model

import (
	"strings"
	"testing"
)

func TestExtractJSONObjectIgnoresBraceInsideString(t *testing.T) {
	response := `Sure, here you go: {"description": "a plan with a } brace inside", "steps": [1,2]} trailing text`
	raw, err := extractJSONObject(response)
	if err != nil {
		t.Fatalf("extractJSONObject: %v", err)
	}
	if !strings.HasPrefix(string(raw), "{") || !strings.HasSuffix(string(raw), "}") {
		t.Fatalf("expected a balanced object, got %q", raw)
	}
	if strings.Contains(string(raw), "trailing text") {
		t.Fatalf("extraction leaked trailing text: %q", raw)
	}
}

func TestExtractJSONObjectFromFence(t *testing.T) {
	response := "here is the plan\n```json\n{\"risk_level\": \"low\"}\n```\nthanks"
	raw, err := extractJSONObject(response)
	if err != nil {
		t.Fatalf("extractJSONObject: %v", err)
	}
	if string(raw) != `{"risk_level": "low"}` {
		t.Fatalf("unexpected extraction: %q", raw)
	}
}

func TestExtractJSONObjectNoObjectFound(t *testing.T) {
	if _, err := extractJSONObject("no json here"); err == nil {
		t.Fatalf("expected an error when no JSON object is present")
	}
}

func TestExtractDiffFromDiffFence(t *testing.T) {
	response := "explanation\n```diff\n--- a.py\n+++ a.py\n@@ -1,1 +1,1 @@\n-x = 1\n+x = 2\n```\n"
	diff := extractDiff(response)
	if !strings.HasPrefix(diff, "--- a.py") {
		t.Fatalf("expected diff fence contents, got %q", diff)
	}
}

func TestExtractDiffManualScanStopsAtNonDiffLine(t *testing.T) {
	response := "--- a.py\n+++ a.py\n@@ -1,1 +1,1 @@\n-x = 1\n+x = 2\nThis is trailing prose.\nMore prose."
	diff := extractDiff(response)
	if strings.Contains(diff, "trailing prose") {
		t.Fatalf("expected scan to stop before trailing prose, got %q", diff)
	}
	if !strings.Contains(diff, "+x = 2") {
		t.Fatalf("expected the last diff line to be retained, got %q", diff)
	}
}

func TestExtractDiffFallsBackToRawResponse(t *testing.T) {
	response := "The goal is already satisfied; no change is needed."
	diff := extractDiff(response)
	if diff != response {
		t.Fatalf("expected unchanged free text, got %q", diff)
	}
}

func TestCreatePlanFallsBackOnInvalidStructure(t *testing.T) {
	client := &stubClient{response: "not json at all"}
	adapter := NewAdapter(client)
	plan := adapter.CreatePlan("do the thing", RetrievalContext{}, nil)
	if len(plan.Steps) != 1 || plan.Steps[0].Action != "analyze" {
		t.Fatalf("expected fallback plan, got %+v", plan)
	}
}

func TestCreatePlanParsesValidResponse(t *testing.T) {
	client := &stubClient{response: `{"steps":[{"id":1,"description":"d","action":"edit","files":["a.py"],"rationale":"r"}],"estimated_changes":5,"risk_level":"low","dependencies":{"add":[],"remove":[]},"test_strategy":"run tests"}`}
	adapter := NewAdapter(client)
	plan := adapter.CreatePlan("do the thing", RetrievalContext{}, nil)
	if len(plan.Steps) != 1 || plan.Steps[0].Action != "edit" || plan.RiskLevel != "low" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestSuggestRepairFallsBackOnParseFailure(t *testing.T) {
	client := &stubClient{response: "unparseable"}
	adapter := NewAdapter(client)
	repair := adapter.SuggestRepair(map[string]interface{}{"reason": "boom"}, nil, fallbackPlan())
	if repair.Confidence != "low" {
		t.Fatalf("expected low-confidence fallback, got %+v", repair)
	}
}

type stubClient struct {
	response string
	err      error
}

func (s *stubClient) Chat(messages []Message) (string, error) {
	return s.response, s.err
}

func (s *stubClient) ChatStream(messages []Message, callback StreamCallback) (string, error) {
	if callback != nil {
		callback(s.response)
	}
	return s.response, s.err
}

func (s *stubClient) CheckConnection() error { return nil }
func (s *stubClient) GetModel() string       { return "stub" }
