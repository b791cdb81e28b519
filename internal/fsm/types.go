// Package fsm implements the control loop: the finite-state machine that
// orchestrates the context engine, patch engine, policy engine, test
// runner, and model adapter through a single task's INGEST -> PLAN -> EDIT
// -> TEST -> DONE lifecycle, with ITERATE/ABORT side branches.
package fsm

import (
	"time"

	"github.com/codeorc/orchestrator/internal/plan"
)

// State is one node of the control loop's state graph.
type State string

const (
	StateIngest  State = "INGEST"
	StatePlan    State = "PLAN"
	StateEdit    State = "EDIT"
	StateTest    State = "TEST"
	StateIterate State = "ITERATE"
	StateDone    State = "DONE"
	StateAbort   State = "ABORT"
)

// Task is the input to a single control-loop run.
type Task struct {
	ID          string
	WorkDir     string
	Goal        string
	Constraints map[string]interface{}

	MaxRetries  int
	MaxDuration time.Duration
	MaxTokens   int
}

// withDefaults fills in zero-valued limits with sane defaults so a caller
// that only sets Goal/WorkDir still gets a bounded run.
func (t Task) withDefaults() Task {
	if t.MaxRetries <= 0 {
		t.MaxRetries = 3
	}
	if t.MaxDuration <= 0 {
		t.MaxDuration = 10 * time.Minute
	}
	if t.MaxTokens <= 0 {
		t.MaxTokens = 60_000
	}
	return t
}

// Report is the mapping the FSM returns on termination.
type Report struct {
	TaskID         string                 `json:"task_id"`
	Goal           string                 `json:"goal"`
	Status         string                 `json:"status"`
	Duration       float64                `json:"duration"`
	StateDurations map[string]float64     `json:"state_durations"`
	RetryCount     int                    `json:"retry_count"`
	TokenUsage     int                    `json:"token_usage"`
	FinalState     string                 `json:"final_state"`
	Artifacts      map[string]interface{} `json:"artifacts"`
}

// planSnapshot is written to the trace directory between iterations. Field
// order (Goal before Plan) is load-bearing for prompt-cache-friendly
// monotonic prefixes, the same reasoning plan.Plan documents for its own
// field order.
type planSnapshot struct {
	Goal string    `json:"goal"`
	Plan plan.Plan `json:"plan"`
}
