package fsm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeorc/orchestrator/internal/contextengine"
	"github.com/codeorc/orchestrator/internal/model"
	"github.com/codeorc/orchestrator/internal/patch"
	"github.com/codeorc/orchestrator/internal/policy"
	"github.com/codeorc/orchestrator/internal/sandbox"
	"github.com/codeorc/orchestrator/internal/testrunner"
	"github.com/codeorc/orchestrator/internal/trace"
)

// handlerFunc is the signature every state handler implements.
type handlerFunc func(ctx context.Context, c *orchestratorContext) (State, error)

var handlers = map[State]handlerFunc{
	StateIngest:  handleIngest,
	StatePlan:    handlePlan,
	StateEdit:    handleEdit,
	StateTest:    handleTest,
	StateIterate: handleIterate,
}

// Orchestrator owns the collaborators a control-loop run needs and exposes
// Run as the sole entry point, wiring its subsystems once and reusing them
// across tasks.
type Orchestrator struct {
	// Sandbox supplies stack detection and command execution. Defaults to
	// sandbox.NewLocal(task.WorkDir) per run if nil.
	Sandbox sandbox.Sandbox

	// Adapter is the Model Adapter this orchestrator drives. Required.
	Adapter *model.Adapter

	// Policy is the rule set every plan and diff is validated against. A
	// nil value (the default) falls back to policy.DefaultConfig().
	Policy *policy.Config

	// Tracer, if set, receives a nested call-stack trace of every state
	// transition under the task's ID as scope.
	Tracer *trace.Collector

	// TraceDir, if set, is where plan snapshots and the final trace
	// document are written, one subdirectory per task ID.
	TraceDir string

	// History, if set, receives one JSON line per completed task.
	History historyAppender
}

// historyAppender is the minimal surface Orchestrator needs from a history
// log, kept narrow so this package does not need to import historylog
// directly (avoiding a cmd/internal dependency cycle risk).
type historyAppender interface {
	Append(Report) error
}

// Run drives task through the control loop from INGEST to a terminal state,
// returning the final Report. It never panics: a handler that panics is
// caught and converted into an ABORT with a "Fatal internal error" reason.
func (o *Orchestrator) Run(ctx context.Context, task Task) Report {
	task = task.withDefaults()

	c := newOrchestratorContext(task)
	c.sandbox = o.Sandbox
	if c.sandbox == nil {
		c.sandbox = sandbox.NewLocal(task.WorkDir)
	}
	c.contextEngine = contextengine.New(task.WorkDir)
	c.patchEngine = patch.New(task.WorkDir)
	cfg := policy.DefaultConfig()
	if o.Policy != nil {
		cfg = *o.Policy
	}
	c.policyEngine = policy.New(cfg)
	c.testRunner = testrunner.New(task.WorkDir)
	c.adapter = o.Adapter
	c.tracer = o.Tracer
	c.traceDir = o.TraceDir

	state := StateIngest
	for state != StateDone && state != StateAbort {
		next, err := o.callHandler(ctx, state, c)
		c.recordDuration(state)

		if err != nil {
			c.abortReason = classifyError(err)
			state = StateAbort
			break
		}
		state = next
	}
	c.recordDuration(state)

	report := o.finalize(c, state)

	if o.Tracer != nil && o.TraceDir != "" {
		_ = o.Tracer.SaveToFile(filepath.Join(o.TraceDir, task.ID, "trace.json"))
	}
	if o.History != nil {
		_ = o.History.Append(report)
	}

	return report
}

// callHandler invokes the handler for state, tracing it if a Tracer is
// configured, and recovers a panicking handler into the "Fatal internal
// error" failure-mode bucket rather than letting it escape Run.
func (o *Orchestrator) callHandler(ctx context.Context, state State, c *orchestratorContext) (next State, err error) {
	fn, ok := handlers[state]
	if !ok {
		return StateAbort, fmt.Errorf("no handler registered for state %s", state)
	}

	defer func() {
		if r := recover(); r != nil {
			next = StateAbort
			err = fmt.Errorf("fatal internal error in %s: %v", state, r)
		}
	}()

	if o.Tracer != nil {
		call := o.Tracer.Start(c.task.ID, "fsm", string(state), nil)
		start := time.Now()
		next, err = fn(ctx, c)
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		o.Tracer.End(c.task.ID, call, time.Since(start), errMsg, "")
		return next, err
	}

	return fn(ctx, c)
}

func (c *orchestratorContext) recordDuration(state State) {
	if c.stateDurations == nil {
		c.stateDurations = make(map[string]float64)
	}
	// Cumulative wall-clock at time of entry to state, consistent with the
	// simple elapsed-since-start bookkeeping the rest of the context uses;
	// a per-state timer would need its own start stamp per transition.
	c.stateDurations[string(state)] = c.elapsed().Seconds()
}

// classifyError maps a handler error to the abort_reason vocabulary;
// sentinel-wrapped errors take precedence over the generic message.
func classifyError(err error) string {
	return err.Error()
}

func (o *Orchestrator) finalize(c *orchestratorContext, state State) Report {
	status := "success"
	if state == StateAbort {
		status = "aborted"
		reason := c.abortReason
		if reason == "" {
			reason = c.computeAbortReason()
		}
		c.artifacts["abort_reason"] = reason
	} else {
		if queryOnly, _ := c.artifacts["query_only"].(bool); queryOnly {
			c.artifacts["final_diff"] = "# No changes needed for query"
		} else {
			c.artifacts["final_diff"] = c.lastDiff
		}
	}
	c.artifacts["status"] = status

	return Report{
		TaskID:         c.task.ID,
		Goal:           c.task.Goal,
		Status:         status,
		Duration:       c.elapsed().Seconds(),
		StateDurations: c.stateDurations,
		RetryCount:     c.retryCount,
		TokenUsage:     c.tokenCount,
		FinalState:     string(state),
		Artifacts:      c.artifacts,
	}
}

// snapshotPlan persists the current plan to the trace directory between
// iterations. A missing TraceDir is not an error: snapshotting is
// best-effort observability, not part of the control loop's correctness.
// Alongside the canonical JSON form it writes a YAML rendering, cheaper for
// a human to scan mid-run than a nested-struct JSON dump.
func (c *orchestratorContext) snapshotPlan() {
	if c.traceDir == "" {
		return
	}
	snap := planSnapshot{Goal: c.task.Goal, Plan: c.plan}

	dir := filepath.Join(c.traceDir, c.task.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}

	if data, err := json.MarshalIndent(snap, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, fmt.Sprintf("plan-%02d.json", c.iteration)), data, 0o644)
	}
	if data, err := yaml.Marshal(snap); err == nil {
		_ = os.WriteFile(filepath.Join(dir, fmt.Sprintf("plan-%02d.yaml", c.iteration)), data, 0o644)
	}
}
