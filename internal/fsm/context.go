package fsm

import (
	"time"

	"github.com/codeorc/orchestrator/internal/contextengine"
	"github.com/codeorc/orchestrator/internal/model"
	"github.com/codeorc/orchestrator/internal/patch"
	"github.com/codeorc/orchestrator/internal/plan"
	"github.com/codeorc/orchestrator/internal/policy"
	"github.com/codeorc/orchestrator/internal/sandbox"
	"github.com/codeorc/orchestrator/internal/testrunner"
	"github.com/codeorc/orchestrator/internal/trace"
)

// orchestratorContext is the mutable state threaded through the FSM for one
// task. It is created once per Run and mutated only by state handlers.
type orchestratorContext struct {
	task Task

	// Per-task component instances, scoped to this run's lifetime.
	sandbox       sandbox.Sandbox
	contextEngine *contextengine.Engine
	patchEngine   *patch.Engine
	policyEngine  *policy.Engine
	testRunner    *testrunner.Runner
	adapter       *model.Adapter
	tracer        *trace.Collector
	traceDir      string

	state          State
	planProposal   model.PlanProposal
	plan           plan.Plan
	lastDiff       string
	appliedPatches []string
	lastTestReport testrunner.Report
	patchRejects   []string

	retryCount int
	tokenCount int
	startTime  time.Time

	abortReason    string
	stateDurations map[string]float64
	artifacts      map[string]interface{}

	iteration int
}

func newOrchestratorContext(task Task) *orchestratorContext {
	return &orchestratorContext{
		task:           task,
		state:          StateIngest,
		startTime:      time.Now(),
		stateDurations: make(map[string]float64),
		artifacts:      make(map[string]interface{}),
	}
}

func (c *orchestratorContext) elapsed() time.Duration {
	return time.Since(c.startTime)
}

// globalAbort reports whether the task has exceeded its resource budget:
// wall-clock elapsed over budget, token usage over budget, or retries
// exhausted.
func (c *orchestratorContext) globalAbort() bool {
	if c.elapsed() > c.task.MaxDuration {
		return true
	}
	if c.task.MaxTokens > 0 && c.tokenCount > c.task.MaxTokens {
		return true
	}
	return c.retryCount >= c.task.MaxRetries
}

// computeAbortReason applies the precedence timeout > token limit > retry
// limit > unknown, as specified for the global-abort predicate.
func (c *orchestratorContext) computeAbortReason() string {
	switch {
	case c.elapsed() > c.task.MaxDuration:
		return "Timeout"
	case c.task.MaxTokens > 0 && c.tokenCount > c.task.MaxTokens:
		return "Token limit exceeded"
	case c.retryCount >= c.task.MaxRetries:
		return "Retry limit exceeded"
	default:
		return "unknown"
	}
}

// addTokens folds a retrieval's estimated character-based token cost into
// the running counter. See DESIGN.md's Open Question resolution for why
// token_usage is estimated this way rather than read from provider usage
// metadata.
func (c *orchestratorContext) addTokens(n int) {
	c.tokenCount += n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// convertRetrieval adapts a contextengine.RetrievalResult into the
// model.RetrievalContext shape the Model Adapter's prompt builder expects,
// without the model package needing to import contextengine.
func convertRetrieval(r contextengine.RetrievalResult) model.RetrievalContext {
	rc := model.RetrievalContext{}
	for _, f := range r.Files {
		if f.Content == "" {
			continue
		}
		rc.Files = append(rc.Files, model.RetrievalFile{Path: f.Path, Content: f.Content})
	}
	return rc
}

// planFromProposal folds a Model Adapter plan proposal into the shared
// plan.Plan model the Policy Engine and trace snapshots operate on. Every
// step starts in Todo; state handlers move steps into Completed via
// plan.Plan.CompleteNextStep as they execute.
func planFromProposal(p model.PlanProposal) plan.Plan {
	pl := plan.New()
	for _, step := range p.Steps {
		files := make([]interface{}, len(step.Files))
		for i, f := range step.Files {
			files[i] = f
		}
		params := map[string]interface{}{
			"files":     files,
			"rationale": step.Rationale,
			"id":        step.ID,
		}
		pl.Todo = append(pl.Todo, plan.NewStep(step.Action, step.Description, params))
	}
	pl.Metadata["risk_level"] = p.RiskLevel
	pl.Metadata["estimated_changes"] = p.EstimatedChanges
	pl.Metadata["test_strategy"] = p.TestStrategy
	pl.Metadata["dependencies"] = p.Dependencies
	return pl
}

// symbolNames projects a slice of contextengine.Symbol down to bare names,
// the shape testrunner.Impacted expects.
func symbolNames(symbols []contextengine.Symbol) []string {
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.Name
	}
	return names
}
