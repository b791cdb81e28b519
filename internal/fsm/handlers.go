package fsm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/codeorc/orchestrator/internal/orcerr"
	"github.com/codeorc/orchestrator/internal/testrunner"
)

// handleIngest ensures the working directory exists, probes the stack, and
// indexes the repository.
func handleIngest(ctx context.Context, c *orchestratorContext) (State, error) {
	if _, err := os.Stat(c.task.WorkDir); err != nil {
		return StateAbort, fmt.Errorf("%w: %s", orcerr.ErrWorkDirMissing, c.task.WorkDir)
	}

	if stack, err := c.sandbox.DetectStack(ctx, c.task.WorkDir); err == nil {
		c.artifacts["stack"] = stack
	}

	warnings, err := c.contextEngine.IndexRepository(c.task.WorkDir)
	if len(warnings) > 0 {
		c.artifacts["index_warnings"] = warnings
	}
	if err != nil {
		return StateAbort, fmt.Errorf("indexing %s: %w", c.task.WorkDir, err)
	}

	return StatePlan, nil
}

// handlePlan retrieves a budgeted context bundle, asks the Model Adapter
// for a plan, and gates it through the Policy Engine.
func handlePlan(ctx context.Context, c *orchestratorContext) (State, error) {
	if c.globalAbort() {
		return StateAbort, nil
	}

	budget := minInt(10000, c.task.MaxTokens/3)
	retrieval := c.contextEngine.Retrieve(c.task.Goal, budget)
	c.addTokens(retrieval.TokenCount)

	proposal := c.adapter.CreatePlan(c.task.Goal, convertRetrieval(retrieval), c.task.Constraints)
	pl := planFromProposal(proposal)

	result := c.policyEngine.ValidatePlan(pl)
	if !result.IsValid {
		return StateAbort, fmt.Errorf("%w: %s", orcerr.ErrPolicyViolation, strings.Join(result.Violations, "; "))
	}

	c.planProposal = proposal
	c.plan = pl
	c.artifacts["plan"] = pl
	c.snapshotPlan()

	return StateEdit, nil
}

// handleEdit retrieves a larger context bundle, asks for a unified diff,
// and either treats it as a query-only answer, rejects it through policy or
// the Patch Engine, or applies it.
func handleEdit(ctx context.Context, c *orchestratorContext) (State, error) {
	if c.globalAbort() {
		return StateAbort, nil
	}

	budget := minInt(15000, c.task.MaxTokens/2)
	retrieval := c.contextEngine.Retrieve(c.task.Goal, budget)
	c.addTokens(retrieval.TokenCount)

	diffText, err := c.adapter.ProposePatch(c.planProposal, convertRetrieval(retrieval), c.appliedPatches)
	if err != nil {
		// Transient transport failure that exhausted the Model Adapter's
		// own retries: treat identically to a rejected patch.
		c.patchRejects = append(c.patchRejects, "model adapter: "+err.Error())
		return StateIterate, nil
	}

	if isQueryOnly(diffText) {
		c.artifacts["query_only"] = true
		c.artifacts["response"] = diffText
		return StateDone, nil
	}

	policyResult := c.policyEngine.ValidateDiff(diffText)
	if !policyResult.IsValid {
		return StateAbort, fmt.Errorf("%w: %s", orcerr.ErrPolicyViolation, strings.Join(policyResult.Violations, "; "))
	}

	validation, patches, _ := c.patchEngine.Validate(diffText)
	if !validation.IsValid {
		c.patchRejects = append(c.patchRejects, validation.Errors...)
		c.artifacts["patch_rejects"] = c.patchRejects
		return StateIterate, nil
	}

	applyResult := c.patchEngine.Apply(patches)
	if !applyResult.Success {
		for _, rej := range applyResult.Rejects {
			c.patchRejects = append(c.patchRejects, fmt.Sprintf("%s:%d: %s", rej.File, rej.OriginalStart, rej.Reason))
		}
		c.artifacts["patch_rejects"] = c.patchRejects
		return StateIterate, nil
	}

	c.lastDiff = diffText
	c.appliedPatches = append(c.appliedPatches, diffText)
	c.artifacts["diffs"] = c.appliedPatches
	c.artifacts["applied_patches"] = c.appliedPatches
	c.patchRejects = nil
	c.plan.CompleteNextStep(applyResult.ModifiedFiles, "")

	return StateTest, nil
}

// handleTest runs the targeted subset first, then the full suite only if
// the targeted run passed; only a full-suite pass moves the loop to DONE.
func handleTest(ctx context.Context, c *orchestratorContext) (State, error) {
	if c.globalAbort() {
		return StateAbort, nil
	}

	analyzed, err := c.contextEngine.AnalyzeChanges(c.lastDiff)
	if err != nil {
		return StateAbort, fmt.Errorf("analyzing applied diff: %w", err)
	}

	impacted := testrunner.Impacted{
		Files:   analyzed.Files,
		Symbols: symbolNames(analyzed.Symbols),
		Tests:   analyzed.Tests,
	}

	targeted := c.testRunner.RunTargeted(ctx, impacted)
	c.artifacts["targeted_test_results"] = targeted

	if !targeted.Passed {
		c.lastTestReport = targeted
		if c.retryCount < c.task.MaxRetries {
			return StateIterate, nil
		}
		return StateAbort, nil
	}

	full := c.testRunner.RunFull(ctx)
	c.artifacts["full_test_results"] = full
	c.lastTestReport = full

	if !full.Passed {
		if c.retryCount < c.task.MaxRetries {
			return StateIterate, nil
		}
		return StateAbort, nil
	}

	return StateDone, nil
}

// handleIterate is the single chokepoint that increments retry_count,
// exactly once per failed EDIT attempt whether that attempt failed at
// patch-reject or at TEST. See DESIGN.md for why counting only here
// avoids double-counting a single failed attempt as two retries.
func handleIterate(ctx context.Context, c *orchestratorContext) (State, error) {
	c.retryCount++
	c.iteration++

	if c.retryCount >= c.task.MaxRetries {
		return StateAbort, nil
	}

	failureContext := c.buildFailureContext()
	repair := c.adapter.SuggestRepair(failureContext, c.appliedPatches, c.planProposal)
	c.artifacts["repair"] = repair

	if c.plan.Metadata == nil {
		c.plan.Metadata = map[string]interface{}{}
	}
	c.plan.Metadata["repair"] = repair
	c.snapshotPlan()

	return StateEdit, nil
}

func (c *orchestratorContext) buildFailureContext() map[string]interface{} {
	if len(c.lastTestReport.Failures) > 0 {
		mf := testrunner.ExtractMinimalFailure(c.lastTestReport)
		return map[string]interface{}{
			"test_name":      mf.TestName,
			"message":        mf.Message,
			"file":           mf.File,
			"context":        mf.Context,
			"total_failures": mf.TotalFailures,
		}
	}
	if len(c.patchRejects) > 0 {
		return map[string]interface{}{"rejects": c.patchRejects}
	}
	return map[string]interface{}{"reason": "unknown failure"}
}

// isQueryOnly reports whether diffText is a direct answer rather than a
// patch: empty, lacking diff markers, or shorter than three lines.
func isQueryOnly(diffText string) bool {
	trimmed := strings.TrimSpace(diffText)
	if trimmed == "" {
		return true
	}
	if !strings.HasPrefix(trimmed, "---") && !strings.HasPrefix(trimmed, "+++") {
		return true
	}
	lines := strings.Split(trimmed, "\n")
	return len(lines) < 3
}
