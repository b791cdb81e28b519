package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

// PlanProposal is the raw shape create_plan returns: a stepwise plan prior
// to being folded into a plan.Plan by the control loop.
type PlanProposal struct {
	Steps            []PlanStep             `json:"steps"`
	EstimatedChanges int                    `json:"estimated_changes"`
	RiskLevel        string                 `json:"risk_level"`
	Dependencies     map[string]interface{} `json:"dependencies"`
	TestStrategy     string                 `json:"test_strategy"`
}

// PlanStep is one entry in a PlanProposal.
type PlanStep struct {
	ID          int      `json:"id"`
	Description string   `json:"description"`
	Action      string   `json:"action"`
	Files       []string `json:"files"`
	Rationale   string   `json:"rationale"`
}

// RepairSuggestion is the raw shape suggest_repair returns.
type RepairSuggestion struct {
	Analysis       string                 `json:"analysis"`
	RepairStrategy string                 `json:"repair_strategy"`
	ModifiedPlan   map[string]interface{} `json:"modified_plan"`
	Confidence     string                 `json:"confidence"`
}

// RetrievalContext is the subset of a contextengine.RetrievalResult the
// adapter needs to build a prompt. Declared locally so this package does
// not need to import contextengine.
type RetrievalContext struct {
	Symbols []map[string]string
	Files   []RetrievalFile
	Imports []string
}

// RetrievalFile is one file entry inside a RetrievalContext.
type RetrievalFile struct {
	Path    string
	Content string
}

// Adapter translates orchestrator intents into prompts sent to a Client and
// extracts structured output (JSON or diffs) from its free-form responses.
// It holds no state between calls; conversation continuity comes from the
// caller re-passing previous_attempts.
type Adapter struct {
	client  Client
	limiter *rate.Limiter
}

// NewAdapter constructs an Adapter around the given Client with no outbound
// throttling.
func NewAdapter(client Client) *Adapter {
	return &Adapter{client: client}
}

// NewRateLimitedAdapter constructs an Adapter that throttles outbound Chat
// calls to at most ratePerSecond requests per second (burst 1), so a task
// hammering the Model Adapter across EDIT/ITERATE cycles cannot exceed a
// provider's rate limit on its own.
func NewRateLimitedAdapter(client Client, ratePerSecond float64) *Adapter {
	return &Adapter{client: client, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1)}
}

// chat waits for the rate limiter (if configured) before delegating to the
// underlying Client.
func (a *Adapter) chat(messages []Message) (string, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(context.Background()); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}
	return a.client.Chat(messages)
}

func fallbackPlan() PlanProposal {
	return PlanProposal{
		Steps: []PlanStep{
			{ID: 1, Description: "Analyze project structure", Action: "analyze", Files: []string{}, Rationale: "Understanding codebase before changes"},
		},
		EstimatedChanges: 10,
		RiskLevel:        "low",
		Dependencies:     map[string]interface{}{"add": []interface{}{}, "remove": []interface{}{}},
		TestStrategy:     "Run existing tests",
	}
}

// CreatePlan asks the model for a stepwise plan toward goal. On any parse
// failure or missing-key structure it returns the deterministic fallback
// plan rather than propagating an error.
func (a *Adapter) CreatePlan(goal string, retrieval RetrievalContext, constraints map[string]interface{}) PlanProposal {
	constraintsJSON, _ := json.MarshalIndent(constraints, "", "  ")

	prompt := fmt.Sprintf(`Create a detailed step-by-step plan to achieve this goal: %s

CONTEXT:
%s

CONSTRAINTS:
%s

REQUIREMENTS:
- Make incremental changes only, no full file rewrites
- Inspect the project structure first
- Use unified diffs for changes
- Consider test impact and coverage
- Follow existing code patterns and conventions

Provide a JSON response with this structure:
{
    "steps": [
        {
            "id": 1,
            "description": "Brief step description",
            "action": "analyze|edit|test",
            "files": ["file1.py", "file2.py"],
            "rationale": "Why this step is needed"
        }
    ],
    "estimated_changes": 50,
    "risk_level": "low|medium|high",
    "dependencies": {"add": [], "remove": []},
    "test_strategy": "Description of testing approach"
}`, goal, buildContextString(retrieval), string(constraintsJSON))

	response, err := a.chat([]Message{{Role: "user", Content: prompt}})
	if err != nil {
		return fallbackPlan()
	}

	raw, err := extractJSONObject(response)
	if err != nil {
		return fallbackPlan()
	}

	var proposal PlanProposal
	if err := json.Unmarshal(raw, &proposal); err != nil {
		return fallbackPlan()
	}
	if !isValidPlan(proposal) {
		return fallbackPlan()
	}
	return proposal
}

func isValidPlan(p PlanProposal) bool {
	if len(p.Steps) == 0 || p.RiskLevel == "" {
		return false
	}
	for _, step := range p.Steps {
		if step.Description == "" || step.Action == "" {
			return false
		}
	}
	return true
}

// ProposePatch asks the model for a unified diff implementing the next
// step of plan. The returned string is either a diff (starting with
// "---"/"+++") or, if no diff markers are found, the raw free text, which
// the control loop treats as a query-only answer.
func (a *Adapter) ProposePatch(plan PlanProposal, retrieval RetrievalContext, previousAttempts []string) (string, error) {
	planJSON, _ := json.MarshalIndent(plan, "", "  ")

	attemptsStr := ""
	if len(previousAttempts) > 0 {
		attemptsStr = fmt.Sprintf("\nPREVIOUS ATTEMPTS:\n%d previous patches were applied", len(previousAttempts))
	}

	prompt := fmt.Sprintf(`Based on this plan, create a unified diff patch:

PLAN:
%s

CONTEXT:
%s
%s

REQUIREMENTS:
- Generate ONLY a unified diff format patch
- Make minimal, targeted changes
- Preserve existing code style and patterns
- Include proper context lines for reliable application
- Focus on the next logical step from the plan

Output ONLY the unified diff, starting with --- and +++.
Do not include any other text or explanations.`, string(planJSON), buildContextString(retrieval), attemptsStr)

	response, err := a.chat([]Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}

	return extractDiff(response), nil
}

// SuggestRepair asks the model to analyze a TEST failure and propose a
// repair strategy. On parse failure it returns a low-confidence suggestion
// that echoes the original plan back unchanged.
func (a *Adapter) SuggestRepair(failureContext map[string]interface{}, previousAttempts []string, plan PlanProposal) RepairSuggestion {
	failureJSON, _ := json.MarshalIndent(failureContext, "", "  ")
	planJSON, _ := json.MarshalIndent(plan, "", "  ")

	prompt := fmt.Sprintf(`The previous change failed. Analyze the failure and suggest a repair:

FAILURE CONTEXT:
%s

ORIGINAL PLAN:
%s

PREVIOUS ATTEMPTS:
%d patches have been tried

Provide a JSON response with repair suggestions:
{
    "analysis": "Brief analysis of why it failed",
    "repair_strategy": "What approach to take",
    "modified_plan": {
        "steps": [...],
        "changes": "Description of plan modifications"
    },
    "confidence": "low|medium|high"
}`, string(failureJSON), string(planJSON), len(previousAttempts))

	fallback := func() RepairSuggestion {
		var echoed map[string]interface{}
		_ = json.Unmarshal(planJSON, &echoed)
		return RepairSuggestion{
			Analysis:       "Unable to analyze failure",
			RepairStrategy: "Simplify approach and retry",
			ModifiedPlan:   echoed,
			Confidence:     "low",
		}
	}

	response, err := a.chat([]Message{{Role: "user", Content: prompt}})
	if err != nil {
		return fallback()
	}

	raw, err := extractJSONObject(response)
	if err != nil {
		return fallback()
	}

	var suggestion RepairSuggestion
	if err := json.Unmarshal(raw, &suggestion); err != nil {
		return fallback()
	}
	return suggestion
}

func buildContextString(retrieval RetrievalContext) string {
	var parts []string

	if len(retrieval.Symbols) > 0 {
		symbols := retrieval.Symbols
		if len(symbols) > 10 {
			symbols = symbols[:10]
		}
		parts = append(parts, "RELEVANT SYMBOLS:")
		for _, s := range symbols {
			name := s["name"]
			if name == "" {
				name = "unknown"
			}
			kind := s["type"]
			if kind == "" {
				kind = "unknown"
			}
			parts = append(parts, fmt.Sprintf("- %s (%s)", name, kind))
		}
	}

	if len(retrieval.Files) > 0 {
		files := retrieval.Files
		if len(files) > 5 {
			files = files[:5]
		}
		parts = append(parts, "\nRELEVANT FILES:")
		for _, f := range files {
			parts = append(parts, "- "+f.Path)
			if f.Content != "" {
				lines := strings.Split(f.Content, "\n")
				truncated := lines
				if len(truncated) > 10 {
					truncated = truncated[:10]
				}
				parts = append(parts, "  "+strings.Join(truncated, "\n  "))
				if len(lines) > 10 {
					parts = append(parts, "  ...")
				}
			}
		}
	}

	if len(retrieval.Imports) > 0 {
		imports := retrieval.Imports
		if len(imports) > 5 {
			imports = imports[:5]
		}
		parts = append(parts, "\nRELEVANT IMPORTS:")
		for _, imp := range imports {
			parts = append(parts, "- "+imp)
		}
	}

	if len(parts) == 0 {
		return "No specific context available"
	}
	return strings.Join(parts, "\n")
}
