// Package plan defines the Plan/Step data model shared between the Model
// Adapter and the Control Loop.
//
// Field order on Plan matters: encoding/json marshals struct fields in
// declaration order, so Completed is declared before Todo. That keeps the
// serialized prefix monotonically non-decreasing as steps move from Todo
// into Completed across EDIT iterations, which lets an LLM provider reuse
// its prompt cache across repair attempts instead of re-processing the
// whole prompt from scratch each time.
package plan

import "encoding/json"

// StepStatus enumerates a Step's execution outcome.
type StepStatus string

const (
	StatusUnset   StepStatus = ""
	StatusSuccess StepStatus = "SUCCESS"
	StatusFailure StepStatus = "FAILURE"
)

// Step is a single unit of work inside a Plan.
type Step struct {
	ToolName     string                 `json:"tool_name"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	Description  string                 `json:"description,omitempty"`
	DependsOn    []int                  `json:"depends_on"`
	Result       interface{}            `json:"result,omitempty"`
	Status       StepStatus             `json:"status"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// NewStep constructs a Step with a non-nil DependsOn slice.
func NewStep(toolName, description string, params map[string]interface{}) Step {
	return Step{
		ToolName:    toolName,
		Description: description,
		Parameters:  params,
		DependsOn:   []int{},
		Status:      StatusUnset,
	}
}

// Plan is an ordered list of completed Steps followed by an ordered list of
// todo Steps, plus free-form metadata. See the package doc for why the field
// order below is load-bearing.
type Plan struct {
	Completed []Step                 `json:"completed"`
	Todo      []Step                 `json:"todo"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// New returns an empty Plan with non-nil slices/maps so JSON round-trips
// produce "[]"/"{}" rather than "null".
func New() Plan {
	return Plan{
		Completed: []Step{},
		Todo:      []Step{},
		Metadata:  map[string]interface{}{},
	}
}

// CreateSimpleResponse builds a Plan whose sole step is already completed,
// used when a goal resolves to a direct answer rather than a multi-step
// edit (see the FSM's query-only EDIT → DONE branch).
func CreateSimpleResponse(description, response string) Plan {
	p := New()
	p.Completed = append(p.Completed, Step{
		ToolName:    "respond",
		Description: description,
		Result:      response,
		Status:      StatusSuccess,
		DependsOn:   []int{},
	})
	return p
}

// CreateErrorResponse builds a Plan recording a single failed step, used as
// the Model Adapter's deterministic fallback when plan creation fails.
func CreateErrorResponse(description, errMsg string) Plan {
	p := New()
	p.Completed = append(p.Completed, Step{
		ToolName:     "respond",
		Description:  description,
		Status:       StatusFailure,
		ErrorMessage: errMsg,
		DependsOn:    []int{},
	})
	return p
}

// Steps returns completed followed by todo steps, in order.
func (p Plan) Steps() []Step {
	out := make([]Step, 0, len(p.Completed)+len(p.Todo))
	out = append(out, p.Completed...)
	out = append(out, p.Todo...)
	return out
}

// IsComplete reports whether every step has moved into Completed.
func (p Plan) IsComplete() bool {
	return len(p.Todo) == 0
}

// HasFailed reports whether any completed step ended in FAILURE.
func (p Plan) HasFailed() bool {
	for _, s := range p.Completed {
		if s.Status == StatusFailure {
			return true
		}
	}
	return false
}

// CompleteNextStep pops the head of Todo, stamps it with the given result or
// error, and appends it to Completed. It is the only mutating operation on a
// Plan and is the operation Testable Property 4 (prefix monotonicity) is
// defined against.
func (p *Plan) CompleteNextStep(result interface{}, errMsg string) (Step, bool) {
	if len(p.Todo) == 0 {
		return Step{}, false
	}
	step := p.Todo[0]
	p.Todo = p.Todo[1:]

	if errMsg != "" {
		step.Status = StatusFailure
		step.ErrorMessage = errMsg
	} else {
		step.Status = StatusSuccess
		step.Result = result
	}
	p.Completed = append(p.Completed, step)
	return step, true
}

// ToJSON serializes the Plan with completed-before-todo key order.
func (p Plan) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// FromJSON deserializes a Plan previously produced by ToJSON.
func FromJSON(data []byte) (Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return Plan{}, err
	}
	if p.Completed == nil {
		p.Completed = []Step{}
	}
	if p.Todo == nil {
		p.Todo = []Step{}
	}
	if p.Metadata == nil {
		p.Metadata = map[string]interface{}{}
	}
	return p, nil
}
