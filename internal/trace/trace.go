// Package trace builds a tree of nested operation calls for a task run and
// persists it as JSON. Go has no goroutine-local storage, so callers thread
// an explicit scope handle (typically the task ID) through the calls they
// want nested together, rather than relying on a thread identifier the
// runtime supplies for free.
package trace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Call is one entry in a call_stack tree.
type Call struct {
	Timestamp  float64                `json:"timestamp"`
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Duration   float64                `json:"duration"`
	Error      string                 `json:"error,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	ThreadID   string                 `json:"thread_id"`
	Children   []*Call                `json:"children"`
}

// Document is the full persisted trace file shape.
type Document struct {
	SessionID  string  `json:"session_id"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	TotalCalls int     `json:"total_calls"`
	CallStack  []*Call `json:"call_stack"`
}

// Collector is a mutex-protected tree builder. One Collector is created
// per task; scope handles (e.g. the task ID, or a sub-scope derived from
// it) key independent call stacks within it.
type Collector struct {
	mu         sync.Mutex
	sessionID  string
	startTime  time.Time
	topLevel   []*Call
	stacks     map[string][]*Call
	totalCalls int
}

// New constructs a Collector for sessionID, starting its clock now.
func New(sessionID string) *Collector {
	return &Collector{
		sessionID: sessionID,
		startTime: time.Now(),
		stacks:    make(map[string][]*Call),
	}
}

// Start begins a new call under scope, nesting it inside the scope's
// current innermost open call if one exists. The returned *Call must be
// passed to End.
func (c *Collector) Start(scope, component, operation string, details map[string]interface{}) *Call {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := &Call{
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Component: component,
		Operation: operation,
		Details:   details,
		ThreadID:  scope,
		Children:  []*Call{},
	}

	stack := c.stacks[scope]
	if len(stack) > 0 {
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, call)
	} else {
		c.topLevel = append(c.topLevel, call)
	}
	c.stacks[scope] = append(stack, call)
	c.totalCalls++

	return call
}

// End closes call, recording its duration and optional error/stack trace,
// and pops it from scope's stack.
func (c *Collector) End(scope string, call *Call, duration time.Duration, errMsg, stackTrace string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call.Duration = duration.Seconds()
	call.Error = errMsg
	call.StackTrace = stackTrace

	stack := c.stacks[scope]
	if len(stack) > 0 && stack[len(stack)-1] == call {
		c.stacks[scope] = stack[:len(stack)-1]
		if len(c.stacks[scope]) == 0 {
			delete(c.stacks, scope)
		}
	}
}

// Trace runs fn as a traced call under scope, recording its duration and
// any returned error automatically. Call it around a function body instead
// of hand-writing matching Start/End calls at each call site.
func (c *Collector) Trace(scope, component, operation string, details map[string]interface{}, fn func() error) error {
	call := c.Start(scope, component, operation, details)
	start := time.Now()
	err := fn()
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	c.End(scope, call, time.Since(start), errMsg, "")
	return err
}

// Document snapshots the collector's current state into a persistable
// Document.
func (c *Collector) Document() Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Document{
		SessionID:  c.sessionID,
		StartTime:  float64(c.startTime.UnixNano()) / 1e9,
		EndTime:    float64(time.Now().UnixNano()) / 1e9,
		TotalCalls: c.totalCalls,
		CallStack:  c.topLevel,
	}
}

// SaveToFile writes the current Document as indented JSON to path,
// creating parent directories as needed.
func (c *Collector) SaveToFile(path string) error {
	doc := c.Document()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
