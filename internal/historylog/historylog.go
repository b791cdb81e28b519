// Package historylog appends one JSON line per finished task to an
// append-only log, giving a cheap audit trail of past runs without
// building a learning or caching layer on top of it.
package historylog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codeorc/orchestrator/internal/fsm"
)

// Log appends task reports to a JSONL file and can read them back.
type Log struct {
	mu   sync.Mutex
	path string
}

// New constructs a Log writing to path, creating its parent directory on
// first Append.
func New(path string) *Log {
	return &Log{path: path}
}

// Append serializes report as one JSON line and appends it to the log.
func (l *Log) Append(report fsm.Report) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening history log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling task report: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing task report: %w", err)
	}
	return nil
}

// Recent reads the last n reports from the log, oldest first. Malformed
// lines are skipped rather than failing the whole read.
func (l *Log) Recent(n int) []fsm.Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var all []fsm.Report
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var report fsm.Report
		if err := json.Unmarshal([]byte(line), &report); err != nil {
			continue
		}
		all = append(all, report)
	}

	if len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}
