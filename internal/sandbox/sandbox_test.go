package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExecCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)
	result, err := l.Exec(context.Background(), "echo hello", dir, 5*time.Second)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%q)", result.ExitCode, result.Stderr)
	}
}

func TestExecNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)
	result, err := l.Exec(context.Background(), "false", dir, 5*time.Second)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if result.ExitCode == 0 {
		t.Fatalf("expected a non-zero exit code")
	}
}

func TestExecTimeout(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)
	result, err := l.Exec(context.Background(), "sleep 2", dir, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if result.ExitCode != -1 {
		t.Fatalf("expected timeout exit code -1, got %d", result.ExitCode)
	}
}

func TestDetectStackFindsGoModule(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	l := NewLocal(dir)
	stack, err := l.DetectStack(context.Background(), dir)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	found := false
	for _, lang := range stack.Languages {
		if lang == "go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected go.mod to mark the project as go, got %+v", stack.Languages)
	}
}

func TestSplitCommandHandlesQuotedArgs(t *testing.T) {
	args := splitCommand(`jest --testPathPattern="a b|c"`)
	if len(args) != 2 || args[1] != `--testPathPattern=a b|c` {
		t.Fatalf("unexpected split: %#v", args)
	}
}
