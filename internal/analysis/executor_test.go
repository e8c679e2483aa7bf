package analysis

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

func testExecutor(t *testing.T, timeout time.Duration) *ScriptExecutor {
	t.Helper()
	return NewScriptExecutor("sh", timeout, t.TempDir(), log.New(io.Discard, "", 0))
}

func TestExecuteCapturesOutput(t *testing.T) {
	ex := testExecutor(t, 10*time.Second)
	res := ex.Execute(context.Background(), "cat "+inputFileName, "hello world")
	if !res.Success {
		t.Fatalf("expected success, stderr: %s", res.Stderr)
	}
	if res.Stdout != "hello world" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
}

func TestExecuteFailureCapturedNotReturned(t *testing.T) {
	ex := testExecutor(t, 10*time.Second)
	res := ex.Execute(context.Background(), "echo oops >&2; exit 3", "content")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Stderr, "oops") {
		t.Fatalf("expected script stderr captured, got %q", res.Stderr)
	}
	if res.TimedOut {
		t.Fatal("failure should not be marked as timeout")
	}
}

func TestExecuteTimeout(t *testing.T) {
	ex := testExecutor(t, 200*time.Millisecond)
	res := ex.Execute(context.Background(), "sleep 5", "content")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut")
	}
	if !strings.Contains(res.Stderr, "timed out") {
		t.Fatalf("expected timeout message, got %q", res.Stderr)
	}
}

func TestExecuteIsolatedWorkingDirectory(t *testing.T) {
	ex := testExecutor(t, 10*time.Second)
	res := ex.Execute(context.Background(), "pwd", "content")
	if !res.Success {
		t.Fatalf("expected success, stderr: %s", res.Stderr)
	}
	if !strings.Contains(res.Stdout, "run-") {
		t.Fatalf("expected per-run directory, got %q", res.Stdout)
	}

	// The input file must not survive the run.
	res2 := ex.Execute(context.Background(), "ls", "content")
	if strings.Contains(res2.Stdout, "run-") {
		t.Fatalf("previous run directory leaked into new run: %q", res2.Stdout)
	}
}
