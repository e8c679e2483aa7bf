package analysis

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// inputFileName is the filename generated scripts read the document from.
// Scripts are told this exact name; the content is materialized read-only in
// the run's scratch directory.
const inputFileName = "input.txt"

// ExecutionResult captures one generated-script attempt. Faults raised by the
// script are captured into Stderr, never propagated to the caller.
type ExecutionResult struct {
	Success  bool
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Executor runs model-generated scripts against document content.
type Executor interface {
	Execute(ctx context.Context, script, content string) ExecutionResult
}

// ScriptExecutor executes generated scripts out of process with a stripped
// environment, an isolated per-run working directory and a hard timeout.
//
// This is best-effort isolation, not a security sandbox: it limits accidents
// (file clobbering, runaway scripts), not a hostile author. Do not feed it
// untrusted multi-tenant input.
type ScriptExecutor struct {
	interpreter string
	timeout     time.Duration
	scratchDir  string
	logger      *log.Logger
}

// NewScriptExecutor creates a script executor.
func NewScriptExecutor(interpreter string, timeout time.Duration, scratchDir string, logger *log.Logger) *ScriptExecutor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &ScriptExecutor{interpreter: interpreter, timeout: timeout, scratchDir: scratchDir, logger: logger}
}

// Execute writes the script and document into a uuid-namespaced scratch
// directory, runs the interpreter there and captures output. Concurrent runs
// never share a directory, so no locking is needed.
func (e *ScriptExecutor) Execute(ctx context.Context, script, content string) ExecutionResult {
	runDir := filepath.Join(e.scratchDir, "run-"+uuid.NewString())
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return ExecutionResult{Success: false, Stderr: "failed to create scratch dir: " + err.Error()}
	}
	defer os.RemoveAll(runDir)

	if err := os.WriteFile(filepath.Join(runDir, inputFileName), []byte(content), 0o400); err != nil {
		return ExecutionResult{Success: false, Stderr: "failed to write input: " + err.Error()}
	}
	scriptPath := filepath.Join(runDir, "generated_script.py")
	if err := os.WriteFile(scriptPath, []byte(script), 0o600); err != nil {
		return ExecutionResult{Success: false, Stderr: "failed to write script: " + err.Error()}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.interpreter, scriptPath)
	cmd.Dir = runDir
	cmd.Env = []string{
		"PATH=/usr/bin:/bin",
		"HOME=" + runDir,
		"TMPDIR=" + runDir,
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecutionResult{
		Success: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			res.TimedOut = true
			res.Stderr = "script execution timed out after " + e.timeout.String()
		} else if res.Stderr == "" {
			res.Stderr = err.Error()
		}
		e.logger.Printf("script execution failed: %v", err)
	}
	return res
}
