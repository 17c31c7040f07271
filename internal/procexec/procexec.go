// Package procexec is the shared subprocess-invocation primitive for
// the Graph Probe and Pin Executor: a fixed command name, a minimal
// reconstructed environment, and process-group cancellation. The
// command name and arguments are passed through without validation.
//
// Grounded on the teacher's cmd/orizon-compiler/secure_exec.go
// (SecureCommandExecutor: exec.CommandContext, an allow-listed command
// name, a rebuilt rather than inherited environment) and on
// other_examples' golang-dep project_manager.go (exec.Command(...)
// .CombinedOutput(), explicit env merging via mergeEnvLists to suppress
// interactive prompting).
package procexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/dertin/cargo-cooldown/internal/cderrors"
)

// Runner invokes a single fixed command.
type Runner struct {
	// Command is the binary name (e.g. "cargo"), set by the constructor
	// of the calling package; it is not checked against any list.
	Command string
	// Extra is appended to the minimal reconstructed environment; used
	// to force deterministic, unprompted, uncolored subprocess output
	// (CARGO_NET_OFFLINE, CARGO_TERM_COLOR=never, ...).
	Extra []string
}

// Result is the outcome of one subprocess invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Run executes the runner's command with args, in workDir, returning
// its captured stdout/stderr and exit code. It never returns an error
// for a nonzero exit — callers interpret ExitCode themselves (§4.6
// "exit status determines success") — only for failure to start or for
// cancellation.
func (r *Runner) Run(ctx context.Context, workDir string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = workDir
	cmd.Env = r.environment()
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if ctx.Err() != nil {
		killProcessGroup(cmd)
		return res, cderrors.Cancelled(fmt.Sprintf("%s %v", r.Command, args))
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, cderrors.SubprocessError(
			fmt.Sprintf("could not start %s: %v", r.Command, err),
			map[string]string{"command": r.Command, "args": fmt.Sprint(args)},
		)
	}
	return res, nil
}

// environment reconstructs a minimal, explicit environment rather than
// inheriting os.Environ() wholesale, matching secure_exec.go's
// getSecureEnvironment.
func (r *Runner) environment() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
	}
	if cargoHome := os.Getenv("CARGO_HOME"); cargoHome != "" {
		env = append(env, "CARGO_HOME="+cargoHome)
	}
	env = append(env, r.Extra...)
	return env
}
