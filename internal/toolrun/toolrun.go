package toolrun

import (
	"context"
	"errors"
	"time"

	execute "github.com/alexellis/go-execute/v2"

	"github.com/monimoni12/naos/internal/logging"
)

// ErrNonZeroExit is returned when a tool runs to completion but reports a
// non-zero exit code. Stdout and stderr are still populated on the Result.
var ErrNonZeroExit = errors.New("non-zero exit code")

// Spec describes one bounded external-tool invocation.
type Spec struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// Result carries the captured output of a completed invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external tools. The pipeline only ever talks to this
// interface so tests can substitute canned outcomes for ffprobe, ffmpeg and
// the separation model without spawning processes.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, spec Spec) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, spec Spec) (Result, error) {
	return f(ctx, spec)
}

// ExecRunner runs tools as real subprocesses.
type ExecRunner struct {
	Logger *logging.Logger
}

// NewExecRunner returns the production Runner.
func NewExecRunner(logger *logging.Logger) *ExecRunner {
	return &ExecRunner{Logger: logger}
}

// Run executes the spec, enforcing spec.Timeout when set. The tool's stdio is
// captured, never streamed.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	r.Logger.Debug("executing", "command", spec.Command, "args", spec.Args, "timeout", spec.Timeout)

	task := execute.ExecTask{
		Command:     spec.Command,
		Args:        spec.Args,
		StreamStdio: false,
	}

	res, err := task.Execute(ctx)
	out := Result{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.Logger.Warn("command timed out", "command", spec.Command, "timeout", spec.Timeout)
		}
		return out, err
	}
	if res.ExitCode != 0 {
		r.Logger.Debug("command exited with non-zero code", "command", spec.Command, "code", res.ExitCode, "stderr", truncate(res.Stderr, 200))
		return out, ErrNonZeroExit
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
