package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/codescan-io/codescan/internal/qualitygate"
)

// waitDelay bounds how long Wait keeps copying output after the process
// was killed on cancellation.
const waitDelay = 5 * time.Second

// Launcher runs the scanner and, when it succeeds, waits for the quality gate.
type Launcher struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Gate    GateAwaiter
	Log     logr.Logger
	Options Options

	now func() time.Time
}

func NewLauncher(stdout, stderr io.Writer, gate GateAwaiter, log logr.Logger, opts Options) *Launcher {
	return &Launcher{
		Stdout:  stdout,
		Stderr:  stderr,
		Gate:    gate,
		Log:     log,
		Options: opts,
		now:     time.Now,
	}
}

// Launch starts exactly one scanner process and streams its output while it
// runs. A zero exit code is followed by the quality gate unless disabled.
//
// A non-zero exit code is returned as *ExitError unless NoFail is set, in
// which case the gate is skipped and only the code is reported. With NoFail a
// failing gate evaluation is downgraded to Result.Error.
func (l *Launcher) Launch(ctx context.Context, inv Invocation) (Result, error) {
	log := l.Log.WithValues("run", uuid.NewString())
	now := l.now
	if now == nil {
		now = time.Now
	}

	result := Result{StartTime: now()}

	log.V(1).Info("starting scanner", "path", inv.Path, "args", inv.Args, "workDir", inv.WorkDir)
	code, err := l.run(ctx, inv)
	result.EndTime = now()
	result.Code = code
	if err != nil {
		return result, err
	}
	log.V(1).Info("scanner finished", "code", code, "duration", result.Duration())

	if code != 0 {
		if l.Options.NoFail {
			return result, nil
		}
		return result, &ExitError{Code: code}
	}

	if l.Options.NoQualityGate || l.Gate == nil {
		return result, nil
	}

	timeout := l.Options.QualityGateTimeout
	if timeout <= 0 {
		timeout = qualitygate.DefaultTimeout
	}
	log.Info("Waiting for background task", "timeout", timeout)

	status, err := l.Gate.Await(ctx, inv.WorkDir, now().Add(timeout))
	result.EndTime = now()
	result.QualityGate = status
	if err != nil {
		if l.Options.NoFail {
			log.Error(err, "quality gate evaluation failed")
			result.Error = err.Error()
			return result, nil
		}
		return result, fmt.Errorf("quality gate: %w", err)
	}

	return result, nil
}

// run returns the exit code of the process. The error is only set when the
// process could not be started or was interrupted by ctx.
func (l *Launcher) run(ctx context.Context, inv Invocation) (int, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.Cancel = func() error {
		return terminateTree(cmd.Process.Pid)
	}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start scanner: %w", err)
	}

	err := cmd.Wait()
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, fmt.Errorf("failed to wait for scanner: %w", err)
	}
}
