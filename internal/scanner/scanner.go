package scanner

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/codescan-io/codescan/internal/qualitygate"
)

// Invocation describes one scanner process.
type Invocation struct {
	Path string
	Args []string
	// WorkDir is the scanner working directory (sonar.working.directory),
	// where report-task.txt is written.
	WorkDir string
	// Dir is the process current directory, the caller's when empty.
	Dir string
	// Env is appended to the caller's environment.
	Env []string
}

func NewInvocation(path string, args []string, workDir string) Invocation {
	return Invocation{
		Path:    path,
		Args:    slices.Clone(args),
		WorkDir: workDir,
	}
}

type Options struct {
	NoFail             bool
	NoQualityGate      bool
	QualityGateTimeout time.Duration
}

// GateAwaiter is implemented by *qualitygate.Poller.
type GateAwaiter interface {
	Await(ctx context.Context, workDir string, deadline time.Time) (*qualitygate.ProjectStatus, error)
}

type Result struct {
	Code        int                        `json:"code"`
	QualityGate *qualitygate.ProjectStatus `json:"qualitygate,omitempty"`
	Error       string                     `json:"error,omitempty"`
	StartTime   time.Time                  `json:"-"`
	EndTime     time.Time                  `json:"-"`
}

func (r Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// ExitError reports a scanner that exited with a non-zero code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("scanner exited with code %d", e.Code)
}
