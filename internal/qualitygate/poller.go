package qualitygate

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

const (
	DefaultTimeout      = 300 * time.Second
	DefaultPollInterval = 2 * time.Second

	// verdictGrace bounds the verdict request when the task turned terminal
	// at or after the deadline.
	verdictGrace = 10 * time.Second
)

// Poller waits for the compute engine task announced in report-task.txt and
// then fetches the quality gate verdict of the resulting analysis.
type Poller struct {
	Client   *Client
	Interval time.Duration
	Log      logr.Logger

	// now is replaceable in tests.
	now func() time.Time
}

func NewPoller(client *Client, interval time.Duration, log logr.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		Client:   client,
		Interval: interval,
		Log:      log,
		now:      time.Now,
	}
}

// Await polls the task until it leaves PENDING/IN_PROGRESS or deadline is
// reached, then returns the verdict. A task that turns terminal on the poll
// that also crosses the deadline counts as finished.
//
// The descriptor is read once up front; a missing ceTaskUrl fails before any
// request is made.
func (p *Poller) Await(ctx context.Context, workDir string, deadline time.Time) (*ProjectStatus, error) {
	desc, err := ReadDescriptor(workDir)
	if err != nil {
		return nil, err
	}
	if desc.CeTaskURL == "" {
		return nil, ErrTaskURLMissing
	}

	task, err := p.waitTask(ctx, desc.CeTaskURL, deadline)
	if err != nil {
		return nil, err
	}

	qgURL, err := desc.QualityGateURL(task)
	if err != nil {
		return nil, err
	}
	p.Log.V(1).Info("fetching quality gate", "url", qgURL)

	now := p.clock()
	verdictDeadline := deadline
	if grace := now().Add(verdictGrace); grace.After(verdictDeadline) {
		verdictDeadline = grace
	}
	verdictCtx, cancel := context.WithDeadline(ctx, verdictDeadline)
	defer cancel()

	status, err := p.Client.ProjectStatus(verdictCtx, qgURL)
	if err != nil && verdictCtx.Err() != nil {
		return nil, expired(ctx)
	}
	return status, err
}

// waitTask issues at most one request per tick. Requests run under a context
// that ends at deadline, so a stalled server cannot hold the loop past it.
func (p *Poller) waitTask(ctx context.Context, ceTaskURL string, deadline time.Time) (Task, error) {
	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	now := p.clock()
	for {
		select {
		case <-pollCtx.Done():
			return Task{}, expired(ctx)
		case <-ticker.C:
		}

		task, err := p.Client.Task(pollCtx, ceTaskURL)
		if err != nil {
			if pollCtx.Err() != nil {
				return Task{}, expired(ctx)
			}
			return Task{}, err
		}
		p.Log.V(1).Info("background task", "id", task.ID, "status", task.Status)

		if task.Terminal() {
			return task, nil
		}
		if !now().Before(deadline) {
			return task, ErrQualityGateTimeout
		}
	}
}

func (p *Poller) clock() func() time.Time {
	if p.now == nil {
		return time.Now
	}
	return p.now
}

// expired reports why a deadline-bound request ended: cancellation of the
// caller's context, or the deadline itself.
func expired(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrQualityGateTimeout
}
