package grading

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrTimeout indicates a job did not reach a terminal state within the
// polling ceiling, measured from when the watch began.
var ErrTimeout = errors.New("grading job timed out")

// JobFailedError carries the server-reported failure message of a job.
type JobFailedError struct {
	Message string
}

func (e *JobFailedError) Error() string {
	return e.Message
}

// StatusFunc fetches the current state of a job. Store.Get satisfies it.
type StatusFunc func(ctx context.Context, jobID string) (Job, error)

const (
	defaultPollInterval = time.Second
	defaultPollTimeout  = 10 * time.Minute
)

// Poller drives a grading job watch to a terminal outcome: it checks job
// status on a fixed cadence, forwards progress to an observer on every tick
// and stops on completion, failure, timeout or cancellation. The interval
// ticker and the timeout are both bound to one context so they are always
// released together on any terminal transition.
type Poller struct {
	fetch    StatusFunc
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewPoller builds a poller. Zero interval and timeout fall back to the
// one-second cadence and ten-minute ceiling.
func NewPoller(fetch StatusFunc, interval, timeout time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("component", "grading_poller").Logger(),
	}
}

// Await blocks until the job reaches a terminal state and returns its result
// exactly once. A failed job yields a JobFailedError with the server message
// or "grading failed" when none was recorded. Exceeding the ceiling yields
// ErrTimeout. Cancelling ctx returns context.Canceled without invoking
// onProgress again. The first status check is issued immediately, so a job
// that is already terminal resolves without waiting out an interval.
func (p *Poller) Await(ctx context.Context, jobID string, onProgress func(Progress)) (*Result, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, p.timeout, ErrTimeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		job, err := p.fetch(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, terminalContextError(ctx)
			}
			return nil, err
		}

		if onProgress != nil && job.Progress != (Progress{}) {
			onProgress(job.Progress)
		}

		switch job.Status {
		case StatusCompleted:
			result := job.Result
			if result == nil {
				result = &Result{}
			}
			return result, nil
		case StatusFailed:
			message := job.Error
			if message == "" {
				message = "grading failed"
			}
			return nil, &JobFailedError{Message: message}
		}

		select {
		case <-ctx.Done():
			return nil, terminalContextError(ctx)
		case <-ticker.C:
		}
	}
}

func terminalContextError(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrTimeout) {
		return ErrTimeout
	}
	return ctx.Err()
}

// Outcome is the single terminal delivery of a Watcher.
type Outcome struct {
	Result *Result
	Err    error
}

// Watcher is a running watch over one job. Cancel is idempotent and safe
// after natural completion; a cancelled watch delivers no outcome at all.
type Watcher struct {
	cancel  context.CancelFunc
	outcome chan Outcome
	once    sync.Once
}

// Watch starts a background watch over the job and returns immediately.
func (p *Poller) Watch(ctx context.Context, jobID string, onProgress func(Progress)) *Watcher {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{cancel: cancel, outcome: make(chan Outcome, 1)}

	go func() {
		defer cancel()

		result, err := p.Await(ctx, jobID, onProgress)
		if errors.Is(err, context.Canceled) {
			close(w.outcome)
			return
		}
		w.outcome <- Outcome{Result: result, Err: err}
		close(w.outcome)
	}()

	return w
}

// Outcome yields the terminal result exactly once. The channel closes
// without a value when the watch was cancelled.
func (w *Watcher) Outcome() <-chan Outcome {
	return w.outcome
}

// Cancel halts polling without delivering an outcome.
func (w *Watcher) Cancel() {
	w.once.Do(w.cancel)
}
