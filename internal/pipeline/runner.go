package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"researchplane/internal/jobs"
	"researchplane/internal/store"
)

// RunnerConfig holds configuration for the job runner.
type RunnerConfig struct {
	PollInterval time.Duration // Base poll interval when the queue is empty (default: 1s)
	MaxBackoff   time.Duration // Maximum backoff when queue stays empty (default: 30s)
}

// Runner is the pull-loop that claims queued jobs and hands them to the
// orchestrator. Execution is strictly sequential: all jobs contend on
// the same automation session, so there is nothing to gain from claiming
// more than one at a time.
type Runner struct {
	queue  *jobs.Queue
	orch   *Orchestrator
	config RunnerConfig
	logger *slog.Logger
	done   chan struct{}
}

// NewRunner creates a runner.
func NewRunner(q *jobs.Queue, orch *Orchestrator, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	return &Runner{
		queue:  q,
		orch:   orch,
		config: config,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run polls for work until the context is cancelled. The backoff grows
// exponentially while the queue is empty and resets as soon as a job is
// claimed. A job already running when the context ends is finished
// before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner starting", "poll_interval", r.config.PollInterval)

	currentBackoff := r.config.PollInterval

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping")
			close(r.done)
			return ctx.Err()
		default:
		}

		job, err := r.queue.FindNextQueued(ctx)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				r.logger.Error("failed to poll queue", "error", err)
			}
			currentBackoff = min(currentBackoff*2, r.config.MaxBackoff)

			select {
			case <-ctx.Done():
				r.logger.Info("runner stopping")
				close(r.done)
				return ctx.Err()
			case <-time.After(currentBackoff):
			}
			continue
		}

		currentBackoff = r.config.PollInterval
		r.orch.Execute(ctx, job)
	}
}

// Done returns a channel that is closed when the runner has fully stopped.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
