// Package worker runs the pipeline stages. Each stage is one long-lived
// loop polling one queue; stages share nothing in-process beyond the broker
// and the backing stores, so duplicate jobs for the same source id may run
// concurrently with no mutual exclusion.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/rfpflow/rfpflow/internal/queue"
)

// Handler processes one decoded job. Returning an error marks the job failed
// and triggers the runner's backoff sleep; the job itself is already
// consumed and is not redelivered.
type Handler interface {
	Stage() string
	Queue() string
	Handle(ctx context.Context, payload []byte) error
}

// Dequeuer is the broker slice the runner needs.
type Dequeuer interface {
	Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
}

// Runner drives one handler against its queue until the context is
// cancelled. A single job failure never stops the loop.
type Runner struct {
	broker       Dequeuer
	pollTimeout  time.Duration
	errorBackoff time.Duration
	logger       *log.Logger
}

func NewRunner(broker Dequeuer, pollTimeout, errorBackoff time.Duration, logger *log.Logger) *Runner {
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	if errorBackoff <= 0 {
		errorBackoff = 5 * time.Second
	}
	return &Runner{broker: broker, pollTimeout: pollTimeout, errorBackoff: errorBackoff, logger: logger}
}

// Run blocks processing jobs, one per loop iteration, until ctx is
// cancelled. Cancellation is coarse: an in-flight job finishes before the
// loop observes shutdown.
func (r *Runner) Run(ctx context.Context, h Handler) error {
	r.logger.Printf("%s worker starting; polling %s", h.Stage(), h.Queue())
	for {
		select {
		case <-ctx.Done():
			r.logger.Printf("%s worker stopping: %v", h.Stage(), ctx.Err())
			return nil
		default:
		}

		payload, err := r.broker.Dequeue(ctx, h.Queue(), r.pollTimeout)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Printf("%s worker stopping: %v", h.Stage(), ctx.Err())
				return nil
			}
			r.logger.Printf("%s worker dequeue error: %v", h.Stage(), err)
			r.sleep(ctx, r.errorBackoff)
			continue
		}

		start := time.Now()
		if err := h.Handle(ctx, payload); err != nil {
			jobsProcessed.WithLabelValues(h.Stage(), "error").Inc()
			r.logger.Printf("%s worker job failed: %v", h.Stage(), err)
			r.sleep(ctx, r.errorBackoff)
		} else {
			jobsProcessed.WithLabelValues(h.Stage(), "success").Inc()
		}
		jobDuration.WithLabelValues(h.Stage()).Observe(time.Since(start).Seconds())
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
