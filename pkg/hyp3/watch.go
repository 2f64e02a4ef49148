package hyp3

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultWatchTimeout bounds a watch at three hours.
	DefaultWatchTimeout = 3 * time.Hour
	// DefaultWatchInterval polls once a minute.
	DefaultWatchInterval = time.Minute
)

// WatchOptions tunes a watch. Zero values select the defaults.
type WatchOptions struct {
	// Timeout is how long to wait before giving up on the watched jobs.
	Timeout time.Duration
	// Interval is how long to sleep between polls.
	Interval time.Duration
}

func (o *WatchOptions) withDefaults() WatchOptions {
	opts := WatchOptions{Timeout: DefaultWatchTimeout, Interval: DefaultWatchInterval}
	if o != nil && o.Timeout > 0 {
		opts.Timeout = o.Timeout
	}
	if o != nil && o.Interval > 0 {
		opts.Interval = o.Interval
	}
	return opts
}

// iterations is the poll budget: one refresh per interval for the whole
// timeout, rounded up so a timeout shorter than one interval still polls
// once.
func (o WatchOptions) iterations() int {
	return int(math.Ceil(float64(o.Timeout) / float64(o.Interval)))
}

// RefreshJob fetches the job's current server state and returns it as a new
// snapshot. The given job is never mutated.
func (c *Client) RefreshJob(ctx context.Context, job Job) (Job, error) {
	return c.GetJob(ctx, job.JobID)
}

// RefreshBatch refreshes every job in the batch, preserving order, and
// returns a new batch. Refresh calls are issued sequentially; the first
// failure aborts.
func (c *Client) RefreshBatch(ctx context.Context, batch Batch) (Batch, error) {
	refreshed := Batch{}
	for _, job := range batch.Jobs() {
		fresh, err := c.RefreshJob(ctx, job)
		if err != nil {
			return Batch{}, err
		}
		refreshed.Push(fresh)
	}
	return refreshed, nil
}

// WatchJob blocks until the job completes, polling its status at the
// configured interval. It returns the refreshed job on completion and a
// WatchTimeoutError when the deadline elapses first. Transport errors during
// a poll are not retried here; refresh is idempotent and cheap for the
// caller to restart.
//
// A job observed complete on its Nth poll costs exactly N requests: the
// first refresh happens immediately, and the loop sleeps only after an
// incomplete poll.
func (c *Client) WatchJob(ctx context.Context, job Job, opts *WatchOptions) (Job, error) {
	o := opts.withDefaults()

	ctx, span := startSpan(ctx, "hyp3.watch",
		attribute.String("hyp3.job_id", job.JobID),
		attribute.Float64("hyp3.timeout_seconds", o.Timeout.Seconds()))
	defer span.End()

	for i := 0; i < o.iterations(); i++ {
		fresh, err := c.RefreshJob(ctx, job)
		if err != nil {
			recordError(span, err)
			return Job{}, err
		}
		if fresh.Complete() {
			return fresh, nil
		}
		if err := sleep(ctx, o.Interval); err != nil {
			recordError(span, err)
			return Job{}, err
		}
	}

	err := &WatchTimeoutError{Target: job.String(), Timeout: o.Timeout}
	recordError(span, err)
	return Job{}, err
}

// WatchBatch blocks until every job in the batch is complete; a partially
// complete batch keeps waiting. Progress is logged between polls. See
// WatchJob for the polling contract.
func (c *Client) WatchBatch(ctx context.Context, batch Batch, opts *WatchOptions) (Batch, error) {
	o := opts.withDefaults()

	ctx, span := startSpan(ctx, "hyp3.watch",
		attribute.Int("hyp3.job_count", batch.Len()),
		attribute.Float64("hyp3.timeout_seconds", o.Timeout.Seconds()))
	defer span.End()

	for i := 0; i < o.iterations(); i++ {
		fresh, err := c.RefreshBatch(ctx, batch)
		if err != nil {
			recordError(span, err)
			return Batch{}, err
		}
		if fresh.Complete() {
			return fresh, nil
		}

		counts := fresh.counts()
		slog.Info("waiting for batch",
			"complete", counts[StatusSucceeded]+counts[StatusFailed],
			"total", fresh.Len(),
			"timeout_in", o.Timeout-time.Duration(i)*o.Interval)

		batch = fresh
		if err := sleep(ctx, o.Interval); err != nil {
			recordError(span, err)
			return Batch{}, err
		}
	}

	err := &WatchTimeoutError{Target: batch.String(), Timeout: o.Timeout}
	recordError(span, err)
	return Batch{}, err
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
