package hyp3

import (
	"context"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
)

// JobUpdate is a partial update of a job's mutable fields. Name is a pointer
// so "clear the name" (empty string) and "leave it alone" (nil) are both
// expressible.
type JobUpdate struct {
	Name *string `json:"name"`
}

// UpdateJob applies a partial update to one job and returns the server's
// updated record.
func (c *Client) UpdateJob(ctx context.Context, job Job, update JobUpdate) (Job, error) {
	ctx, span := startSpan(ctx, "hyp3.update_job", attribute.String("hyp3.job_id", job.JobID))
	defer span.End()

	if update.Name != nil && len(*update.Name) > maxNameLength {
		err := errValidationNameTooLong(*update.Name)
		recordError(span, err)
		return Job{}, err
	}

	var updated Job
	err := c.patch(ctx, c.endpoint("/jobs/"+url.PathEscape(job.JobID), nil), update, &updated)
	if err != nil {
		recordError(span, err)
		return Job{}, err
	}
	return updated, nil
}

// UpdateBatch applies the update to every job in order and returns a new
// batch. Unlike batch downloads, updates are writes: the first server error
// aborts and is returned, so no write is silently lost. Jobs updated before
// the failure stay updated server-side.
func (c *Client) UpdateBatch(ctx context.Context, batch Batch, update JobUpdate) (Batch, error) {
	updated := Batch{}
	for _, job := range batch.Jobs() {
		fresh, err := c.UpdateJob(ctx, job, update)
		if err != nil {
			return Batch{}, err
		}
		updated.Push(fresh)
	}
	return updated, nil
}
