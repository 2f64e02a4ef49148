package hyp3

import (
	"context"
	"fmt"
	"log/slog"
)

// Batch is an ordered collection of job snapshots. Order is insertion order.
// Batches own their jobs by value: constructors and accessors copy, so two
// batches never share a backing slice.
type Batch struct {
	jobs []Job
}

// NewBatch builds a batch from the given jobs.
func NewBatch(jobs ...Job) Batch {
	b := Batch{jobs: make([]Job, len(jobs))}
	copy(b.jobs, jobs)
	return b
}

func (b Batch) Len() int { return len(b.jobs) }

// Jobs returns a copy of the underlying jobs in order.
func (b Batch) Jobs() []Job {
	jobs := make([]Job, len(b.jobs))
	copy(jobs, b.jobs)
	return jobs
}

// Job returns the job at index i. It panics when i is out of range, like a
// slice index.
func (b Batch) Job(i int) Job { return b.jobs[i] }

// SetJob replaces the job at index i.
func (b *Batch) SetJob(i int, job Job) { b.jobs[i] = job }

// RemoveJob deletes the job at index i, preserving the order of the rest.
func (b *Batch) RemoveJob(i int) {
	b.jobs = append(b.jobs[:i], b.jobs[i+1:]...)
}

// Push appends jobs to the batch.
func (b *Batch) Push(jobs ...Job) {
	b.jobs = append(b.jobs, jobs...)
}

// Extend appends every job of other to the batch.
func (b *Batch) Extend(other Batch) {
	b.jobs = append(b.jobs, other.jobs...)
}

// Concat returns a new batch holding b's jobs followed by other's.
// Concatenation is associative and preserves order.
func (b Batch) Concat(other Batch) Batch {
	jobs := make([]Job, 0, len(b.jobs)+len(other.jobs))
	jobs = append(jobs, b.jobs...)
	jobs = append(jobs, other.jobs...)
	return Batch{jobs: jobs}
}

// Contains reports whether the batch holds a job equal to job.
func (b Batch) Contains(job Job) bool {
	for _, j := range b.jobs {
		if j.Equal(job) {
			return true
		}
	}
	return false
}

// Reversed returns a new batch with the jobs in reverse order.
func (b Batch) Reversed() Batch {
	jobs := make([]Job, len(b.jobs))
	for i, j := range b.jobs {
		jobs[len(jobs)-1-i] = j
	}
	return Batch{jobs: jobs}
}

// Complete reports whether every job in the batch is complete. An empty
// batch is complete: there is nothing left to wait for.
func (b Batch) Complete() bool {
	for _, j := range b.jobs {
		if !j.Complete() {
			return false
		}
	}
	return true
}

// Succeeded reports whether every job in the batch succeeded. Vacuously
// true for an empty batch.
func (b Batch) Succeeded() bool {
	for _, j := range b.jobs {
		if !j.Succeeded() {
			return false
		}
	}
	return true
}

// JobFilter selects jobs by status category. A job matching any enabled
// category is kept; succeeded jobs are additionally dropped when
// IncludeExpired is false and their products have expired.
type JobFilter struct {
	Succeeded      bool
	Running        bool
	Failed         bool
	IncludeExpired bool
}

// DefaultJobFilter keeps succeeded and in-flight jobs, expired or not, and
// drops failed ones.
func DefaultJobFilter() JobFilter {
	return JobFilter{Succeeded: true, Running: true, IncludeExpired: true}
}

// FilterJobs returns a new batch with the jobs matching filter, in their
// original order. A job matching several categories appears once.
func (b Batch) FilterJobs(filter JobFilter) Batch {
	var jobs []Job
	for _, j := range b.jobs {
		switch {
		case filter.Succeeded && j.Succeeded():
			if !filter.IncludeExpired {
				if expired, err := j.Expired(); err == nil && expired {
					continue
				}
			}
			jobs = append(jobs, j)
		case filter.Running && j.Running():
			jobs = append(jobs, j)
		case filter.Failed && j.Failed():
			jobs = append(jobs, j)
		}
	}
	return Batch{jobs: jobs}
}

// AnyExpired reports whether at least one succeeded job in the batch has
// expired products. Jobs without an expiration time are skipped rather than
// treated as an error: a heterogeneous batch must not abort the scan on its
// first in-flight job.
func (b Batch) AnyExpired() bool {
	for _, j := range b.jobs {
		expired, err := j.Expired()
		if err != nil {
			continue
		}
		if expired {
			return true
		}
	}
	return false
}

// DownloadFiles downloads every job's products into dir and returns the
// written paths. One job failing, typically because it has expired or has
// not succeeded, is logged as a warning and skipped; a single bad job never
// aborts the batch.
func (b Batch) DownloadFiles(ctx context.Context, dir string, opts *DownloadOptions) []string {
	var paths []string
	for _, j := range b.jobs {
		jobPaths, err := j.DownloadFiles(ctx, dir, opts)
		if err != nil {
			slog.Warn("skipping job download", "job_id", j.JobID, "error", err)
			continue
		}
		paths = append(paths, jobPaths...)
	}
	return paths
}

// counts tallies jobs by status, for watch progress reporting.
func (b Batch) counts() map[Status]int {
	counts := make(map[Status]int)
	for _, j := range b.jobs {
		counts[j.StatusCode]++
	}
	return counts
}

func (b Batch) String() string {
	return fmt.Sprintf("batch of %d jobs", len(b.jobs))
}
