package hyp3_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asfhyp3/hyp3-go/internal/hyp3test"
	"github.com/asfhyp3/hyp3-go/pkg/hyp3"
)

func TestRefreshJobReturnsNewSnapshot(t *testing.T) {
	server := hyp3test.New(t)
	id := server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{Status: "RUNNING"}))
	server.SetStatusSequence(id, "RUNNING", "SUCCEEDED")

	client := newTestClient(t, server)
	job, err := client.GetJob(context.Background(), id)
	require.NoError(t, err)
	require.True(t, job.Running())

	fresh, err := client.RefreshJob(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, fresh.Succeeded())
	assert.True(t, job.Running(), "refresh returns a new snapshot, the input is untouched")
}

func TestRefreshBatchPreservesOrder(t *testing.T) {
	server := hyp3test.New(t)
	a := server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{JobID: "a"}))
	b := server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{JobID: "b"}))
	server.SetStatusSequence(b, "FAILED")

	client := newTestClient(t, server)
	batch, err := client.FindJobs(context.Background(), hyp3.FindJobsParams{})
	require.NoError(t, err)

	fresh, err := client.RefreshBatch(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 2, fresh.Len())
	assert.Equal(t, a, fresh.Job(0).JobID)
	assert.Equal(t, b, fresh.Job(1).JobID)
	assert.True(t, fresh.Job(1).Failed())
	assert.True(t, batch.Job(1).Running(), "refresh must not mutate the input batch")
}

func TestWatchJobPollsUntilComplete(t *testing.T) {
	server := hyp3test.New(t)
	id := server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{Status: "PENDING"}))
	server.SetStatusSequence(id, "PENDING", "PENDING", "RUNNING", "RUNNING", "SUCCEEDED")

	client := newTestClient(t, server)
	job, err := client.GetJob(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, server.GetJobCalls(id))

	watched, err := client.WatchJob(context.Background(), job,
		&hyp3.WatchOptions{Timeout: 10 * time.Second, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, watched.Succeeded())
	assert.Equal(t, 5, server.GetJobCalls(id), "three incomplete polls plus the complete one")
}

func TestWatchJobAlreadyComplete(t *testing.T) {
	server := hyp3test.New(t)
	id := server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{Status: "SUCCEEDED"}))

	client := newTestClient(t, server)
	job, err := client.GetJob(context.Background(), id)
	require.NoError(t, err)

	watched, err := client.WatchJob(context.Background(), job,
		&hyp3.WatchOptions{Timeout: 10 * time.Second, Interval: time.Second})
	require.NoError(t, err)
	assert.True(t, watched.Succeeded())
	assert.Equal(t, 2, server.GetJobCalls(id), "a complete job costs one poll and no sleep")
}

func TestWatchJobTimesOut(t *testing.T) {
	server := hyp3test.New(t)
	id := server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{Status: "RUNNING"}))

	client := newTestClient(t, server)
	job, err := client.GetJob(context.Background(), id)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.WatchJob(context.Background(), job,
		&hyp3.WatchOptions{Timeout: 80 * time.Millisecond, Interval: 20 * time.Millisecond})
	elapsed := time.Since(start)

	require.Error(t, err)
	var timeoutErr *hyp3.WatchTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 80*time.Millisecond, timeoutErr.Timeout)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond, "a watch runs out its full timeout")
	assert.Equal(t, 5, server.GetJobCalls(id), "one poll per interval across the timeout")
}

func TestWatchJobHonorsContextCancel(t *testing.T) {
	server := hyp3test.New(t)
	id := server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{Status: "RUNNING"}))

	client := newTestClient(t, server)
	job, err := client.GetJob(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err = client.WatchJob(ctx, job,
		&hyp3.WatchOptions{Timeout: time.Hour, Interval: time.Minute})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatchBatch(t *testing.T) {
	server := hyp3test.New(t)
	fast := server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{JobID: "fast"}))
	slow := server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{JobID: "slow"}))
	server.SetStatusSequence(fast, "SUCCEEDED")
	server.SetStatusSequence(slow, "RUNNING", "RUNNING", "FAILED")

	client := newTestClient(t, server)
	batch, err := client.FindJobs(context.Background(), hyp3.FindJobsParams{})
	require.NoError(t, err)

	watched, err := client.WatchBatch(context.Background(), batch,
		&hyp3.WatchOptions{Timeout: 10 * time.Second, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	assert.True(t, watched.Complete())
	assert.False(t, watched.Succeeded())
	assert.True(t, watched.Job(0).Succeeded())
	assert.True(t, watched.Job(1).Failed())
	assert.Equal(t, 3, server.GetJobCalls(slow), "the batch polls until its slowest job completes")
}

func TestWatchBatchTimesOut(t *testing.T) {
	server := hyp3test.New(t)
	server.AddJob(hyp3test.NewJobRecord(hyp3test.JobOptions{Status: "RUNNING"}))

	client := newTestClient(t, server)
	batch, err := client.FindJobs(context.Background(), hyp3.FindJobsParams{})
	require.NoError(t, err)

	_, err = client.WatchBatch(context.Background(), batch,
		&hyp3.WatchOptions{Timeout: 50 * time.Millisecond, Interval: 20 * time.Millisecond})

	var timeoutErr *hyp3.WatchTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Contains(t, timeoutErr.Error(), "batch of 1 jobs")
}
