package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string {
	if j.name == "" {
		return "counting"
	}
	return j.name
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("0 0 3 * * *", &countingJob{name: "nightly"}))
	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "hourly"}))
	assert.Equal(t, 2, s.Entries())

	tests := []struct {
		name     string
		schedule string
		job      Job
	}{
		{"five-field schedule lacks seconds", "0 3 * * *", &countingJob{name: "a"}},
		{"garbage", "not a schedule", &countingJob{name: "b"}},
		{"duplicate name", "@every 1m", &countingJob{name: "nightly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.AddJob(tt.schedule, tt.job))
		})
	}
	assert.Equal(t, 2, s.Entries())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("failing jobs keep their schedule")}
	require.NoError(t, s.AddJob("* * * * * *", job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
	assert.Empty(t, s.Jobs(), "unregistered jobs leave no history")
}

func TestScheduler_Jobs(t *testing.T) {
	s := New(zerolog.Nop())
	ok := &countingJob{name: "b_ok"}
	failing := &countingJob{name: "a_failing", err: errors.New("disk full")}
	require.NoError(t, s.AddJob("0 0 3 * * *", ok))
	require.NoError(t, s.AddJob("@every 1h", failing))

	require.NoError(t, s.RunNow(ok))
	require.Error(t, s.RunNow(failing))
	require.Error(t, s.RunNow(failing))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)

	assert.Equal(t, "a_failing", jobs[0].Name)
	assert.Equal(t, "@every 1h", jobs[0].Schedule)
	assert.Equal(t, 2, jobs[0].Runs)
	assert.Equal(t, 2, jobs[0].Failures)
	assert.Equal(t, "disk full", jobs[0].LastError)
	assert.NotNil(t, jobs[0].LastStarted)

	assert.Equal(t, "b_ok", jobs[1].Name)
	assert.Equal(t, 1, jobs[1].Runs)
	assert.Zero(t, jobs[1].Failures)
	assert.Empty(t, jobs[1].LastError)
}
