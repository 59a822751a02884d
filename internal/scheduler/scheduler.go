// Package scheduler runs background upkeep jobs on cron schedules.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of background upkeep
type Job interface {
	Run() error
	Name() string
}

// JobStatus is the run history of one registered job
type JobStatus struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	Runs         int        `json:"runs"`
	Failures     int        `json:"failures"`
	LastStarted  *time.Time `json:"last_started,omitempty"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

type entry struct {
	id     cron.EntryID
	status JobStatus
}

// Scheduler runs jobs on cron schedules and remembers how each run went.
// A job still running when its next tick arrives is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*entry
}

// New creates a scheduler. Schedules take a leading seconds field.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]*entry),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop waits for running jobs to return
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job under its name. Names are unique.
//
//	"0 0 3 * * *"     3 AM daily
//	"0 */15 * * * *"  every 15 minutes
//	"@every 1h"       every hour
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name()]; ok {
		return fmt.Errorf("job %q is already registered", job.Name())
	}

	id, err := s.cron.AddFunc(schedule, func() { s.execute(job) })
	if err != nil {
		return fmt.Errorf("schedule %q for job %s: %w", schedule, job.Name(), err)
	}
	s.jobs[job.Name()] = &entry{id: id, status: JobStatus{Name: job.Name(), Schedule: schedule}}

	s.log.Info().Str("job", job.Name()).Str("schedule", schedule).Msg("Job registered")
	return nil
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunNow executes a job outside its schedule. The run is recorded when the job is registered.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.execute(job)
}

// Jobs returns the run history of every registered job, ordered by name
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, e := range s.jobs {
		st := e.status
		if next := s.cron.Entry(e.id).Next; !next.IsZero() {
			st.NextRun = &next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(job Job) error {
	started := time.Now()
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	err := job.Run()
	elapsed := time.Since(started)

	if err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Dur("duration", elapsed).Msg("Job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Dur("duration", elapsed).Msg("Job completed")
	}

	s.mu.Lock()
	if e, ok := s.jobs[job.Name()]; ok {
		e.status.Runs++
		e.status.LastStarted = &started
		e.status.LastDuration = elapsed.String()
		e.status.LastError = ""
		if err != nil {
			e.status.Failures++
			e.status.LastError = err.Error()
		}
	}
	s.mu.Unlock()

	return err
}
