// Package scheduler runs user-proposed jobs on cron-like schedules.
// It hosts triggers on robfig/cron, persists jobs as a JSON document
// and keeps proposed jobs in memory until the user confirms them.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/skillbot/internal/logger"
)

const (
	// first fire of an interval trigger after registration
	firstFireDelay = 10 * time.Second
	// delay before a catch-up fire for a missed daily job
	catchupDelay  = 5 * time.Second
	catchupSuffix = "_catchup"
)

// Callback receives the job when its trigger fires. It runs on the
// trigger goroutine and is expected to delegate long work to the
// agent loop with its own timeout.
type Callback func(job Job) error

// Scheduler owns the trigger host, the persistent job store and the
// pending-confirmation map.
type Scheduler struct {
	cron    *cron.Cron
	store   *Store
	pending *PendingStore
	logger  *logger.Logger
	loc     *time.Location

	mu       sync.Mutex
	callback Callback
	entries  map[string]cron.EntryID
	started  bool
}

func NewScheduler(store *Store, pending *PendingStore, log *logger.Logger) *Scheduler {
	loc := time.Local
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{log})),
		),
		store:   store,
		pending: pending,
		logger:  log,
		loc:     loc,
		entries: make(map[string]cron.EntryID),
	}
}

// SetCallback sets the function invoked on every trigger fire.
func (s *Scheduler) SetCallback(cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// Start registers all enabled jobs and starts the trigger host. It
// returns immediately; the host stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	jobs := s.store.Enabled()
	s.logger.Info("Loading scheduled jobs", logger.Field{Key: "count", Value: len(jobs)})
	for _, job := range jobs {
		s.register(job)
	}

	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.cron.Stop()
		s.logger.Info("scheduler stopped")
	}()

	return nil
}

// register adds triggers for one job. Interval form wins over daily
// form; an expression matching neither is logged and skipped. Caller
// holds s.mu.
func (s *Scheduler) register(job Job) {
	s.unregister(job.ID)

	if period, ok := intervalPeriod(job.Cron); ok {
		sched := &intervalSchedule{period: period, first: time.Now().Add(firstFireDelay)}
		s.entries[job.ID] = s.cron.Schedule(sched, s.triggerFunc(job.ID))
		s.logger.Info("Registered repeating job",
			logger.Field{Key: "job_id", Value: job.ID},
			logger.Field{Key: "interval", Value: period.String()})
		return
	}

	hour, minute, days, ok := dailySpec(job.Cron)
	if !ok {
		s.logger.Warn("Could not parse cron expression",
			logger.Field{Key: "job_id", Value: job.ID},
			logger.Field{Key: "cron", Value: job.Cron})
		return
	}

	sched := &dailySchedule{hour: hour, minute: minute, days: days, loc: s.loc}
	s.entries[job.ID] = s.cron.Schedule(sched, s.triggerFunc(job.ID))
	s.logger.Info("Registered daily job",
		logger.Field{Key: "job_id", Value: job.ID},
		logger.Field{Key: "time", Value: fmt.Sprintf("%02d:%02d", hour, minute)})

	if missedToday(job, hour, minute, days, time.Now().In(s.loc)) {
		s.registerCatchup(job)
	}
}

// registerCatchup fires a missed daily job once, shortly after
// registration, under its own trigger name. Caller holds s.mu.
func (s *Scheduler) registerCatchup(job Job) {
	name := job.ID + catchupSuffix
	s.unregister(name)

	sched := oneShotSchedule{at: time.Now().Add(catchupDelay)}
	s.entries[name] = s.cron.Schedule(sched, s.triggerFunc(job.ID))
	s.logger.Info("Job missed its scheduled time today, running catch-up",
		logger.Field{Key: "job_id", Value: job.ID})
}

// missedToday reports whether a daily job should catch up: today is
// an allowed day, the scheduled time already passed and the job has
// not run today.
func missedToday(job Job, hour, minute int, days map[int]bool, now time.Time) bool {
	if days != nil && !days[mondayIndex(int(now.Weekday()))] {
		return false
	}

	scheduled := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !now.After(scheduled) {
		return false
	}

	today := now.Format("2006-01-02")
	if len(job.LastRun) >= len(today) && job.LastRun[:len(today)] == today {
		return false
	}

	return true
}

// unregister removes the trigger with the given name. Caller holds
// s.mu.
func (s *Scheduler) unregister(name string) {
	if entryID, ok := s.entries[name]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, name)
	}
}

func (s *Scheduler) triggerFunc(id string) cron.Job {
	return cron.FuncJob(func() { s.trigger(id) })
}

// trigger runs when any of a job's triggers fires. The job is
// re-read from the store so a deleted or paused job never runs from a
// stale catch-up trigger.
func (s *Scheduler) trigger(id string) {
	job, ok := s.store.Get(id)
	if !ok || !job.Enabled {
		s.logger.Debug("Skipping trigger for missing or paused job",
			logger.Field{Key: "job_id", Value: id})
		return
	}

	s.logger.Info("Scheduled job triggered",
		logger.Field{Key: "job_id", Value: job.ID},
		logger.Field{Key: "description", Value: job.Description})

	s.store.MarkRun(job.ID)

	s.mu.Lock()
	cb := s.callback
	s.mu.Unlock()

	if cb == nil {
		s.logger.Warn("No callback set for scheduled job",
			logger.Field{Key: "job_id", Value: job.ID})
		return
	}

	if err := cb(job); err != nil {
		s.logger.Error("Scheduled job failed", err,
			logger.Field{Key: "job_id", Value: job.ID})
	}
}

// Propose stores a schedule awaiting confirmation and returns it.
func (s *Scheduler) Propose(task, cronExpr, description string) PendingJob {
	pending := NewPendingJob(task, cronExpr, description)
	s.pending.Add(pending)

	s.logger.Info("Proposed schedule awaiting confirmation",
		logger.Field{Key: "job_id", Value: pending.ID},
		logger.Field{Key: "cron", Value: cronExpr})

	return pending
}

// Confirm converts a pending job into a persistent scheduled one and
// registers its trigger. Returns false when the id is not pending.
func (s *Scheduler) Confirm(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending.Remove(id)
	if !ok {
		return Job{}, false
	}

	job := pending.ToJob()
	s.store.Add(job)
	s.register(job)

	s.logger.Info("Confirmed and scheduled job",
		logger.Field{Key: "job_id", Value: job.ID},
		logger.Field{Key: "description", Value: job.Description})

	return job, true
}

// CancelPending drops a proposed schedule. Returns whether anything
// was removed.
func (s *Scheduler) CancelPending(id string) bool {
	_, ok := s.pending.Remove(id)
	return ok
}

// GetPending returns a proposed schedule by id.
func (s *Scheduler) GetPending(id string) (PendingJob, bool) {
	return s.pending.Get(id)
}

// ListJobs returns all persistent jobs ordered by creation time.
func (s *Scheduler) ListJobs() []Job {
	return s.store.All()
}

// GetJob returns a persistent job by id.
func (s *Scheduler) GetJob(id string) (Job, bool) {
	return s.store.Get(id)
}

// DeleteJob unregisters and removes a job.
func (s *Scheduler) DeleteJob(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unregister(id)
	s.unregister(id + catchupSuffix)

	return s.store.Remove(id)
}

// ToggleJob flips a job between paused and active, updating its
// trigger registration. Returns the new state.
func (s *Scheduler) ToggleJob(id string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enabled, ok := s.store.Toggle(id)
	if !ok {
		return false, false
	}

	if job, found := s.store.Get(id); found {
		if enabled {
			s.register(job)
		} else {
			s.unregister(id)
			s.unregister(id + catchupSuffix)
		}
	}

	return enabled, true
}

// cronLogger adapts our logger to the cron library's interface; it is
// used by the recovery chain that keeps a panicking trigger from
// taking down the host.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, err, kvFields(keysAndValues)...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Field{Key: key, Value: kv[i+1]})
	}
	return fields
}
