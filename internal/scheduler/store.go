package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aatumaykin/skillbot/internal/logger"
)

// Store persists scheduled jobs as a single JSON document. Every
// mutation rewrites the file through a temp file and rename.
type Store struct {
	path   string
	logger *logger.Logger

	mu   sync.Mutex
	jobs map[string]Job
}

type jobsFile struct {
	Jobs []Job `json:"jobs"`
}

// NewStore loads jobs from path. A missing file starts empty; an
// unreadable one is logged and treated as empty rather than blocking
// startup.
func NewStore(path string, log *logger.Logger) *Store {
	s := &Store{
		path:   path,
		logger: log,
		jobs:   make(map[string]Job),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("failed to read job store",
				logger.Field{Key: "path", Value: path},
				logger.Field{Key: "error", Value: err.Error()})
		}
		return s
	}

	var file jobsFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Warn("failed to parse job store, starting empty",
			logger.Field{Key: "path", Value: path},
			logger.Field{Key: "error", Value: err.Error()})
		return s
	}

	for _, job := range file.Jobs {
		s.jobs[job.ID] = job
	}

	return s
}

// save rewrites the whole file. Caller holds s.mu.
func (s *Store) save() error {
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt < jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})

	data, err := json.MarshalIndent(jobsFile{Jobs: jobs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode jobs: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create job store directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write job store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace job store: %w", err)
	}

	return nil
}

func (s *Store) persist() {
	if err := s.save(); err != nil {
		s.logger.Error("failed to persist jobs", err,
			logger.Field{Key: "path", Value: s.path})
	}
}

// Add stores a new job.
func (s *Store) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job
	s.persist()
}

// Remove deletes a job and returns it.
func (s *Store) Remove(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	delete(s.jobs, id)
	s.persist()

	return job, true
}

// Get returns a job by id.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	return job, ok
}

// All returns every job ordered by creation time.
func (s *Store) All() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt < jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})

	return jobs
}

// Enabled returns the jobs that should be registered.
func (s *Store) Enabled() []Job {
	all := s.All()
	enabled := all[:0]
	for _, job := range all {
		if job.Enabled {
			enabled = append(enabled, job)
		}
	}

	return enabled
}

// Update replaces an existing job. Unknown ids are ignored.
func (s *Store) Update(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return
	}
	s.jobs[job.ID] = job
	s.persist()
}

// Toggle flips the enabled flag and returns the new state.
func (s *Store) Toggle(id string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, false
	}
	job.Enabled = !job.Enabled
	s.jobs[id] = job
	s.persist()

	return job.Enabled, true
}

// MarkRun records that the job just fired.
func (s *Store) MarkRun(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.LastRun = time.Now().Format(time.RFC3339)
	s.jobs[id] = job
	s.persist()
}

// Count returns the number of stored jobs.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.jobs)
}
