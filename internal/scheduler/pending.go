package scheduler

import "sync"

// PendingStore keeps proposed jobs between the confirmation prompt
// and the user's button press. Process lifetime only.
type PendingStore struct {
	mu   sync.Mutex
	jobs map[string]PendingJob
}

func NewPendingStore() *PendingStore {
	return &PendingStore{jobs: make(map[string]PendingJob)}
}

func (p *PendingStore) Add(job PendingJob) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs[job.ID] = job
}

func (p *PendingStore) Get(id string) (PendingJob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[id]
	return job, ok
}

func (p *PendingStore) Remove(id string) (PendingJob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[id]
	if ok {
		delete(p.jobs, id)
	}
	return job, ok
}

func (p *PendingStore) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}
