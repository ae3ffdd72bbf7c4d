package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"render-sender/internal/domain"
)

// ErrUnknownJob is returned when a job ID was never registered.
var ErrUnknownJob = errors.New("unknown job")

// ErrDuplicateJob is returned when a job ID is registered twice.
var ErrDuplicateJob = errors.New("job already registered")

// defaultKeepFinished bounds how many done or failed jobs stay listed.
const defaultKeepFinished = 100

// Tracker records the lifecycle of submitted jobs. Active jobs are always
// kept; only the most recent finished ones are retained.
type Tracker struct {
	mu           sync.RWMutex
	jobs         map[string]*domain.Job
	order        []string
	current      string
	keepFinished int
	now          func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		jobs:         make(map[string]*domain.Job),
		keepFinished: defaultKeepFinished,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Add registers a job in queued state.
func (t *Tracker) Add(job domain.Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}

	job.Status = domain.JobStatusQueued
	job.Files = append([]string(nil), job.Files...)
	job.UpdatedAt = t.now()
	t.jobs[job.ID] = &job
	t.order = append(t.order, job.ID)
	return nil
}

// Transition validates and applies a state change for one job.
func (t *Tracker) Transition(id string, status domain.JobStatus) error {
	return t.transition(id, status, "")
}

// Fail moves a job to failed and records the reason.
func (t *Tracker) Fail(id string, reason string) error {
	return t.transition(id, domain.JobStatusFailed, reason)
}

func (t *Tracker) transition(id string, status domain.JobStatus, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if status == job.Status {
		return nil
	}
	if !isValidTransition(job.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", job.Status, status)
	}

	if job.Status == domain.JobStatusQueued {
		t.current = id
	}
	job.Status = status
	job.Error = reason
	job.UpdatedAt = t.now()
	if isFinished(status) {
		t.pruneFinished()
	}
	return nil
}

// pruneFinished drops the oldest finished jobs beyond keepFinished.
func (t *Tracker) pruneFinished() {
	finished := 0
	for _, id := range t.order {
		if isFinished(t.jobs[id].Status) {
			finished++
		}
	}
	excess := finished - t.keepFinished
	if excess <= 0 {
		return
	}

	kept := t.order[:0]
	for _, id := range t.order {
		if excess > 0 && isFinished(t.jobs[id].Status) {
			delete(t.jobs, id)
			if t.current == id {
				t.current = ""
			}
			excess--
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

func isFinished(status domain.JobStatus) bool {
	return status == domain.JobStatusDone || status == domain.JobStatusFailed
}

// Get returns a snapshot of one job.
func (t *Tracker) Get(id string) (domain.Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return copyJob(job), true
}

// Current returns the job the worker most recently picked up.
func (t *Tracker) Current() (domain.Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[t.current]
	if !ok {
		return domain.Job{}, false
	}
	return copyJob(job), true
}

// List returns the retained jobs in submission order.
func (t *Tracker) List() []domain.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Job, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, copyJob(t.jobs[id]))
	}
	return out
}

// Pending counts jobs still waiting for the worker.
func (t *Tracker) Pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, job := range t.jobs {
		if job.Status == domain.JobStatusQueued {
			n++
		}
	}
	return n
}

func copyJob(job *domain.Job) domain.Job {
	out := *job
	out.Files = append([]string(nil), job.Files...)
	return out
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusQueued:
		return to == domain.JobStatusTranscoding || to == domain.JobStatusUploading || to == domain.JobStatusFailed
	case domain.JobStatusTranscoding:
		return to == domain.JobStatusUploading || to == domain.JobStatusFailed
	case domain.JobStatusUploading:
		return to == domain.JobStatusDone || to == domain.JobStatusFailed
	default:
		return false
	}
}
