// Package jobs tracks long-running resolution requests by id so callers can
// submit work and poll for its outcome. One goroutine drives a job through
// its states; any number of goroutines may poll concurrently.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/resolve"
)

// State is a job's lifecycle phase.
type State string

const (
	StatePending   State = "pending"
	StateAnalyzing State = "analyzing"
	StateSolving   State = "solving"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// terminal states never transition again.
func (s State) terminal() bool { return s == StateDone || s == StateFailed }

// Job is a point-in-time snapshot of one tracked request. Snapshots are
// copies; mutating one never affects the tracker.
type Job struct {
	ID        string
	State     State
	Repos     []string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Result is set once the job reaches StateDone.
	Result *resolve.Result

	// Error is the failure description once the job reaches StateFailed.
	Error string
}

// Tracker is an in-memory job registry. The zero value is not usable; call
// NewTracker.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewTracker returns an empty registry.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*Job), now: time.Now}
}

// Create registers a new pending job for the given repositories and returns
// its id.
func (t *Tracker) Create(repos []string) string {
	id := uuid.NewString()
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &Job{
		ID:        id,
		State:     StatePending,
		Repos:     append([]string{}, repos...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// Get returns a snapshot of the job, or a REQUEST_NOT_FOUND error for an
// unknown id.
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, errors.New(errors.ErrCodeRequestNotFound, "unknown resolution request %q", id)
	}
	return snapshot(job), nil
}

// List returns snapshots of every tracked job, newest first.
func (t *Tracker) List() []Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, snapshot(job))
	}
	sortJobs(out)
	return out
}

// Advance moves a job into a non-terminal working state. Advancing a
// terminal or unknown job is a no-op: the writer may race a late update
// after failing the job.
func (t *Tracker) Advance(id string, state State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok || job.State.terminal() || state.terminal() {
		return
	}
	job.State = state
	job.UpdatedAt = t.now()
}

// Complete marks the job done with its result.
func (t *Tracker) Complete(id string, result *resolve.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok || job.State.terminal() {
		return
	}
	job.State = StateDone
	job.Result = result
	job.UpdatedAt = t.now()
}

// Fail marks the job failed with a description.
func (t *Tracker) Fail(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok || job.State.terminal() {
		return
	}
	job.State = StateFailed
	if err != nil {
		job.Error = err.Error()
	}
	job.UpdatedAt = t.now()
}

func snapshot(job *Job) Job {
	copied := *job
	copied.Repos = append([]string{}, job.Repos...)
	return copied
}

func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
}
