// Package job tracks long-running batch work (extraction, inference) through an
// explicit state machine instead of process-wide progress globals.
package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notegraph/backend/internal/knowledge"
)

// State of a job
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

var transitions = map[State][]State{
	StatePending: {StateRunning, StateCancelled},
	StateRunning: {StateCompleted, StateCancelled, StateFailed},
}

// ErrInvalidTransition is returned for a transition the state machine forbids
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid job transition: %s -> %s", e.From, e.To)
}

// Snapshot is a point-in-time copy of a job's progress
type Snapshot struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	State      State     `json:"state"`
	Total      int       `json:"total"`
	Done       int       `json:"done"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Job is the handle a batch operation reports progress through
type Job struct {
	mu     sync.RWMutex
	snap   Snapshot
	err    error
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

// New creates a pending job. Its context derives from parent and is cancelled by Cancel.
func New(parent context.Context, kind string) *Job {
	ctx, cancel := context.WithCancel(parent)
	j := &Job{
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
	j.snap = Snapshot{
		ID:        knowledge.NewID(),
		Kind:      kind,
		State:     StatePending,
		CreatedAt: j.now().UTC(),
	}
	return j
}

// ID returns the job id
func (j *Job) ID() string {
	return j.snap.ID
}

// Context is cancelled when the job is cancelled or its parent ends
func (j *Job) Context() context.Context {
	return j.ctx
}

// State returns the current state
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snap.State
}

// Err returns the failure cause, if any
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Snapshot returns a copy of the job's progress
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snap
}

func (j *Job) transition(to State) error {
	from := j.snap.State
	for _, allowed := range transitions[from] {
		if allowed == to {
			j.snap.State = to
			return nil
		}
	}
	return ErrInvalidTransition{From: from, To: to}
}

// Start moves the job to running with the given amount of work
func (j *Job) Start(total int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transition(StateRunning); err != nil {
		return err
	}
	j.snap.Total = total
	j.snap.StartedAt = j.now().UTC()
	return nil
}

// Advance records n more units of finished work
func (j *Job) Advance(n int, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snap.State != StateRunning {
		return
	}
	j.snap.Done += n
	if message != "" {
		j.snap.Message = message
	}
}

// Complete marks the job finished successfully
func (j *Job) Complete() error {
	return j.finish(StateCompleted, nil)
}

// Fail marks the job failed with a cause
func (j *Job) Fail(err error) error {
	return j.finish(StateFailed, err)
}

// Cancel cancels the job's context and marks it cancelled.
// Cancelling a finished job is a no-op.
func (j *Job) Cancel() error {
	j.cancel()
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snap.State.Terminal() {
		return nil
	}
	return j.finishLocked(StateCancelled, context.Canceled)
}

func (j *Job) finish(to State, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishLocked(to, cause)
}

func (j *Job) finishLocked(to State, cause error) error {
	if err := j.transition(to); err != nil {
		return err
	}
	j.err = cause
	if cause != nil {
		j.snap.Error = cause.Error()
	}
	j.snap.FinishedAt = j.now().UTC()
	if to != StateCancelled {
		j.cancel()
	}
	return nil
}

// Registry tracks jobs by id. Callers own their registry; there is no global one.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create registers a new pending job
func (r *Registry) Create(parent context.Context, kind string) *Job {
	j := New(parent, kind)
	r.mu.Lock()
	r.jobs[j.ID()] = j
	r.mu.Unlock()
	return j
}

// Get returns a job by id
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// List returns snapshots of every job
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Snapshot())
	}
	return out
}

// Prune drops finished jobs
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, j := range r.jobs {
		if j.State().Terminal() {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}
