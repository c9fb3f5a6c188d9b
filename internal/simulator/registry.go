package simulator

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"jobconsole/internal/job"
)

// Registry is the in-memory store of simulated jobs and their logs.
// Records are kept in insertion order and handed out as deep copies.
type Registry struct {
	mu    sync.RWMutex
	order []*job.Job
	byID  map[string]*job.Job
	logs  map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*job.Job),
		logs: make(map[string]string),
	}
}

// Insert adds a fully formed job, replacing nothing. It returns false if the
// id is already taken.
func (r *Registry) Insert(j *job.Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[j.ID]; ok {
		return false
	}
	c := j.Clone()
	r.order = append(r.order, c)
	r.byID[c.ID] = c
	return true
}

// Create allocates an id and stores a new PENDING job started at now.
func (r *Registry) Create(image string, cfg job.Config, now time.Time) *job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextIDLocked()
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("Job %s", id)
	}
	started := now
	j := &job.Job{
		ID:      id,
		Name:    name,
		Image:   image,
		Status:  job.StatusPending,
		Created: now,
		Started: &started,
		Config:  cfg.Clone(),
	}
	r.order = append(r.order, j)
	r.byID[id] = j
	return j.Clone()
}

// nextIDLocked returns one more than the largest numeric id present.
// Non-numeric ids are ignored.
func (r *Registry) nextIDLocked() string {
	var maxID int64
	for _, j := range r.order {
		n, err := strconv.ParseInt(j.ID, 10, 64)
		if err == nil && n > maxID {
			maxID = n
		}
	}
	return strconv.FormatInt(maxID+1, 10)
}

// List returns copies of all jobs, oldest first.
func (r *Registry) List() []job.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]job.Job, 0, len(r.order))
	for _, j := range r.order {
		jobs = append(jobs, *j.Clone())
	}
	return jobs
}

// Get returns a copy of the job with the given id.
func (r *Registry) Get(id string) (*job.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

// Update applies fn to the stored job under the write lock and returns a copy
// of the result. If fn returns an error the job is left untouched.
func (r *Registry) Update(id string, fn func(*job.Job) error) (*job.Job, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.byID[id]
	if !ok {
		return nil, false, nil
	}
	draft := j.Clone()
	if err := fn(draft); err != nil {
		return j.Clone(), true, err
	}
	*j = *draft
	return j.Clone(), true, nil
}

// Len returns the number of stored jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// SetLogs replaces the log text of a job.
func (r *Registry) SetLogs(id, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[id] = text
}

// Logs returns the log text for id. When none is stored a placeholder line
// stamped with now is stored and returned, so later reads see the same text.
// The id does not have to belong to a known job.
func (r *Registry) Logs(id string, now time.Time) string {
	r.mu.RLock()
	text, ok := r.logs[id]
	r.mu.RUnlock()
	if ok {
		return text
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if text, ok := r.logs[id]; ok {
		return text
	}
	text = placeholderLog(now)
	r.logs[id] = text
	return text
}

func placeholderLog(now time.Time) string {
	return now.UTC().Format("2006-01-02T15:04:05.000Z07:00") + " [info] No detailed logs available for this job"
}
