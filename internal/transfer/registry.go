package transfer

import (
	"time"

	"github.com/google/uuid"
)

type Status int

const (
	Running Status = iota
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "running"
	}
}

// Job is the registry's view of one transfer
type Job struct {
	Ref         JobRef
	LocalPath   string
	Total       uint64
	Transferred uint64
	Status      Status
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Rate is the completed fraction in [0, 1]. An unknown total reports 0
func (j Job) Rate() float64 {
	if j.Total == 0 {
		return 0
	}
	return min(float64(j.Transferred)/float64(j.Total), 1)
}

func (j Job) Finished() bool {
	return j.Status != Running
}

type jobKey struct {
	direction Direction
	key       string
}

// Registry holds the jobs shown to the user, keyed by direction and object key, in dispatch order.
// Jobs stay after they finish until dismissed. It is owned by the UI loop and is not safe for
// concurrent use
type Registry struct {
	order []jobKey
	jobs  map[jobKey]*Job
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[jobKey]*Job), now: time.Now}
}

// Track records a dispatched transfer. A new transfer of a key replaces the previous job for it
func (r *Registry) Track(ref JobRef, localPath string) {
	k := jobKey{ref.Direction, ref.Key}
	if _, exists := r.jobs[k]; !exists {
		r.order = append(r.order, k)
	}
	r.jobs[k] = &Job{Ref: ref, LocalPath: localPath, Status: Running, StartedAt: r.now()}
}

// ApplyProgress updates a running job. Updates for replaced jobs and regressions are ignored
func (r *Registry) ApplyProgress(p Progress) bool {
	job := r.lookup(p.Job)
	if job == nil || job.Status != Running || p.Transferred < job.Transferred {
		return false
	}
	job.Total = p.Total
	job.Transferred = p.Transferred
	return true
}

// Finish marks a job completed or failed
func (r *Registry) Finish(ref JobRef, localPath string, err error) bool {
	job := r.lookup(ref)
	if job == nil {
		return false
	}
	job.FinishedAt = r.now()
	if localPath != "" {
		job.LocalPath = localPath
	}
	if err != nil {
		job.Status = Failed
		job.Err = err
		return true
	}
	job.Status = Completed
	job.Transferred = max(job.Transferred, job.Total)
	return true
}

func (r *Registry) lookup(ref JobRef) *Job {
	job, ok := r.jobs[jobKey{ref.Direction, ref.Key}]
	if !ok || job.Ref.ID != ref.ID {
		return nil
	}
	return job
}

// Get returns the current job for a key
func (r *Registry) Get(direction Direction, key string) (Job, bool) {
	job, ok := r.jobs[jobKey{direction, key}]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Dismiss removes a job regardless of its status
func (r *Registry) Dismiss(direction Direction, key string) bool {
	k := jobKey{direction, key}
	if _, ok := r.jobs[k]; !ok {
		return false
	}
	delete(r.jobs, k)
	r.compact()
	return true
}

// DismissFinished removes every completed or failed job and returns how many were removed
func (r *Registry) DismissFinished() int {
	removed := 0
	for k, job := range r.jobs {
		if job.Finished() {
			delete(r.jobs, k)
			removed++
		}
	}
	if removed > 0 {
		r.compact()
	}
	return removed
}

func (r *Registry) compact() {
	kept := r.order[:0]
	for _, k := range r.order {
		if _, ok := r.jobs[k]; ok {
			kept = append(kept, k)
		}
	}
	r.order = kept
}

// Jobs returns copies of all jobs in dispatch order
func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, *r.jobs[k])
	}
	return out
}

func (r *Registry) Active() int {
	n := 0
	for _, job := range r.jobs {
		if !job.Finished() {
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	return len(r.order)
}

// ByID finds a job by its transfer ID
func (r *Registry) ByID(id uuid.UUID) (Job, bool) {
	for _, job := range r.jobs {
		if job.Ref.ID == id {
			return *job, true
		}
	}
	return Job{}, false
}
