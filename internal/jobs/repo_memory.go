package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"resume-wizard/resume/model"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	byID  map[string]model.ResumeJob
	order []string

	Now func() time.Time
}

var _ Repo = (*MemoryRepo)(nil)

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]model.ResumeJob),
		Now:  time.Now,
	}
}

func (r *MemoryRepo) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Create stores a new job with a fresh id.
func (r *MemoryRepo) Create(ctx context.Context, in NewJob) (model.ResumeJob, error) {
	if err := ctx.Err(); err != nil {
		return model.ResumeJob{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	for _, exists := r.byID[id]; exists; _, exists = r.byID[id] {
		id = uuid.NewString()
	}
	job := newRecord(in, id, r.now())
	r.byID[id] = job
	r.order = append(r.order, id)
	return job.Clone(), nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (model.ResumeJob, error) {
	if err := ctx.Err(); err != nil {
		return model.ResumeJob{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[id]
	if !ok {
		return model.ResumeJob{}, ErrNotFound
	}
	return job.Clone(), nil
}

// Update merges u into the stored job under the write lock.
func (r *MemoryRepo) Update(ctx context.Context, id string, u JobUpdate) (model.ResumeJob, error) {
	if err := ctx.Err(); err != nil {
		return model.ResumeJob{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok {
		return model.ResumeJob{}, ErrNotFound
	}
	next := u.Apply(current, r.now())
	r.byID[id] = next
	return next.Clone(), nil
}

// List returns every job in insertion order.
func (r *MemoryRepo) List(ctx context.Context) ([]model.ResumeJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ResumeJob, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Clone())
	}
	return out, nil
}
