package jobs

import (
	"context"

	"resume-wizard/resume/model"
)

// Repo persists resume jobs. Callers always receive copies.
type Repo interface {
	Create(ctx context.Context, in NewJob) (model.ResumeJob, error)
	GetByID(ctx context.Context, id string) (model.ResumeJob, error)
	// Update applies u atomically against the latest stored version.
	Update(ctx context.Context, id string, u JobUpdate) (model.ResumeJob, error)
	List(ctx context.Context) ([]model.ResumeJob, error)
}
