package jobs

import (
	"time"

	"resume-wizard/resume/model"
)

// Field is an optional value in a JobUpdate. The zero Field leaves the stored value alone.
type Field[T any] struct {
	Value T
	Set   bool
}

// Some marks v as present.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// NewJob is the input to Repo.Create.
type NewJob struct {
	JobDescription string
	OriginalResume string
	ParsedData     model.ParsedResume
	GenerationMode model.GenerationMode
}

// JobUpdate is a shallow partial update: every set field replaces the stored one,
// unset fields are untouched. Nested values are replaced whole, never merged.
type JobUpdate struct {
	JobDescription   Field[string]
	OriginalResume   Field[string]
	ParsedData       Field[model.ParsedResume]
	GenerationMode   Field[model.GenerationMode]
	SelectedTemplate Field[*string]
	EnhancedContent  Field[*string]
	MatchScore       Field[*int]
	Status           Field[model.Status]
	ErrorCode        Field[*string]
	ErrorMessage     Field[*string]
}

// Apply returns the next version of current. ID and CreatedAt never change and
// UpdatedAt always moves forward, even when the clock does not.
func (u JobUpdate) Apply(current model.ResumeJob, now time.Time) model.ResumeJob {
	next := current.Clone()
	if u.JobDescription.Set {
		next.JobDescription = u.JobDescription.Value
	}
	if u.OriginalResume.Set {
		next.OriginalResume = u.OriginalResume.Value
	}
	if u.ParsedData.Set {
		next.ParsedData = u.ParsedData.Value.Clone()
	}
	if u.GenerationMode.Set {
		next.GenerationMode = u.GenerationMode.Value
	}
	if u.SelectedTemplate.Set {
		next.SelectedTemplate = copyPtr(u.SelectedTemplate.Value)
	}
	if u.EnhancedContent.Set {
		next.EnhancedContent = copyPtr(u.EnhancedContent.Value)
	}
	if u.MatchScore.Set {
		next.MatchScore = copyPtr(u.MatchScore.Value)
	}
	if u.Status.Set {
		next.Status = u.Status.Value
	}
	if u.ErrorCode.Set {
		next.ErrorCode = copyPtr(u.ErrorCode.Value)
	}
	if u.ErrorMessage.Set {
		next.ErrorMessage = copyPtr(u.ErrorMessage.Value)
	}
	next.UpdatedAt = nextTimestamp(current.UpdatedAt, now)
	return next
}

// newRecord builds the initial version of a job.
func newRecord(in NewJob, id string, now time.Time) model.ResumeJob {
	mode := in.GenerationMode
	if mode == "" {
		mode = model.ModeTemplate
	}
	ts := stamp(now)
	return model.ResumeJob{
		ID:             id,
		JobDescription: in.JobDescription,
		OriginalResume: in.OriginalResume,
		ParsedData:     in.ParsedData.Clone(),
		GenerationMode: mode,
		Status:         model.StatusProcessing,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
}

// stamp normalizes to UTC at the precision Postgres stores.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nextTimestamp(prev, now time.Time) time.Time {
	ts := stamp(now)
	if !ts.After(prev) {
		ts = prev.Add(time.Microsecond)
	}
	return ts
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
