package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resume-wizard/resume/model"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

var _ Repo = (*PGRepo)(nil)

const jobColumns = `id, job_description, original_resume, parsed_data, generation_mode, selected_template,
	enhanced_content, match_score, status, error_code, error_message, created_at, updated_at`

func (r *PGRepo) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, in NewJob) (model.ResumeJob, error) {
	const query = `
INSERT INTO resume_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	job := newRecord(in, uuid.NewString(), r.now())
	args, err := jobArgs(job)
	if err != nil {
		return model.ResumeJob{}, err
	}
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		return model.ResumeJob{}, fmt.Errorf("insert resume job: %w", err)
	}
	return job, nil
}

// GetByID returns a job by its ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (model.ResumeJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.ResumeJob{}, ErrNotFound
	}
	const query = `SELECT ` + jobColumns + ` FROM resume_jobs WHERE id = $1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ResumeJob{}, ErrNotFound
		}
		return model.ResumeJob{}, fmt.Errorf("get resume job: %w", err)
	}
	return job, nil
}

// Update locks the row, applies u to the stored version and writes it back in one transaction.
func (r *PGRepo) Update(ctx context.Context, id string, u JobUpdate) (model.ResumeJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.ResumeJob{}, ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.ResumeJob{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	const selectQuery = `SELECT ` + jobColumns + ` FROM resume_jobs WHERE id = $1 FOR UPDATE`
	current, err := scanJob(tx.QueryRowContext(ctx, selectQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ResumeJob{}, ErrNotFound
		}
		return model.ResumeJob{}, fmt.Errorf("lock resume job: %w", err)
	}

	next := u.Apply(current, r.now())
	args, err := jobArgs(next)
	if err != nil {
		return model.ResumeJob{}, err
	}
	// created_at is immutable; drop it and bind updated_at as $12.
	args = append(args[:11], args[12])

	const updateQuery = `
UPDATE resume_jobs
SET job_description = $2,
	original_resume = $3,
	parsed_data = $4,
	generation_mode = $5,
	selected_template = $6,
	enhanced_content = $7,
	match_score = $8,
	status = $9,
	error_code = $10,
	error_message = $11,
	updated_at = $12
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
		return model.ResumeJob{}, fmt.Errorf("update resume job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.ResumeJob{}, fmt.Errorf("commit update: %w", err)
	}
	return next, nil
}

// List returns all jobs, oldest first.
func (r *PGRepo) List(ctx context.Context) ([]model.ResumeJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM resume_jobs ORDER BY created_at, id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list resume jobs: %w", err)
	}
	defer rows.Close()

	out := []model.ResumeJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resume job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list resume jobs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (model.ResumeJob, error) {
	var (
		job       model.ResumeJob
		parsedRaw []byte
		mode      string
		status    string
		template  sql.NullString
		enhanced  sql.NullString
		score     sql.NullInt64
		errCode   sql.NullString
		errMsg    sql.NullString
	)
	if err := row.Scan(
		&job.ID,
		&job.JobDescription,
		&job.OriginalResume,
		&parsedRaw,
		&mode,
		&template,
		&enhanced,
		&score,
		&status,
		&errCode,
		&errMsg,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return model.ResumeJob{}, err
	}
	if len(parsedRaw) > 0 {
		if err := json.Unmarshal(parsedRaw, &job.ParsedData); err != nil {
			return model.ResumeJob{}, fmt.Errorf("decode parsed_data: %w", err)
		}
	}
	job.GenerationMode = model.GenerationMode(mode)
	job.Status = model.Status(status)
	job.SelectedTemplate = nullString(template)
	job.EnhancedContent = nullString(enhanced)
	job.ErrorCode = nullString(errCode)
	job.ErrorMessage = nullString(errMsg)
	if score.Valid {
		v := int(score.Int64)
		job.MatchScore = &v
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return job, nil
}

func jobArgs(job model.ResumeJob) ([]any, error) {
	parsed, err := json.Marshal(job.ParsedData.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encode parsed_data: %w", err)
	}
	var score sql.NullInt64
	if job.MatchScore != nil {
		score = sql.NullInt64{Int64: int64(*job.MatchScore), Valid: true}
	}
	return []any{
		job.ID,
		job.JobDescription,
		job.OriginalResume,
		parsed,
		string(job.GenerationMode),
		toNullString(job.SelectedTemplate),
		toNullString(job.EnhancedContent),
		score,
		string(job.Status),
		toNullString(job.ErrorCode),
		toNullString(job.ErrorMessage),
		job.CreatedAt,
		job.UpdatedAt,
	}, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func toNullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
