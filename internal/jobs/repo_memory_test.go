package jobs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"resume-wizard/resume/model"
)

func sampleNewJob() NewJob {
	return NewJob{
		JobDescription: "Senior Go engineer",
		OriginalResume: "Jane Doe\nGo, SQL",
		ParsedData: model.ParsedResume{
			Summary: "Backend engineer",
			Skills:  []string{"Go", "SQL"},
		},
	}
}

func TestMemoryRepoCreateAndGetRoundTrip(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleNewJob())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected id assigned")
	}
	if created.Status != model.StatusProcessing {
		t.Fatalf("expected processing, got %s", created.Status)
	}
	if created.GenerationMode != model.ModeTemplate {
		t.Fatalf("expected template mode default, got %s", created.GenerationMode)
	}
	if created.EnhancedContent != nil || created.MatchScore != nil || created.SelectedTemplate != nil {
		t.Fatalf("expected empty outputs, got %+v", created)
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("expected createdAt == updatedAt on create")
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, created) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, created)
	}
}

func TestMemoryRepoIDsUnique(t *testing.T) {
	repo := NewMemoryRepo()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		job, err := repo.Create(context.Background(), sampleNewJob())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if seen[job.ID] {
			t.Fatalf("duplicate id %s", job.ID)
		}
		seen[job.ID] = true
	}
}

func TestMemoryRepoGetUnknown(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Update(context.Background(), "missing", JobUpdate{Status: Some(model.StatusFailed)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestMemoryRepoUpdateIsShallowMerge(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	created, err := repo.Create(ctx, sampleNewJob())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	score := 82
	updated, err := repo.Update(ctx, created.ID, JobUpdate{MatchScore: Some(&score)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.MatchScore == nil || *updated.MatchScore != 82 {
		t.Fatalf("expected score 82, got %v", updated.MatchScore)
	}
	if updated.JobDescription != created.JobDescription || updated.Status != created.Status {
		t.Fatalf("expected untouched fields preserved")
	}
	if !reflect.DeepEqual(updated.ParsedData, created.ParsedData) {
		t.Fatalf("expected parsed data untouched")
	}
	if updated.ID != created.ID || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("expected id and createdAt immutable")
	}

	replaced, err := repo.Update(ctx, created.ID, JobUpdate{ParsedData: Some(model.ParsedResume{Summary: "only summary"})})
	if err != nil {
		t.Fatalf("update parsed: %v", err)
	}
	if replaced.ParsedData.Summary != "only summary" || len(replaced.ParsedData.Skills) != 0 {
		t.Fatalf("expected nested value replaced whole, got %+v", replaced.ParsedData)
	}
}

func TestMemoryRepoUpdatedAtStrictlyIncreases(t *testing.T) {
	fixed := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	repo.Now = func() time.Time { return fixed }
	ctx := context.Background()

	job, err := repo.Create(ctx, sampleNewJob())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	prev := job.UpdatedAt
	for i := 0; i < 3; i++ {
		next, err := repo.Update(ctx, job.ID, JobUpdate{Status: Some(model.StatusProcessing)})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if !next.UpdatedAt.After(prev) {
			t.Fatalf("expected updatedAt to increase: prev=%s next=%s", prev, next.UpdatedAt)
		}
		if next.UpdatedAt.Before(next.CreatedAt) {
			t.Fatalf("expected updatedAt >= createdAt")
		}
		prev = next.UpdatedAt
	}
}

func TestMemoryRepoReturnsCopies(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	job, err := repo.Create(ctx, sampleNewJob())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	job.ParsedData.Skills[0] = "mutated"

	again, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.ParsedData.Skills[0] != "Go" {
		t.Fatalf("expected store isolated from caller mutation, got %q", again.ParsedData.Skills[0])
	}
}

func TestMemoryRepoReadsAreIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	job, err := repo.Create(ctx, sampleNewJob())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first, _ := repo.GetByID(ctx, job.ID)
	second, _ := repo.GetByID(ctx, job.ID)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical reads")
	}
}

func TestMemoryRepoConcurrentUpdatesNeverTear(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	job, err := repo.Create(ctx, sampleNewJob())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			score := i
			content := fmt.Sprintf("content-%d", i)
			if _, err := repo.Update(ctx, job.ID, JobUpdate{
				MatchScore:      Some(&score),
				EnhancedContent: Some(&content),
				Status:          Some(model.StatusCompleted),
			}); err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	final, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.MatchScore == nil || final.EnhancedContent == nil {
		t.Fatalf("expected outputs set")
	}
	if want := fmt.Sprintf("content-%d", *final.MatchScore); *final.EnhancedContent != want {
		t.Fatalf("torn record: score=%d content=%q", *final.MatchScore, *final.EnhancedContent)
	}
}

func TestMemoryRepoListInsertionOrder(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		job, err := repo.Create(ctx, sampleNewJob())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, job.ID)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(list))
	}
	for i, job := range list {
		if job.ID != ids[i] {
			t.Fatalf("expected %s at %d, got %s", ids[i], i, job.ID)
		}
	}
}

func TestMemoryRepoCanceledContext(t *testing.T) {
	repo := NewMemoryRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.Create(ctx, sampleNewJob()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
