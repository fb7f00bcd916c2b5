package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"resume-wizard/internal/extract"
	"resume-wizard/internal/gateway"
	"resume-wizard/internal/shared/metrics"
	"resume-wizard/internal/shared/storage/spool"
	"resume-wizard/internal/shared/telemetry"
	"resume-wizard/internal/shared/util"
	"resume-wizard/resume/model"
)

// Service orchestrates the job lifecycle against the processing gateway.
type Service struct {
	Repo           Repo
	Gateway        gateway.ProcessingGateway
	Spool          *spool.Spool
	MaxUploadBytes int64
}

// UploadFile is one file received from the client.
type UploadFile struct {
	Name      string
	MediaType string
	Size      int64
	Body      io.Reader
}

// UploadInput carries the résumé and the job description, which may come as a file or as text.
type UploadInput struct {
	Resume             *UploadFile
	JobDescriptionFile *UploadFile
	JobDescriptionText string
}

type UploadResult struct {
	JobID      string             `json:"jobId"`
	ParsedData model.ParsedResume `json:"parsedData"`
}

type GenerateInput struct {
	JobID    string
	Mode     string
	Template string
}

type GenerateResult struct {
	Job             model.ResumeJob `json:"job"`
	MatchScore      int             `json:"matchScore"`
	EnhancedContent string          `json:"enhancedContent"`
}

// Document is a rendered download.
type Document struct {
	Content     []byte
	ContentType string
	FileName    string
}

const failedGenerationMessage = "Résumé generation failed. Please try again."

var contentTypes = map[string]string{
	gateway.FormatPDF:  extract.MimePDF,
	gateway.FormatDOCX: extract.MimeDOCX,
}

// Upload extracts and parses the inputs and creates a job. Nothing is stored on failure.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if in.Resume == nil {
		return UploadResult{}, invalid("resume file is required")
	}
	if in.JobDescriptionFile == nil && strings.TrimSpace(in.JobDescriptionText) == "" {
		return UploadResult{}, invalid("job description file or text is required")
	}
	for _, f := range []*UploadFile{in.Resume, in.JobDescriptionFile} {
		if err := s.checkFile(f); err != nil {
			return UploadResult{}, err
		}
	}

	resumeText, err := s.extractFile(ctx, in.Resume)
	if err != nil {
		return UploadResult{}, err
	}
	jdText := in.JobDescriptionText
	if in.JobDescriptionFile != nil {
		jdText, err = s.extractFile(ctx, in.JobDescriptionFile)
		if err != nil {
			return UploadResult{}, err
		}
	}
	resumeText = strings.TrimSpace(resumeText)
	jdText = strings.TrimSpace(jdText)
	if resumeText == "" {
		return UploadResult{}, invalid("resume contains no readable text")
	}
	if jdText == "" {
		return UploadResult{}, invalid("job description contains no readable text")
	}

	parsed, err := s.Gateway.ParseResume(ctx, resumeText)
	if err != nil {
		return UploadResult{}, fmt.Errorf("parse resume: %w", err)
	}
	parsed = parsed.Normalize()

	job, err := s.Repo.Create(ctx, NewJob{
		JobDescription: jdText,
		OriginalResume: resumeText,
		ParsedData:     parsed,
		GenerationMode: model.ModeTemplate,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("create job: %w", err)
	}
	metrics.IncUploads()
	telemetry.Info("job.created", map[string]any{
		"job_id":       job.ID,
		"resume_chars": len(resumeText),
		"resume_fp":    util.Fingerprint(resumeText),
		"jd_chars":     len(jdText),
		"skills":       len(parsed.Skills),
	})
	return UploadResult{JobID: job.ID, ParsedData: job.ParsedData}, nil
}

func (s *Service) checkFile(f *UploadFile) error {
	if f == nil {
		return nil
	}
	if s.MaxUploadBytes > 0 && f.Size > s.MaxUploadBytes {
		return invalid(fmt.Sprintf("%s exceeds the %d byte upload limit", displayName(f.Name), s.MaxUploadBytes))
	}
	if f.Body == nil {
		return invalid(fmt.Sprintf("%s is empty", displayName(f.Name)))
	}
	if f.MediaType != "" && !extract.Accepts(f.MediaType, f.Name) {
		return invalid(fmt.Sprintf("%s has unsupported type %s; use PDF, DOCX or plain text", displayName(f.Name), f.MediaType))
	}
	return nil
}

// extractFile spools f, runs extraction and always removes the spooled copy.
func (s *Service) extractFile(ctx context.Context, f *UploadFile) (string, error) {
	saved, err := s.Spool.Save(ctx, f.Name, f.MediaType, f.Body)
	if err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}
	defer func() {
		if err := s.Spool.Remove(saved.Path); err != nil {
			telemetry.Warn("spool.cleanup_failed", map[string]any{"path": saved.Path, "error": err.Error()})
		}
	}()
	if saved.Size == 0 {
		return "", invalid(fmt.Sprintf("%s is empty", displayName(f.Name)))
	}
	if s.MaxUploadBytes > 0 && saved.Size > s.MaxUploadBytes {
		return "", invalid(fmt.Sprintf("%s exceeds the %d byte upload limit", displayName(f.Name), s.MaxUploadBytes))
	}
	if !extract.Accepts(saved.MediaType, saved.Name) {
		return "", invalid(fmt.Sprintf("%s has unsupported type %s; use PDF, DOCX or plain text", displayName(f.Name), saved.MediaType))
	}
	text, err := s.Gateway.ExtractText(ctx, saved.Path, saved.MediaType)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", displayName(f.Name), err)
	}
	return text, nil
}

// Generate scores and enhances a job concurrently and records the outcome in one update.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (GenerateResult, error) {
	mode, ok := model.ParseMode(in.Mode)
	if !ok {
		return GenerateResult{}, invalid("mode must be template or preserve")
	}
	var template *string
	rawTemplate := strings.TrimSpace(in.Template)
	switch {
	case mode == model.ModeTemplate && rawTemplate == "":
		return GenerateResult{}, invalid("template is required in template mode")
	case rawTemplate != "":
		t := model.NormalizeTemplate(rawTemplate)
		template = &t
	}
	if strings.TrimSpace(in.JobID) == "" {
		return GenerateResult{}, invalid("jobId is required")
	}

	job, err := s.Repo.GetByID(ctx, in.JobID)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("load job: %w", err)
	}

	metrics.IncGenerationStarted()
	var (
		score    int
		enhanced string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		score, err = s.Gateway.ScoreMatch(gctx, job.JobDescription, job.OriginalResume)
		return err
	})
	g.Go(func() error {
		var err error
		enhanced, err = s.Gateway.EnhanceContent(gctx, gateway.EnhanceInput{
			JobDescription: job.JobDescription,
			OriginalResume: job.OriginalResume,
			ParsedData:     job.ParsedData,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		s.failGeneration(ctx, job.ID, err)
		return GenerateResult{}, fmt.Errorf("generate: %w", err)
	}

	updated, err := s.Repo.Update(ctx, job.ID, JobUpdate{
		GenerationMode:   Some(mode),
		SelectedTemplate: Some(template),
		EnhancedContent:  Some(&enhanced),
		MatchScore:       Some(&score),
		Status:           Some(model.StatusCompleted),
		ErrorCode:        Some[*string](nil),
		ErrorMessage:     Some[*string](nil),
	})
	if err != nil {
		metrics.IncGenerationFailed()
		return GenerateResult{}, fmt.Errorf("store generation: %w", err)
	}
	metrics.IncGenerationCompleted()
	telemetry.Info("job.generated", map[string]any{
		"job_id":      job.ID,
		"mode":        mode,
		"template":    updated.TemplateOrDefault(),
		"match_score": score,
	})
	return GenerateResult{Job: updated, MatchScore: score, EnhancedContent: enhanced}, nil
}

// failGeneration records a failed attempt. It survives caller cancellation so the
// job never stays in a stale state after a stage error.
func (s *Service) failGeneration(ctx context.Context, jobID string, cause error) {
	metrics.IncGenerationFailed()
	code := "generation_failed"
	var se *gateway.StageError
	if errors.As(cause, &se) {
		code = string(se.Stage) + "_failed"
	}
	msg := failedGenerationMessage
	fields := map[string]any{"job_id": jobID, "error_code": code, "error": cause.Error()}
	if se != nil {
		fields["diagnostic"] = se.Diagnostic
	}
	telemetry.Error("job.generation_failed", fields)

	if _, err := s.Repo.Update(context.WithoutCancel(ctx), jobID, JobUpdate{
		Status:       Some(model.StatusFailed),
		ErrorCode:    Some(&code),
		ErrorMessage: Some(&msg),
	}); err != nil {
		telemetry.Error("job.mark_failed_error", map[string]any{"job_id": jobID, "error": err.Error()})
	}
}

// Get returns the full job record.
func (s *Service) Get(ctx context.Context, id string) (model.ResumeJob, error) {
	job, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return model.ResumeJob{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns every job.
func (s *Service) List(ctx context.Context) ([]model.ResumeJob, error) {
	jobs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Download renders a completed job as pdf or docx.
func (s *Service) Download(ctx context.Context, id string, format string) (Document, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	contentType, ok := contentTypes[format]
	if !ok {
		return Document{}, invalid("format must be pdf or docx")
	}
	job, err := s.completedJob(ctx, id)
	if err != nil {
		return Document{}, err
	}

	rendered, err := s.Gateway.FormatDocument(ctx, job, format, job.TemplateOrDefault())
	if err != nil {
		return Document{}, fmt.Errorf("format %s: %w", format, err)
	}
	defer removeOutput(rendered.Path)

	content, err := os.ReadFile(rendered.Path)
	if err != nil {
		return Document{}, fmt.Errorf("read rendered %s: %w", format, gateway.NewStageError(gateway.StageFormat, rendered.Path, err))
	}
	telemetry.Info("job.downloaded", map[string]any{"job_id": job.ID, "format": format, "bytes": len(content)})
	return Document{
		Content:     content,
		ContentType: contentType,
		FileName:    fmt.Sprintf("resume_%s.%s", job.ID, format),
	}, nil
}

// Preview renders a completed job as inline HTML.
func (s *Service) Preview(ctx context.Context, id string) (string, error) {
	job, err := s.completedJob(ctx, id)
	if err != nil {
		return "", err
	}
	rendered, err := s.Gateway.FormatDocument(ctx, job, gateway.FormatHTML, job.TemplateOrDefault())
	if err != nil {
		return "", fmt.Errorf("format html: %w", err)
	}
	removeOutput(rendered.Path)
	return rendered.HTML, nil
}

func (s *Service) completedJob(ctx context.Context, id string) (model.ResumeJob, error) {
	job, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return model.ResumeJob{}, fmt.Errorf("load job: %w", err)
	}
	if job.Status != model.StatusCompleted {
		return model.ResumeJob{}, fmt.Errorf("job %s is %s: %w", job.ID, job.Status, ErrNotReady)
	}
	return job, nil
}

func removeOutput(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		telemetry.Warn("output.cleanup_failed", map[string]any{"path": path, "error": err.Error()})
	}
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "file"
	}
	return name
}
