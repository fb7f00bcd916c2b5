// Package gateway is the boundary to the external processing stages that turn an
// uploaded résumé into a tailored document.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"resume-wizard/resume/model"
)

// Stage names one external collaborator.
type Stage string

const (
	StageExtract Stage = "extract"
	StageParse   Stage = "parse"
	StageScore   Stage = "score"
	StageEnhance Stage = "enhance"
	StageFormat  Stage = "format"
)

// Output formats accepted by FormatDocument.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatHTML = "html"
)

var (
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrParseFailed       = errors.New("parse failed")
	ErrScoringFailed     = errors.New("scoring failed")
	ErrEnhancementFailed = errors.New("enhancement failed")
	ErrFormattingFailed  = errors.New("formatting failed")
)

// KindFor maps a stage to its failure sentinel.
func KindFor(stage Stage) error {
	switch stage {
	case StageExtract:
		return ErrExtractionFailed
	case StageParse:
		return ErrParseFailed
	case StageScore:
		return ErrScoringFailed
	case StageEnhance:
		return ErrEnhancementFailed
	default:
		return ErrFormattingFailed
	}
}

// StageError reports a failed stage invocation. Diagnostic carries stage output
// (typically stderr) and is meant for logs, not for clients.
type StageError struct {
	Stage      Stage
	Kind       error
	Diagnostic string
	Err        error
}

// NewStageError builds a StageError for stage with the matching kind.
func NewStageError(stage Stage, diagnostic string, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindFor(stage), Diagnostic: diagnostic, Err: err}
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s stage: %v: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Kind)
}

func (e *StageError) Unwrap() []error {
	out := []error{e.Kind}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// EnhanceInput is what the enhancement stage sees of a job.
type EnhanceInput struct {
	JobDescription string             `json:"jobDescription"`
	OriginalResume string             `json:"originalResume"`
	ParsedData     model.ParsedResume `json:"parsedData"`
}

// Rendered is a formatted document. Path points at a file the caller must remove once
// read; HTML is set for previews.
type Rendered struct {
	Format string
	Path   string
	HTML   string
}

// ProcessingGateway runs the external stages. Implementations are stateless and do not retry.
type ProcessingGateway interface {
	ExtractText(ctx context.Context, path string, mediaType string) (string, error)
	ParseResume(ctx context.Context, text string) (model.ParsedResume, error)
	ScoreMatch(ctx context.Context, jobDescription string, resume string) (int, error)
	EnhanceContent(ctx context.Context, in EnhanceInput) (string, error)
	FormatDocument(ctx context.Context, job model.ResumeJob, format string, template string) (Rendered, error)
}
