package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// GenerationMode selects how the enhanced résumé is laid out.
type GenerationMode string

const (
	ModeTemplate GenerationMode = "template"
	ModePreserve GenerationMode = "preserve"
)

// ParseMode validates a client supplied mode.
func ParseMode(raw string) (GenerationMode, bool) {
	switch GenerationMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeTemplate:
		return ModeTemplate, true
	case ModePreserve:
		return ModePreserve, true
	default:
		return "", false
	}
}

const DefaultTemplate = "modern"

var templates = map[string]struct{}{
	"modern":    {},
	"classic":   {},
	"creative":  {},
	"executive": {},
}

// Templates lists the recognized template ids.
func Templates() []string {
	return []string{"modern", "classic", "creative", "executive"}
}

// NormalizeTemplate maps unrecognized ids onto the default template.
func NormalizeTemplate(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if _, ok := templates[id]; ok {
		return id
	}
	return DefaultTemplate
}

// ResumeJob is one wizard session: inputs, parsed structure and generated outputs.
type ResumeJob struct {
	ID               string         `json:"id"`
	JobDescription   string         `json:"jobDescription"`
	OriginalResume   string         `json:"originalResume"`
	ParsedData       ParsedResume   `json:"parsedData"`
	GenerationMode   GenerationMode `json:"generationMode"`
	SelectedTemplate *string        `json:"selectedTemplate"`
	EnhancedContent  *string        `json:"enhancedContent"`
	MatchScore       *int           `json:"matchScore"`
	Status           Status         `json:"status"`
	ErrorCode        *string        `json:"errorCode"`
	ErrorMessage     *string        `json:"errorMessage"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Clone returns a copy that shares no memory with j.
func (j ResumeJob) Clone() ResumeJob {
	out := j
	out.ParsedData = j.ParsedData.Clone()
	out.SelectedTemplate = clonePtr(j.SelectedTemplate)
	out.EnhancedContent = clonePtr(j.EnhancedContent)
	out.MatchScore = clonePtr(j.MatchScore)
	out.ErrorCode = clonePtr(j.ErrorCode)
	out.ErrorMessage = clonePtr(j.ErrorMessage)
	return out
}

// TemplateOrDefault returns the selected template, or the default when none is set.
func (j ResumeJob) TemplateOrDefault() string {
	if j.SelectedTemplate == nil || strings.TrimSpace(*j.SelectedTemplate) == "" {
		return DefaultTemplate
	}
	return NormalizeTemplate(*j.SelectedTemplate)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
