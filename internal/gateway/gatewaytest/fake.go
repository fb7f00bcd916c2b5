// Package gatewaytest provides an in-memory ProcessingGateway for tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"resume-wizard/internal/extract"
	"resume-wizard/internal/gateway"
	"resume-wizard/resume/model"
)

// Fake answers every stage in process. Each *Func overrides the default behavior.
type Fake struct {
	ExtractFunc func(ctx context.Context, path, mediaType string) (string, error)
	ParseFunc   func(ctx context.Context, text string) (model.ParsedResume, error)
	ScoreFunc   func(ctx context.Context, jobDescription, resume string) (int, error)
	EnhanceFunc func(ctx context.Context, in gateway.EnhanceInput) (string, error)
	FormatFunc  func(ctx context.Context, job model.ResumeJob, format, template string) (gateway.Rendered, error)

	// OutDir receives formatted files. Defaults to os.TempDir().
	OutDir string

	ExtractCalls atomic.Int32
	ParseCalls   atomic.Int32
	ScoreCalls   atomic.Int32
	EnhanceCalls atomic.Int32
	FormatCalls  atomic.Int32

	mu       sync.Mutex
	rendered []string
}

var _ gateway.ProcessingGateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{}
}

func (f *Fake) ExtractText(ctx context.Context, path, mediaType string) (string, error) {
	f.ExtractCalls.Add(1)
	if f.ExtractFunc != nil {
		return f.ExtractFunc(ctx, path, mediaType)
	}
	text, err := extract.File(ctx, path, mediaType)
	if err != nil {
		return "", gateway.NewStageError(gateway.StageExtract, err.Error(), err)
	}
	return text, nil
}

var knownSkills = []string{"Go", "Python", "JavaScript", "SQL", "Docker", "Kubernetes", "AWS", "React"}

func (f *Fake) ParseResume(ctx context.Context, text string) (model.ParsedResume, error) {
	f.ParseCalls.Add(1)
	if f.ParseFunc != nil {
		return f.ParseFunc(ctx, text)
	}
	parsed := model.ParsedResume{Summary: firstLine(text)}
	lower := strings.ToLower(text)
	for _, s := range knownSkills {
		if strings.Contains(lower, strings.ToLower(s)) {
			parsed.Skills = append(parsed.Skills, s)
		}
	}
	return parsed.Normalize(), nil
}

func (f *Fake) ScoreMatch(ctx context.Context, jobDescription, resume string) (int, error) {
	f.ScoreCalls.Add(1)
	if f.ScoreFunc != nil {
		return f.ScoreFunc(ctx, jobDescription, resume)
	}
	return 75, nil
}

func (f *Fake) EnhanceContent(ctx context.Context, in gateway.EnhanceInput) (string, error) {
	f.EnhanceCalls.Add(1)
	if f.EnhanceFunc != nil {
		return f.EnhanceFunc(ctx, in)
	}
	out := in.ParsedData.Normalize()
	out.Summary = strings.TrimSpace("Tailored: " + out.Summary)
	raw, err := json.Marshal(out)
	if err != nil {
		return "", gateway.NewStageError(gateway.StageEnhance, "", err)
	}
	return string(raw), nil
}

func (f *Fake) FormatDocument(ctx context.Context, job model.ResumeJob, format, template string) (gateway.Rendered, error) {
	f.FormatCalls.Add(1)
	if f.FormatFunc != nil {
		return f.FormatFunc(ctx, job, format, template)
	}
	if format == gateway.FormatHTML {
		return gateway.Rendered{Format: format, HTML: "<html><body data-template=\"" + template + "\">" + job.ID + "</body></html>"}, nil
	}
	dir := f.OutDir
	if dir == "" {
		dir = os.TempDir()
	}
	file, err := os.CreateTemp(dir, "rendered-*."+format)
	if err != nil {
		return gateway.Rendered{}, gateway.NewStageError(gateway.StageFormat, "", err)
	}
	if _, err := file.WriteString(format + ":" + template + ":" + job.ID); err != nil {
		_ = file.Close()
		return gateway.Rendered{}, gateway.NewStageError(gateway.StageFormat, "", err)
	}
	if err := file.Close(); err != nil {
		return gateway.Rendered{}, gateway.NewStageError(gateway.StageFormat, "", err)
	}
	f.mu.Lock()
	f.rendered = append(f.rendered, file.Name())
	f.mu.Unlock()
	return gateway.Rendered{Format: format, Path: filepath.Clean(file.Name())}, nil
}

// RenderedPaths lists files written by the default FormatDocument.
func (f *Fake) RenderedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rendered...)
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return text
}
