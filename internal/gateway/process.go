package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"resume-wizard/internal/extract"
	"resume-wizard/internal/shared/metrics"
	"resume-wizard/internal/shared/telemetry"
	"resume-wizard/resume/model"
)

const (
	defaultTimeout = 2 * time.Minute
	waitDelay      = time.Second
	maxDiagnostic  = 4096
)

// Commands holds the argv prefix of each stage. Contract arguments are appended.
// An empty Extract command selects the in-process extractor.
type Commands struct {
	Extract []string
	Parse   []string
	Score   []string
	Enhance []string
	Format  []string
}

// Process runs every stage as a child process, one invocation per call.
type Process struct {
	Commands Commands
	Timeout  time.Duration
	Dir      string
}

var _ ProcessingGateway = (*Process)(nil)

// NewProcess builds a process gateway. A non-positive timeout uses the default.
func NewProcess(cmds Commands, timeout time.Duration) *Process {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Process{Commands: cmds, Timeout: timeout}
}

func (p *Process) ExtractText(ctx context.Context, path string, mediaType string) (string, error) {
	if len(p.Commands.Extract) == 0 {
		return p.extractBuiltin(ctx, path, mediaType)
	}
	out, err := p.run(ctx, StageExtract, p.Commands.Extract, []string{path, mediaType}, nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", NewStageError(StageExtract, "stage produced no text", extract.ErrEmpty)
	}
	return text, nil
}

func (p *Process) extractBuiltin(ctx context.Context, path string, mediaType string) (string, error) {
	start := time.Now()
	text, err := extract.File(ctx, path, mediaType)
	metrics.ObserveStage(string(StageExtract), msSince(start), err != nil)
	if err != nil {
		telemetry.Warn("stage.failed", map[string]any{
			"stage":      StageExtract,
			"builtin":    true,
			"media_type": mediaType,
			"error":      err.Error(),
		})
		return "", NewStageError(StageExtract, err.Error(), err)
	}
	return text, nil
}

func (p *Process) ParseResume(ctx context.Context, text string) (model.ParsedResume, error) {
	out, err := p.run(ctx, StageParse, p.Commands.Parse, nil, []byte(text))
	if err != nil {
		return model.ParsedResume{}, err
	}
	parsed, err := DecodeParsedResume(out)
	if err != nil {
		return model.ParsedResume{}, NewStageError(StageParse, truncate(string(out)), err)
	}
	return parsed, nil
}

func (p *Process) ScoreMatch(ctx context.Context, jobDescription string, resume string) (int, error) {
	payload, err := json.Marshal(map[string]string{
		"jobDescription": jobDescription,
		"resume":         resume,
	})
	if err != nil {
		return 0, NewStageError(StageScore, "", err)
	}
	out, err := p.run(ctx, StageScore, p.Commands.Score, nil, payload)
	if err != nil {
		return 0, err
	}
	score, err := parseScore(string(out))
	if err != nil {
		return 0, NewStageError(StageScore, truncate(string(out)), err)
	}
	return score, nil
}

// parseScore accepts an integer, or a float that rounds to one, within 0..100.
func parseScore(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("score %q is not a number", raw)
		}
		n = int(math.Round(f))
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("score %d outside 0..100", n)
	}
	return n, nil
}

func (p *Process) EnhanceContent(ctx context.Context, in EnhanceInput) (string, error) {
	in.ParsedData = in.ParsedData.Normalize()
	payload, err := json.Marshal(in)
	if err != nil {
		return "", NewStageError(StageEnhance, "", err)
	}
	out, err := p.run(ctx, StageEnhance, p.Commands.Enhance, nil, payload)
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(string(out))
	if content == "" {
		return "", NewStageError(StageEnhance, "stage produced no content", nil)
	}
	return content, nil
}

func (p *Process) FormatDocument(ctx context.Context, job model.ResumeJob, format string, template string) (Rendered, error) {
	switch format {
	case FormatPDF, FormatDOCX, FormatHTML:
	default:
		return Rendered{}, NewStageError(StageFormat, "", fmt.Errorf("unsupported format %q", format))
	}
	job.ParsedData = job.ParsedData.Normalize()
	payload, err := json.Marshal(job)
	if err != nil {
		return Rendered{}, NewStageError(StageFormat, "", err)
	}
	out, err := p.run(ctx, StageFormat, p.Commands.Format, []string{format, template}, payload)
	if err != nil {
		return Rendered{}, err
	}

	result := strings.TrimSpace(string(out))
	if format == FormatHTML {
		if path, ok := existingFile(result); ok {
			html, err := os.ReadFile(path)
			if err != nil {
				return Rendered{}, NewStageError(StageFormat, path, err)
			}
			if kind, ok := htmlContent(html, path); !ok {
				_ = os.Remove(path)
				return Rendered{}, NewStageError(StageFormat, path, fmt.Errorf("html output is %s", kind))
			}
			return Rendered{Format: format, Path: path, HTML: string(html)}, nil
		}
		if result == "" {
			return Rendered{}, NewStageError(StageFormat, "stage produced no html", nil)
		}
		if kind, ok := htmlContent([]byte(result), ""); !ok {
			return Rendered{}, NewStageError(StageFormat, truncate(result), fmt.Errorf("html output is %s", kind))
		}
		return Rendered{Format: format, HTML: result}, nil
	}

	path, ok := existingFile(result)
	if !ok {
		return Rendered{}, NewStageError(StageFormat, truncate(result), fmt.Errorf("output file %q not found", result))
	}
	return Rendered{Format: format, Path: path}, nil
}

// htmlContent sniffs formatter output. Markup the sniffer reads as plain text passes
// when it comes from an .html file or, inline, contains a tag.
func htmlContent(data []byte, path string) (string, bool) {
	mt := mimetype.Detect(data)
	if mt.Is("text/html") {
		return mt.String(), true
	}
	if mt.Is("text/plain") {
		if path != "" {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".html", ".htm":
				return mt.String(), true
			}
			return mt.String(), false
		}
		return mt.String(), bytes.Contains(data, []byte("<"))
	}
	return mt.String(), false
}

// existingFile treats single-line output naming a regular file as a path.
func existingFile(out string) (string, bool) {
	if out == "" || strings.ContainsAny(out, "\n<") {
		return "", false
	}
	info, err := os.Stat(out)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return out, true
}

// run executes argv+args once under the stage timeout, capturing stdout and stderr in full.
func (p *Process) run(ctx context.Context, stage Stage, argv []string, args []string, stdin []byte) ([]byte, error) {
	if len(argv) == 0 {
		return nil, NewStageError(stage, "no command configured", errors.New("missing command"))
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append(append([]string{}, argv[1:]...), args...)
	cmd := exec.CommandContext(runCtx, argv[0], full...)
	cmd.Dir = p.Dir
	cmd.WaitDelay = waitDelay
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := msSince(start)

	if ctxErr := runCtx.Err(); ctxErr != nil {
		diag := fmt.Sprintf("stage timed out after %s", timeout)
		if errors.Is(ctxErr, context.Canceled) {
			diag = "stage canceled"
		}
		return nil, p.fail(stage, elapsed, diag, ctxErr)
	}
	if err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = strings.TrimSpace(stdout.String())
		}
		return nil, p.fail(stage, elapsed, truncate(diag), err)
	}

	metrics.ObserveStage(string(stage), elapsed, false)
	telemetry.Info("stage.complete", map[string]any{
		"stage":        stage,
		"duration_ms":  elapsed,
		"stdout_bytes": stdout.Len(),
	})
	return stdout.Bytes(), nil
}

func (p *Process) fail(stage Stage, elapsed float64, diag string, err error) error {
	metrics.ObserveStage(string(stage), elapsed, true)
	telemetry.Warn("stage.failed", map[string]any{
		"stage":       stage,
		"duration_ms": elapsed,
		"error":       err.Error(),
		"diagnostic":  diag,
	})
	return NewStageError(stage, diag, err)
}

func truncate(s string) string {
	if len(s) <= maxDiagnostic {
		return s
	}
	return s[:maxDiagnostic] + "...(truncated)"
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
