package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-wizard/internal/gateway/gatewaytest"
	"resume-wizard/internal/jobs"
	"resume-wizard/internal/shared/config"
	"resume-wizard/internal/users"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:            "test",
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
	}
}

func buildTestApp(t *testing.T, cfg config.Config) (*App, *gatewaytest.Fake) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fake := gatewaytest.New()
	fake.OutDir = t.TempDir()
	app, err := Build(cfg, WithGateway(fake))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app, fake
}

func uploadRequest(t *testing.T, resume, jdText string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if resume != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="resume"; filename="resume.txt"`)
		h.Set("Content-Type", "text/plain")
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write([]byte(resume))
	}
	if jdText != "" {
		_ = w.WriteField("jobDescriptionText", jdText)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(app *App, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	return resp
}

func postJSON(app *App, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return serve(app, req)
}

func get(app *App, path string) *httptest.ResponseRecorder {
	return serve(app, httptest.NewRequest(http.MethodGet, path, nil))
}

func uploadOK(t *testing.T, app *App) string {
	t.Helper()
	resp := serve(app, uploadRequest(t, "Jane Doe\nGo, Kubernetes and AWS", "Cloud platform engineer"))
	if resp.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil || out.JobID == "" {
		t.Fatalf("decode upload: %v (%s)", err, resp.Body.String())
	}
	return out.JobID
}

func TestBuildUsesMemoryReposWithoutDatabase(t *testing.T) {
	app, _ := buildTestApp(t, testConfig(t))
	if app.DB != nil {
		t.Fatalf("expected no database")
	}
	if _, ok := app.JobsRepo.(*jobs.MemoryRepo); !ok {
		t.Fatalf("expected memory jobs repo, got %T", app.JobsRepo)
	}
	if _, ok := app.UsersRepo.(*users.MemoryRepo); !ok {
		t.Fatalf("expected memory users repo, got %T", app.UsersRepo)
	}
	if app.RateLimiter != nil {
		t.Fatalf("expected rate limiting disabled when RateLimitRPS is zero")
	}
	if _, err := app.UsersService.Register(context.Background(), testUser()); err != nil {
		t.Fatalf("register user: %v", err)
	}
}

func testUser() users.User {
	return users.User{ID: "user-1", Email: "jane@example.com", FullName: "Jane Doe"}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	if _, err := Build(cfg, WithGateway(gatewaytest.New())); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestHappyPathUploadGenerateDownloadPreview(t *testing.T) {
	app, fake := buildTestApp(t, testConfig(t))
	id := uploadOK(t, app)

	resp := postJSON(app, "/api/generate", fmt.Sprintf(`{"jobId":%q,"mode":"template","template":"creative"}`, id))
	if resp.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}

	job := get(app, "/api/jobs/"+id)
	var record struct {
		Status           string `json:"status"`
		SelectedTemplate string `json:"selectedTemplate"`
		MatchScore       int    `json:"matchScore"`
		EnhancedContent  string `json:"enhancedContent"`
	}
	if err := json.Unmarshal(job.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if record.Status != "completed" || record.SelectedTemplate != "creative" || record.MatchScore != 75 || record.EnhancedContent == "" {
		t.Fatalf("unexpected job %+v", record)
	}

	dl := get(app, "/api/download/"+id+"/docx")
	if dl.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", dl.Code)
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, "resume_"+id+".docx") {
		t.Fatalf("unexpected disposition %q", cd)
	}

	pv := get(app, "/api/preview/"+id)
	if pv.Code != http.StatusOK || !strings.Contains(pv.Body.String(), `data-template="creative"`) {
		t.Fatalf("unexpected preview %d %s", pv.Code, pv.Body.String())
	}
	if fake.FormatCalls.Load() != 2 {
		t.Fatalf("expected 2 format calls, got %d", fake.FormatCalls.Load())
	}
}

func TestUploadWithoutJobDescriptionCreatesNothing(t *testing.T) {
	app, fake := buildTestApp(t, testConfig(t))

	resp := serve(app, uploadRequest(t, "Jane Doe", ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	list := get(app, "/api/jobs")
	if strings.TrimSpace(list.Body.String()) != "[]" {
		t.Fatalf("expected empty job list, got %s", list.Body.String())
	}
	if fake.ParseCalls.Load() != 0 {
		t.Fatalf("expected parser not invoked")
	}
}

func TestGenerateUnknownJobReturnsNotFound(t *testing.T) {
	app, fake := buildTestApp(t, testConfig(t))

	resp := postJSON(app, "/api/generate", `{"jobId":"8b7f4f0c-0000-0000-0000-000000000000","mode":"template","template":"modern"}`)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if fake.ScoreCalls.Load() != 0 || fake.EnhanceCalls.Load() != 0 {
		t.Fatalf("expected no stage calls")
	}
}

func TestDownloadBeforeGenerateIsNotReady(t *testing.T) {
	app, fake := buildTestApp(t, testConfig(t))
	id := uploadOK(t, app)

	for _, path := range []string{"/api/download/" + id + "/pdf", "/api/preview/" + id} {
		resp := get(app, path)
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.Code)
		}
		if !strings.Contains(resp.Body.String(), `"not_ready"`) {
			t.Fatalf("%s: expected not_ready code, got %s", path, resp.Body.String())
		}
	}
	if fake.FormatCalls.Load() != 0 {
		t.Fatalf("expected no format calls before completion")
	}
}

func TestConcurrentGenerateLeavesCoherentRecord(t *testing.T) {
	app, _ := buildTestApp(t, testConfig(t))
	id := uploadOK(t, app)

	templates := []string{"modern", "classic", "creative", "executive"}
	var wg sync.WaitGroup
	for _, tmpl := range templates {
		wg.Add(1)
		go func(tmpl string) {
			defer wg.Done()
			resp := postJSON(app, "/api/generate", fmt.Sprintf(`{"jobId":%q,"mode":"template","template":%q}`, id, tmpl))
			if resp.Code != http.StatusOK {
				t.Errorf("generate %s: expected 200, got %d", tmpl, resp.Code)
			}
		}(tmpl)
	}
	wg.Wait()

	var record struct {
		Status           string  `json:"status"`
		SelectedTemplate *string `json:"selectedTemplate"`
		MatchScore       *int    `json:"matchScore"`
		EnhancedContent  *string `json:"enhancedContent"`
		ErrorCode        *string `json:"errorCode"`
	}
	if err := json.Unmarshal(get(app, "/api/jobs/"+id).Body.Bytes(), &record); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if record.Status != "completed" || record.SelectedTemplate == nil || record.MatchScore == nil || record.EnhancedContent == nil || record.ErrorCode != nil {
		t.Fatalf("expected coherent completed record, got %+v", record)
	}
	found := false
	for _, tmpl := range templates {
		if *record.SelectedTemplate == tmpl {
			found = true
		}
	}
	if !found {
		t.Fatalf("unexpected template %q", *record.SelectedTemplate)
	}
}

func TestMutatingRoutesAreRateLimited(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitRPS = 1
	app, _ := buildTestApp(t, cfg)

	var limited int
	for i := 0; i < 5; i++ {
		resp := postJSON(app, "/api/generate", `{"jobId":"missing","mode":"preserve"}`)
		if resp.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Fatalf("expected some requests to be rate limited")
	}
	for i := 0; i < 5; i++ {
		if resp := get(app, "/api/jobs"); resp.Code != http.StatusOK {
			t.Fatalf("expected reads to bypass rate limit, got %d", resp.Code)
		}
	}
}

func TestRateLimitDisabledFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "0")
	cfg := config.Load()
	cfg.Env = "test"
	cfg.DatabaseURL = ""
	cfg.UploadDir = t.TempDir()
	app, _ := buildTestApp(t, cfg)

	if app.RateLimiter != nil {
		t.Fatalf("expected no rate limiter when RATE_LIMIT_RPS=0")
	}
	for i := 0; i < 20; i++ {
		resp := postJSON(app, "/api/generate", `{"jobId":"missing","mode":"preserve"}`)
		if resp.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d was rate limited with limiting disabled", i)
		}
	}
}
