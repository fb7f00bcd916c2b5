package jobs

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-wizard/internal/gateway"
	"resume-wizard/internal/shared/server/middleware"
	"resume-wizard/internal/shared/server/respond"
	"resume-wizard/internal/shared/telemetry"
)

const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the jobs service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches job routes to the router group. Mutating routes run behind
// the given middleware (rate limiting in production).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mutating ...gin.HandlerFunc) {
	rg.POST("/upload", append(mutating, h.upload)...)
	rg.POST("/generate", append(mutating, h.generate)...)
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/:id", h.get)
	rg.GET("/download/:id/:format", h.download)
	rg.GET("/preview/:id", h.preview)
}

func (h *Handler) upload(c *gin.Context) {
	if h.Svc.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.Svc.MaxUploadBytes+multipartOverhead)
	}

	resume, closeResume, err := formFile(c, "resume")
	if err != nil {
		writeUploadError(c, err)
		return
	}
	defer closeResume()
	jd, closeJD, err := formFile(c, "jobDescription")
	if err != nil {
		writeUploadError(c, err)
		return
	}
	defer closeJD()

	result, err := h.Svc.Upload(c.Request.Context(), UploadInput{
		Resume:             resume,
		JobDescriptionFile: jd,
		JobDescriptionText: c.PostForm("jobDescriptionText"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.JobIDKey, result.JobID)
	respond.OK(c, result)
}

// formFile opens an optional multipart file. A missing field yields a nil file.
func formFile(c *gin.Context, field string) (*UploadFile, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, err
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*UploadFile, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &UploadFile{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Size:      fh.Size,
		Body:      f,
	}, func() { _ = f.Close() }, nil
}

func writeUploadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respond.Error(c, http.StatusBadRequest, "validation_error", "upload exceeds the size limit")
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid multipart upload")
	}
}

type generateRequest struct {
	JobID    string `json:"jobId"`
	Mode     string `json:"mode"`
	Template string `json:"template"`
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	req.JobID = strings.TrimSpace(req.JobID)
	if req.JobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "jobId is required")
		return
	}
	c.Set(middleware.JobIDKey, req.JobID)

	result, err := h.Svc.Generate(c.Request.Context(), GenerateInput{
		JobID:    req.JobID,
		Mode:     req.Mode,
		Template: req.Template,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, result)
}

func (h *Handler) list(c *gin.Context) {
	jobs, err := h.Svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, jobs)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.JobIDKey, id)
	job, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, job)
}

func (h *Handler) download(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.JobIDKey, id)
	doc, err := h.Svc.Download(c.Request.Context(), id, c.Param("format"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Attachment(c, doc.ContentType, doc.FileName, doc.Content)
}

func (h *Handler) preview(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.JobIDKey, id)
	html, err := h.Svc.Preview(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.HTML(c, html)
}

var stageMessages = map[gateway.Stage]string{
	gateway.StageExtract: "Could not read text from the uploaded file",
	gateway.StageParse:   "Could not parse the résumé",
	gateway.StageScore:   "Résumé generation failed",
	gateway.StageEnhance: "Résumé generation failed",
	gateway.StageFormat:  "Could not produce the document",
}

// writeError maps domain errors to HTTP responses. Stage diagnostics stay in the logs.
func writeError(c *gin.Context, err error) {
	var (
		ve *ValidationError
		se *gateway.StageError
	)
	switch {
	case errors.As(err, &ve):
		respond.Error(c, http.StatusBadRequest, "validation_error", ve.Message)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, ErrNotReady):
		respond.Error(c, http.StatusNotFound, "not_ready", "job has not completed generation")
	case errors.As(err, &se):
		telemetry.Error("stage.error", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"job_id":     c.GetString(middleware.JobIDKey),
			"stage":      se.Stage,
			"error":      err.Error(),
			"diagnostic": se.Diagnostic,
		})
		respond.Error(c, http.StatusInternalServerError, "stage_failed", stageMessages[se.Stage])
	default:
		telemetry.Error("jobs.internal_error", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
