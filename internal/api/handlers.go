package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nexgsol/hmva/internal/config"
	"github.com/nexgsol/hmva/internal/db"
	"github.com/nexgsol/hmva/internal/models"
	"github.com/nexgsol/hmva/internal/queue"
	"github.com/nexgsol/hmva/internal/script"
	"github.com/xuri/excelize/v2"
)

const previewRowCap = 20

type Handler struct {
	cfg       *config.Config
	db        *db.DB
	queue     *queue.Queue
	generator *script.Generator
}

func NewHandler(cfg *config.Config, database *db.DB, q *queue.Queue, generator *script.Generator) *Handler {
	return &Handler{
		cfg:       cfg,
		db:        database,
		queue:     q,
		generator: generator,
	}
}

// CreateParagraphJob accepts a batch job either as a multipart upload
// (local file mode) or a JSON descriptor pointing at a published sheet
// (remote sheet mode), records it PENDING and enqueues it. Responds 202;
// clients poll GET /v1/paragraph-jobs/{id}.
func (h *Handler) CreateParagraphJob(w http.ResponseWriter, r *http.Request) {
	jobID := uuid.New()

	job := &models.JobRun{
		JobID:     jobID,
		State:     models.JobStatePending,
		BatchSize: h.cfg.DefaultBatchSize,
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := h.fillLocalFileJob(r, job); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		var req models.CreateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if req.SheetURL == "" {
			respondError(w, http.StatusBadRequest, "sheet_url is required for remote sheet jobs")
			return
		}
		if req.BatchSize < 0 {
			respondError(w, http.StatusBadRequest, "batch_size must be positive")
			return
		}
		job.Mode = models.JobModeRemoteSheet
		job.SheetURL = req.SheetURL
		job.SheetID = req.SheetID
		job.SheetName = req.SheetName
		if req.BatchSize > 0 {
			job.BatchSize = req.BatchSize
		}
	}

	job.OutputPath = filepath.Join(h.cfg.ResultsDir, fmt.Sprintf("%s.xlsx", jobID))
	job.DownloadURL = fmt.Sprintf("/v1/paragraph-jobs/%s/download", jobID)

	if err := h.db.GetOrCreateJob(r.Context(), job); err != nil {
		log.Printf("[API] Failed to create job: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	if err := h.queue.EnqueueGenerateParagraphs(r.Context(), job.JobID); err != nil {
		log.Printf("[API] Failed to enqueue job %s: %v", job.JobID, err)
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateJobResponse{
		JobID:  job.JobID,
		Status: "queued",
		Mode:   job.Mode,
	})
}

func (h *Handler) fillLocalFileJob(r *http.Request, job *models.JobRun) error {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return fmt.Errorf("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return fmt.Errorf("file is required for local jobs")
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".xlsx" {
		return fmt.Errorf("only .xlsx uploads are supported")
	}

	if v := r.FormValue("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("batch_size must be positive")
		}
		job.BatchSize = n
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to prepare upload directory")
	}

	dstPath := filepath.Join(h.cfg.UploadDir, fmt.Sprintf("%s.xlsx", job.JobID))
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to store upload")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("failed to store upload")
	}

	job.Mode = models.JobModeLocalFile
	job.SourcePath = dstPath
	job.SheetName = r.FormValue("sheet")
	return nil
}

// ListParagraphJobs returns recent jobs, newest first.
func (h *Handler) ListParagraphJobs(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	jobs, err := h.db.ListJobs(r.Context(), limit)
	if err != nil {
		log.Printf("[API] Failed to list jobs: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	resp := models.ListJobsResponse{Jobs: make([]models.JobStatusResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, jobStatusResponse(&j))
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetParagraphJob reports the job record. The database row is the single
// source of truth; the queue is never consulted.
func (h *Handler) GetParagraphJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, jobStatusResponse(job))
}

// PreviewParagraphJob parses the artifact and returns up to previewRowCap
// result rows plus the download link.
func (h *Handler) PreviewParagraphJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	if job.OutputPath == "" {
		respondError(w, http.StatusNotFound, "No results file for this job yet")
		return
	}

	results, total, err := readArtifact(job.OutputPath, previewRowCap)
	if err != nil {
		if os.IsNotExist(err) {
			respondError(w, http.StatusNotFound, "No results file for this job yet")
			return
		}
		log.Printf("[API] Failed to read artifact for job %s: %v", job.JobID, err)
		respondError(w, http.StatusInternalServerError, "Failed to read results file")
		return
	}

	respondJSON(w, http.StatusOK, models.JobPreviewResponse{
		JobID:       job.JobID,
		Rows:        results,
		Total:       total,
		Truncated:   total > len(results),
		DownloadURL: job.DownloadURL,
	})
}

// DownloadParagraphJob streams the result workbook.
func (h *Handler) DownloadParagraphJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	if job.OutputPath == "" {
		respondError(w, http.StatusNotFound, "No results file for this job yet")
		return
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		respondError(w, http.StatusNotFound, "No results file for this job yet")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("results_%s.xlsx", job.JobID)))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, job.OutputPath)
}

// GenerateParagraph produces one paragraph + SSML synchronously.
func (h *Handler) GenerateParagraph(w http.ResponseWriter, r *http.Request) {
	var req models.ParagraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Icon == "" {
		respondError(w, http.StatusBadRequest, "icon is required")
		return
	}

	result, err := h.generator.ProcessRow(r.Context(), models.Row{
		Number:   0,
		Icon:     req.Icon,
		Category: req.Category,
		Notes:    req.Notes,
	})
	if err != nil {
		log.Printf("[API] Paragraph generation failed: %v", err)
		respondError(w, http.StatusBadGateway, "Paragraph generation failed")
		return
	}

	respondJSON(w, http.StatusOK, models.ParagraphResponse{
		Paragraph: result.Paragraph,
		SSML:      result.SSML,
	})
}

// CreateScriptRequest records a render request and enqueues it on the video
// pipeline.
func (h *Handler) CreateScriptRequest(w http.ResponseWriter, r *http.Request) {
	var body models.CreateScriptRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.IconOrTopic == "" {
		respondError(w, http.StatusBadRequest, "icon_or_topic is required")
		return
	}
	if body.Duration == "" {
		body.Duration = "30s"
	}

	req := &models.ScriptRequest{
		IconOrTopic: body.IconOrTopic,
		Notes:       body.Notes,
		Duration:    body.Duration,
		AvatarID:    body.AvatarID,
		VoiceID:     body.VoiceID,
	}
	if err := h.db.CreateRequest(r.Context(), req); err != nil {
		log.Printf("[API] Failed to create request: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create request")
		return
	}

	if err := h.queue.EnqueueRenderVideo(r.Context(), req.ID); err != nil {
		log.Printf("[API] Failed to enqueue request %s: %v", req.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to enqueue request")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateScriptRequestResponse{
		RequestID: req.ID,
		Status:    req.Status,
	})
}

// GetScriptRequest reports a render request record.
func (h *Handler) GetScriptRequest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	req, err := h.db.GetRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Request not found")
			return
		}
		log.Printf("[API] Failed to get request %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to get request")
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request) (*models.JobRun, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return nil, false
	}

	job, err := h.db.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Job not found")
			return nil, false
		}
		log.Printf("[API] Failed to get job %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to get job")
		return nil, false
	}
	return job, true
}

func jobStatusResponse(j *models.JobRun) models.JobStatusResponse {
	return models.JobStatusResponse{
		JobID:       j.JobID,
		State:       j.State,
		Mode:        j.Mode,
		Results:     j.OutputPath,
		DownloadURL: j.DownloadURL,
		Batches:     j.BatchCount,
		RowsWritten: j.RowsWritten,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// readArtifact loads at most limit result rows from the workbook and reports
// the total data-row count.
func readArtifact(path string, limit int) ([]models.RowResult, int, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, 0, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, 0, err
	}
	if len(rows) <= 1 {
		return []models.RowResult{}, 0, nil
	}

	data := rows[1:]
	out := make([]models.RowResult, 0, limit)
	for _, row := range data {
		if len(out) == limit {
			break
		}
		get := func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}
		num, _ := strconv.Atoi(get(0))
		out = append(out, models.RowResult{
			Number:    num,
			Icon:      get(1),
			Category:  get(2),
			Notes:     get(3),
			Paragraph: get(4),
			SSML:      get(5),
		})
	}
	return out, len(data), nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
