package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/gifforge/gifforge/internal/gif"
	"github.com/gifforge/gifforge/internal/job"
	"github.com/gifforge/gifforge/internal/session"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.EncodeService
	sessions           *session.Manager
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing. Used by tests.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.EncodeService, sessions *session.Manager, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		sessions:           sessions,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Engine: "unknown"}
	if h.sessions != nil {
		resp.Engine = h.sessions.State().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateJob handles POST /jobs requests: it accepts an encode request,
// creates a job and starts the encode in the background.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	source, err := base64.StdEncoding.DecodeString(req.VideoBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "video_base64 is not valid base64", "VALIDATION_ERROR")
		return
	}

	input := job.EncodeInput{
		Request: gif.Request{
			Source:            source,
			StartSec:          req.StartSec,
			EndSec:            req.EndSec,
			FPS:               req.FPS,
			Width:             req.Width,
			Loop:              req.Loop,
			Quality:           gif.Quality(req.Quality),
			SourceDurationSec: req.SourceDurationSec,
		},
		PushToS3: req.PushToS3,
	}

	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Encode in the background with a detached context so the request
	// ending does not cancel it.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string, inp job.EncodeInput) {
			if _, processErr := h.service.ProcessExistingJob(ctx, jobID, inp); processErr != nil {
				h.logger.Error("background encode failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID, input)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("fps", req.FPS),
		slog.Int("width", req.Width),
		slog.String("quality", req.Quality),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := JobResponse{
		ID:        foundJob.ID,
		Status:    string(foundJob.Status),
		Progress:  foundJob.Progress,
		Stage:     foundJob.Stage,
		ErrorKind: foundJob.ErrorKind,
		Error:     foundJob.Error,
	}

	if foundJob.Status == job.StatusCompleted {
		if foundJob.PushToS3 && foundJob.GIFURL != "" {
			resp.GifURL = foundJob.GIFURL
		} else if foundJob.OutputPath != "" {
			gifData, err := os.ReadFile(foundJob.OutputPath)
			if err != nil {
				h.logger.Error("failed to read output gif",
					slog.String("job_id", jobID),
					slog.String("path", foundJob.OutputPath),
					slog.String("error", err.Error()),
				)
				// Don't fail the request, just log and omit the payload
			} else {
				resp.GifBase64 = base64.StdEncoding.EncodeToString(gifData)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// AbandonJob handles DELETE /jobs/{id} requests. Abandoning means "stop
// listening for this job's result"; a pass the engine already started is
// not interrupted.
func (h *Handlers) AbandonJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	abandonedJob, err := h.service.AbandonJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to abandon job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to abandon job", "JOB_ABANDON_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, JobResponse{
		ID:       abandonedJob.ID,
		Status:   string(abandonedJob.Status),
		Progress: abandonedJob.Progress,
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
