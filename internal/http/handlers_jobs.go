// Package httpx provides the HTTP API for submitting title-doctor jobs and
// following their progress.
package httpx

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/target/title-doctor/internal/domain/model"
	apperrors "github.com/target/title-doctor/internal/errors"
	"github.com/target/title-doctor/internal/service"
)

const defaultWait = 30 * time.Second

// JobHandlers provides HTTP handlers for job submission and lookup.
type JobHandlers struct {
	Submissions *service.SubmissionService
	States      *service.JobStateService
	MaxWait     time.Duration
	Logger      *slog.Logger
}

// Submit accepts a channel and notification address and queues a job.
func (h *JobHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Submissions.Submit(r.Context(), req)
	if err != nil {
		h.logFailure(r, "submit job", err)
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, res)
}

// GetJob returns the current job record.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.States.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logFailure(r, "get job", err)
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// WaitJob long-polls until the job is terminal or the wait elapses, then
// returns the latest record.
func (h *JobHandlers) WaitJob(w http.ResponseWriter, r *http.Request) {
	wait, err := parseWait(r.URL.Query().Get("timeout"), h.maxWait())
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	job, err := h.States.Wait(r.Context(), chi.URLParam(r, "id"), wait)
	if err != nil {
		h.logFailure(r, "wait for job", err)
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

func (h *JobHandlers) maxWait() time.Duration {
	if h.MaxWait <= 0 {
		return time.Minute
	}
	return h.MaxWait
}

// logFailure logs unexpected errors; client errors are not worth a log line.
func (h *JobHandlers) logFailure(r *http.Request, op string, err error) {
	if h.Logger == nil || apperrors.IsValidation(err) || apperrors.IsNotFound(err) {
		return
	}
	h.Logger.ErrorContext(r.Context(), op+" failed", "error", err, "path", r.URL.Path)
}

// parseWait accepts a Go duration ("30s") or a number of seconds ("30").
func parseWait(raw string, limit time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return min(defaultWait, limit), nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, apperrors.ValidationField("timeout", "Invalid timeout")
		}
		d = time.Duration(secs) * time.Second
	}
	if d < 0 {
		return 0, apperrors.ValidationField("timeout", "Invalid timeout")
	}
	return min(d, limit), nil
}
