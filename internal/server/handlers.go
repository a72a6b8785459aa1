package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/randompersona1/ussplitter-server/internal/logging"
	"github.com/randompersona1/ussplitter-server/internal/queue"
	"github.com/randompersona1/ussplitter-server/internal/splitter"
)

// Response bodies existing clients match on.
const (
	msgNoAudio  = "No audio file provided"
	msgNoUUID   = "No uuid provided"
	msgNotFound = "Not found"
	msgSuccess  = "Success"
	msgFailed   = "Failed"
)

// Split admits a new job from a multipart upload. The optional model query
// parameter is recorded verbatim; resolution happens at processing time.
func (h *Handlers) Split(w http.ResponseWriter, r *http.Request) {
	audio, _, err := r.FormFile("audio")
	if err != nil {
		writeText(w, http.StatusBadRequest, msgNoAudio)
		return
	}
	defer audio.Close()

	model := r.URL.Query().Get("model")

	jobID, err := h.svc.Admit(r.Context(), model, audio)
	if err != nil {
		h.logger.Error("admission failed", logging.Error(err))
		writeText(w, http.StatusInternalServerError, "Failed to queue job")
		return
	}
	writeText(w, http.StatusOK, jobID)
}

// Status reports a job's lifecycle state by name. Unknown ids read as NONE.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("uuid")
	if jobID == "" {
		writeText(w, http.StatusBadRequest, msgNoUUID)
		return
	}

	status, err := h.svc.Status(r.Context(), jobID)
	if err != nil {
		h.logger.Error("status lookup failed", logging.Error(err))
		writeText(w, http.StatusInternalServerError, "Failed to read status")
		return
	}
	writeText(w, http.StatusOK, string(status))
}

// Vocals serves the vocals stem for a finished job.
func (h *Handlers) Vocals(w http.ResponseWriter, r *http.Request) {
	h.serveStem(w, r, h.svc.LocateVocals)
}

// Instrumental serves the non-vocals stem for a finished job.
func (h *Handlers) Instrumental(w http.ResponseWriter, r *http.Request) {
	h.serveStem(w, r, h.svc.LocateInstrumental)
}

func (h *Handlers) serveStem(w http.ResponseWriter, r *http.Request, locate func(ctx context.Context, jobID string) (string, error)) {
	jobID := r.URL.Query().Get("uuid")
	if jobID == "" {
		writeText(w, http.StatusBadRequest, msgNoUUID)
		return
	}

	path, err := locate(r.Context(), jobID)
	if err != nil {
		if isNotFound(err) {
			writeText(w, http.StatusNotFound, msgNotFound)
			return
		}
		h.logger.Error("stem lookup failed", logging.String("job_id", jobID), logging.Error(err))
		writeText(w, http.StatusInternalServerError, "Failed to locate result")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Cleanup removes one terminal job. In-flight and unknown jobs fail.
func (h *Handlers) Cleanup(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("uuid")
	if jobID == "" {
		writeText(w, http.StatusBadRequest, msgNoUUID)
		return
	}

	removed, err := h.svc.Cleanup(r.Context(), jobID)
	if err != nil {
		h.logger.Error("cleanup failed", logging.String("job_id", jobID), logging.Error(err))
	}
	if err != nil || !removed {
		writeText(w, http.StatusInternalServerError, msgFailed)
		return
	}
	writeText(w, http.StatusOK, msgSuccess)
}

// CleanupAll wipes everything unless any job is still in flight.
func (h *Handlers) CleanupAll(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.CleanupAll(r.Context())
	if err != nil {
		h.logger.Error("cleanup-all failed", logging.Error(err))
	}
	if err != nil || !removed {
		writeText(w, http.StatusInternalServerError, msgFailed)
		return
	}
	writeText(w, http.StatusOK, msgSuccess)
}

// Health reports liveness plus the queue histogram.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	histogram := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		histogram[string(status)] = stats[status]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"queue":  histogram,
	})
}

// Models lists the catalog model names and the configured default.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": h.defaultModel,
		"models":  h.catalog.Names(),
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, splitter.ErrNotFound)
}
