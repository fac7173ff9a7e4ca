package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"clipper/internal/jobs"
	"clipper/internal/logging"
	"clipper/internal/orchestrator"
	"clipper/internal/services"
	"clipper/internal/transcript"
)

// maxUploadBytes bounds request bodies: cookie files and job submissions are
// both small text payloads.
const maxUploadBytes = 4 << 20

// Processor accepts thread submissions and reports job status.
type Processor interface {
	Submit(ctx context.Context, req orchestrator.Request) (*jobs.Job, error)
	Status(ctx context.Context, jobID string) (*jobs.Job, error)
}

// ClipCutter cuts one clip synchronously.
type ClipCutter interface {
	CutClip(ctx context.Context, sessionID, videoURL, videoID string, start, end float64) (string, error)
}

// CredentialSaver stores uploaded cookie blobs.
type CredentialSaver interface {
	Save(blob []byte) (string, error)
}

// HealthReporter describes daemon health for the health endpoint.
type HealthReporter interface {
	Health(ctx context.Context) map[string]any
}

func (r *Router) submitJob(w http.ResponseWriter, req *http.Request) {
	var submission orchestrator.Request
	if err := json.NewDecoder(io.LimitReader(req.Body, maxUploadBytes)).Decode(&submission); err != nil {
		r.writeError(w, services.Wrap(services.ErrInput, "api", "submit", "invalid request body", err))
		return
	}

	job, err := r.processor.Submit(req.Context(), submission)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusAccepted, job)
}

func (r *Router) getJob(w http.ResponseWriter, req *http.Request) {
	jobID := mux.Vars(req)["id"]
	job, err := r.processor.Status(req.Context(), jobID)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if job == nil {
		r.writeError(w, services.Wrap(services.ErrNotFound, "api", "status",
			fmt.Sprintf("job %s not found or expired", jobID), nil))
		return
	}
	r.writeJSON(w, http.StatusOK, job)
}

type clipRequest struct {
	VideoURL  string  `json:"video_url"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SessionID string  `json:"session_id,omitempty"`
}

// cutClip validates the span before any network work, cuts the clip, and
// streams the file back.
func (r *Router) cutClip(w http.ResponseWriter, req *http.Request) {
	var body clipRequest
	if err := json.NewDecoder(io.LimitReader(req.Body, maxUploadBytes)).Decode(&body); err != nil {
		r.writeError(w, services.Wrap(services.ErrInput, "api", "clip", "invalid request body", err))
		return
	}
	if body.Start < 0 || body.End <= body.Start {
		r.writeError(w, services.Wrap(services.ErrInput, "api", "clip",
			fmt.Sprintf("invalid span: start=%.2f end=%.2f", body.Start, body.End), nil))
		return
	}
	video, err := transcript.ParseVideoRef(0, body.VideoURL)
	if err != nil {
		r.writeError(w, err)
		return
	}

	clipPath, err := r.clips.CutClip(req.Context(), body.SessionID, video.URL, video.ID, body.Start, body.End)
	if err != nil {
		r.writeError(w, err)
		return
	}

	file, err := os.Open(clipPath)
	if err != nil {
		r.writeError(w, services.Wrap(services.ErrRetrieval, "api", "clip", "open clip file", err))
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(clipPath)))
	if _, err := io.Copy(w, file); err != nil {
		r.logger.Warn("clip streaming interrupted", logging.Error(err))
	}
}

type credentialResponse struct {
	SessionID string `json:"session_id"`
}

// uploadCredentials accepts cookies either as a multipart file field named
// "cookies" or as a raw request body.
func (r *Router) uploadCredentials(w http.ResponseWriter, req *http.Request) {
	blob, err := readCredentialBlob(req)
	if err != nil {
		r.writeError(w, err)
		return
	}

	sessionID, err := r.creds.Save(blob)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusCreated, credentialResponse{SessionID: sessionID})
}

func readCredentialBlob(req *http.Request) ([]byte, error) {
	contentType := req.Header.Get("Content-Type")
	if len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, services.Wrap(services.ErrInput, "api", "credentials", "invalid multipart form", err)
		}
		file, _, err := req.FormFile("cookies")
		if err != nil {
			return nil, services.Wrap(services.ErrInput, "api", "credentials", "missing cookies file field", err)
		}
		defer file.Close()
		blob, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return nil, services.Wrap(services.ErrInput, "api", "credentials", "read cookies upload", err)
		}
		return blob, nil
	}

	blob, err := io.ReadAll(io.LimitReader(req.Body, maxUploadBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "api", "credentials", "read request body", err)
	}
	return blob, nil
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := map[string]any{"status": "ok"}
	if r.health != nil {
		for key, value := range r.health.Health(req.Context()) {
			status[key] = value
		}
	}
	r.writeJSON(w, http.StatusOK, status)
}
