package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgallion1/docweave/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// handleSubmitJob queues a weave. The source comes either as a multipart
// "file" upload or as a JSON body like /api/weave takes.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var filename, dialectName string
	var data []byte

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		// Limit total request size.
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err = io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
		if err != nil {
			jsonError(w, "failed to read file", http.StatusInternalServerError)
			return
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		filename = sanitizeFilename(header.Filename)
		dialectName = r.FormValue("dialect")
	} else {
		var req weaveRequest
		if !s.decode(w, r, &req) {
			return
		}
		data = []byte(req.Source)
		filename = requestFilename(req.Filename)
		dialectName = req.Dialect
	}

	if len(data) == 0 {
		jsonError(w, "source is required", http.StatusBadRequest)
		return
	}
	if dialectName != "" {
		if _, err := s.orchestrator.Registry().Lookup(dialectName); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	job := pipeline.NewJob(filename, dialectName, data)
	if err := s.orchestrator.Submit(job); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), code)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleJobOutput returns the woven document as an attachment.
func (s *Server) handleJobOutput(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	name, text, ok := job.Output()
	if !ok {
		snap := job.Snapshot()
		if snap.Status == pipeline.StatusFailed {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":  "job failed",
				"errors": snap.Progress.Errors,
			})
			return
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "job has not finished",
			"status": snap.Status,
		})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	io.WriteString(w, text)
}

// handleJobFigure serves a saved figure. Woven job output references
// figures as figures/<name>, relative to the output URL.
func (s *Server) handleJobFigure(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	path, ok := job.FigurePath(chi.URLParam(r, "name"))
	if !ok {
		jsonError(w, "figure not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}
