package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docweave/internal/chunker"
	"github.com/dgallion1/docweave/internal/dialect"
	"github.com/dgallion1/docweave/internal/doctree"
	"github.com/dgallion1/docweave/internal/engine"
	"github.com/dgallion1/docweave/internal/pipeline"
	"github.com/dgallion1/docweave/internal/weave"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/lo"
)

type weaveRequest struct {
	Source   string `json:"source"`
	Filename string `json:"filename"`
	Dialect  string `json:"dialect"`
}

// handleWeave weaves a document synchronously. Figures are written to a
// scratch directory that is removed once the response is sent, and are
// referenced as figures/<name>; submit a job to fetch them.
func (s *Server) handleWeave(w http.ResponseWriter, r *http.Request) {
	var req weaveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		jsonError(w, "source is required", http.StatusBadRequest)
		return
	}

	dir, err := os.MkdirTemp(s.cfg.WorkDir, "docweave-sync-")
	if err != nil {
		jsonError(w, "failed to create work directory", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	log := s.log.With("request_id", middleware.GetReqID(r.Context()))
	opts := pipeline.DocumentOptions(s.orchestrator.WeaveConfig(), s.orchestrator.Registry(), io.Discard, log)
	if req.Dialect != "" {
		opts.Dialect = req.Dialect
	}
	opts.FigDir = filepath.Join(dir, "figures")

	doc := weave.FromString(requestFilename(req.Filename), req.Source, opts)
	out, err := doc.Render(r.Context())
	if err != nil {
		weaveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"output":  pipeline.RelativeFigures(out, opts.FigDir),
		"dialect": doc.Dialect().Name,
		"chunks":  countCode(doc.Chunks()),
	})
}

func (s *Server) handleTangle(w http.ResponseWriter, r *http.Request) {
	var req weaveRequest
	if !s.decode(w, r, &req) {
		return
	}

	doc := weave.FromString(requestFilename(req.Filename), req.Source, weave.Options{
		Registry: s.orchestrator.Registry(),
		Logger:   s.log,
		Stdout:   io.Discard,
	})
	code, err := doc.TangleText()
	if err != nil {
		weaveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":   code,
		"chunks": countCode(doc.Chunks()),
	})
}

// decode reads a JSON body of at most MaxUploadBytes into v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// weaveError maps document errors onto status codes: bad requests for
// anything wrong with the source or dialect, 422 for code that failed.
func weaveError(w http.ResponseWriter, err error) {
	var optErr *chunker.OptionError
	var execErr *engine.ExecError
	switch {
	case errors.Is(err, dialect.ErrUnknownDialect), errors.As(err, &optErr):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &execErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": execErr.Err.Error(),
			"chunk": execErr.Chunk,
			"line":  execErr.Line,
		})
	default:
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	}
}

func countCode(chunks []doctree.Chunk) int {
	return lo.CountBy(chunks, func(c doctree.Chunk) bool { return c.IsCode() })
}

func requestFilename(name string) string {
	if name == "" {
		return ""
	}
	return sanitizeFilename(name)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
