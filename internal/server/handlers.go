package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/docfill/internal/docerr"
	"github.com/hyperjump/docfill/internal/models"
	"github.com/hyperjump/docfill/internal/pipeline"
	"github.com/hyperjump/docfill/internal/placeholder"
	"github.com/hyperjump/docfill/internal/storage"
)

const codeBadRequest = "BAD_REQUEST"

// templateRequest names the template by server-side path or inline bytes
// (base64 in JSON).
type templateRequest struct {
	TemplatePath string          `json:"template_path,omitempty"`
	Template     []byte          `json:"template,omitempty"`
	TemplateName string          `json:"template_name,omitempty"`
	Values       models.ValueMap `json:"values,omitempty"`
	Format       string          `json:"format,omitempty"`
	OutputPath   string          `json:"output_path,omitempty"`
}

func (req *templateRequest) source() pipeline.Source {
	return pipeline.Source{Path: req.TemplatePath, Name: req.TemplateName, Data: req.Template}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*templateRequest, bool) {
	var req templateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return nil, false
	}
	if req.TemplatePath == "" && len(req.Template) == 0 {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, "template_path or template is required")
		return nil, false
	}
	return &req, true
}

func (s *Server) handlePlaceholders(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	names, err := s.svc.ExtractPlaceholders(r.Context(), req.source())
	if err != nil {
		s.fail(w, "extract placeholders", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "placeholders": names})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	p, err := s.svc.RenderPreview(r.Context(), req.source(), req.Values)
	if err != nil {
		s.fail(w, "preview", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"document":     p.Document,
		"text":         p.Text,
		"placeholders": p.Placeholders,
		"unresolved":   p.Unresolved,
		"unused":       nonNil(placeholder.Unused(p.Placeholders, req.Values)),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	format, err := models.ParseFormat(req.Format)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	dest, err := s.outputPath(req.OutputPath)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	s.logger.Debug("export request",
		zap.String("template", req.TemplatePath),
		zap.String("format", string(format)),
		zap.Int("values", len(req.Values)),
	)
	rec, err := s.svc.RenderAndExport(r.Context(), req.source(), req.Values, format, dest)
	if err != nil {
		s.fail(w, "export", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"file_path": rec.OutputPath,
		"run":       rec,
		"unused":    nonNil(placeholder.Unused(rec.Placeholders, req.Values)),
	})
}

// outputPath resolves a client-supplied output_path inside the service's
// output directory. An empty path selects the default output name.
func (s *Server) outputPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("output_path must be relative to the output directory: %q", p)
	}
	clean := filepath.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output_path escapes the output directory: %q", p)
	}
	return filepath.Join(s.svc.OutputDir(), clean), nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	offset, err1 := queryInt(r, "offset")
	limit, err2 := queryInt(r, "limit")
	if err := errors.Join(err1, err2); err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	runs, err := s.svc.History(r.Context(), offset, limit)
	if err != nil {
		s.fail(w, "list runs", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.svc.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "run not found")
		return
	}
	if err != nil {
		s.fail(w, "get run", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "run": run})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context(), s.command)
	if err != nil {
		s.fail(w, "status", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":             true,
		"status":              st,
		"converter_available": st.ConverterAvailable(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

// fail maps a pipeline error to a status code and its stable error code.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	kind := docerr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case docerr.KindMalformedTemplate, docerr.KindRender:
		status = http.StatusUnprocessableEntity
	case docerr.KindConversionUnavailable:
		status = http.StatusServiceUnavailable
	case docerr.KindInvalidState:
		status = http.StatusConflict
	case docerr.KindIO:
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondError(w, status, kind.Code(), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, map[string]interface{}{"success": false, "error": message, "code": code})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
