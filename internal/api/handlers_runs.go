package api

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docverge/internal/parser"
	"github.com/dgallion1/docverge/internal/pipeline"
	"github.com/dgallion1/docverge/internal/report"
)

// handleCreateRun accepts a multipart upload of at least two revision
// files and queues a consolidation run over them.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	// Limit total request size, with headroom for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) < 2 {
		jsonError(w, fmt.Sprintf("at least 2 revision files are required, have %d", len(files)), http.StatusBadRequest)
		return
	}

	inputs := make([]pipeline.InputFile, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
			return
		}

		f, err := fh.Open()
		if err != nil {
			jsonError(w, "failed to open "+filename, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil {
			jsonError(w, "failed to read "+filename, http.StatusInternalServerError)
			return
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			jsonError(w, fmt.Sprintf("%s exceeds max size (%d bytes)", filename, s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		inputs = append(inputs, pipeline.InputFile{Filename: filename, Data: data})
	}

	over, err := parseOverrides(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	run := pipeline.NewRun(pipeline.NewRunID(), inputs)
	run.SetOverrides(over)
	if err := s.orchestrator.Submit(run); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":   run.ID,
		"status":   run.Snapshot().Status,
		"files":    len(inputs),
		"poll_url": fmt.Sprintf("/api/runs/%s/status", run.ID),
	})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	run := s.orchestrator.GetRun(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	snap := run.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":   snap.ID,
		"status":   snap.Status,
		"phase":    snap.Phase,
		"progress": snap.Progress,
	})
}

func (s *Server) handleRunTree(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runResult(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sections":   res.Hierarchy,
		"incomplete": res.Incomplete,
	})
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runResult(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res.Stats)
}

// handleRunReport serves the consolidation report, as HTML by default
// or as markdown when requested.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runResult(w, r)
	if !ok {
		return
	}

	wantMarkdown := r.URL.Query().Get("format") == "markdown" ||
		strings.Contains(r.Header.Get("Accept"), "text/markdown")
	if wantMarkdown {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, res.Report)
		return
	}

	html, err := report.HTML(res.Report)
	if err != nil {
		s.log.Error("report rendering failed", "error", err)
		jsonError(w, "report rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

// runResult resolves the run and its attached result, writing the
// error response when either is missing.
func (s *Server) runResult(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	run := s.orchestrator.GetRun(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return nil, false
	}
	res := run.Result()
	if res == nil {
		snap := run.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "run has no result",
			"status": snap.Status,
			"phase":  snap.Phase,
		})
		return nil, false
	}
	return res, true
}

// parseOverrides reads optional per-run threshold and weight form
// fields. Weights must be supplied as a complete set summing to 1.
func parseOverrides(r *http.Request) (*pipeline.Overrides, error) {
	over := &pipeline.Overrides{}
	present := false

	field := func(name string, dst **float64, min, max float64) error {
		v := r.FormValue(name)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: not a number", name)
		}
		if f < min || f > max {
			return fmt.Errorf("%s must be in [%g,%g]", name, min, max)
		}
		*dst = &f
		present = true
		return nil
	}

	for _, f := range []struct {
		name string
		dst  **float64
	}{
		{"heuristic_threshold", &over.HeuristicThreshold},
		{"global_threshold", &over.GlobalThreshold},
		{"bookmark_similarity_threshold", &over.BookmarkSimilarity},
		{"weight_name", &over.WeightName},
		{"weight_form", &over.WeightForm},
		{"weight_proximity", &over.WeightProximity},
	} {
		if err := field(f.name, f.dst, 0, 1); err != nil {
			return nil, err
		}
	}
	if !present {
		return nil, nil
	}

	weights := []*float64{over.WeightName, over.WeightForm, over.WeightProximity}
	given := 0
	sum := 0.0
	for _, w := range weights {
		if w != nil {
			given++
			sum += *w
		}
	}
	if given > 0 {
		if given != 3 {
			return nil, fmt.Errorf("weight overrides require all of weight_name, weight_form, weight_proximity")
		}
		if math.Abs(sum-1) > 1e-9 {
			return nil, fmt.Errorf("weight overrides must sum to 1, have %g", sum)
		}
	}
	return over, nil
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
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
