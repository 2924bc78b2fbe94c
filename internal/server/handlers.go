package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/conneroisu/folio/internal/images"
	"github.com/conneroisu/folio/internal/pipeline"
	"github.com/conneroisu/folio/internal/renderer"
	"github.com/conneroisu/folio/internal/version"
)

// DiagnosticView is the JSON form of one diagnostic.
type DiagnosticView struct {
	Kind    string                 `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Start   *int                   `json:"start,omitempty"`
	End     *int                   `json:"end,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// DiagnosticsResponse is served at /api/diagnostics.
type DiagnosticsResponse struct {
	Generation  uint64             `json:"generation"`
	Components  int                `json:"components"`
	Images      images.MatchStatus `json:"images"`
	Diagnostics []DiagnosticView   `json:"diagnostics"`
	Duration    string             `json:"duration"`
}

func (s *PreviewServer) latest(r *http.Request) *pipeline.Result {
	if result := s.session.Latest(); result != nil {
		return result
	}
	return s.session.Flush(r.Context())
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result := s.latest(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(renderer.LiveDocument(s.config.Render.Title, result.Output))); err != nil {
		s.logger.Debug(r.Context(), "failed to write page", "error", err)
	}
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var generation uint64
	if latest := s.session.Latest(); latest != nil {
		generation = latest.Generation
	}

	health := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"server":   map[string]interface{}{"status": "healthy", "clients": s.ClientCount()},
			"pipeline": map[string]interface{}{"status": "healthy", "generation": generation},
			"images":   map[string]interface{}{"status": "healthy", "count": s.session.Images().Len()},
		},
	}

	s.writeJSON(w, r, health)
}

func (s *PreviewServer) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result := s.latest(r)
	response := DiagnosticsResponse{
		Generation:  result.Generation,
		Components:  result.Components.Len(),
		Images:      result.Images,
		Diagnostics: make([]DiagnosticView, 0, len(result.Diagnostics)),
		Duration:    result.Duration.String(),
	}
	for _, d := range result.Diagnostics {
		view := DiagnosticView{Kind: string(d.Kind), Code: d.Code, Message: d.Message, Context: d.Context}
		if d.Span != nil {
			start, end := d.Span.Start, d.Span.End
			view.Start, view.End = &start, &end
		}
		response.Diagnostics = append(response.Diagnostics, view)
	}

	s.writeJSON(w, r, response)
}

func (s *PreviewServer) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode response")
	}
}
