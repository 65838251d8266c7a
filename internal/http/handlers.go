package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"buchhaltung/internal/core"
	"buchhaltung/internal/dashboard"
	"buchhaltung/internal/log"
	"buchhaltung/internal/middleware/trace"
)

// sectionTemplates maps collapsible sections to their partial.
var sectionTemplates = map[dashboard.Section]string{
	dashboard.SectionReceipts:   "receipts",
	dashboard.SectionCostGroups: "cost_groups",
	dashboard.SectionHandovers:  "handovers",
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.probe == nil {
		checks["backend"] = "not_configured"
	} else if err := s.probes.Fetch("backend", func() error {
		_, err := s.probe.ListCostGroups(ctx)
		return err
	}); err != nil {
		checks["backend"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	checks["dashboard"] = s.dash.State().String()
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.ActiveClients(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeView renders the named template for the current view through b.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string) {
	body, err := s.render(name, s.dash.View())
	if err != nil {
		fields := log.NewFields().WithRequestID(trace.GetRequestID(r.Context()))
		fields["template"] = name
		s.audit.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender, fields)
		InternalServerError("Darstellung fehlgeschlagen").Write(w)
		return
	}
	b.BodyHTML(body).Write(w)
}

// handleIndex renders the whole page after a full reload of the collections.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Load(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Dashboard load failed", log.FieldError, err)
	}
	s.writeView(w, r, NewHTMXResponse(), "page")
}

// partial serves one dashboard section, loading the collections on first use.
func (s *Server) partial(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.dash.EnsureLoaded(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Dashboard load failed", log.FieldError, err)
		}
		s.writeView(w, r, NewHTMXResponse(), name)
	}
}

// handleReceipts serves the receipt list; a kind query parameter changes the
// filter first.
func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query(); q.Has("kind") {
		s.dash.SetKindFilter(sanitizeInput(q.Get("kind")))
	}
	s.partial("receipts")(w, r)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	section := dashboard.Section(r.PathValue("section"))
	name, ok := sectionTemplates[section]
	if !ok {
		NotFoundError("Unbekannter Bereich").Write(w)
		return
	}
	s.dash.Toggle(section)
	s.writeView(w, r, NewHTMXResponse(), name)
}

// handleRetry reloads after a failure and tells every section to refresh.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	b := NewHTMXResponse().TriggerRefresh()
	if err := s.dash.Retry(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Dashboard reload failed", log.FieldError, err)
		b.TriggerNotify(dashboard.Notification{Kind: dashboard.NotifyError, Message: "Fehler beim Laden: " + err.Error()})
	}
	s.writeView(w, r, b, "status")
}

type chartData struct {
	State     string             `json:"state"`
	Summary   core.Summary       `json:"summary"`
	Breakdown []core.GroupTotal  `json:"breakdown"`
	Monthly   []core.SeriesPoint `json:"monthly"`
	Daily     []core.SeriesPoint `json:"daily"`
}

// handleChartData serves the aggregates as JSON for client-side charts.
func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.EnsureLoaded(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	v := s.dash.View()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chartData{
		State:     v.State.String(),
		Summary:   v.Summary,
		Breakdown: v.Breakdown,
		Monthly:   v.Monthly,
		Daily:     v.Daily,
	})
}
