package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"emicalc/internal/chart"
	"emicalc/internal/core"
	applog "emicalc/internal/log"
)

const readyTimeout = 5 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
		"requests": map[string]int64{
			"total":           tm.TotalRequests,
			"avg_response_us": tm.AverageResponseTime,
			"server_errors":   tm.ServerErrors,
			"rate_limited":    s.rateLimiter.GetMetrics().TotalHits,
			"suspicious":      s.detector.GetMetrics().SuspiciousRequests,
		},
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for name, check := range s.ready {
		if err := check(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			s.logger.WarnContext(ctx, "Readiness check failed", "check", name, applog.FieldError, err)
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{"status": status, "checks": checks})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	id := sessionID(w, r, s.sessionTTL)
	snap, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.sessionError(w, r, id, err)
		return
	}

	view := newCalculatorView(snap, s.sessions.Limits())
	view.Chart = s.renderChart(r.Context(), snap)
	s.render(w, r, "index.html", view, NewHTMXResponse())
}

// handleCalculator renders the calculator panel partial.
func (s *Server) handleCalculator(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	id := sessionID(w, r, s.sessionTTL)
	snap, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.sessionError(w, r, id, err)
		return
	}
	s.render(w, r, "calculator.html", newCalculatorView(snap, s.sessions.Limits()), NewHTMXResponse())
}

// handleInput applies one control change and returns the refreshed panel.
func (s *Server) handleInput(input string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp := RequirePOST(r); resp != nil {
			resp.Write(w)
			return
		}
		if resp := ParseFormOrFail(r); resp != nil {
			resp.Write(w)
			return
		}

		ctx := r.Context()
		id := sessionID(w, r, s.sessionTTL)

		update, err := ParseControlUpdate(input, r.Form)
		if err != nil {
			s.structured.LogInputRejected(ctx, id, input, err)
			UnprocessableEntityError(inputErrorMessage(err)).Write(w)
			return
		}

		snap, err := s.sessions.Update(ctx, id, update.Apply(s.sessions.Limits()))
		if err != nil {
			if errors.Is(err, core.ErrInvalidNumber) || errors.Is(err, core.ErrInvalidTenure) {
				s.structured.LogInputRejected(ctx, id, input, err)
				UnprocessableEntityError(inputErrorMessage(err)).Write(w)
				return
			}
			s.sessionError(w, r, id, err)
			return
		}

		s.render(w, r, "calculator.html", newCalculatorView(snap, s.sessions.Limits()),
			NewHTMXResponse().TriggerQuoteUpdated(snap))
	}
}

// handleReset restores the default inputs of the session.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	id := sessionID(w, r, s.sessionTTL)
	snap, err := s.sessions.Update(r.Context(), id, func(c *core.Calculator) error {
		c.Reset()
		return nil
	})
	if err != nil {
		s.sessionError(w, r, id, err)
		return
	}

	s.render(w, r, "calculator.html", newCalculatorView(snap, s.sessions.Limits()),
		NewHTMXResponse().TriggerQuoteReset().TriggerQuoteUpdated(snap))
}

// handleChart renders the chart partial. Rendering failures degrade to a
// placeholder and never touch the session.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	id := sessionID(w, r, s.sessionTTL)
	snap, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.sessionError(w, r, id, err)
		return
	}

	view := newCalculatorView(snap, s.sessions.Limits())
	view.Chart = s.renderChart(r.Context(), snap)
	s.render(w, r, "chart.html", view, NewHTMXResponse())
}

type stateResponse struct {
	core.Snapshot
	NumPayments int `json:"num_payments"`
}

// handleState returns the session snapshot as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	id := sessionID(w, r, s.sessionTTL)
	snap, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Session load failed", applog.FieldSessionID, id, applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Snapshot: snap, NumPayments: snap.NumPayments()})
}

func (s *Server) renderChart(ctx context.Context, snap core.Snapshot) template.HTML {
	ds := chart.DatasetFor(snap)
	if err := ds.Validate(); err != nil {
		s.logger.DebugContext(ctx, "Chart dataset not drawable", applog.FieldError, err)
		return chart.Fallback
	}
	return chart.SafeRender(ctx, s.renderer, ds, s.chartOpts)
}

// render executes the named template into resp. Templates are rendered to a
// buffer first so a failing template never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, resp *HTMXResponseBuilder) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		InternalServerError("Templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.structured.LogError(r.Context(), "Template execution failed", err,
			applog.ComponentTemplate, applog.OpRender, applog.LogFields{"template": name})
		InternalServerError("Rendering failed").Write(w)
		return
	}
	resp.BodyHTML(buf.Bytes()).Write(w)
}

func (s *Server) sessionError(w http.ResponseWriter, r *http.Request, id string, err error) {
	s.structured.LogError(r.Context(), "Session update failed", err,
		applog.ComponentSession, applog.OpSet, applog.NewFields().WithSessionID(id))
	InternalServerError("Session unavailable, please retry").Write(w)
}

func inputErrorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidTenure):
		return "Choose one of the available tenures"
	case errors.Is(err, errUnknownInput):
		return "Unknown input"
	default:
		return "Enter a valid number"
	}
}
