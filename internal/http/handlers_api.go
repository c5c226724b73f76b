package http

import (
	"errors"
	"fmt"
	"net/http"

	"emicalc/internal/core"
	applog "emicalc/internal/log"
	"emicalc/internal/services"
)

const maxAPIBody = 4 << 10

type quoteResponse struct {
	LoanAmount   float64 `json:"loan_amount"`
	InterestRate float64 `json:"interest_rate"`
	TenureYears  int     `json:"tenure_years"`
	NumPayments  int     `json:"num_payments"`
	core.Results
}

// handleQuoteAPI computes a quote without touching any session.
func (s *Server) handleQuoteAPI(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBody)
	req, err := ParseQuoteRequest(r)
	if err != nil {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Quote request rejected", applog.FieldError, err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "loan_amount, interest_rate and tenure_years must be numbers"})
		return
	}

	res, ok := core.Calculate(req.LoanAmount, req.InterestRate, req.TenureYears)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": fmt.Sprintf("loan amount, rate and tenure must be positive, tenure at most %d years", core.MaxTermYears)})
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		LoanAmount:   req.LoanAmount,
		InterestRate: req.InterestRate,
		TenureYears:  req.TenureYears,
		NumPayments:  core.NumPayments(req.TenureYears),
		Results:      res,
	})
}

type statsResponse struct {
	Enabled bool `json:"enabled"`
	core.QuoteSummary
}

// handleStats reports aggregates of the quote journal.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	summary, err := s.quotes.Summary(r.Context())
	switch {
	case errors.Is(err, services.ErrJournalDisabled):
		writeJSON(w, http.StatusOK, statsResponse{Enabled: false})
	case err != nil:
		s.structured.LogError(r.Context(), "Quote summary failed", err, applog.ComponentJournal, applog.OpRecord, nil)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
	default:
		writeJSON(w, http.StatusOK, statsResponse{Enabled: true, QuoteSummary: summary})
	}
}
