package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"emicalc/internal/chart"
	"emicalc/internal/core"
	applog "emicalc/internal/log"
	"emicalc/internal/services"
	"emicalc/internal/session"
	"emicalc/internal/storage"
)

type panickingRenderer struct{}

func (panickingRenderer) Render(chart.Dataset, chart.Options) (template.HTML, error) {
	panic("renderer exploded")
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

// newTestServer wires a server on in-memory stores. mutate may adjust the
// dependencies before the server is built.
func newTestServer(t *testing.T, mutate func(*Deps)) (*Server, *storage.MemoryJournal) {
	t.Helper()
	journal := storage.NewMemoryJournal()
	quotes := services.NewQuoteService(journal, nil)
	mgr := session.NewManager(session.NewMemoryStore(100, time.Hour), core.DefaultLimits())
	mgr.OnChange(quotes.OnChange)

	deps := Deps{
		Sessions:   mgr,
		Quotes:     quotes,
		Renderer:   chart.NewSVGRenderer(),
		Logger:     quietLogger(),
		SessionTTL: time.Hour,
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, journal
}

// client replays the session cookie across requests.
type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func (c *client) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return rr
}

func (c *client) set(input, value string) *httptest.ResponseRecorder {
	c.t.Helper()
	form := url.Values{"value": {value}}
	return c.do(http.MethodPost, "/calculator/"+input, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *client) state() core.Snapshot {
	c.t.Helper()
	rr := c.do(http.MethodGet, "/calculator/state", nil, "")
	if rr.Code != http.StatusOK {
		c.t.Fatalf("state status=%d", rr.Code)
	}
	var got stateResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		c.t.Fatalf("decode state: %v", err)
	}
	return got.Snapshot
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodGet, "/", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"EMI Calculator", "$75.48", "$4529.10", "$529.10", "<svg"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if c.cookie == nil || !c.cookie.HttpOnly || c.cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("session cookie not set correctly: %+v", c.cookie)
	}
	if !session.ValidID(c.cookie.Value) {
		t.Errorf("session id %q is not a valid id", c.cookie.Value)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing security headers")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := c.do(http.MethodGet, path, nil, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := c.do(http.MethodGet, "/nope", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path status=%d, want 404", rr.Code)
	}
}

func TestControlUpdates(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := &client{t: t, srv: srv}
	c.do(http.MethodGet, "/", nil, "")

	rr := c.set(InputPrincipal, "10000")
	if rr.Code != http.StatusOK {
		t.Fatalf("principal status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventQuoteUpdated) {
		t.Errorf("missing %s trigger", EventQuoteUpdated)
	}
	if !strings.Contains(rr.Body.String(), `id="calculator"`) {
		t.Errorf("response is not the calculator panel")
	}

	s := c.state()
	if s.Inputs.Principal != 10000 || s.Inputs.DownPayment != 1000 || s.Inputs.LoanAmount != 9000 {
		t.Errorf("inputs after principal change = %+v", s.Inputs)
	}

	c.set(InputInterestRate, "7,5")
	c.set(InputTenure, "10")
	c.set(InputDownPayment, "3000")
	s = c.state()
	if s.Inputs.InterestRate != 7.5 || s.Inputs.TenureYears != 10 || s.Inputs.LoanAmount != 7000 {
		t.Errorf("inputs = %+v", s.Inputs)
	}
	want, _ := core.Calculate(7000, 7.5, 10)
	if s.Results != want {
		t.Errorf("results = %+v, want %+v", s.Results, want)
	}
}

func TestControlClamping(t *testing.T) {
	tests := []struct {
		name  string
		input string
		value string
		check func(core.Inputs) bool
	}{
		{"principal above max", InputPrincipal, "250000", func(in core.Inputs) bool { return in.Principal == 100000 }},
		{"negative principal", InputPrincipal, "-5", func(in core.Inputs) bool { return in.Principal == 0 && in.DownPayment == 0 }},
		{"principal snaps to step", InputPrincipal, "7400", func(in core.Inputs) bool { return in.Principal == 7000 }},
		{"rate above max", InputInterestRate, "50", func(in core.Inputs) bool { return in.InterestRate == 20 }},
		{"rate below min", InputInterestRate, "0.5", func(in core.Inputs) bool { return in.InterestRate == 2 }},
		{"down payment above principal", InputDownPayment, "9000", func(in core.Inputs) bool {
			return in.DownPayment == in.Principal && in.LoanAmount == 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, nil)
			c := &client{t: t, srv: srv}
			if rr := c.set(tt.input, tt.value); rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			if in := c.state().Inputs; !tt.check(in) {
				t.Errorf("unexpected inputs %+v", in)
			}
		})
	}
}

func TestZeroLoanRetainsResults(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := &client{t: t, srv: srv}
	before := c.state()

	c.set(InputPrincipal, "1000")

	after := c.state()
	if after.Inputs.DownPayment != 1000 || after.Inputs.LoanAmount != 0 {
		t.Fatalf("inputs = %+v", after.Inputs)
	}
	if after.Results != before.Results {
		t.Errorf("results changed to %+v, want %+v", after.Results, before.Results)
	}

	rr := c.do(http.MethodGet, "/calculator/chart", nil, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "chart-") {
		t.Errorf("chart partial status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestInvalidInputs(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := &client{t: t, srv: srv}
	before := c.state()

	for _, tt := range []struct{ input, value string }{
		{InputPrincipal, "abc"},
		{InputPrincipal, ""},
		{InputInterestRate, "NaN"},
		{InputDownPayment, "Inf"},
		{InputTenure, "7"},
		{InputTenure, "ten"},
	} {
		rr := c.set(tt.input, tt.value)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s=%q status=%d, want 422", tt.input, tt.value, rr.Code)
		}
		if !strings.HasPrefix(rr.Body.String(), `<div class="error">`) {
			t.Errorf("%s=%q body=%q", tt.input, tt.value, rr.Body.String())
		}
	}

	if after := c.state(); after != before {
		t.Errorf("state changed after rejected inputs: %+v", after)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodGet, "/calculator/principal", nil, "")
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "POST" {
		t.Errorf("GET mutator: status=%d allow=%q", rr.Code, rr.Header().Get("Allow"))
	}
	rr = c.do(http.MethodPost, "/calculator/state", nil, "")
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "GET, HEAD" {
		t.Errorf("POST state: status=%d allow=%q", rr.Code, rr.Header().Get("Allow"))
	}
}

func TestReset(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := &client{t: t, srv: srv}
	c.set(InputPrincipal, "20000")
	c.set(InputTenure, "20")

	rr := c.do(http.MethodPost, "/calculator/reset", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventQuoteReset) {
		t.Errorf("missing %s trigger", EventQuoteReset)
	}
	want := core.NewCalculator(core.DefaultLimits()).Snapshot()
	if got := c.state(); got != want {
		t.Errorf("state after reset = %+v, want %+v", got, want)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	a := &client{t: t, srv: srv}
	b := &client{t: t, srv: srv}

	a.set(InputPrincipal, "50000")

	if got := b.state().Inputs.Principal; got != core.DefaultPrincipal {
		t.Errorf("second session principal = %v, want default", got)
	}
	if a.cookie.Value == b.cookie.Value {
		t.Error("sessions share an id")
	}
}

func TestQuoteAPI(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := &client{t: t, srv: srv}

	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
		wantEMI     float64
	}{
		{"json", `{"loan_amount":4000,"interest_rate":5,"tenure_years":5}`, "application/json", http.StatusOK, 75.48},
		{"form", "loan_amount=4000&interest_rate=5&tenure_years=5", "application/x-www-form-urlencoded", http.StatusOK, 75.48},
		{"zero rate", `{"loan_amount":4000,"interest_rate":0,"tenure_years":5}`, "application/json", http.StatusUnprocessableEntity, 0},
		{"zero loan", `{"loan_amount":0,"interest_rate":5,"tenure_years":5}`, "application/json", http.StatusUnprocessableEntity, 0},
		{"not a number", `{"loan_amount":"lots","interest_rate":5,"tenure_years":5}`, "application/json", http.StatusUnprocessableEntity, 0},
		{"malformed json", `{"loan_amount":`, "application/json", http.StatusUnprocessableEntity, 0},
		{"tenure above max", `{"loan_amount":4000,"interest_rate":5,"tenure_years":101}`, "application/json", http.StatusUnprocessableEntity, 0},
		{"tenure wrapping payment count", "loan_amount=4000&interest_rate=5&tenure_years=4611686018427387909", "application/x-www-form-urlencoded", http.StatusUnprocessableEntity, 0},
		{"tenure overflowing int", "loan_amount=4000&interest_rate=5&tenure_years=99999999999999999999", "application/x-www-form-urlencoded", http.StatusUnprocessableEntity, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := c.do(http.MethodPost, "/api/quote", strings.NewReader(tt.body), tt.contentType)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got quoteResponse
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.MonthlyPayment != tt.wantEMI || got.NumPayments != 60 {
				t.Errorf("response = %+v", got)
			}
		})
	}

	if s := c.state(); s.Inputs != core.NewCalculator(core.DefaultLimits()).Snapshot().Inputs {
		t.Errorf("quote API touched the session: %+v", s.Inputs)
	}
}

func TestStats(t *testing.T) {
	srv, journal := newTestServer(t, nil)
	c := &client{t: t, srv: srv}
	c.set(InputPrincipal, "10000")
	c.set(InputTenure, "10")

	rr := c.do(http.MethodGet, "/api/stats", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status=%d", rr.Code)
	}
	var got statsResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, _ := journal.Summary(context.Background())
	if !got.Enabled || got.Count != 2 || got.QuoteSummary != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}

	disabled, _ := newTestServer(t, func(d *Deps) { d.Quotes = nil })
	c = &client{t: t, srv: disabled}
	rr = c.do(http.MethodGet, "/api/stats", nil, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"enabled":false`) {
		t.Errorf("disabled stats status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestChartFailureDoesNotAffectState(t *testing.T) {
	srv, _ := newTestServer(t, func(d *Deps) { d.Renderer = panickingRenderer{} })
	c := &client{t: t, srv: srv}
	before := c.state()

	rr := c.do(http.MethodGet, "/calculator/chart", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("chart status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), string(chart.Fallback)) {
		t.Errorf("expected fallback chart, got %s", rr.Body.String())
	}
	if rr := c.do(http.MethodGet, "/", nil, ""); rr.Code != http.StatusOK {
		t.Errorf("index status=%d with broken renderer", rr.Code)
	}
	if after := c.state(); after != before {
		t.Errorf("state changed: %+v", after)
	}
}

func TestTemplateParseErrorPath(t *testing.T) {
	srv, _ := newTestServer(t, func(d *Deps) { d.Templates = fstest.MapFS{} })
	c := &client{t: t, srv: srv}

	if rr := c.do(http.MethodGet, "/", nil, ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for missing templates, got %d", rr.Code)
	}
	if rr := c.do(http.MethodGet, "/readyz", nil, ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 readiness, got %d", rr.Code)
	}
	if rr := c.do(http.MethodGet, "/calculator/state", nil, ""); rr.Code != http.StatusOK {
		t.Errorf("JSON state should not need templates, got %d", rr.Code)
	}
}

func TestReadyChecks(t *testing.T) {
	srv, _ := newTestServer(t, func(d *Deps) {
		d.ReadyChecks = map[string]ReadyCheck{
			"journal":  func(context.Context) error { return nil },
			"sessions": func(context.Context) error { return errors.New("redis down") },
		}
	})
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodGet, "/readyz", nil, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	var got struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "not_ready" || got.Checks["journal"] != "ok" || !strings.Contains(got.Checks["sessions"], "redis down") {
		t.Errorf("readiness = %+v", got)
	}
}

func TestRateLimitOnPost(t *testing.T) {
	srv, _ := newTestServer(t, func(d *Deps) { d.RateLimitPerMinute = 2 })
	c := &client{t: t, srv: srv}

	for i := 0; i < 2; i++ {
		if rr := c.set(InputPrincipal, "2000"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := c.set(InputPrincipal, "2000")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := c.do(http.MethodGet, "/calculator", nil, ""); rr.Code != http.StatusOK {
		t.Errorf("GET must not be rate limited, got %d", rr.Code)
	}
}
