package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"emicalc/internal/cache"
	"emicalc/internal/chart"
	"emicalc/internal/core"
	applog "emicalc/internal/log"
	"emicalc/internal/middleware/ratelimit"
	"emicalc/internal/middleware/security"
	"emicalc/internal/middleware/trace"
	"emicalc/internal/services"
	"emicalc/internal/session"
	appweb "emicalc/web"
)

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

// Deps are the collaborators of the web server. Sessions is required; every
// other field has a usable zero value.
type Deps struct {
	Sessions     *session.Manager
	Quotes       *services.QuoteService
	Renderer     chart.Renderer
	ChartOptions *chart.Options
	Caches       *cache.Manager
	Logger       *applog.Logger
	ReadyChecks  map[string]ReadyCheck

	SessionTTL         time.Duration
	RateLimitPerMinute int

	// Templates overrides the embedded templates.
	Templates fs.FS
}

type Server struct {
	http.Server
	templates  *template.Template
	sessions   *session.Manager
	quotes     *services.QuoteService
	renderer   chart.Renderer
	chartOpts  chart.Options
	caches     *cache.Manager
	logger     *applog.Logger
	structured *applog.StructuredLogger
	ready      map[string]ReadyCheck
	sessionTTL time.Duration

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		sessions:   deps.Sessions,
		quotes:     deps.Quotes,
		renderer:   deps.Renderer,
		chartOpts:  chart.DefaultOptions(),
		caches:     deps.Caches,
		logger:     logger,
		structured: applog.NewStructuredLogger(logger),
		ready:      deps.ReadyChecks,
		sessionTTL: deps.SessionTTL,
		detector:   security.NewDetector(),
		started:    time.Now(),
	}
	if deps.ChartOptions != nil {
		s.chartOpts = *deps.ChartOptions
	}
	if s.quotes == nil {
		s.quotes = services.NewQuoteService(nil, nil)
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 30 * time.Minute
	}

	rlConfig := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = deps.RateLimitPerMinute
	}
	s.rateLimiter = ratelimit.NewLimiter(rlConfig)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger.WithComponent(applog.ComponentTrace))

	s.sessions.OnChange(s.logQuote)

	templatesFS := deps.Templates
	if templatesFS == nil {
		templatesFS = appweb.TemplatesFS
	}
	t, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/calculator", s.handleCalculator)
	for _, input := range []string{InputPrincipal, InputDownPayment, InputInterestRate, InputTenure} {
		mux.HandleFunc("/calculator/"+input, s.handleInput(input))
	}
	mux.HandleFunc("/calculator/reset", s.handleReset)
	mux.HandleFunc("/calculator/chart", s.handleChart)
	mux.HandleFunc("/calculator/state", s.handleState)

	mux.HandleFunc("/api/quote", s.handleQuoteAPI)
	mux.HandleFunc("/api/stats", s.handleStats)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10,
	}
	return s
}

// middleware wraps h, outermost first: tracing, security headers, suspicious
// request logging, rate limiting, request-scoped logger.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = applog.Middleware(s.logger)(h)
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return s.tracer.Middleware(h)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request, retryAfter int) {
	fields := applog.NewFields().
		WithClientIP(s.detector.ExtractClientIP(r)).
		WithHTTPRequest(r.Method, r.URL.Path, "", r.UserAgent(), "")
	s.logger.WithComponent(applog.ComponentRateLimit).
		WarnContext(r.Context(), "Rate limit exceeded", append(fields.ToSlice(), "retry_after", retryAfter)...)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please slow down.").Write(w)
}

// logQuote is registered as a session hook.
func (s *Server) logQuote(ctx context.Context, sessionID string, ch core.Change) {
	if !ch.Recomputed {
		return
	}
	in, res := ch.Inputs, ch.Results
	s.structured.LogQuoteComputed(ctx, sessionID, in.LoanAmount, in.InterestRate, in.TenureYears,
		res.MonthlyPayment, res.TotalInterest)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		if s.caches != nil {
			s.caches.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
