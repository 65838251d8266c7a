package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"buchhaltung/internal/cache"
	"buchhaltung/internal/dashboard"
	"buchhaltung/internal/log"
	"buchhaltung/internal/middleware/ratelimit"
	"buchhaltung/internal/middleware/security"
	"buchhaltung/internal/middleware/trace"
	"buchhaltung/internal/records"
	appweb "buchhaltung/web"
)

// SheetsExporter writes handover rows to a spreadsheet.
type SheetsExporter interface {
	Export(ctx context.Context, rows [][]string) error
}

// Deps are the collaborators of the server. Sheets is optional.
type Deps struct {
	Dashboard *dashboard.Controller
	// Probe is queried by /readyz.
	Probe  records.CostGroupStore
	Sheets SheetsExporter
	Logger *log.Logger

	RateLimitPerMinute int
	TrustedProxies     []string
	// Registry collects the request metrics; nil creates a private one.
	Registry *prometheus.Registry
}

type Server struct {
	http.Server
	templates *template.Template
	dash      *dashboard.Controller
	probe     records.CostGroupStore
	probes    *cache.LRU[error]
	sheets    SheetsExporter
	logger    *log.Logger
	audit     *log.StructuredLogger
	started   time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	registry *prometheus.Registry
	mux      *http.ServeMux

	shutdownOnce sync.Once
}

// readyCacheTTL bounds how often /readyz reaches the backend.
const readyCacheTTL = 5 * time.Second

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Dashboard == nil {
		return nil, errors.New("dashboard controller is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	detector, err := security.NewDetector(deps.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates: t,
		dash:      deps.Dashboard,
		probe:     deps.Probe,
		probes:    cache.NewLRU[error](1, readyCacheTTL),
		sheets:    deps.Sheets,
		logger:    logger,
		audit:     log.NewStructuredLogger(logger),
		started:   time.Now(),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector:  detector,
		registry:  registry,
		mux:       http.NewServeMux(),
	}

	metrics, err := trace.NewMetrics(registry)
	if err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("register request metrics: %w", err)
	}
	if err := s.registerGauges(); err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("register gauges: %w", err)
	}

	s.routes()

	// outermost first; trace must wrap the mux directly so the matched
	// pattern is visible on its request
	var h http.Handler = s.mux
	h = s.limiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(h)
	h = trace.NewMiddleware(detector.ExtractClientIP, logger, metrics).Middleware(h)
	h = log.Middleware(logger)(h)
	h = detector.Middleware(s.logSuspicious)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) registerGauges() error {
	for _, c := range []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter.",
		}, func() float64 { return float64(s.limiter.Hits()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rate_limit_active_clients",
			Help: "Clients currently tracked by the rate limiter.",
		}, func() float64 { return float64(s.limiter.ActiveClients()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "suspicious_requests_total",
			Help: "Requests flagged by the security detector.",
		}, func() float64 { return float64(s.detector.Suspicious()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "dashboard_loaded",
			Help: "1 while the dashboard collections are loaded.",
		}, func() float64 {
			if s.dash.State() == dashboard.Loaded {
				return 1
			}
			return 0
		}),
	} {
		if err := s.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// handle registers h with a request scoped logger carrying the request id.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, log.RequestIDMiddleware(trace.GetRequestIDFromRequest)(h))
}

func (s *Server) routes() {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		s.mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	s.handle("GET /{$}", s.handleIndex)
	s.handle("POST /ui/retry", s.handleRetry)
	s.handle("POST /ui/toggle/{section}", s.handleToggle)
	s.handle("GET /ui/summary", s.partial("summary"))
	s.handle("GET /ui/charts", s.partial("charts"))
	s.handle("GET /ui/receipts", s.handleReceipts)
	s.handle("GET /ui/cost-groups", s.partial("cost_groups"))
	s.handle("GET /ui/handovers", s.partial("handovers"))
	s.handle("GET /ui/dialogs", s.partial("dialogs"))
	s.handle("GET /api/charts", s.handleChartData)

	for _, e := range s.entities() {
		s.registerEntity(e)
	}

	s.handle("GET /export/handovers/{file}", s.handleExportCSV)
	s.handle("POST /export/handovers/{id}/sheets", s.handleExportSheets)
}

func (s *Server) logSuspicious(r *http.Request, reason string) {
	s.logger.WarnContext(r.Context(), "Suspicious request",
		log.FieldComponent, log.ComponentSecurity,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		"reason", reason)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Zu viele Anfragen. Bitte später erneut versuchen.").
		TriggerNotify(dashboard.Notification{Kind: dashboard.NotifyError, Message: "Zu viele Anfragen. Bitte später erneut versuchen."}).
		Write(w)
}

// Shutdown gracefully shuts down the server and its background loops.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
