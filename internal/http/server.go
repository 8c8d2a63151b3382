package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"budget/internal/cache"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Options configures the API server. Zero values pick the defaults.
type Options struct {
	Logger *log.Logger
	// HistoryMonths is the default count for GET /api/history.
	HistoryMonths int
	// RequestsPerMinute limits mutating requests per client.
	RequestsPerMinute int
	TrustedProxies    []string
	// Checks run on GET /readyz, keyed by dependency name.
	Checks map[string]ReadinessCheck
}

type Server struct {
	http.Server
	svc           *services.BudgetService
	logger        *log.Logger
	historyMonths int
	checks        map[string]ReadinessCheck

	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter

	// Month views keyed by revision, so a mutation never serves stale
	// figures; the TTL covers the clock crossing into a new month.
	monthCache *cache.LRUCache[services.MonthView]
	caches     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc *services.BudgetService, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.HistoryMonths <= 0 {
		opts.HistoryMonths = 6
	}

	detector := security.NewDetector(logger)
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}

	s := &Server{
		svc:           svc,
		logger:        logger.WithComponent(log.ComponentHTTP),
		historyMonths: opts.HistoryMonths,
		checks:        opts.Checks,
		detector:      detector,
		tracer:        trace.NewMiddleware(logger, detector.ExtractClientIP),
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		monthCache:    cache.NewLRUCache[services.MonthView](64, time.Minute),
		caches:        cache.NewManager(logger),
	}
	s.caches.Register(s.monthCache)
	s.caches.StartCleanup(5 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.APIHeadersConfig())
	limit := s.limiter.Middleware(detector.ExtractClientIP, isMutation, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})

	s.Server = http.Server{
		Addr:           addr,
		Handler:        s.tracer.Middleware(headers.Middleware(detector.Middleware(limit(mux)))),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/months/{month}", s.handleMonth)
	mux.HandleFunc("GET /api/months/{month}/totals", s.handleMonthTotals)
	mux.HandleFunc("GET /api/months/{month}/breakdown", s.handleBreakdown)
	mux.HandleFunc("GET /api/months/{month}/fixed-expenses", s.handleFixedStates)
	mux.HandleFunc("PUT /api/months/{month}/fixed-expenses/{id}", s.handleToggleFixed)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/incomes", s.handleListIncomes)
	mux.HandleFunc("POST /api/incomes", s.handleCreateIncome)
	mux.HandleFunc("PATCH /api/incomes/{id}", s.handleUpdateIncome)
	mux.HandleFunc("DELETE /api/incomes/{id}", s.handleDeleteIncome)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/fixed-expenses", s.handleListFixed)
	mux.HandleFunc("POST /api/fixed-expenses", s.handleCreateFixed)
	mux.HandleFunc("PATCH /api/fixed-expenses/{id}", s.handleUpdateFixed)
	mux.HandleFunc("DELETE /api/fixed-expenses/{id}", s.handleDeleteFixed)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/sync", s.handleSyncStatus)
	mux.HandleFunc("POST /api/sync", s.handleSync)
}

func isMutation(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady runs every readiness check with a short deadline. The
// response lists each dependency; any failure makes it a 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			s.logger.WarnContext(ctx, "Readiness check failed", "check", name, log.FieldError, err)
			continue
		}
		results[name] = "ok"
	}
	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"checks": results,
		"sync":   s.svc.SyncStatus(),
	})
}
