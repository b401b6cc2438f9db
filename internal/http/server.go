package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mybudget/internal/cache"
	"mybudget/internal/log"
	"mybudget/internal/middleware/ratelimit"
	"mybudget/internal/middleware/security"
	"mybudget/internal/middleware/trace"
	"mybudget/internal/services"
	"mybudget/internal/storage"
)

const (
	idempotencyCacheSize = 1000
	cacheCleanupInterval = 10 * time.Minute
	readyTimeout         = 2 * time.Second
)

// Dependencies are the services the API serves. Writer, Reports and
// Auditor are built over Store when nil.
type Dependencies struct {
	Store   *storage.Store
	Writer  *services.TransactionWriter
	Reports *services.ReportService
	// Auditor backs the recalculate endpoint and must repair.
	Auditor *services.BalanceAuditor
	Logger  *log.Logger

	JWTSecret      string
	IdempotencyTTL time.Duration
	RateLimit      ratelimit.Config
}

type Server struct {
	http.Server
	store       *storage.Store
	writer      *services.TransactionWriter
	reports     *services.ReportService
	auditor     *services.BalanceAuditor
	auth        *Authenticator
	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	idempotency *cache.IdempotencyStore
	caches      *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) *Server {
	if deps.Writer == nil {
		deps.Writer = services.NewTransactionWriter(deps.Store, services.WithOutboxEvents())
	}
	if deps.Reports == nil {
		deps.Reports = services.NewReportService(deps.Store)
	}
	if deps.Auditor == nil {
		deps.Auditor = services.NewBalanceAuditor(deps.Store, true)
	}
	if deps.Logger == nil {
		deps.Logger = log.FromContext(context.Background())
	}
	if deps.IdempotencyTTL <= 0 {
		deps.IdempotencyTTL = 24 * time.Hour
	}

	s := &Server{
		store:       deps.Store,
		writer:      deps.Writer,
		reports:     deps.Reports,
		auditor:     deps.Auditor,
		auth:        NewAuthenticator(deps.JWTSecret),
		detector:    security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(deps.RateLimit),
		idempotency: cache.NewIdempotencyStore(idempotencyCacheSize, deps.IdempotencyTTL),
		caches:      cache.NewManager(),
	}
	s.caches.Register(s.idempotency.Cleaner())
	s.caches.StartCleanup(cacheCleanupInterval)

	api := http.NewServeMux()
	s.registerBudgetRoutes(api)
	s.registerCatalogRoutes(api)
	s.registerTransactionRoutes(api)
	s.registerReportRoutes(api)
	s.registerPlanningRoutes(api)
	api.HandleFunc("POST /api/admin/recalculate", s.handleRecalculate)
	api.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})

	limited := s.rateLimiter.Middleware(s.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	}, http.MethodPost, http.MethodPut, http.MethodDelete)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", s.auth.Middleware(limited(api)))

	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, deps.Logger.WithComponent(log.ComponentHTTP))
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = tracer.Middleware(handler)
	handler = log.Middleware(deps.Logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// rateLimitKey limits authenticated callers per user, the rest per IP.
func (s *Server) rateLimitKey(r *http.Request) string {
	if s.auth.Enabled() {
		return "user:" + strconv.FormatInt(UserIDFromContext(r.Context()), 10)
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type recalculateRequest struct {
	AccountID     *int64 `json:"account_id,omitempty"`
	TransactionID *int64 `json:"transaction_id,omitempty"`
}

// handleRecalculate audits cached balances and repairs drift. An empty
// body audits everything.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, "recalculate", err)
			return
		}
	}
	report, err := s.auditor.Audit(r.Context(), services.AuditScope{AccountID: req.AccountID, TransactionID: req.TransactionID})
	if err != nil {
		writeError(w, r, "recalculate", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Balances recalculated",
		log.FieldComponent, log.ComponentAudit,
		"account_drift", len(report.Accounts),
		"transaction_drift", len(report.Transactions),
		"repaired", report.Repaired)
	writeJSON(w, http.StatusOK, report)
}
