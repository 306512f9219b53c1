package http

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

// TransactionService is the transaction API the handlers depend on.
type TransactionService interface {
	Create(ctx context.Context, owner string, f core.Fields) (core.Transaction, error)
	Get(ctx context.Context, owner string, id int64) (core.Transaction, error)
	Update(ctx context.Context, owner string, id int64, f core.Fields) (core.Transaction, error)
	Delete(ctx context.Context, owner string, id int64) error
	List(ctx context.Context, owner string, sort string) ([]core.Transaction, core.SortKey, error)
}

// DashboardService builds dashboard summaries.
type DashboardService interface {
	Summarize(ctx context.Context, owner, month string) (core.DashboardSummary, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators a Server needs. Limiter may be nil to disable
// rate limiting.
type Deps struct {
	Transactions TransactionService
	Dashboard    DashboardService
	Store        Pinger
	Verifier     *auth.Verifier
	Limiter      *ratelimit.Limiter
	Logger       *log.Logger
}

type Server struct {
	http.Server
	txs     TransactionService
	dash    DashboardService
	store   Pinger
	logger  *log.Logger
	started time.Time

	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	rateLimiter      *ratelimit.Limiter
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.Discard()
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		txs:              d.Transactions,
		dash:             d.Dashboard,
		store:            d.Store,
		logger:           httpLogger,
		started:          time.Now(),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		rateLimiter:      d.Limiter,
	}

	protected := auth.Middleware(d.Verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("GET /transactions", protected(http.HandlerFunc(s.handleListTransactions)))
	mux.Handle("POST /transactions", protected(http.HandlerFunc(s.handleCreateTransaction)))
	mux.Handle("GET /transactions/{id}", protected(http.HandlerFunc(s.handleGetTransaction)))
	mux.Handle("PUT /transactions/{id}", protected(http.HandlerFunc(s.handleUpdateTransaction)))
	mux.Handle("DELETE /transactions/{id}", protected(http.HandlerFunc(s.handleDeleteTransaction)))
	mux.Handle("GET /dashboard", protected(http.HandlerFunc(s.handleDashboard)))

	var handler http.Handler = mux
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimit,
			http.MethodPost, http.MethodPut, http.MethodDelete)(handler)
	}
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = log.Middleware(httpLogger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}
