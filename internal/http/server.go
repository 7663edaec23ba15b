package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"spendy/internal/cache"
	applog "spendy/internal/log"
	"spendy/internal/middleware/ratelimit"
	"spendy/internal/middleware/security"
	"spendy/internal/middleware/trace"
	"spendy/internal/services"
)

// Services are the use cases the handlers call into.
type Services struct {
	Savings       *services.SavingsService
	Budget        *services.BudgetService
	Notifications *services.NotificationService
	Ledger        *services.LedgerService
	Activity      *services.ActivityService
}

type Options struct {
	Logger             *applog.Logger
	Development        bool
	RateLimitPerMinute int
	TrustedProxies     []string
	// Ready is called by /readyz; nil means always ready.
	Ready func(ctx context.Context) error
	// Caches, when set, is reported by /metricsz and stopped on Shutdown.
	Caches *cache.Manager
}

type Server struct {
	http.Server

	svc         Services
	logger      *applog.Logger
	development bool
	ready       func(ctx context.Context) error
	caches      *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware into a ready-to-run http.Server.
func NewServer(addr string, svc Services, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector, err := security.NewDetector(logger, opts.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:         svc,
		logger:      logger,
		development: opts.Development,
		ready:       opts.Ready,
		caches:      opts.Caches,
		detector:    detector,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
	}
	s.tracer = trace.NewMiddleware(logger, detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metricsz", s.handleMetrics)

	api := http.NewServeMux()
	api.HandleFunc("POST /savings", s.handleCreatePlan)
	api.HandleFunc("GET /savings", s.handleListPlans)
	api.HandleFunc("GET /savings/ended", s.handleListEndedPlans)
	api.HandleFunc("GET /savings/{id}", s.handleGetPlan)
	api.HandleFunc("PUT /savings/{id}", s.handleUpdatePlan)
	api.HandleFunc("POST /savings/{id}/deposit", s.handleDeposit)
	api.HandleFunc("POST /savings/{id}/auto-save", s.handleAutoSave)
	api.HandleFunc("POST /savings/{id}/withdraw", s.handleWithdraw)
	api.HandleFunc("GET /savings/{id}/transactions", s.handleListTransactions)
	api.HandleFunc("GET /stats", s.handleStats)
	api.HandleFunc("GET /notifications", s.handleNotifications)
	api.HandleFunc("POST /expenses", s.handleAddExpense)
	api.HandleFunc("GET /expenses", s.handleListExpenses)
	api.HandleFunc("GET /expenses/summary", s.handleExpenseSummary)
	api.HandleFunc("POST /income", s.handleAddIncome)
	api.HandleFunc("GET /income", s.handleListIncome)
	api.HandleFunc("GET /activity", s.handleActivity)

	limited := s.limiter.Middleware(s.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, codeRateLimited, "Rate limit exceeded. Please try again later.").Write(w)
	})(api)
	mux.Handle("/", limited)

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFrom)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the background helpers and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.caches != nil {
			s.caches.Stop()
		}
		if err := s.Server.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	})
	return result.ErrorOrNil()
}
