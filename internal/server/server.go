package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/handlers"
	"github.com/GurgoSoft/MIND-sub001/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Service names one of the three HTTP services.
type Service string

const (
	ServiceUsers  Service = "users"
	ServiceAgenda Service = "agenda"
	ServiceDiary  Service = "diary"
)

// AllServices lists every service in start order.
var AllServices = []Service{ServiceUsers, ServiceAgenda, ServiceDiary}

// ParseService maps a command-line name to a Service.
func ParseService(name string) (Service, error) {
	switch s := Service(strings.ToLower(strings.TrimSpace(name))); s {
	case ServiceUsers, ServiceAgenda, ServiceDiary:
		return s, nil
	}
	return "", fmt.Errorf("unknown service %q (want users, agenda or diary)", name)
}

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

// Server wraps the HTTP server and router of one service.
type Server struct {
	service    Service
	httpServer *http.Server
	router     *chi.Mux
	limiter    *rateLimiter
	logger     *zap.Logger
}

// New builds the router of service on the connections held by app.
func New(ctx context.Context, app *App, service Service) (*Server, error) {
	users, err := app.usersDomain(ctx)
	if err != nil {
		return nil, err
	}

	logger := app.logger.With(zap.String("service", string(service)))
	base := handlers.NewBase(logger, !app.cfg.IsProduction())
	requireAuth := handlers.RequireAuth(users.deps.Auth, app.cfg.Auth.Disabled)
	requireAdmin := handlers.RequireAdmin(users.deps.Auth)
	if app.cfg.Auth.Disabled {
		logger.Warn("AUTH_DISABLED is set; every request runs as the system user")
	}

	var (
		port   int
		mount  func(r chi.Router)
		logSrc = users.log
	)
	switch service {
	case ServiceUsers:
		port = app.cfg.Ports.Users
		mount = func(r chi.Router) { handlers.UsersRouter(r, base, users.deps) }
	case ServiceAgenda:
		d, err := app.agendaDomain(ctx)
		if err != nil {
			return nil, err
		}
		port, logSrc = app.cfg.Ports.Agenda, d.log
		mount = func(r chi.Router) { handlers.AgendaRouter(r, base, d.deps) }
	case ServiceDiary:
		d, err := app.diaryDomain(ctx)
		if err != nil {
			return nil, err
		}
		port, logSrc = app.cfg.Ports.Diary, d.log
		mount = func(r chi.Router) { handlers.DiaryRouter(r, base, d.deps) }
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}

	limiter := newRateLimiter(app.cfg.HTTP.RateLimitRPS, app.cfg.HTTP.RateLimitBurst)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		accessLog(logger),
		middleware.Timeout(60*time.Second),
		middleware.Compress(5),
		securityHeaders,
		cors(app.cfg.HTTP.CORSOrigins),
		limiter.handler,
		metrics.Middleware(string(service)),
		handlers.AuditMeta,
	)
	router.Get("/health", handlers.Health(string(service)))
	router.Handle("/metrics", metrics.Handler())
	if service == ServiceUsers {
		router.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, base, users.deps.Auth, users.deps.Users, requireAuth)
		})
	}
	router.Group(func(r chi.Router) {
		r.Use(requireAuth)
		mount(r)
		r.Route("/audit", func(r chi.Router) {
			handlers.AuditRouter(r, base, logSrc, requireAdmin)
		})
	})

	return &Server{
		service: service,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      90 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		router:  router,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ticker.C:
			s.limiter.sweep()
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			s.logger.Info("shutting down")
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown %s: %w", s.service, err)
			}
			return nil
		}
	}
}
