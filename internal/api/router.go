package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"careAlert/internal/api/handlers/http/alerts"
	"careAlert/internal/api/handlers/http/system"
	"careAlert/internal/api/handlers/http/telephony"
	"careAlert/internal/config"
	"careAlert/internal/metrics"
	"careAlert/internal/middleware"
)

type Server struct {
	logger *slog.Logger
	router *chi.Mux
	cfg    config.Config
}

type Handlers struct {
	Alerts    *alerts.Handler
	Telephony *telephony.Handler
	System    *system.Handler
}

// NewServer builds the HTTP surface. ctx bounds the rate limiter janitors.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, h Handlers, users middleware.UserGetter, m *metrics.Metrics) *Server {
	r := InitRouter(ctx, cfg, h, users, m, logger)

	return &Server{
		logger: logger,
		router: r,
		cfg:    *cfg,
	}
}

func InitRouter(ctx context.Context, cfg *config.Config, h Handlers, users middleware.UserGetter, m *metrics.Metrics, logger *slog.Logger) *chi.Mux {
	r := chi.NewMux()

	// чтобы request_id попал в лог chi.Logger
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)
	r.Use(m.Middleware)

	r.Get("/health", h.System.SystemHealth)
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		// provider callbacks carry neither our key nor a user
		api.Post("/telephony/status", h.Telephony.CallStatus)
		api.Post("/telephony/gather", h.Telephony.Gather)

		api.Group(func(ar chi.Router) {
			ar.Use(middleware.APIKeyMiddleware(cfg.APIKey))
			ar.Use(middleware.Authenticate(users, logger))

			ar.Route("/alerts", func(al chi.Router) {
				al.With(middleware.Limit(ctx, 5, 10, 10*time.Minute, logger)).Post("/", h.Alerts.AlertCreate)
				al.Get("/stats", h.Alerts.AlertStats)
				al.Get("/feed", h.Alerts.AlertFeed)

				al.Route("/{id}", func(ir chi.Router) {
					ir.Get("/", h.Alerts.AlertGet)
					ir.Get("/stream", h.Alerts.AlertStream)
					ir.Post("/respond", h.Alerts.AlertRespond)
					ir.Put("/responders/me", h.Alerts.ResponderUpdate)
					ir.Post("/resolve", h.Alerts.AlertResolve)
					ir.Post("/cancel", h.Alerts.AlertCancel)
				})
			})

			ar.Get("/patients/{id}/alerts", h.Alerts.PatientAlerts)

			ar.Route("/telephony", func(tr chi.Router) {
				tr.Use(middleware.Limit(ctx, 1, 3, 10*time.Minute, logger))
				tr.Post("/call", h.Telephony.MakeCall)
				tr.Post("/sms", h.Telephony.SendSMS)
			})
		})
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	port := s.cfg.Http.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	srv := &http.Server{
		Addr:         port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("🚀 Starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Duration("read_timeout", s.cfg.Http.ReadTimeout),
			slog.Duration("write_timeout", s.cfg.Http.WriteTimeout),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ListenAndServe error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("🛑 Shutting down HTTP server", slog.String("reason", ctx.Err().Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown failed", slog.Any("error", err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}
