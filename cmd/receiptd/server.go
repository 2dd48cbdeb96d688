package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mkurosawa/receiptd/internal/config"
	"github.com/mkurosawa/receiptd/internal/dashboard"
	"github.com/mkurosawa/receiptd/internal/infrastructure"
	"github.com/mkurosawa/receiptd/internal/pipeline"
	"github.com/mkurosawa/receiptd/internal/watcher"
	"github.com/mkurosawa/receiptd/pkg/middleware"
	"github.com/mkurosawa/receiptd/pkg/routes"
)

type Server struct {
	cfg     *config.Config
	infra   *infrastructure.Infrastructure
	watcher *watcher.Watcher
	http    *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	engine := pipeline.NewEngine(infra.Capabilities, infra.Store, cfg.Storage, infra.Logger)
	w := watcher.New(cfg.Watcher, cfg.Storage, engine, infra.Store, infra.Logger)

	router := buildRouter(infra, cfg)

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
	)

	return &Server{
		cfg:     cfg,
		infra:   infra,
		watcher: w,
		http:    newHTTPServer(&cfg.Server, cfg.ShutdownTimeoutDuration(), router, infra.Logger),
	}, nil
}

func (s *Server) Start() error {
	if err := s.infra.Start(); err != nil {
		return err
	}

	lc := s.infra.Lifecycle

	// The watcher drains in-flight pipeline runs before shutdown
	// completes, so it runs as a shutdown-tracked goroutine on the
	// lifecycle context. The Gemini client closes only once Run has
	// returned, after the drain, so a run mid-flight never calls a
	// closed client.
	lc.OnShutdown(func() {
		defer s.infra.Close()
		if err := s.watcher.Run(lc.Context()); err != nil && !errors.Is(err, context.Canceled) {
			s.infra.Logger.Error("watcher stopped", "error", err)
		}
	})

	if err := s.http.Start(lc); err != nil {
		return err
	}

	go func() {
		lc.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}

func buildRouter(infra *infrastructure.Infrastructure, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	dash := dashboard.NewHandler(infra.Store, cfg.Dashboard, cfg.Storage, infra.Logger)
	routes.Register(mux, dash.Routes())

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !infra.Lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	stack := middleware.New()
	stack.Use(middleware.Recover(infra.Logger))
	stack.Use(middleware.Logger(infra.Logger))
	stack.Use(middleware.CORS(&cfg.Dashboard.CORS))
	return stack.Apply(mux)
}
