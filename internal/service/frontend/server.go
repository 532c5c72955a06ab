// Package frontend runs the HTTP server exposing the memory API.
package frontend

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnemo-org/mnemo/internal/build"
	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/logger"
	"github.com/mnemo-org/mnemo/internal/cmn/logger/tag"
	apiv1 "github.com/mnemo-org/mnemo/internal/service/frontend/api/v1"
	"github.com/mnemo-org/mnemo/internal/service/frontend/metrics"
	"github.com/mnemo-org/mnemo/internal/service/frontend/middleware"
)

// Server is the HTTP server for the memory API.
type Server struct {
	config     *config.Config
	api        *apiv1.API
	registry   *metrics.Registry
	httpServer *http.Server
	listener   net.Listener // optional pre-bound listener for tests
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithListener sets a pre-bound listener. Tests use this to avoid
// racing on port allocation.
func WithListener(l net.Listener) ServerOption {
	return func(s *Server) {
		s.listener = l
	}
}

// NewServer wires the API over the memory pipeline and chat surface.
func NewServer(cfg *config.Config, pipeline apiv1.Pipeline, chatter apiv1.Chatter, opts ...ServerOption) *Server {
	srv := &Server{
		config:   cfg,
		api:      apiv1.New(pipeline, chatter),
		registry: metrics.NewRegistry(metrics.NewCollector(build.Version)),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Serve starts the HTTP server and blocks until the context is done or
// a shutdown signal arrives.
func (srv *Server) Serve(ctx context.Context) error {
	requestLogger := httplog.NewLogger("http", httplog.Options{
		LogLevel:         slog.LevelDebug,
		JSON:             srv.config.Core.LogFormat == "json",
		Concise:          true,
		RequestHeaders:   true,
		MessageFieldName: "msg",
		ResponseHeaders:  true,
	})

	r := chi.NewMux()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Compress(5))
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Content-Encoding", "Accept"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimiddleware.RedirectSlashes)
	r.Use(srv.registry.Middleware)

	srv.setupRoutes(r)

	addr := srv.config.Server.Addr()
	srv.httpServer = &http.Server{
		Handler:           r,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	logger.Info(ctx, "Server is starting", tag.Addr(addr))

	go srv.startServer(ctx)

	srv.waitForShutdown(ctx)
	return nil
}

// setupRoutes mounts the API, health and metrics routes under the
// configured base path.
func (srv *Server) setupRoutes(r *chi.Mux) {
	basePath := path.Join("/", srv.config.Server.BasePath)
	apiBasePath := path.Join(basePath, "api/v1")

	authMode := srv.config.Server.Auth.Mode
	authRequired := authMode == config.AuthModeToken

	r.Route(apiBasePath, func(r chi.Router) {
		if authRequired {
			r.Use(middleware.TokenAuth(build.Slug, srv.config.Server.Auth.Token))
		}
		srv.api.ConfigureRoutes(r)
	})

	// Health stays open regardless of auth mode.
	r.Get(path.Join(basePath, "health"), func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","version":"` + build.Version + `"}`))
	})

	metricsHandler := promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{}).ServeHTTP
	if authRequired && srv.config.Server.Metrics != config.MetricsAccessPublic {
		guarded := middleware.TokenAuth(build.Slug, srv.config.Server.Auth.Token)(http.HandlerFunc(metricsHandler))
		metricsHandler = guarded.ServeHTTP
	}
	r.Get(path.Join(basePath, "metrics"), metricsHandler)
}

// startServer starts the HTTP server with or without TLS.
func (srv *Server) startServer(ctx context.Context) {
	var err error

	tlsCfg := srv.config.Server.TLS
	switch {
	case srv.listener != nil && tlsCfg != nil:
		logger.Info(ctx, "Starting TLS server on pre-bound listener", tag.File(tlsCfg.CertFile))
		err = srv.httpServer.ServeTLS(srv.listener, tlsCfg.CertFile, tlsCfg.KeyFile)
	case srv.listener != nil:
		logger.Info(ctx, "Starting server on pre-bound listener")
		err = srv.httpServer.Serve(srv.listener)
	case tlsCfg != nil:
		logger.Info(ctx, "Starting TLS server", tag.File(tlsCfg.CertFile))
		err = srv.httpServer.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
	default:
		err = srv.httpServer.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		logger.Error(ctx, "Server failed to start or unexpected shutdown", tag.Error(err))
	}
}

// Shutdown gracefully shuts down the server.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.httpServer == nil {
		return nil
	}
	logger.Info(ctx, "Server is shutting down", tag.Addr(srv.httpServer.Addr))

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	srv.httpServer.SetKeepAlivesEnabled(false)
	return srv.httpServer.Shutdown(shutdownCtx)
}

// waitForShutdown blocks until the context is done or a signal arrives,
// then drains the server.
func (srv *Server) waitForShutdown(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-ctx.Done():
		logger.Info(ctx, "Context done, shutting down server")
	case sig := <-quit:
		logger.Info(ctx, "Received shutdown signal", tag.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.httpServer.SetKeepAlivesEnabled(false)
	if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Failed to shutdown server gracefully", tag.Error(err))
	}
}
