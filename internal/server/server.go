// Package server hosts the solarwatch HTTP API: operational endpoints,
// plugin route mounting, and the middleware chain.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	_ "github.com/HerbHall/solarwatch/internal/apidocs" // registers the OpenAPI document
	"github.com/HerbHall/solarwatch/internal/version"
	"github.com/HerbHall/solarwatch/pkg/plugin"
)

// PluginSource is what the server needs from the registry.
type PluginSource interface {
	AllRoutes() map[string][]plugin.Route
	All() []plugin.Plugin
}

// ReadinessChecker returns nil when the server can take traffic.
type ReadinessChecker func(ctx context.Context) error

// Options tune the server beyond its address.
type Options struct {
	ReadOnly  bool
	RateLimit RateLimitConfig
	// DevMode serves the Swagger UI at /swagger/.
	DevMode bool
	// ComputePrefixes are POST path prefixes allowed in read-only mode.
	ComputePrefixes []string
}

// Server is the solarwatch HTTP server.
type Server struct {
	httpServer *http.Server
	plugins    PluginSource
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
}

var operationalPaths = []string{"/healthz", "/readyz", "/metrics"}

// New builds a server listening on addr with every active plugin's routes
// mounted under /api/v1/<plugin>.
func New(addr string, plugins PluginSource, logger *zap.Logger, ready ReadinessChecker, opts Options) *Server {
	s := &Server{
		plugins: plugins,
		logger:  logger,
		mux:     http.NewServeMux(),
		ready:   ready,
	}
	s.registerRoutes()
	s.mountPluginRoutes()

	if opts.DevMode {
		s.mux.Handle("GET /swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
		logger.Info("swagger UI enabled (dev_mode)", zap.String("path", "/swagger/"))
	}

	rl := opts.RateLimit
	if rl.RPS <= 0 {
		rl.RPS = 50
	}
	if rl.Burst <= 0 {
		rl.Burst = 100
	}

	chain := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, operationalPaths...),
		SecurityHeadersMiddleware,
		VersionHeaderMiddleware,
		RateLimitMiddleware(rl.RPS, rl.Burst, operationalPaths...),
	}
	if opts.ReadOnly {
		chain = append(chain, ReadOnlyMiddleware(opts.ComputePrefixes...))
		logger.Info("read-only mode enabled")
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           Chain(s.mux, chain...),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
}

func (s *Server) mountPluginRoutes() {
	for name, routes := range s.plugins.AllRoutes() {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, name, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route", zap.String("plugin", name), zap.String("pattern", pattern))
		}
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthResponse is the body of GET /api/v1/health. Status is the worst
// status any plugin reports.
type HealthResponse struct {
	Status  string                         `json:"status"`
	Service string                         `json:"service"`
	Version map[string]string              `json:"version"`
	Plugins map[string]plugin.HealthStatus `json:"plugins"`
}

// PluginResponse is one entry of GET /api/v1/plugins.
type PluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Roles       []string `json:"roles,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  plugin.StatusHealthy,
		Service: "solarwatch",
		Version: version.Map(),
		Plugins: make(map[string]plugin.HealthStatus),
	}
	for _, p := range s.plugins.All() {
		hc, ok := p.(plugin.HealthChecker)
		if !ok {
			continue
		}
		h := hc.Health(r.Context())
		resp.Plugins[p.Info().Name] = h
		if severity(h.Status) > severity(resp.Status) {
			resp.Status = h.Status
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := s.plugins.All()
	out := make([]PluginResponse, 0, len(plugins))
	for _, p := range plugins {
		info := p.Info()
		out = append(out, PluginResponse{
			Name:        info.Name,
			Version:     info.Version,
			Description: info.Description,
			Roles:       info.Roles,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func severity(status string) int {
	switch status {
	case plugin.StatusHealthy:
		return 0
	case plugin.StatusDegraded:
		return 1
	default:
		return 2
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
