// Package monitor serves Prometheus metrics and small JSON status pages
// for the command-line tools.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Server exposes /metrics plus any routes added with HandleJSON.
type Server struct {
	router *mux.Router
	server *http.Server
	logger *zap.Logger
}

func NewServer(reg *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return &Server{
		router: router,
		server: &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// HandleJSON registers a GET route that writes the value returned by fn as JSON.
func (s *Server) HandleJSON(path string, fn func() any) {
	s.router.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(fn()); err != nil {
			s.logger.Warn("status encode failed", zap.String("path", path), zap.Error(err))
		}
	}).Methods(http.MethodGet)
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr and serves until ctx is done. It returns the bound address.
func (s *Server) Start(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server error", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down the monitor server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("monitor server listening", zap.Stringer("addr", ln.Addr()))
	return ln.Addr(), nil
}
