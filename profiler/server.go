// Package profiler serves net/http/pprof on a side port while the HTTP server runs.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/translation-manager/config"
)

const (
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
)

// Server owns the pprof listener. The zero value is stopped.
type Server struct {
	server   *http.Server
	listener net.Listener
}

func NewServer() *Server {
	return &Server{}
}

// Handler exposes the pprof endpoints under /debug/pprof/.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// StartIfEnabled listens on the profiler port when PROFILER_ENABLE is set.
// A port that cannot be bound is reported here, not from the serving goroutine.
func (s *Server) StartIfEnabled(ctx context.Context, cfg config.ConfigurationProfiler) error {
	if cfg == nil || !cfg.ProfilerEnabled() {
		return nil
	}

	listener, err := net.Listen("tcp", cfg.ProfilerPort())
	if err != nil {
		return fmt.Errorf("listen pprof %s: %w", cfg.ProfilerPort(), err)
	}

	log := util.Log(ctx).WithField("address", listener.Addr().String())
	log.Info("pprof server listening")

	s.listener = listener
	s.server = &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}

	go func(srv *http.Server) {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.WithError(serveErr).Error("pprof server failed")
		}
	}(s.server)

	return nil
}

// Addr is the bound address, empty while stopped.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		util.Log(ctx).WithError(err).Error("failed to shutdown pprof server")
		return err
	}

	s.server = nil
	s.listener = nil
	return nil
}

func (s *Server) IsRunning() bool {
	return s.server != nil
}
