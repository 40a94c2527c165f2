package foundation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gocloud.dev/server/health"
	"gocloud.dev/server/health/sqlhealth"

	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/profiler"
)

const (
	defaultHTTPReadTimeoutSeconds  = 15
	defaultHTTPWriteTimeoutSeconds = 15
	defaultHTTPIdleTimeoutSeconds  = 60
	defaultShutdownTimeoutSeconds  = 10

	healthCheckPath = "/healthz"
)

// AddHealthCheck adds a checker consulted by the health endpoint.
func (a *Application) AddHealthCheck(checker health.Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.healthCheckers = append(a.healthCheckers, checker)
}

// HandleHealth returns 200 when every checker passes, 500 otherwise.
func (a *Application) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	checkers := append([]health.Checker(nil), a.healthCheckers...)
	a.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	for _, c := range checkers {
		if err := c.CheckHealth(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "unhealthy")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func (a *Application) addSQLHealthChecker(ctx context.Context) {
	if a.dbPool == nil {
		return
	}

	sqlDB, err := a.dbPool.DB(ctx, false).DB()
	if err != nil {
		a.Log(ctx).WithError(err).Warn("database health check unavailable")
		return
	}

	dbCheck := sqlhealth.New(sqlDB)
	a.AddHealthCheck(dbCheck)
	a.OnClose(func(_ context.Context) {
		dbCheck.Stop()
	})
}

// Handler is the application router behind the health endpoint and otelhttp instrumentation.
func (a *Application) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(healthCheckPath, a.HandleHealth)
	mux.Handle("/", a.router)

	return otelhttp.NewHandler(mux, a.name)
}

// Address is the listen address taken from configuration.
func (a *Application) Address() string {
	if ports, ok := a.config.(config.ConfigurationPorts); ok {
		return ports.HTTPPort()
	}
	return ":8080"
}

// Serve boots the application and serves HTTP until ctx is done, then shuts down gracefully.
func (a *Application) Serve(ctx context.Context, address string) error {
	if err := a.Boot(ctx); err != nil {
		return err
	}

	if address == "" {
		address = a.Address()
	}

	a.addSQLHealthChecker(ctx)

	pprofServer := profiler.NewServer()
	profilerCfg, _ := a.config.(config.ConfigurationProfiler)
	if err := pprofServer.StartIfEnabled(ctx, profilerCfg); err != nil {
		return err
	}
	defer func() {
		_ = pprofServer.Stop(context.WithoutCancel(ctx))
	}()

	srv := &http.Server{
		Addr:    address,
		Handler: a.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadTimeout:  defaultHTTPReadTimeoutSeconds * time.Second,
		WriteTimeout: defaultHTTPWriteTimeoutSeconds * time.Second,
		IdleTimeout:  defaultHTTPIdleTimeoutSeconds * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log(ctx).WithField("address", address).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeoutSeconds*time.Second)
		defer cancel()

		a.Log(ctx).Info("http server stopping")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
