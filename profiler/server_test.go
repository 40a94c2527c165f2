package profiler_test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/profiler"
)

func TestStartIfEnabled(t *testing.T) {
	tests := []struct {
		name          string
		enable        bool
		expectRunning bool
	}{
		{name: "disabled", enable: false, expectRunning: false},
		{name: "enabled", enable: true, expectRunning: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			server := profiler.NewServer()

			cfg := &config.ConfigurationDefault{ProfilerEnable: tt.enable, ProfilerPortAddr: "127.0.0.1:0"}
			require.NoError(t, server.StartIfEnabled(ctx, cfg))
			require.Equal(t, tt.expectRunning, server.IsRunning())

			if tt.expectRunning {
				resp, err := http.Get("http://" + server.Addr() + "/debug/pprof/")
				require.NoError(t, err)
				require.NoError(t, resp.Body.Close())
				require.Equal(t, http.StatusOK, resp.StatusCode)
			} else {
				require.Empty(t, server.Addr())
			}

			require.NoError(t, server.Stop(ctx))
			require.False(t, server.IsRunning())
		})
	}
}

func TestStartReportsBusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	server := profiler.NewServer()
	cfg := &config.ConfigurationDefault{ProfilerEnable: true, ProfilerPortAddr: busy.Addr().String()}

	require.Error(t, server.StartIfEnabled(t.Context(), cfg))
	require.False(t, server.IsRunning())
}

func TestStopWhenNotRunning(t *testing.T) {
	require.NoError(t, profiler.NewServer().Stop(t.Context()))
}

func TestHandlerServesIndex(t *testing.T) {
	rr := httptest.NewRecorder()
	profiler.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "goroutine")
}
