package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	sensortesting "github.com/malbeclabs/sensorlake/utils/pkg/testing"
	"github.com/stretchr/testify/require"
)

func TestSensorLake_Metrics_Router(t *testing.T) {
	t.Parallel()

	BuildInfo.WithLabelValues("test", "abc", "today").Set(1)
	srv := httptest.NewServer(NewRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok\n", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `sensorlake_pipeline_build_info{commit="abc",date="today",version="test"} 1`)
	require.Contains(t, string(body), `sensorlake_pipeline_http_requests_total{method="GET",path="/healthz",status="200"}`)
}

func TestSensorLake_Metrics_Serve(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, sensortesting.NewLogger(), listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}
