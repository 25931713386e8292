package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/interviewchat/internal/api"
	"github.com/prepdeck/interviewchat/internal/controller"
	"github.com/prepdeck/interviewchat/internal/infrastructure/monitoring"
)

type stubSource struct {
	status controller.Status
}

func (s *stubSource) Status() controller.Status { return s.status }

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	monitoring.New(reg)
	return api.New(api.Options{
		Addr: "127.0.0.1:0",
		Source: &stubSource{status: controller.Status{
			CurrentSessionID: "sess_1",
			TransportState:   "connected",
			SessionsCached:   3,
		}},
		Registry: reg,
	})
}

func get(t *testing.T, s *api.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "127.0.0.1:54321"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := get(t, newTestServer(t), "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatusReportsController(t *testing.T) {
	w := get(t, newTestServer(t), "/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"currentSessionId": "sess_1",
		"transportState": "connected",
		"sessionsCached": 3,
		"streaming": false
	}`, w.Body.String())
}

func TestMetricsExposition(t *testing.T) {
	w := get(t, newTestServer(t), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "interviewchat_")
}

func TestRemoteClientsRejected(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = "203.0.113.9:44000"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
