package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetrics(t *testing.T) {
	m := New(zap.NewNop(), prometheus.NewRegistry())

	m.RecordSpeech("ready", 1.2)
	m.RecordSpeech("ready", 0.4)
	m.RecordSpeech("pending", 20)
	m.RecordProviderRequest("synthesize", true, 0.8)
	m.RecordProviderRequest("status", false, 0.1)
	m.RecordPoll(true, 3)
	m.AddRelayBytes(2048)
	m.AddRelayBytes(-1)
	m.SetHistorySize(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ttsRequests.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ttsRequests.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequests.WithLabelValues("status", "failed")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.relayBytes))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.historyEntries))
}

func TestMetricsHandler(t *testing.T) {
	m := New(zap.NewNop(), prometheus.NewRegistry())
	m.RecordSpeech("failed", 0.1)

	rec := httptest.NewRecorder()
	NewHandler(m, "recivo", zap.NewNop()).MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `tts_requests_total{outcome="failed"} 1`)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(New(zap.NewNop(), prometheus.NewRegistry()), "recivo", zap.NewNop()).
		HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"recivo"}`, rec.Body.String())
}
