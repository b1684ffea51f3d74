package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recivo/internal/config"
	"recivo/internal/speech"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Port: 8080, PublicBaseURL: "https://tts.example.com"},
		Murf: config.MurfConfig{
			APIKey:        "secret",
			BaseURL:       baseURL,
			AuthHeader:    "api-key",
			DefaultFormat: "wav",
			Timeout:       5 * time.Second,
		},
		Poll:    config.PollConfig{MaxAttempts: 2, Interval: time.Millisecond},
		History: config.HistoryConfig{Capacity: 3},
	}
}

func TestNewWiresComponents(t *testing.T) {
	var got map[string]string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"audioFile":"https://cdn.example.com/a.mp3"}`))
	}))
	defer provider.Close()

	reg := prometheus.NewRegistry()
	a := New(testConfig(provider.URL), zap.NewNop(), reg)

	out, err := a.Speech.Speak(context.Background(), speech.Request{Text: "hi", VoiceID: "en-US-claire"})
	require.NoError(t, err)

	assert.Equal(t, speech.StatusReady, out.Status)
	assert.Equal(t, "wav", got["format"])
	assert.Equal(t, "https://tts.example.com/api/tts/proxy?url=https%3A%2F%2Fcdn.example.com%2Fa.mp3", out.ProxyURL)
	assert.Equal(t, 3, a.History.Capacity())

	count, err := testutil.GatherAndCount(reg, "tts_requests_total", "provider_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
