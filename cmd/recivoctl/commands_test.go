package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProvider(t *testing.T) *httptest.Server {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/speech/voices", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"voiceId":"en-US-claire","displayName":"Claire","locale":"en-US","gender":"Female"}]`))
	})
	mux.HandleFunc("POST /v1/speech/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"audioFile":"` + server.URL + `/files/out.mp3"}`))
	})
	mux.HandleFunc("GET /files/out.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Setenv("MURF_API_KEY", "test-key")
	t.Setenv("MURF_BASE_URL", server.URL+"/v1")
	t.Setenv("VOICES_REFRESH_INTERVAL", "0")
	return server
}

func run(t *testing.T, args ...string) (string, error) {
	out, _, err := runWithStderr(t, args...)
	return out, err
}

func runWithStderr(t *testing.T, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVoicesCommand(t *testing.T) {
	fakeProvider(t)

	out, err := run(t, "voices")
	require.NoError(t, err)
	assert.Contains(t, out, "en-US-claire")
	assert.Contains(t, out, "Claire")
}

func TestSpeakCommandDownloads(t *testing.T) {
	server := fakeProvider(t)
	path := filepath.Join(t.TempDir(), "out.mp3")

	out, err := run(t, "speak", "--voice", "en-US-claire", "--text", "hello", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "audio/mpeg")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(data))

	speakOut = ""
	out, err = run(t, "speak", "--voice", "en-US-claire", "--text", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, server.URL+"/files/out.mp3")
}

func TestCommandErrorLeftToCaller(t *testing.T) {
	fakeProvider(t)

	// ошибку печатает main, cobra молчит
	out, errOut, err := runWithStderr(t, "status", "missing-job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-job")
	assert.Empty(t, out)
	assert.Empty(t, errOut)
}
