package speech

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recivo/internal/history"
	"recivo/internal/payload"
	"recivo/internal/poller"
	"recivo/internal/provider"
	"recivo/internal/rules"
	"recivo/internal/scanner"
)

type fakeSynth struct {
	body  string
	err   error
	calls int
}

func (f *fakeSynth) Synthesize(_ context.Context, _ provider.SynthesisRequest) (*provider.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{StatusCode: 200, Body: []byte(f.body), Value: payload.FromBody([]byte(f.body))}, nil
}

// statusServer отдает PENDING до попытки readyAt, затем готовый ответ
type statusServer struct {
	mu      sync.Mutex
	checks  int
	readyAt int
	ready   string
}

func (s *statusServer) FetchStatus(_ context.Context, statusURL string) (*provider.Response, error) {
	// первый шаблон не поддерживается провайдером
	if strings.Contains(statusURL, "/jobs/") {
		return nil, &provider.Error{Operation: provider.OpStatus, StatusCode: 404, Body: []byte(`{"message":"not found"}`)}
	}

	s.mu.Lock()
	s.checks++
	n := s.checks
	s.mu.Unlock()

	body := `{"status":"PENDING"}`
	if s.readyAt > 0 && n >= s.readyAt {
		body = s.ready
	}
	return &provider.Response{StatusCode: 200, Body: []byte(body), Value: payload.FromBody([]byte(body))}, nil
}

func newTestService(synth Synthesizer, status poller.StatusFetcher) (*Service, *history.Ledger) {
	table := rules.DefaultTable()
	sc := scanner.New()
	ledger := history.NewLedger(history.DefaultCapacity)
	jobs := poller.New(status, sc, table, poller.Config{
		BaseURL:     "https://api.test/v1",
		MaxAttempts: poller.DefaultMaxAttempts,
		Interval:    time.Millisecond,
	}, zap.NewNop())

	svc := NewService(Config{PublicBaseURL: "http://relay.local/"}, synth, jobs, sc, table, ledger, zap.NewNop())
	return svc, ledger
}

func TestSpeakDirectReference(t *testing.T) {
	svc, ledger := newTestService(&fakeSynth{body: `{"audioFile":"https://x/a.mp3"}`}, &statusServer{})

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "en-US-claire"})
	require.NoError(t, err)

	assert.Equal(t, StatusReady, out.Status)
	assert.Equal(t, "https://x/a.mp3", out.AudioURL)
	assert.Equal(t, "http://relay.local/api/tts/proxy?url="+url.QueryEscape("https://x/a.mp3"), out.ProxyURL)
	assert.Contains(t, out.ProxyURL, "https%3A%2F%2Fx%2Fa.mp3")

	entries := ledger.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].TextPreview)
	assert.Equal(t, "en-US-claire", entries[0].VoiceID)
	assert.Equal(t, "https://x/a.mp3", entries[0].AudioURL)
}

func TestSpeakFallsBackToScanner(t *testing.T) {
	svc, _ := newTestService(&fakeSynth{body: `{"result":{"files":[{"location":"https://x/deep.wav"}]}}`}, &statusServer{})

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "v"})
	require.NoError(t, err)

	assert.Equal(t, StatusReady, out.Status)
	assert.Equal(t, "https://x/deep.wav", out.AudioURL)
}

func TestSpeakInlinePayload(t *testing.T) {
	encoded := strings.Repeat("SUQz", 300)
	svc, _ := newTestService(&fakeSynth{body: `{"encodedAudio":"` + encoded + `"}`}, &statusServer{})

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "v"})
	require.NoError(t, err)

	assert.Equal(t, StatusReady, out.Status)
	assert.Equal(t, scanner.InlinePrefix+encoded, out.AudioURL)
}

func TestSpeakPendingAfterExhaustion(t *testing.T) {
	status := &statusServer{}
	svc, ledger := newTestService(&fakeSynth{body: `{"id":"job1"}`}, status)

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "v"})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, out.Status)
	assert.Equal(t, "job1", out.JobID)
	assert.Equal(t, poller.DefaultMaxAttempts, status.checks)
	assert.Zero(t, ledger.Len())
}

func TestSpeakResolvedByPolling(t *testing.T) {
	status := &statusServer{
		readyAt: 3,
		ready:   `{"status":"SUCCEEDED","output":{"audioUrl":"https://x/b.mp3"}}`,
	}
	svc, ledger := newTestService(&fakeSynth{body: `{"id":"job1"}`}, status)

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "v"})
	require.NoError(t, err)

	assert.Equal(t, StatusReady, out.Status)
	assert.Equal(t, "https://x/b.mp3", out.AudioURL)
	assert.Equal(t, 3, status.checks)
	assert.Equal(t, 1, ledger.Len())
}

func TestSpeakStatusURLIsNotAudio(t *testing.T) {
	status := &statusServer{}
	body := `{"id":"job1","status":"PENDING","url":"https://api.test/v1/speech/job1"}`
	svc, ledger := newTestService(&fakeSynth{body: body}, status)

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "v"})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, out.Status)
	assert.Equal(t, "job1", out.JobID)
	assert.Empty(t, out.AudioURL)
	assert.Positive(t, status.checks)
	assert.Zero(t, ledger.Len())
}

func TestSpeakPendingKeepsNumericJobID(t *testing.T) {
	svc, _ := newTestService(&fakeSynth{body: `{"id":12345678901234567891}`}, &statusServer{})

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "v"})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, out.Status)
	assert.Equal(t, "12345678901234567891", out.JobID)
}

func TestSpeakInvalidRequest(t *testing.T) {
	synth := &fakeSynth{body: `{"audioFile":"https://x/a.mp3"}`}
	svc, ledger := newTestService(synth, &statusServer{})

	for _, req := range []Request{
		{VoiceID: "v"},
		{Text: "hello"},
		{Text: "   ", VoiceID: "v"},
	} {
		_, err := svc.Speak(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}

	assert.Zero(t, synth.calls)
	assert.Zero(t, ledger.Len())
}

func TestSpeakTransportFailure(t *testing.T) {
	synth := &fakeSynth{err: &provider.Error{
		Operation:  provider.OpSynthesize,
		StatusCode: 401,
		Body:       []byte(`{"errorMessage":"invalid api key"}`),
	}}
	svc, ledger := newTestService(synth, &statusServer{})

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "v"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, FailureTransport, out.Failure)
	assert.Equal(t, "invalid api key", out.Detail)
	assert.Zero(t, ledger.Len())

	raw, ok := svc.LastRaw()
	require.True(t, ok)
	assert.Equal(t, payload.KindObject, raw.Kind())
}

func TestSpeakNetworkFailureWithoutBody(t *testing.T) {
	synth := &fakeSynth{err: &provider.Error{Operation: provider.OpSynthesize, Err: errors.New("dial tcp: refused")}}
	svc, _ := newTestService(synth, &statusServer{})

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "v"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.Detail, "refused")

	_, ok := svc.LastRaw()
	assert.False(t, ok)
}

func TestSpeakUnresolvedResponse(t *testing.T) {
	svc, ledger := newTestService(&fakeSynth{body: `{"status":"ok","characters":12}`}, &statusServer{})

	out, err := svc.Speak(context.Background(), Request{Text: "hello", VoiceID: "v"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, FailureUnresolved, out.Failure)
	field, ok := out.Raw.Get("characters")
	require.True(t, ok)
	assert.Equal(t, payload.KindNumber, field.Kind())
	assert.Zero(t, ledger.Len())
}

func TestLastRawOverwritten(t *testing.T) {
	synth := &fakeSynth{body: `{"audioFile":"https://x/1.mp3"}`}
	svc, _ := newTestService(synth, &statusServer{})

	_, ok := svc.LastRaw()
	assert.False(t, ok)

	_, err := svc.Speak(context.Background(), Request{Text: "a", VoiceID: "v"})
	require.NoError(t, err)

	synth.body = `{"audioFile":"https://x/2.mp3"}`
	_, err = svc.Speak(context.Background(), Request{Text: "b", VoiceID: "v"})
	require.NoError(t, err)

	raw, ok := svc.LastRaw()
	require.True(t, ok)
	field, _ := raw.Get("audioFile")
	s, _ := field.Str()
	assert.Equal(t, "https://x/2.mp3", s)
}

func TestHistoryCapacity(t *testing.T) {
	synth := &fakeSynth{body: `{"audioFile":"https://x/a.mp3"}`}
	svc, _ := newTestService(synth, &statusServer{})

	for i := 0; i < history.DefaultCapacity+1; i++ {
		_, err := svc.Speak(context.Background(), Request{Text: fmt.Sprintf("entry %d", i), VoiceID: "v"})
		require.NoError(t, err)
	}

	entries := svc.History()
	require.Len(t, entries, history.DefaultCapacity)
	// самая первая запись вытеснена, последняя стоит первой
	assert.Equal(t, "entry 50", entries[0].TextPreview)
	assert.Equal(t, "entry 1", entries[len(entries)-1].TextPreview)
}

func TestStatusLookup(t *testing.T) {
	status := &statusServer{readyAt: 2, ready: `{"audioUrl":"https://x/c.mp3"}`}
	svc, ledger := newTestService(&fakeSynth{}, status)

	out, err := svc.Status(context.Background(), "job1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, out.Status)
	assert.Equal(t, payload.KindObject, out.Raw.Kind())

	out, err = svc.Status(context.Background(), "job1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, out.Status)
	assert.Equal(t, "https://x/c.mp3", out.AudioURL)
	assert.NotEmpty(t, out.ProxyURL)

	// запрос статуса не пишет в историю: текст и голос неизвестны
	assert.Zero(t, ledger.Len())
}

type unreachable struct{}

func (unreachable) FetchStatus(context.Context, string) (*provider.Response, error) {
	return nil, &provider.Error{Operation: provider.OpStatus, Err: errors.New("refused")}
}

func TestStatusNotFound(t *testing.T) {
	svc, _ := newTestService(&fakeSynth{}, unreachable{})

	_, err := svc.Status(context.Background(), "job1")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = svc.Status(context.Background(), " ")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
