package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{"executiveSummary": "ok", "findings": [{"requirementText": "1. Deliver", "complianceScore": 1, "responseSummary": "yes", "flag": "COMPLIANT", "category": "TIMELINE"}]}`

// scriptedGenerator replays a fixed list of outcomes, repeating the last one.
type scriptedGenerator struct {
	mu      sync.Mutex
	calls   int
	results []func() (string, error)
}

func (g *scriptedGenerator) Generate(ctx context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.results) {
		i = len(g.results) - 1
	}
	g.calls++
	return g.results[i]()
}

func (g *scriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func fail(code int) func() (string, error) {
	return func() (string, error) { return "", &StatusError{Code: code, Body: "busy"} }
}

func succeed(payload string) func() (string, error) {
	return func() (string, error) { return payload, nil }
}

type recordedRetry struct {
	attempt int
	delay   time.Duration
}

func recorder() (*[]recordedRetry, func(int, time.Duration, error)) {
	var mu sync.Mutex
	var got []recordedRetry
	return &got, func(attempt int, delay time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, recordedRetry{attempt: attempt, delay: delay})
	}
}

func TestInvokeSucceedsOnThirdAttempt(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{results: []func() (string, error){fail(503), fail(500), succeed(validPayload)}}
	retries, onRetry := recorder()
	inv := New(gen, Config{BaseDelay: 5 * time.Millisecond, OnRetry: onRetry})

	report, err := inv.Invoke(context.Background(), Request{RFQText: "rfq", BidText: "bid"})
	require.NoError(t, err)
	assert.Equal(t, 3, gen.Calls())
	assert.Len(t, report.Findings, 1)
	assert.Equal(t, []recordedRetry{
		{attempt: 1, delay: 5 * time.Millisecond},
		{attempt: 2, delay: 10 * time.Millisecond},
	}, *retries)
}

func TestInvokeDefaultBackoffWaitsOneThenTwoSeconds(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps for three seconds")
	}
	t.Parallel()

	gen := &scriptedGenerator{results: []func() (string, error){fail(503), fail(503), succeed(validPayload)}}
	retries, onRetry := recorder()
	inv := New(gen, Config{OnRetry: onRetry})

	start := time.Now()
	_, err := inv.Invoke(context.Background(), Request{})
	require.NoError(t, err)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 3*time.Second)
	assert.Less(t, elapsed, 5*time.Second)
	require.Len(t, *retries, 2)
	assert.Equal(t, time.Second, (*retries)[0].delay)
	assert.Equal(t, 2*time.Second, (*retries)[1].delay)
}

func TestInvokeExhaustsRetries(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{results: []func() (string, error){fail(503)}}
	inv := New(gen, Config{BaseDelay: time.Millisecond})

	_, err := inv.Invoke(context.Background(), Request{})
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 3, gen.Calls())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 503, statusErr.Code)
}

func TestInvokeTransportErrorsAreRetried(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{results: []func() (string, error){
		func() (string, error) { return "", errors.New("connection reset by peer") },
		succeed(validPayload),
	}}
	inv := New(gen, Config{BaseDelay: time.Millisecond})

	_, err := inv.Invoke(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.Calls())
}

func TestInvokeMalformedPayloadIsNotRetried(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{results: []func() (string, error){succeed("I am unable to help with that.")}}
	inv := New(gen, Config{BaseDelay: time.Millisecond})

	_, err := inv.Invoke(context.Background(), Request{})
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 1, gen.Calls())
}

func TestInvokeConfigurationErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	inv := New(NewGeminiClient(GeminiConfig{Endpoint: DefaultGeminiEndpoint, Model: "gemini-1.5-pro"}), Config{BaseDelay: time.Millisecond})
	_, err := inv.Invoke(context.Background(), Request{})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = New(nil, Config{}).Invoke(context.Background(), Request{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestInvokeCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGenerator{results: []func() (string, error){fail(503)}}
	inv := New(gen, Config{
		BaseDelay: time.Hour,
		OnRetry:   func(int, time.Duration, error) { cancel() },
	})

	_, err := inv.Invoke(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 1, gen.Calls())
}

func TestInvokeInFlightAttemptOutlivesCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool
	gen := &scriptedGenerator{results: []func() (string, error){func() (string, error) {
		cancel()
		return validPayload, nil
	}}}
	inv := New(blockingCheck{gen: gen, sawCancel: &sawCancel}, Config{})

	_, err := inv.Invoke(ctx, Request{})
	require.NoError(t, err)
	assert.False(t, sawCancel.Load())
}

// blockingCheck records whether the attempt context was cancelled by the
// caller's cancellation.
type blockingCheck struct {
	gen       Generator
	sawCancel *atomic.Bool
}

func (b blockingCheck) Generate(ctx context.Context, req Request) (string, error) {
	out, err := b.gen.Generate(ctx, req)
	if ctx.Err() != nil {
		b.sawCancel.Store(true)
	}
	return out, err
}

func TestGeminiClientRequestShape(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"text": `{"executiveSummary": "ok",`},
					map[string]any{"text": ` "findings": []}`},
				}},
			}},
		})
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{Endpoint: srv.URL + "/", Model: "gemini-test", APIKey: "secret"})
	text, err := client.Generate(context.Background(), Request{RFQText: "RFQ BODY", BidText: "BID BODY"})
	require.NoError(t, err)
	assert.Equal(t, `{"executiveSummary": "ok", "findings": []}`, text)

	genCfg := gotBody["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", genCfg["responseMimeType"])
	assert.NotNil(t, genCfg["responseSchema"])

	contents := gotBody["contents"].([]any)
	userText := contents[0].(map[string]any)["parts"].([]any)[0].(map[string]any)["text"].(string)
	assert.True(t, strings.Contains(userText, "RFQ BODY") && strings.Contains(userText, "BID BODY"))
}

func TestGeminiClientRetriedThroughInvoker(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": validPayload}}},
			}},
		})
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{Endpoint: srv.URL, Model: "gemini-test", APIKey: "k"})
	report, err := New(client, Config{BaseDelay: time.Millisecond}).Invoke(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, "ok", report.ExecutiveSummary)
}

func TestGeminiClientMalformedEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{Endpoint: srv.URL, Model: "m", APIKey: "k"})
	_, err := client.Generate(context.Background(), Request{})
	require.ErrorIs(t, err, ErrMalformedResponse)

	srvEmpty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srvEmpty.Close()

	client = NewGeminiClient(GeminiConfig{Endpoint: srvEmpty.URL, Model: "m", APIKey: "k"})
	_, err = client.Generate(context.Background(), Request{})
	require.ErrorIs(t, err, ErrMalformedResponse)
}
