package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/internal/config"
)

func fakeGemini(t *testing.T, handler http.HandlerFunc) *Analyzer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := New(config.AnalyzerConfig{
		APIKey:     "test-key",
		Endpoint:   srv.URL,
		APITimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return a
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(config.AnalyzerConfig{}, zap.NewNop())
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	a := fakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Contents)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "world news coverage")
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"topic\":\"world news\",\"language\":\"English\"}"}]},"finishReason":"STOP"}]}`))
	})

	c, err := a.Classify(context.Background(), "Extensive world news coverage from around the globe.")

	require.NoError(t, err)
	assert.Equal(t, "world news", c.Topic)
	assert.Equal(t, "English", c.Language)
}

func TestClassifyTruncatesLongText(t *testing.T) {
	a := fakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.Contents[0].Parts[0].Text), maxClassifyChars)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"topic\":\"t\",\"language\":\"l\"}"}]}}]}`))
	})

	_, err := a.Classify(context.Background(), strings.Repeat("word ", 2000))
	require.NoError(t, err)
}

func TestClassifyRejectsEmptyText(t *testing.T) {
	a := fakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be sent for empty text")
	})

	_, err := a.Classify(context.Background(), "   ")
	require.Error(t, err)
}

func TestClassifyAPIError(t *testing.T) {
	a := fakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	})

	_, err := a.Classify(context.Background(), "some text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClassifyNoCandidates(t *testing.T) {
	a := fakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := a.Classify(context.Background(), "some text")
	require.Error(t, err)
}

func TestClassifyMalformedVerdict(t *testing.T) {
	a := fakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"not json at all"}]}}]}`))
	})

	_, err := a.Classify(context.Background(), "some text")
	require.Error(t, err)
}

func TestDisabledAlwaysFails(t *testing.T) {
	_, err := Disabled{}.Classify(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrDisabled)
}
