package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/arbiter"
	"github.com/voxsurf/voxsurf/internal/config"
	"github.com/voxsurf/voxsurf/internal/cursor"
)

// echoHandler answers instantly with a payload derived from the turn.
type echoHandler struct {
	delay time.Duration
}

func (h *echoHandler) HandleTurn(ctx context.Context, turn *schemas.Turn, snap *arbiter.Snapshot) *schemas.WebhookResponse {
	snap.Publish(&cursor.Cursor{URL: "https://example.com"})
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	return &schemas.WebhookResponse{FulfillmentText: "handled " + turn.Action}
}

func newTestServer(t *testing.T, h arbiter.Handler, deadline time.Duration) *Server {
	t.Helper()
	arb := arbiter.New(h, deadline, zap.NewNop())
	return NewServer(arb, config.ServerConfig{
		Addr:            ":0",
		TurnDeadline:    deadline,
		ShutdownTimeout: time.Second,
	}, zap.NewNop())
}

func postWebhook(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &echoHandler{}, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWebhookRoundTrip(t *testing.T) {
	s := newTestServer(t, &echoHandler{}, time.Second)

	rec := postWebhook(t, s, `{
		"responseId": "r1",
		"session": "projects/x/agent/sessions/abc",
		"queryResult": {
			"queryText": "visit example dot com",
			"action": "VisitPage",
			"parameters": {"url": "example.com"},
			"languageCode": "en-US"
		}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp schemas.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "handled VisitPage", resp.FulfillmentText)
	assert.Nil(t, resp.FollowupEventInput)
}

// A handler that cannot finish inside the deadline yields an escalation
// envelope on the wire: no fulfillment text, a followup event with the
// published cursor.
func TestWebhookEscalation(t *testing.T) {
	s := newTestServer(t, &echoHandler{delay: 300 * time.Millisecond}, 20*time.Millisecond)

	rec := postWebhook(t, s, `{
		"session": "projects/x/agent/sessions/abc",
		"queryResult": {
			"queryText": "read the page",
			"action": "ReadPage",
			"languageCode": "en-US"
		}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp schemas.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.FulfillmentText)
	require.NotNil(t, resp.FollowupEventInput)
	assert.Equal(t, "timeout-ReadPage", resp.FollowupEventInput.Name)
	assert.Equal(t, "https://example.com", resp.FollowupEventInput.Parameters["url"])

	// Let the detached handler finish before the test returns.
	time.Sleep(400 * time.Millisecond)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t, &echoHandler{}, time.Second)

	rec := postWebhook(t, s, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRequiresSession(t *testing.T) {
	s := newTestServer(t, &echoHandler{}, time.Second)

	rec := postWebhook(t, s, `{"queryResult": {"action": "VisitPage"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing session")
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &echoHandler{}, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/v1/webhook", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
