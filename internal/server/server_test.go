package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"splitbill-bot/internal/common/config"
	"splitbill-bot/internal/common/logger"
	"splitbill-bot/internal/line"
	"splitbill-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-channel-secret"

type fakeHandler struct {
	events  []models.InboundEvent
	replies []*models.Reply
}

func (f *fakeHandler) HandleEvent(_ context.Context, ev models.InboundEvent) []*models.Reply {
	f.events = append(f.events, ev)
	return f.replies
}

type fakeSender struct {
	tokens []string
	err    error
}

func (f *fakeSender) Reply(_ context.Context, replyToken string, _ []*models.Reply) error {
	f.tokens = append(f.tokens, replyToken)
	return f.err
}

func newTestServer(t *testing.T) (*Server, *fakeHandler, *fakeSender) {
	t.Helper()
	handler := &fakeHandler{replies: []*models.Reply{models.NewTextReply("ok")}}
	sender := &fakeSender{}
	s := New(config.ServerConfig{Address: ":0"}, testSecret, handler, sender, nil, logger.NewTestLogger(t))
	return s, handler, sender
}

func postCallback(t *testing.T, s *Server, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Line-Signature", signature)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func webhookBody() []byte {
	return []byte(`{
		"events": [{
			"type": "message",
			"replyToken": "rt-1",
			"source": {"type": "user", "userId": "U1"},
			"message": {"id": "m-1", "type": "image"}
		}]
	}`)
}

func TestCallbackRejectsMissingSignature(t *testing.T) {
	s, handler, _ := newTestServer(t)

	rec := postCallback(t, s, webhookBody(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, handler.events)
}

func TestCallbackRejectsBadSignature(t *testing.T) {
	s, handler, _ := newTestServer(t)

	rec := postCallback(t, s, webhookBody(), "ZGVhZGJlZWY=")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, handler.events)
}

func TestCallbackRejectsInvalidPayload(t *testing.T) {
	s, handler, _ := newTestServer(t)

	body := []byte(`{"events": "nope"}`)
	rec := postCallback(t, s, body, line.Sign(testSecret, body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, handler.events)
}

func TestCallbackDispatchesEventsAndReplies(t *testing.T) {
	s, handler, sender := newTestServer(t)

	body := webhookBody()
	rec := postCallback(t, s, body, line.Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, handler.events, 1)
	assert.Equal(t, models.EventImage, handler.events[0].Kind)
	assert.Equal(t, "user:U1", handler.events[0].SessionKey)

	require.Len(t, sender.tokens, 1)
	assert.Equal(t, "rt-1", sender.tokens[0])
}

func TestCallbackStaysOKWhenReplyDeliveryFails(t *testing.T) {
	s, _, sender := newTestServer(t)
	sender.err = errors.New("api unavailable")

	body := webhookBody()
	rec := postCallback(t, s, body, line.Sign(testSecret, body))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallbackSkipsReplyWhenHandlerReturnsNothing(t *testing.T) {
	s, handler, sender := newTestServer(t)
	handler.replies = nil

	body := webhookBody()
	rec := postCallback(t, s, body, line.Sign(testSecret, body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sender.tokens)
}

func TestHealthEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
