package line

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"splitbill-bot/internal/common/config"
	stderrors "splitbill-bot/internal/common/errors"
	commonhttp "splitbill-bot/internal/common/http"
	"splitbill-bot/internal/common/logger"
	"splitbill-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	return NewClient(config.LineConfig{
		ChannelAccessToken: "test-token",
		APIBaseURL:         serverURL,
		ContentBaseURL:     serverURL,
	}, commonhttp.NewClient(5*time.Second), logger.NewTestLogger(t))
}

func TestReplySendsExpectedPayload(t *testing.T) {
	var captured struct {
		path  string
		auth  string
		body  map[string]interface{}
		calls int
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.calls++
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	err := c.Reply(context.Background(), "rt-1", []*models.Reply{
		models.NewTextReply("こんにちは"),
		models.NewFlexReply("候補", map[string]interface{}{"type": "bubble"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, captured.calls)
	assert.Equal(t, "/v2/bot/message/reply", captured.path)
	assert.Equal(t, "Bearer test-token", captured.auth)
	assert.Equal(t, "rt-1", captured.body["replyToken"])

	messages, ok := captured.body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)

	first := messages[0].(map[string]interface{})
	assert.Equal(t, "text", first["type"])
	assert.Equal(t, "こんにちは", first["text"])

	second := messages[1].(map[string]interface{})
	assert.Equal(t, "flex", second["type"])
	assert.Equal(t, "候補", second["altText"])
}

func TestPushSendsExpectedPayload(t *testing.T) {
	var captured struct {
		path string
		body map[string]interface{}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	err := c.Push(context.Background(), "U1234", []*models.Reply{
		models.NewTextReply("まもなく今月の利用上限です"),
	})
	require.NoError(t, err)

	assert.Equal(t, "/v2/bot/message/push", captured.path)
	assert.Equal(t, "U1234", captured.body["to"])
	_, hasReplyToken := captured.body["replyToken"]
	assert.False(t, hasReplyToken)

	messages, ok := captured.body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "text", messages[0].(map[string]interface{})["type"])
}

func TestReplyNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Invalid reply token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	err := c.Reply(context.Background(), "used-token", []*models.Reply{models.NewTextReply("x")})
	require.Error(t, err)

	stdErr, ok := stderrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, stderrors.ErrCodeReplySendFailed, stdErr.Code)
}

func TestFetchImage(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/m-42/content", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	data, err := c.FetchImage(context.Background(), "m-42")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFetchImageNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.FetchImage(context.Background(), "m-gone")
	require.Error(t, err)

	stdErr, ok := stderrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, stderrors.ErrCodeImageFetchFailed, stdErr.Code)
}
