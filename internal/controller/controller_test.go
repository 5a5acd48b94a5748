package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"splitbill-bot/internal/amount"
	"splitbill-bot/internal/common/config"
	"splitbill-bot/internal/common/logger"
	"splitbill-bot/internal/models"
	"splitbill-bot/internal/session"
	"splitbill-bot/internal/usage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	image []byte
	err   error
}

func (f *fakeFetcher) FetchImage(_ context.Context, _ string) ([]byte, error) {
	return f.image, f.err
}

type fakeRecognizer struct {
	text string
	err  error
}

func (f *fakeRecognizer) RecognizeText(_ context.Context, _ []byte) (string, error) {
	return f.text, f.err
}

type fixture struct {
	controller *Controller
	store      *session.MemoryStore
	limiter    *usage.Limiter
	recognizer *fakeRecognizer
	fetcher    *fakeFetcher
}

func newFixture(t *testing.T, monthlyLimit int) *fixture {
	t.Helper()

	log := logger.NewNoOpLogger()
	extractor, err := amount.NewExtractor(config.ExtractionConfig{
		MinIntegerDigits: 2,
		MinValue:         "10",
		MaxValue:         "10000000",
		MaxCandidates:    5,
	}, log)
	require.NoError(t, err)

	limiter := usage.NewLimiter(config.UsageConfig{
		FreeMode:     true,
		MonthlyLimit: monthlyLimit,
		Timezone:     "UTC",
	}, log)

	store := session.NewMemoryStore(30 * time.Minute)
	fetcher := &fakeFetcher{image: []byte{0xFF, 0xD8}}
	recognizer := &fakeRecognizer{text: "小計 2,950 消費税 250 合計 ¥3,200"}

	return &fixture{
		controller: New(extractor, limiter, store, fetcher, recognizer, 30*time.Minute, log),
		store:      store,
		limiter:    limiter,
		recognizer: recognizer,
		fetcher:    fetcher,
	}
}

func imageEvent(key string) models.InboundEvent {
	return models.InboundEvent{
		Kind:       models.EventImage,
		SessionKey: key,
		ReplyToken: "rt-img",
		MessageID:  "m-1",
	}
}

func textEvent(key, text string) models.InboundEvent {
	return models.InboundEvent{
		Kind:       models.EventText,
		SessionKey: key,
		ReplyToken: "rt-txt",
		Text:       text,
	}
}

func TestImageStartsConversation(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	replies := f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	require.Len(t, replies, 1)
	assert.Equal(t, models.ReplyFlex, replies[0].Kind)

	sess, err := f.store.Get(ctx, "user:U1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, models.StageAwaitingSelection, sess.Stage)
	require.Len(t, sess.Candidates, 3)
	assert.Equal(t, "3200", sess.Candidates[0].Value.String())
}

func TestFullFlowEndToEnd(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	replies := f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	require.Len(t, replies, 1)
	assert.Equal(t, models.ReplyFlex, replies[0].Kind)

	replies = f.controller.HandleEvent(ctx, textEvent("user:U1", "1"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "3200")

	replies = f.controller.HandleEvent(ctx, textEvent("user:U1", "4"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "800")
	assert.Contains(t, replies[0].Text, "4人")

	// Conversation is finished; the session is gone.
	sess, err := f.store.Get(ctx, "user:U1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestEnglishReceiptEndToEnd(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	f.recognizer.text = "Total ¥3,200"

	replies := f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	require.Len(t, replies, 1)
	assert.Equal(t, models.ReplyFlex, replies[0].Kind)

	f.controller.HandleEvent(ctx, textEvent("user:U1", "1"))
	replies = f.controller.HandleEvent(ctx, textEvent("user:U1", "4"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "800")
}

func TestSelectionByPostbackPayload(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	replies := f.controller.HandleEvent(ctx, textEvent("user:U1", "amount=2950"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "2950")

	sess, err := f.store.Get(ctx, "user:U1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, models.StageAwaitingPartySize, sess.Stage)
	require.NotNil(t, sess.SelectedAmount)
	assert.True(t, sess.SelectedAmount.Equal(decimal.NewFromInt(2950)))
}

func TestSelectionByFreeformAmount(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	replies := f.controller.HandleEvent(ctx, textEvent("user:U1", "¥3,200"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "3200")
}

func TestSelectionByUnlistedFreeformAmount(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	// An amount the extraction did not offer is still accepted.
	f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	replies := f.controller.HandleEvent(ctx, textEvent("user:U1", "9999"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "9999")

	sess, err := f.store.Get(ctx, "user:U1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, models.StageAwaitingPartySize, sess.Stage)
	require.NotNil(t, sess.SelectedAmount)
	assert.True(t, sess.SelectedAmount.Equal(decimal.NewFromInt(9999)))
}

func TestInvalidSelectionKeepsSession(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	for _, input := range []string{"たぶん一番上", "-500", "12.345", "amount=abc"} {
		replies := f.controller.HandleEvent(ctx, textEvent("user:U1", input))
		require.Len(t, replies, 1)
		assert.Contains(t, replies[0].Text, "金額を選べませんでした")
	}

	sess, err := f.store.Get(ctx, "user:U1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, models.StageAwaitingSelection, sess.Stage)
}

func TestInvalidPartySizeKeepsSession(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	f.controller.HandleEvent(ctx, textEvent("user:U1", "1"))

	for _, input := range []string{"0", "-3", "ふたり", "2.5"} {
		replies := f.controller.HandleEvent(ctx, textEvent("user:U1", input))
		require.Len(t, replies, 1)
		assert.Contains(t, replies[0].Text, "人数は1以上の整数")
	}

	replies := f.controller.HandleEvent(ctx, textEvent("user:U1", "2"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "1600")
}

func TestTextWithoutSessionRepliesGuide(t *testing.T) {
	f := newFixture(t, 10)

	replies := f.controller.HandleEvent(context.Background(), textEvent("user:U1", "こんにちは"))
	require.Len(t, replies, 1)
	assert.Equal(t, guideText, replies[0].Text)
}

func TestQuotaExceededRepliesAndSkipsOCR(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	f.controller.HandleEvent(ctx, imageEvent("user:U1"))

	f.recognizer.err = errors.New("should not be called")
	replies := f.controller.HandleEvent(ctx, imageEvent("user:U2"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "上限に達しました")
	assert.Equal(t, 1, f.limiter.Used())
}

func TestOCRFailureConsumesQuota(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	f.recognizer.err = errors.New("model unavailable")
	replies := f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "読み取りに失敗")

	// No refund for failed recognitions.
	assert.Equal(t, 1, f.limiter.Used())

	sess, err := f.store.Get(ctx, "user:U1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestNoAmountFoundReplies(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	f.recognizer.text = "ご来店ありがとうございました"
	replies := f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "金額を見つけられませんでした")
}

func TestNewImageRestartsConversation(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	f.controller.HandleEvent(ctx, textEvent("user:U1", "1"))

	// Mid-flow photo discards selection and starts over.
	f.recognizer.text = "合計 980"
	f.controller.HandleEvent(ctx, imageEvent("user:U1"))

	sess, err := f.store.Get(ctx, "user:U1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, models.StageAwaitingSelection, sess.Stage)
	require.Len(t, sess.Candidates, 1)
	assert.Equal(t, "980", sess.Candidates[0].Value.String())
	assert.Nil(t, sess.SelectedAmount)
}

func TestExpiredSessionRepliesGuide(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	stale := &models.Session{
		Key:       "user:U1",
		Stage:     models.StageAwaitingPartySize,
		CreatedAt: time.Now().Add(-31 * time.Minute),
	}
	selected := decimal.NewFromInt(3200)
	stale.SelectedAmount = &selected
	require.NoError(t, f.store.Put(ctx, stale))

	replies := f.controller.HandleEvent(ctx, textEvent("user:U1", "4"))
	require.Len(t, replies, 1)
	assert.Equal(t, guideText, replies[0].Text)
}

func TestSessionsAreIndependentPerChat(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	f.controller.HandleEvent(ctx, imageEvent("user:U1"))
	f.controller.HandleEvent(ctx, imageEvent("group:G1"))

	f.controller.HandleEvent(ctx, textEvent("user:U1", "1"))

	sessUser, err := f.store.Get(ctx, "user:U1")
	require.NoError(t, err)
	assert.Equal(t, models.StageAwaitingPartySize, sessUser.Stage)

	sessGroup, err := f.store.Get(ctx, "group:G1")
	require.NoError(t, err)
	assert.Equal(t, models.StageAwaitingSelection, sessGroup.Stage)
}
