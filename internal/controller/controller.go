// internal/controller/controller.go
package controller

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"splitbill-bot/internal/amount"
	stderrors "splitbill-bot/internal/common/errors"
	"splitbill-bot/internal/common/logger"
	"splitbill-bot/internal/common/metrics"
	"splitbill-bot/internal/models"
	"splitbill-bot/internal/session"
	"splitbill-bot/internal/usage"

	"github.com/shopspring/decimal"
)

// ImageFetcher downloads the binary content of an image message.
type ImageFetcher interface {
	FetchImage(ctx context.Context, messageID string) ([]byte, error)
}

// Recognizer turns an image into raw text.
type Recognizer interface {
	RecognizeText(ctx context.Context, image []byte) (string, error)
}

// Controller drives the split conversation: image in, amount
// selection, party size, result out.
type Controller struct {
	extractor  *amount.Extractor
	limiter    *usage.Limiter
	store      session.Store
	fetcher    ImageFetcher
	recognizer Recognizer
	sessionTTL time.Duration
	errHandler *stderrors.ErrorHandler
	log        logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(
	extractor *amount.Extractor,
	limiter *usage.Limiter,
	store session.Store,
	fetcher ImageFetcher,
	recognizer Recognizer,
	sessionTTL time.Duration,
	log logger.Logger,
) *Controller {
	return &Controller{
		extractor:  extractor,
		limiter:    limiter,
		store:      store,
		fetcher:    fetcher,
		recognizer: recognizer,
		sessionTTL: sessionTTL,
		errHandler: stderrors.NewErrorHandler(log),
		log:        log.WithFields(map[string]interface{}{"component": "controller"}),
		locks:      make(map[string]*sync.Mutex),
	}
}

// HandleEvent processes one inbound event and returns the replies to
// send with its reply token. Errors never escape; they become
// user-facing reply text.
func (c *Controller) HandleEvent(ctx context.Context, ev models.InboundEvent) []*models.Reply {
	lock := c.sessionLock(ev.SessionKey)
	lock.Lock()
	defer lock.Unlock()

	var (
		replies []*models.Reply
		err     error
	)

	switch ev.Kind {
	case models.EventImage:
		replies, err = c.handleImage(ctx, ev)
	case models.EventText:
		replies, err = c.handleText(ctx, ev)
	default:
		return nil
	}

	if err != nil {
		if stdErr, ok := stderrors.AsStandardError(err); ok {
			metrics.WebhookEventsFailed.WithLabelValues(string(ev.Kind), string(stdErr.Code)).Inc()
		} else {
			metrics.WebhookEventsFailed.WithLabelValues(string(ev.Kind), "INTERNAL_ERROR").Inc()
		}
		text := c.errHandler.HandleEventError(ev.SessionKey, string(ev.Kind), err)
		return []*models.Reply{models.NewTextReply(text)}
	}

	metrics.WebhookEventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
	return replies
}

// sessionLock serializes events for one chat so interleaved webhook
// deliveries cannot race the session state.
func (c *Controller) sessionLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

// handleImage restarts the flow unconditionally: a new photo always
// wins over whatever conversation was in progress.
func (c *Controller) handleImage(ctx context.Context, ev models.InboundEvent) ([]*models.Reply, error) {
	periodKey := c.limiter.CurrentPeriodKey()
	reservation := c.limiter.TryReserve(periodKey)
	if !reservation.Granted {
		metrics.QuotaRejections.Inc()
		return nil, stderrors.NewQuotaExceededError(periodKey)
	}

	image, err := c.fetcher.FetchImage(ctx, ev.MessageID)
	if err != nil {
		return nil, err
	}

	text, err := c.recognizer.RecognizeText(ctx, image)
	if err != nil {
		return nil, err
	}

	candidates := c.extractor.Extract(text)
	if len(candidates) == 0 {
		_ = c.store.Clear(ctx, ev.SessionKey)
		return nil, stderrors.NewNoAmountFoundError("extraction yielded no candidates")
	}

	sess := &models.Session{
		Key:        ev.SessionKey,
		Stage:      models.StageAwaitingSelection,
		Candidates: candidates,
		CreatedAt:  time.Now(),
	}
	if err := c.store.Put(ctx, sess); err != nil {
		return nil, stderrors.NewSessionStoreFailedError(err)
	}

	c.log.Info("Conversation started", map[string]interface{}{
		"sessionKey": ev.SessionKey,
		"candidates": len(candidates),
		"remaining":  reservation.Remaining,
	})

	return []*models.Reply{selectionReply(candidates)}, nil
}

func (c *Controller) handleText(ctx context.Context, ev models.InboundEvent) ([]*models.Reply, error) {
	sess, err := c.store.Get(ctx, ev.SessionKey)
	if err != nil {
		return nil, stderrors.NewSessionStoreFailedError(err)
	}
	if sess == nil || sess.IsExpired(c.sessionTTL) {
		if sess != nil {
			_ = c.store.Clear(ctx, ev.SessionKey)
		}
		return []*models.Reply{models.NewTextReply(guideText)}, nil
	}

	switch sess.Stage {
	case models.StageAwaitingSelection:
		if len(sess.Candidates) == 0 {
			_ = c.store.Clear(ctx, ev.SessionKey)
			return []*models.Reply{models.NewTextReply(guideText)}, nil
		}
		return c.handleSelection(ctx, ev, sess)
	case models.StageAwaitingPartySize:
		return c.handlePartySize(ctx, ev, sess)
	default:
		_ = c.store.Clear(ctx, ev.SessionKey)
		return []*models.Reply{models.NewTextReply(guideText)}, nil
	}
}

// handleSelection resolves the user's input to a total amount.
// Accepted forms, in order: postback data "amount=<n>", a positional
// index into the candidate list, a freeform amount.
func (c *Controller) handleSelection(ctx context.Context, ev models.InboundEvent, sess *models.Session) ([]*models.Reply, error) {
	selected, ok := resolveSelection(ev.Text, sess.Candidates)
	if !ok {
		return nil, stderrors.NewInvalidSelectionError(ev.Text)
	}

	sess.Stage = models.StageAwaitingPartySize
	sess.SelectedAmount = &selected
	if err := c.store.Put(ctx, sess); err != nil {
		return nil, stderrors.NewSessionStoreFailedError(err)
	}

	return []*models.Reply{models.NewTextReply(askPartySizeText(selected))}, nil
}

func (c *Controller) handlePartySize(ctx context.Context, ev models.InboundEvent, sess *models.Session) ([]*models.Reply, error) {
	if sess.SelectedAmount == nil {
		_ = c.store.Clear(ctx, ev.SessionKey)
		return nil, stderrors.NewStaleSessionError(ev.SessionKey)
	}

	people, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil || people < 1 {
		return nil, stderrors.NewInvalidPartySizeError(ev.Text)
	}

	result, err := amount.Split(*sess.SelectedAmount, people)
	if err != nil {
		return nil, stderrors.NewInvalidPartySizeError(ev.Text)
	}

	if err := c.store.Clear(ctx, ev.SessionKey); err != nil {
		c.log.Warn("Session cleanup failed", map[string]interface{}{
			"sessionKey": ev.SessionKey,
			"error":      err.Error(),
		})
	}

	c.log.Info("Split completed", map[string]interface{}{
		"sessionKey": ev.SessionKey,
		"people":     people,
	})

	return []*models.Reply{models.NewTextReply(resultText(result))}, nil
}

// resolveSelection maps user input to an amount. A freeform amount
// does not have to match an offered candidate; the user can override
// what the extraction found.
func resolveSelection(input string, candidates []models.MonetaryCandidate) (decimal.Decimal, bool) {
	input = strings.TrimSpace(input)

	if payload, found := strings.CutPrefix(input, "amount="); found {
		return parseAmount(payload)
	}

	if index, err := strconv.Atoi(input); err == nil && index >= 1 && index <= len(candidates) {
		return candidates[index-1].Value, true
	}

	cleaned := strings.NewReplacer(",", "", "¥", "", "円", "", " ", "").Replace(input)
	return parseAmount(cleaned)
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	value, err := decimal.NewFromString(raw)
	if err != nil || value.Sign() <= 0 || !value.Equal(value.Round(2)) {
		return decimal.Decimal{}, false
	}
	return value, true
}
