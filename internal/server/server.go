// internal/server/server.go
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"splitbill-bot/internal/common/config"
	stderrors "splitbill-bot/internal/common/errors"
	"splitbill-bot/internal/common/logger"
	"splitbill-bot/internal/common/metrics"
	"splitbill-bot/internal/common/observability"
	"splitbill-bot/internal/line"
	"splitbill-bot/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds webhook request bodies; LINE payloads are small.
const maxBodyBytes = 1 << 20

// EventHandler processes one normalized chat event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.InboundEvent) []*models.Reply
}

// ReplySender delivers replies against a reply token.
type ReplySender interface {
	Reply(ctx context.Context, replyToken string, replies []*models.Reply) error
}

// Server exposes the webhook callback plus health and metrics endpoints.
type Server struct {
	cfg           config.ServerConfig
	channelSecret string
	handler       EventHandler
	sender        ReplySender
	obs           *observability.Observability
	log           logger.Logger
	httpServer    *http.Server
}

func New(
	cfg config.ServerConfig,
	channelSecret string,
	handler EventHandler,
	sender ReplySender,
	obs *observability.Observability,
	log logger.Logger,
) *Server {
	s := &Server{
		cfg:           cfg,
		channelSecret: channelSecret,
		handler:       handler,
		sender:        sender,
		obs:           obs,
		log:           log.WithFields(map[string]interface{}{"component": "server"}),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.setupRoutes(),
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/callback", s.handleCallback).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Info("Webhook server listening", map[string]interface{}{
		"address": s.cfg.Address,
	})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCallback verifies, parses and dispatches one webhook delivery.
// Reply delivery failures are logged but do not fail the delivery: a
// non-200 would only make the platform redeliver events we already
// processed.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	if !line.VerifySignature(s.channelSecret, body, signature) {
		sigErr := stderrors.NewSignatureInvalidError(r.RemoteAddr)
		metrics.WebhookEventsFailed.WithLabelValues("delivery", string(sigErr.Code)).Inc()
		s.log.Warn("Webhook signature rejected", map[string]interface{}{
			"remote": r.RemoteAddr,
			"error":  sigErr.Error(),
		})
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	events, err := line.ParseEvents(body)
	if err != nil {
		if stdErr, ok := stderrors.AsStandardError(err); ok {
			metrics.WebhookEventsFailed.WithLabelValues("delivery", string(stdErr.Code)).Inc()
		}
		s.log.Warn("Webhook payload rejected", map[string]interface{}{
			"error": err.Error(),
		})
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	deliveryID := uuid.NewString()
	log := s.log.WithFields(map[string]interface{}{"deliveryId": deliveryID})

	for _, ev := range events {
		start := time.Now()
		replies := s.handler.HandleEvent(r.Context(), ev)
		elapsed := time.Since(start)

		metrics.WebhookEventDuration.WithLabelValues(string(ev.Kind)).Observe(elapsed.Seconds())
		if s.obs != nil {
			s.obs.RecordEventProcessed(r.Context(), string(ev.Kind))
			s.obs.RecordEventDuration(r.Context(), elapsed, string(ev.Kind))
		}

		if len(replies) == 0 {
			continue
		}
		if err := s.sender.Reply(r.Context(), ev.ReplyToken, replies); err != nil {
			metrics.ReplySendFailures.Inc()
			log.Error("Reply delivery failed", map[string]interface{}{
				"sessionKey": ev.SessionKey,
				"eventKind":  string(ev.Kind),
				"error":      err.Error(),
			})
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
