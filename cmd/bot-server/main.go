// cmd/bot-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"splitbill-bot/internal/amount"
	"splitbill-bot/internal/common/config"
	"splitbill-bot/internal/common/database"
	commonhttp "splitbill-bot/internal/common/http"
	"splitbill-bot/internal/common/logger"
	"splitbill-bot/internal/common/observability"
	"splitbill-bot/internal/controller"
	"splitbill-bot/internal/line"
	"splitbill-bot/internal/ocr"
	"splitbill-bot/internal/server"
	"splitbill-bot/internal/session"
	"splitbill-bot/internal/usage"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting split-bill bot server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("bot-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Session store ---
	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		var redisClient *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")

		store = session.NewRedisStore(redisClient.Client, cfg.Session.TTL())
	default:
		store = session.NewMemoryStore(cfg.Session.TTL())
	}
	zapLog.Info("Session store initialized", zap.String("backend", cfg.Session.Backend))

	// --- OCR client ---
	recognizer, err := ocr.NewGemini(ctx, cfg.OCR, log)
	if err != nil {
		zapLog.Fatal("gemini client failed", zap.Error(err))
	}
	defer recognizer.Close()
	zapLog.Info("OCR client initialized", zap.String("model", cfg.OCR.Model))

	// --- Domain components ---
	extractor, err := amount.NewExtractor(cfg.Extraction, log)
	if err != nil {
		zapLog.Fatal("extractor init failed", zap.Error(err))
	}

	limiter := usage.NewLimiter(cfg.Usage, log)

	lineClient := line.NewClient(cfg.Line, commonhttp.NewClient(config.GetDuration(cfg.Line.Timeout)), log)

	ctrl := controller.New(extractor, limiter, store, lineClient, recognizer, cfg.Session.TTL(), log)

	srv := server.New(cfg.Server, cfg.Line.ChannelSecret, ctrl, lineClient, obs, log)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("webhook server failed", zap.Error(err))
		}
	}()
	zapLog.Info("Bot server started", zap.String("address", cfg.Server.Address))

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining connections...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		zapLog.Error("Error stopping webhook server", zap.Error(err))
	}

	zapLog.Info("Bot server stopped gracefully")
}
