// internal/ocr/gemini.go
package ocr

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"splitbill-bot/internal/common/config"
	stderrors "splitbill-bot/internal/common/errors"
	"splitbill-bot/internal/common/logger"
	"splitbill-bot/internal/common/metrics"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const recognizePrompt = "Transcribe all text visible in this receipt image. " +
	"Output the raw text only, preserving line breaks. Do not summarize or translate."

// Gemini recognizes receipt text through the Gemini vision model.
type Gemini struct {
	client *genai.Client
	model  string
	cfg    config.OCRConfig
	log    logger.Logger
}

func NewGemini(ctx context.Context, cfg config.OCRConfig, log logger.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  cfg.Model,
		cfg:    cfg,
		log:    log.WithFields(map[string]interface{}{"component": "ocr-gemini"}),
	}, nil
}

// RecognizeText sends the image to the model and returns the
// transcribed text.
func (g *Gemini) RecognizeText(ctx context.Context, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(g.cfg.Timeout))
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx,
		genai.ImageData(detectImageFormat(image), image),
		genai.Text(recognizePrompt),
	)
	if err != nil {
		metrics.RecognitionRequests.WithLabelValues("error").Inc()
		return "", stderrors.NewOCRFailureError(err)
	}

	text := collectText(resp)
	if strings.TrimSpace(text) == "" {
		metrics.RecognitionRequests.WithLabelValues("empty").Inc()
		return "", stderrors.NewOCRFailureError(fmt.Errorf("model returned no text"))
	}

	metrics.RecognitionRequests.WithLabelValues("ok").Inc()
	g.log.Debug("Recognition completed", map[string]interface{}{
		"chars": len(text),
	})
	return text, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func collectText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

// detectImageFormat sniffs the content type and maps it to the format
// token the model API expects.
func detectImageFormat(image []byte) string {
	switch http.DetectContentType(image) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpeg"
	}
}
