// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler normalizes processing errors, logs them, and produces the
// user-facing reply text for the originating chat event.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleEventError logs the failure and returns the reply text that
// should be sent back to the user for this event.
func (h *ErrorHandler) HandleEventError(sessionKey, eventKind string, err error) string {
	stdErr := h.normalizeError(err)
	h.logError(sessionKey, eventKind, stdErr)
	return UserMessage(stdErr)
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(sessionKey, eventKind string, stdErr *StandardError) {
	fields := map[string]interface{}{
		"sessionKey":    sessionKey,
		"eventKind":     eventKind,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	}

	// Expected user mistakes stay at warn so alerting keys on real faults.
	switch stdErr.Code {
	case ErrCodeInvalidSelection, ErrCodeInvalidPartySize, ErrCodeStaleSession, ErrCodeQuotaExceeded:
		h.logger.Warn("Event rejected", fields)
	default:
		h.logger.Error("Event processing failed", fields)
	}
}
