// Package errors provides standardized error handling for the split-bill bot.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	ErrCodeImageFetchFailed ErrorCode = "IMAGE_FETCH_FAILED"
	ErrCodeOCRFailure       ErrorCode = "OCR_FAILURE"
	ErrCodeNoAmountFound    ErrorCode = "NO_AMOUNT_FOUND"

	ErrCodeInvalidSelection ErrorCode = "INVALID_SELECTION"
	ErrCodeInvalidPartySize ErrorCode = "INVALID_PARTY_SIZE"
	ErrCodeStaleSession     ErrorCode = "STALE_SESSION"

	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeReplySendFailed    ErrorCode = "REPLY_SEND_FAILED"

	ErrCodeSignatureInvalid ErrorCode = "WEBHOOK_SIGNATURE_INVALID"
	ErrCodePayloadInvalid   ErrorCode = "WEBHOOK_PAYLOAD_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// AsStandardError returns the StandardError wrapped in err, if any.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewQuotaExceededError creates a non-retryable monthly quota error.
func NewQuotaExceededError(periodKey string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaExceeded,
		Message:   "Monthly recognition quota exhausted",
		Details:   fmt.Sprintf("period: %s", periodKey),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewImageFetchFailedError creates a retryable image download error.
func NewImageFetchFailedError(messageID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeImageFetchFailed,
		Message:   "Failed to download image content",
		Details:   fmt.Sprintf("messageId: %s, error: %s", messageID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOCRFailureError creates a retryable text recognition error.
func NewOCRFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOCRFailure,
		Message:   "Text recognition failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoAmountFoundError creates a non-retryable extraction miss error.
func NewNoAmountFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoAmountFound,
		Message:   "No monetary amount detected in recognized text",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidSelectionError creates a non-retryable selection input error.
func NewInvalidSelectionError(input string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSelection,
		Message:   "Input does not match any candidate amount",
		Details:   fmt.Sprintf("input: %q", input),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidPartySizeError creates a non-retryable party size input error.
func NewInvalidPartySizeError(input string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPartySize,
		Message:   "Input is not a positive people count",
		Details:   fmt.Sprintf("input: %q", input),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStaleSessionError creates a non-retryable expired conversation error.
func NewStaleSessionError(sessionKey string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStaleSession,
		Message:   "No active conversation for this input",
		Details:   fmt.Sprintf("sessionKey: %s", sessionKey),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreFailedError creates a retryable session persistence error.
func NewSessionStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewReplySendFailedError creates a retryable messaging API error.
func NewReplySendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeReplySendFailed,
		Message:   "Reply delivery to the messaging API failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSignatureInvalidError creates a non-retryable webhook signature error.
func NewSignatureInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSignatureInvalid,
		Message:   "Webhook signature verification failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadInvalidError creates a non-retryable webhook payload error.
func NewPayloadInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadInvalid,
		Message:   "Webhook payload failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. User-Facing Messages
// ==========================

// userMessages maps error codes to the reply text shown in chat.
var userMessages = map[ErrorCode]string{
	ErrCodeQuotaExceeded:    "今月の読み取り回数の上限に達しました。来月になったらまた使えます。",
	ErrCodeOCRFailure:       "画像の読み取りに失敗しました。もう一度レシートを撮影して送ってください。",
	ErrCodeImageFetchFailed: "画像の読み取りに失敗しました。もう一度レシートを撮影して送ってください。",
	ErrCodeNoAmountFound:    "金額を見つけられませんでした。合計金額がはっきり写るように撮り直してください。",
	ErrCodeInvalidSelection: "金額を選べませんでした。ボタンを押すか、候補の番号か金額を送ってください。",
	ErrCodeInvalidPartySize: "人数は1以上の整数で送ってください。例: 4",
	ErrCodeStaleSession:     "操作の有効期限が切れました。レシートの写真を送り直してください。",
}

// fallbackUserMessage is used for codes without a dedicated reply.
const fallbackUserMessage = "エラーが発生しました。しばらくしてからもう一度お試しください。"

// UserMessage returns the chat reply text for an error. Unknown errors
// collapse to a generic apology so internals never leak to users.
func UserMessage(err error) string {
	if stdErr, ok := AsStandardError(err); ok {
		if msg, exists := userMessages[stdErr.Code]; exists {
			return msg
		}
	}
	return fallbackUserMessage
}

// ==========================
// 4. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeImageFetchFailed,
		ErrCodeSessionStoreFailed,
		ErrCodeReplySendFailed:
		return 3

	case ErrCodeOCRFailure:
		return 1

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "QUOTA"):
		return "QUOTA"
	case strings.Contains(codeStr, "OCR") || strings.Contains(codeStr, "IMAGE") || strings.Contains(codeStr, "AMOUNT"):
		return "RECOGNITION"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "WEBHOOK") || strings.Contains(codeStr, "REPLY"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
