package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	WebhookErrorBadInput          = "WEBHOOKS_BAD_INPUT"
	WebhookErrorUnauthorized      = "WEBHOOKS_UNAUTHORIZED"
	WebhookErrorSignatureInvalid  = "WEBHOOKS_SIGNATURE_INVALID"
	WebhookErrorUnknownEventType  = "WEBHOOKS_UNKNOWN_EVENT_TYPE"
	WebhookErrorDeliveryNotFound  = "WEBHOOKS_DELIVERY_NOT_FOUND"
	WebhookErrorNotDeadLettered   = "WEBHOOKS_NOT_DEAD_LETTERED"
	WebhookErrorAlreadyClaimed    = "WEBHOOKS_ALREADY_CLAIMED"
	WebhookErrorHandlerFailed     = "WEBHOOKS_HANDLER_FAILED"
	WebhookErrorEmitFailed        = "WEBHOOKS_EMIT_FAILED"
	WebhookErrorInternal          = "WEBHOOKS_INTERNAL_ERROR"
)

type ErrorMapper func(err error) *goerrors.Error

// IsPermanentFailure reports whether an error should bypass the retry
// budget and dead-letter the delivery immediately. Structural problems
// (unknown event type, malformed payload) never heal through redelivery.
func IsPermanentFailure(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation, goerrors.CategoryNotFound:
			return true
		}
	}
	return false
}

// IsAuthFailure reports whether an error belongs to the authentication
// taxonomy: never retried, never persisted to the ledger.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz:
			return true
		}
	}
	return false
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureWebhookErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"):
		return newWebhookError(err.Error(), goerrors.CategoryAuth, WebhookErrorSignatureInvalid)
	case strings.Contains(msg, "not found"):
		return newWebhookError(err.Error(), goerrors.CategoryNotFound, WebhookErrorDeliveryNotFound)
	case strings.Contains(msg, "not dead"):
		return newWebhookError(err.Error(), goerrors.CategoryConflict, WebhookErrorNotDeadLettered)
	case strings.Contains(msg, "claimed"), strings.Contains(msg, "in flight"):
		return newWebhookError(err.Error(), goerrors.CategoryConflict, WebhookErrorAlreadyClaimed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newWebhookError(err.Error(), goerrors.CategoryBadInput, WebhookErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureWebhookErrorEnvelope(mapped)
}

func newWebhookError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureWebhookErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureWebhookErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = webhookHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultWebhookTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultWebhookTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return WebhookErrorBadInput
	case goerrors.CategoryNotFound:
		return WebhookErrorDeliveryNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return WebhookErrorUnauthorized
	case goerrors.CategoryConflict:
		return WebhookErrorAlreadyClaimed
	case goerrors.CategoryOperation:
		return WebhookErrorHandlerFailed
	default:
		return WebhookErrorInternal
	}
}

func webhookHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
