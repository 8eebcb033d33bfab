package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-webhooks/core"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message  string         `json:"message"`
	TextCode string         `json:"text_code"`
	Category string         `json:"category"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// writeError renders the shared JSON error envelope. Auth failures are
// flattened to a generic message so the response does not leak which
// part of the signature check failed.
func writeError(w http.ResponseWriter, err error) {
	richErr := asRichError(err)
	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := errorBody{
		Message:  richErr.Message,
		TextCode: richErr.TextCode,
		Category: string(richErr.Category),
		Metadata: richErr.Metadata,
	}
	if status == http.StatusUnauthorized {
		body.Message = "signature verification failed"
		body.Metadata = nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: body})
}

func asRichError(err error) *goerrors.Error {
	if err == nil {
		return goerrors.New("transport: unknown error", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.WebhookErrorInternal)
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		if richErr.Code == 0 {
			richErr.Code = http.StatusInternalServerError
		}
		if strings.TrimSpace(richErr.TextCode) == "" {
			richErr.TextCode = core.WebhookErrorInternal
		}
		return richErr
	}
	return goerrors.New(err.Error(), goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.WebhookErrorInternal)
}

func badRequest(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.WebhookErrorBadInput)
}
