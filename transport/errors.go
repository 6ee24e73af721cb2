package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-directus/core"
	goerrors "github.com/goliatone/go-errors"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	return core.TextCodeForCategory(category)
}

// APIError is one entry of the errors array Directus returns on failure.
type APIError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code, for example INVALID_CREDENTIALS.
func (e APIError) Code() string {
	if e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return strings.TrimSpace(code)
}

type apiErrorEnvelope struct {
	Errors []APIError `json:"errors"`
}

// ParseAPIErrors decodes a Directus error body. Bodies that are not JSON
// yield no entries.
func ParseAPIErrors(body []byte) []APIError {
	if len(body) == 0 {
		return nil
	}
	envelope := apiErrorEnvelope{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	return envelope.Errors
}

// ResponseError converts a non-2xx response into a rich error. The category
// follows the status code; the first Directus error supplies the message.
func ResponseError(response Response) error {
	if response.StatusCode < http.StatusBadRequest {
		return nil
	}
	category := categoryForStatus(response.StatusCode)
	message := fmt.Sprintf("transport: directus responded with status %d", response.StatusCode)
	metadata := map[string]any{"status_code": response.StatusCode}

	apiErrors := ParseAPIErrors(response.Body)
	if len(apiErrors) > 0 {
		first := apiErrors[0]
		if msg := strings.TrimSpace(first.Message); msg != "" {
			message = "transport: " + msg
		}
		if code := first.Code(); code != "" {
			metadata["directus_code"] = code
		}
		if len(apiErrors) > 1 {
			metadata["error_count"] = len(apiErrors)
		}
	}
	return transportError(message, category, response.StatusCode, metadata)
}

func categoryForStatus(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusConflict:
		return goerrors.CategoryConflict
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return goerrors.CategoryBadInput
	default:
		return goerrors.CategoryExternal
	}
}

// DirectusCode returns the Directus extensions.code attached to err, if any.
func DirectusCode(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata == nil {
		return ""
	}
	code, _ := rich.Metadata["directus_code"].(string)
	return code
}
