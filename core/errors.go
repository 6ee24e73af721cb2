package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfigurationInvalid    = "DIRECTUS_CONFIGURATION_INVALID"
	ErrorCapabilityNotConfigured = "DIRECTUS_CAPABILITY_NOT_CONFIGURED"
	ErrorOutsideProviderScope    = "DIRECTUS_OUTSIDE_PROVIDER_SCOPE"
	ErrorStorageFailure          = "DIRECTUS_STORAGE_FAILURE"
	ErrorProbeFailed             = "DIRECTUS_PROBE_FAILED"
	ErrorBadInput                = "DIRECTUS_BAD_INPUT"
	ErrorUnauthorized            = "DIRECTUS_UNAUTHORIZED"
	ErrorForbidden               = "DIRECTUS_FORBIDDEN"
	ErrorNotFound                = "DIRECTUS_NOT_FOUND"
	ErrorRateLimited             = "DIRECTUS_RATE_LIMITED"
	ErrorExternalFailure         = "DIRECTUS_EXTERNAL_FAILURE"
	ErrorInternal                = "DIRECTUS_INTERNAL_ERROR"
)

var configurationTextCodes = map[string]struct{}{
	ErrorConfigurationInvalid:    {},
	ErrorCapabilityNotConfigured: {},
	ErrorOutsideProviderScope:    {},
}

func configurationError(message string, metadata map[string]any) *goerrors.Error {
	return NewConfigurationError(message, ErrorConfigurationInvalid, metadata)
}

// NewConfigurationError reports incorrect composition by the caller. These are
// programmer errors and are never retried.
func NewConfigurationError(message string, textCode string, metadata map[string]any) *goerrors.Error {
	if strings.TrimSpace(textCode) == "" {
		textCode = ErrorConfigurationInvalid
	}
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func CapabilityNotConfiguredError(capability Capability) *goerrors.Error {
	return NewConfigurationError(
		"core: capability "+string(capability)+" is not configured on this client",
		ErrorCapabilityNotConfigured,
		map[string]any{"capability": string(capability)},
	)
}

func OutsideProviderScopeError() *goerrors.Error {
	return NewConfigurationError(
		"core: accessed outside provider scope",
		ErrorOutsideProviderScope,
		nil,
	)
}

func WrapStorageError(source error, operation string) error {
	if source == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(source, &rich) && rich.TextCode == ErrorStorageFailure {
		return source
	}
	return goerrors.Wrap(source, goerrors.CategoryExternal, "core: credential store "+operation+" failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorStorageFailure).
		WithMetadata(map[string]any{"operation": operation})
}

func WrapProbeFailure(source error) error {
	if source == nil {
		return nil
	}
	return goerrors.Wrap(source, goerrors.CategoryExternal, "core: startup credential probe failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorProbeFailed)
}

func IsConfigurationError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	_, ok := configurationTextCodes[rich.TextCode]
	return ok
}

func IsStorageError(err error) bool {
	return hasTextCode(err, ErrorStorageFailure)
}

func IsProbeFailure(err error) bool {
	return hasTextCode(err, ErrorProbeFailed)
}

func hasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// MapError normalizes any error into the directus error envelope.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatusForCategory(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = TextCodeForCategory(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func TextCodeForCategory(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorExternalFailure
	default:
		return ErrorInternal
	}
}

func HTTPStatusForCategory(category goerrors.Category) int {
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
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
