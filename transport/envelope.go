package transport

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// DecodeData unmarshals the data member of a Directus response into target.
// A 204 or empty body leaves target untouched.
func DecodeData(response Response, target any) error {
	if len(response.Body) == 0 || response.StatusCode == http.StatusNoContent || target == nil {
		return nil
	}
	envelope := dataEnvelope{}
	if err := json.Unmarshal(response.Body, &envelope); err != nil {
		return transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode directus response",
			http.StatusBadGateway,
			map[string]any{"status_code": response.StatusCode},
		)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		return transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode directus data",
			http.StatusBadGateway,
			map[string]any{"status_code": response.StatusCode},
		)
	}
	return nil
}
