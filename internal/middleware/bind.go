package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"careAlert/pkg/e"
	"careAlert/pkg/validator"
)

const maxBodyBytes = 1 << 20

// BindJSON strictly decodes one JSON object from the body and validates it.
// An empty body decodes to the zero value so optional payloads work.
func BindJSON[T any](r *http.Request) (T, error) {
	var target T

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&target); err != nil && !errors.Is(err, io.EOF) {
		return target, fmt.Errorf("invalid JSON: %w", e.ErrInvalidInput)
	}
	// reject trailing data after the first object
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return target, fmt.Errorf("invalid JSON: %w", e.ErrInvalidInput)
	}

	if err := validator.ValidateStruct(target); err != nil {
		return target, fmt.Errorf("%s: %w", validator.Describe(err), e.ErrInvalidInput)
	}
	return target, nil
}
