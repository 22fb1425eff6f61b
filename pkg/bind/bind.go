// Package bind decodes and validates an HTTP request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/validate"
)

const defaultMaxBody = 4 << 20

// JSON decodes r.Body into dest and validates it.
//
// A malformed or oversized body returns a non-nil error; validation failures
// come back as the field map with a nil error. An empty body decodes as {} so
// that required-field messages are reported instead of a parse error.
func JSON(r *http.Request, dest interface{}) (map[string]string, error) {
	limit := int64(config.Int("MAX_BODY_BYTES", defaultMaxBody))
	if limit <= 0 {
		limit = defaultMaxBody
	}
	r.Body = http.MaxBytesReader(nil, r.Body, limit)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}
