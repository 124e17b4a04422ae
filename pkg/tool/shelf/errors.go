package shelf

import (
	"errors"

	"github.com/m-mizutani/smartshelf/pkg/model"
)

// ErrorResponse turns the three engine error kinds into a response the
// agent can narrate. ok is false for any other error.
func ErrorResponse(err error) (resp map[string]any, ok bool) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return map[string]any{
			"error":      err.Error(),
			"error_kind": "invalid_input",
		}, true

	case errors.Is(err, model.ErrMissingField):
		resp := map[string]any{
			"error":      err.Error(),
			"error_kind": "missing_field",
		}
		if field, found := model.MissingField(err); found {
			resp["field"] = string(field)
		}
		return resp, true

	case errors.Is(err, model.ErrStorageUnavailable):
		return map[string]any{
			"error":      err.Error(),
			"error_kind": "storage_unavailable",
		}, true
	}

	return nil, false
}
