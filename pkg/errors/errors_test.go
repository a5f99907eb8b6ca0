package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cause := stderrors.New("boom")
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"not found", NotFound("patient", cause), http.StatusNotFound},
		{"bad request", BadRequest("invalid input", cause), http.StatusBadRequest},
		{"unauthorized", Unauthorized(cause), http.StatusUnauthorized},
		{"forbidden", Forbidden("role not allowed", cause), http.StatusForbidden},
		{"conflict", Conflict("edit raced", cause), http.StatusConflict},
		{"locked", Locked("note locked", cause), http.StatusLocked},
		{"internal", Internal(cause), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestAsFindsWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", BadRequest("invalid input", nil))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrBadRequest, appErr.Code)
	assert.True(t, IsCode(wrapped, ErrBadRequest))
}
