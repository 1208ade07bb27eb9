package domainerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type typedErr struct{ field string }

func (e *typedErr) Error() string { return "typed: " + e.field }

func TestWrap(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("typed cause remains reachable", func(t *testing.T) {
		err := Wrap(&typedErr{field: "x"}, CodeConflict, "not ready")

		var te *typedErr
		assert.True(t, errors.As(err, &te))
		assert.Equal(t, "x", te.field)
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("nested codes are all visible", func(t *testing.T) {
		inner := New(CodeNotFound, "descriptor missing")
		outer := Wrap(inner, CodeBadRequest, "link failed")

		assert.True(t, HasCode(outer, CodeNotFound))
		assert.True(t, HasCode(outer, CodeBadRequest))
		assert.Equal(t, CodeBadRequest, CodeOf(outer))
		assert.Equal(t, "link failed", MessageOf(outer))
	})
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code     Code
		expected int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeUnprocessable, http.StatusUnprocessableEntity},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, ToHTTPStatus(tt.code))
		})
	}
}
