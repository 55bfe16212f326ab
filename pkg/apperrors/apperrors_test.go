package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation: http.StatusBadRequest,
		KindAuth:       http.StatusUnauthorized,
		KindForbidden:  http.StatusForbidden,
		KindNotFound:   http.StatusNotFound,
		KindConflict:   http.StatusConflict,
		KindInternal:   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestKindOfUnwrapsChains(t *testing.T) {
	base := NotFound("message not found")
	wrapped := fmt.Errorf("loading thread: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindConflict))
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("failed to save message", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
