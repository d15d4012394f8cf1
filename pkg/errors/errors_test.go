package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeEmptyInput:      http.StatusBadRequest,
		CodeTaskNotFound:    http.StatusNotFound,
		CodeVersionMismatch: http.StatusConflict,
		CodeLinkBlocked:     http.StatusTooManyRequests,
		CodeLinkParseFailed: http.StatusBadGateway,
		CodeDatabaseError:   http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, New(code, "x").HTTPStatus, code)
	}
}

func TestAsAppError_Wrapped(t *testing.T) {
	inner := New(CodeTaskNotFound, "task not found")
	err := fmt.Errorf("poll: %w", inner)

	assert.True(t, IsAppError(err))
	assert.Same(t, inner, AsAppError(err))
	assert.True(t, HasCode(err, CodeTaskNotFound))
	assert.False(t, HasCode(fmt.Errorf("plain"), CodeTaskNotFound))
	assert.Equal(t, CodeUnknown, AsAppError(fmt.Errorf("plain")).Code)
}
