package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	require.Equal(t, StatusNotFound, StatusOf(NotFound("license not found")))
	require.Equal(t, StatusConflict, StatusOf(Conflict("duplicate key")))
	require.Equal(t, StatusUnknown, StatusOf(errors.New("plain")))
	require.Equal(t, StatusUnknown, StatusOf(nil))
}

func TestStatusOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidOperation("credit would become negative"))
	require.Equal(t, StatusInvalidOperation, StatusOf(err))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[CoreStatus]int{
		StatusBadRequest:       http.StatusBadRequest,
		StatusValidationFailed: http.StatusBadRequest,
		StatusUnauthorized:     http.StatusUnauthorized,
		StatusForbidden:        http.StatusForbidden,
		StatusNotFound:         http.StatusNotFound,
		StatusConflict:         http.StatusConflict,
		StatusInvalidOperation: http.StatusUnprocessableEntity,
		StatusInternal:         http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, code.HTTPStatus(), string(code))
	}
}

func TestErrorChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("failed to query licenses", WithErr(cause))

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "failed to query licenses")
	require.Contains(t, err.Error(), "connection reset")
}
