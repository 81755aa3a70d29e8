package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeSourceMissing, http.StatusNotFound},
		{CodeSegmentNotFound, http.StatusNotFound},
		{CodePathEscape, http.StatusForbidden},
		{CodeValidation, http.StatusBadRequest},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeTranscoderUnavailable, http.StatusInternalServerError},
		{CodeReadinessTimeout, http.StatusInternalServerError},
		{CodeTranscoderNoOutput, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
		{Code("UNKNOWN"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := NotFoundf("item %q missing", "/a.flac")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrPathEscape)
}

func TestErrorWrapping(t *testing.T) {
	cause := stderrors.New("disk exploded")
	err := Wrap(cause, CodeInternal, "read playlist")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "read playlist")
	assert.Contains(t, err.Error(), "disk exploded")

	var domainErr *Error
	require.True(t, As(err, &domainErr))
	assert.Equal(t, CodeInternal, domainErr.Code)
}

func TestErrorThroughFmtWrapping(t *testing.T) {
	inner := SourceMissingf("file gone")
	outer := fmt.Errorf("resolving: %w", inner)

	assert.ErrorIs(t, outer, ErrSourceMissing)

	var domainErr *Error
	require.True(t, As(outer, &domainErr))
	assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus())
}

func TestWithCause(t *testing.T) {
	cause := stderrors.New("underlying")
	err := ErrReadinessTimeout.WithCause(cause)

	assert.ErrorIs(t, err, ErrReadinessTimeout)
	assert.ErrorIs(t, err, cause)
}
