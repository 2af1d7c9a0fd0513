package store

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("update media: %w", NewError(RetCNotFound, "no record abc"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrAlreadyExists))
	assert.Equal(t, RetCNotFound, CodeOf(err))
}

func TestErrorUnwrap(t *testing.T) {
	err := WrapError(RetCRequestFailed, io.ErrUnexpectedEOF, "GET %s", "/api/media/x")

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Equal(t, "StoreError (code RequestFailed): GET /api/media/x: unexpected EOF", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, RetCSuccess, CodeOf(nil))
	assert.Equal(t, RetCInternalError, CodeOf(errors.New("boom")))
	assert.Equal(t, RetCAlreadyExists, CodeOf(ErrAlreadyExists))
	assert.Equal(t, "Unknown", RetCode(99).String())
}
