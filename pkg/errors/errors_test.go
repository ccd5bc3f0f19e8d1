package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsKind(t *testing.T) {
	err := Clone(ErrAlreadyClaimed, "someone else took it")
	assert.Equal(t, "ALREADY_CLAIMED", err.Code)
	assert.True(t, err.Retryable)
	assert.True(t, errors.Is(err, ErrAlreadyClaimed))
	assert.False(t, errors.Is(err, ErrDuplicate))
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)

	typed := fmt.Errorf("ctx: %w", ErrNotEligible)
	assert.Equal(t, ErrNotEligible.Code, FromError(typed).Code)
	assert.Nil(t, FromError(nil))
}
