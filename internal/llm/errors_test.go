package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	assert.ErrorIs(t, classifyStatus(429), ErrRateLimited)
	assert.ErrorIs(t, classifyStatus(500), ErrUnavailable)
	assert.ErrorIs(t, classifyStatus(503), ErrUnavailable)
	assert.ErrorIs(t, classifyStatus(0), ErrUnavailable, "transport failure with no status")

	assert.NoError(t, classifyStatus(400))
	assert.NoError(t, classifyStatus(401))
	assert.NoError(t, classifyStatus(404))
	assert.NoError(t, classifyStatus(200))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrUnavailable))
	assert.True(t, Retryable(ErrRateLimited))
	assert.True(t, Retryable(fmt.Errorf("openai chat: %w", ErrRateLimited)), "wrapping must not hide the class")

	assert.False(t, Retryable(errors.New("invalid request")))
	assert.False(t, Retryable(nil))
}
