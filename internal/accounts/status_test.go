package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusOpen, StatusFinalized))
	assert.True(t, CanTransition(StatusOpen, StatusClosed))
	assert.True(t, CanTransition(StatusFinalized, StatusOpen))
	assert.True(t, CanTransition(StatusFinalized, StatusClosed))

	assert.False(t, CanTransition(StatusOpen, StatusOpen))
	assert.False(t, CanTransition(StatusClosed, StatusOpen))
	assert.False(t, CanTransition(StatusCancelled, StatusOpen))
	assert.False(t, CanTransition(Status("unknown"), StatusClosed))

	assert.True(t, StatusClosed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusFinalized.Terminal())
}
