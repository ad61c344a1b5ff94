package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeachingLifecycle(t *testing.T) {
	teach := NewTeaching()
	assert.False(t, teach.Active())

	// Turns outside a lesson are dropped.
	teach.Add("user", "stray")
	assert.Equal(t, 0, teach.Turns())

	teach.Start("teach me to water plants")
	assert.True(t, teach.Active())

	teach.Add("user", "use a 30 minute interval")
	teach.Add("assistant", "understood")
	assert.Equal(t, 2, teach.Turns())

	request, exchange := teach.Finish()
	assert.Equal(t, "teach me to water plants", request)
	require.Len(t, exchange, 2)
	assert.Equal(t, "user", exchange[0].Role)
	assert.Equal(t, "use a 30 minute interval", exchange[0].Content)
	assert.Equal(t, "assistant", exchange[1].Role)

	assert.False(t, teach.Active())
	assert.Equal(t, 0, teach.Turns())
}

func TestTeachingStartDiscardsPrevious(t *testing.T) {
	teach := NewTeaching()
	teach.Start("first lesson")
	teach.Add("user", "old turn")

	teach.Start("second lesson")
	assert.Equal(t, 0, teach.Turns())

	request, _ := teach.Finish()
	assert.Equal(t, "second lesson", request)
}

func TestTeachingCancel(t *testing.T) {
	teach := NewTeaching()
	teach.Start("lesson")
	teach.Add("user", "turn")

	teach.Cancel()
	assert.False(t, teach.Active())

	request, exchange := teach.Finish()
	assert.Empty(t, request)
	assert.Empty(t, exchange)
}
