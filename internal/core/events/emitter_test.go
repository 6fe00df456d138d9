package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_DeliversInSubscriptionOrder(t *testing.T) {
	e := NewEmitter[int]()

	var got []int
	e.Subscribe(func(v int) { got = append(got, v*10) })
	e.Subscribe(func(v int) { got = append(got, v*100) })

	e.Fire(2)
	assert.Equal(t, []int{20, 200}, got, "listeners should run in subscription order")
}

func TestEmitter_CancelStopsDelivery(t *testing.T) {
	e := NewEmitter[string]()

	calls := 0
	sub := e.Subscribe(func(string) { calls++ })
	require.True(t, sub.IsActive())

	e.Fire("a")
	sub.Cancel()
	assert.False(t, sub.IsActive())

	e.Fire("b")
	assert.Equal(t, 1, calls, "cancelled listener should not receive events")

	// Cancelling twice is a no-op.
	sub.Cancel()
}

func TestEmitter_Close(t *testing.T) {
	e := NewEmitter[int]()

	calls := 0
	e.Subscribe(func(int) { calls++ })
	e.Close()
	e.Fire(1)
	assert.Zero(t, calls)

	sub := e.Subscribe(func(int) { calls++ })
	assert.False(t, sub.IsActive(), "subscribe after close should be inactive")
	e.Fire(2)
	assert.Zero(t, calls)
}
