package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Once_SatisfyTwiceFails(t *testing.T) {
	p := NewCountedMapProvider(0)
	g, err := CreateEvent(p, EventOnce, EventCreateParams{})
	require.NoError(t, err)
	ev, err := lookupEvent(p, g)
	require.NoError(t, err)

	require.NoError(t, ev.Satisfy(0, Guid(7)))
	assert.Error(t, ev.Satisfy(0, Guid(8)))
}

func TestEvent_Once_WaiterRegisteredAfterSatisfyFiresImmediately(t *testing.T) {
	p := NewCountedMapProvider(0)
	g, err := CreateEvent(p, EventOnce, EventCreateParams{})
	require.NoError(t, err)
	ev, err := lookupEvent(p, g)
	require.NoError(t, err)

	require.NoError(t, ev.Satisfy(0, Guid(42)))

	var got Guid
	require.NoError(t, ev.RegisterWaiter(waiterSlot{deliver: func(payload Guid) { got = payload }}))
	assert.Equal(t, Guid(42), got)
}

func TestEvent_Idempotent_SecondSatisfyIsNoop(t *testing.T) {
	p := NewCountedMapProvider(0)
	g, err := CreateEvent(p, EventIdempotent, EventCreateParams{})
	require.NoError(t, err)
	ev, err := lookupEvent(p, g)
	require.NoError(t, err)

	require.NoError(t, ev.Satisfy(0, Guid(1)))
	assert.NoError(t, ev.Satisfy(0, Guid(2)))

	var got Guid
	require.NoError(t, ev.RegisterWaiter(waiterSlot{deliver: func(payload Guid) { got = payload }}))
	assert.Equal(t, Guid(1), got)
}

func TestEvent_Sticky_SecondSatisfyErrors(t *testing.T) {
	p := NewCountedMapProvider(0)
	g, err := CreateEvent(p, EventSticky, EventCreateParams{})
	require.NoError(t, err)
	ev, err := lookupEvent(p, g)
	require.NoError(t, err)

	require.NoError(t, ev.Satisfy(0, Guid(1)))
	assert.Error(t, ev.Satisfy(0, Guid(2)))
}

func TestEvent_Latch_FiresWhenBalanced(t *testing.T) {
	p := NewCountedMapProvider(0)
	g, err := CreateEvent(p, EventLatch, EventCreateParams{})
	require.NoError(t, err)
	ev, err := lookupEvent(p, g)
	require.NoError(t, err)

	fired := false
	require.NoError(t, ev.RegisterWaiter(waiterSlot{deliver: func(Guid) { fired = true }}))

	require.NoError(t, ev.Satisfy(0, NullGuid)) // increment
	assert.False(t, fired, "latch must not fire until balanced")
	require.NoError(t, ev.Satisfy(1, NullGuid)) // decrement
	assert.True(t, fired)
}

func TestEvent_Counted_FiresAfterAllWaitersRegistered(t *testing.T) {
	p := NewCountedMapProvider(0)
	g, err := CreateEvent(p, EventCounted, EventCreateParams{CountedExpected: 2})
	require.NoError(t, err)
	ev, err := lookupEvent(p, g)
	require.NoError(t, err)

	require.NoError(t, ev.Satisfy(0, Guid(9)))

	var got1, got2 Guid
	require.NoError(t, ev.RegisterWaiter(waiterSlot{deliver: func(payload Guid) { got1 = payload }}))
	require.NoError(t, ev.RegisterWaiter(waiterSlot{deliver: func(payload Guid) { got2 = payload }}))
	assert.Equal(t, Guid(9), got1)
	assert.Equal(t, Guid(9), got2)

	err = ev.RegisterWaiter(waiterSlot{deliver: func(Guid) {}})
	assert.Error(t, err, "a third waiter beyond N must be rejected")
}

func TestEvent_Channel_PairsSatisfyAndWaiterInArrivalOrder(t *testing.T) {
	p := NewCountedMapProvider(0)
	g, err := CreateEvent(p, EventChannel, EventCreateParams{})
	require.NoError(t, err)
	ev, err := lookupEvent(p, g)
	require.NoError(t, err)

	// Satisfy arrives first, buffered.
	require.NoError(t, ev.Satisfy(0, Guid(1)))

	var got Guid
	require.NoError(t, ev.RegisterWaiter(waiterSlot{deliver: func(payload Guid) { got = payload }}))
	assert.Equal(t, Guid(1), got)

	// Waiter arrives first this time, parked until satisfied.
	got = NullGuid
	require.NoError(t, ev.RegisterWaiter(waiterSlot{deliver: func(payload Guid) { got = payload }}))
	assert.Equal(t, NullGuid, got)
	require.NoError(t, ev.Satisfy(0, Guid(2)))
	assert.Equal(t, Guid(2), got)
}

func TestDestroyEvent_ReleasesGuid(t *testing.T) {
	p := NewCountedMapProvider(0)
	g, err := CreateEvent(p, EventSticky, EventCreateParams{})
	require.NoError(t, err)
	require.NoError(t, DestroyEvent(p, g))
	_, _, err = p.GetVal(g)
	assert.Error(t, err)
}
