package ocr

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkStealingDeque_OwnerPushPop(t *testing.T) {
	d := NewWorkStealingDeque(8)
	require.NoError(t, d.PushTail(1))
	require.NoError(t, d.PushTail(2))
	require.NoError(t, d.PushTail(3))
	assert.Equal(t, 3, d.Size())

	v, ok := d.PopTail()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = d.PopTail()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = d.PopTail()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = d.PopTail()
	assert.False(t, ok)
}

func TestWorkStealingDeque_StealFromHead(t *testing.T) {
	d := NewWorkStealingDeque(8)
	require.NoError(t, d.PushTail("a"))
	require.NoError(t, d.PushTail("b"))

	v, ok := d.PopHead()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = d.PopTail()
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestWorkStealingDeque_Overflow(t *testing.T) {
	d := NewWorkStealingDeque(2)
	require.NoError(t, d.PushTail(1))
	require.NoError(t, d.PushTail(2))
	assert.Error(t, d.PushTail(3))
}

func TestWorkStealingDeque_PushHeadUnsupported(t *testing.T) {
	d := NewWorkStealingDeque(4)
	assert.Error(t, d.PushHead(1))
}

func TestWorkStealingDeque_ConcurrentStealersDontDuplicate(t *testing.T) {
	const n = 2000
	d := NewWorkStealingDeque(n + 1)
	for i := 0; i < n; i++ {
		require.NoError(t, d.PushTail(i))
	}

	var mu sync.Mutex
	seen := make(map[int]bool, n)
	var wg sync.WaitGroup
	record := func(v int, ok bool) {
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		assert.False(t, seen[v], "value %d popped twice", v)
		seen[v] = true
	}

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := d.PopHead()
				if !ok {
					if d.Size() <= 0 {
						return
					}
					continue
				}
				record(v.(int), ok)
			}
		}()
	}
	wg.Wait()
}

func TestNonConcurrentDeque_HeadAndTailOps(t *testing.T) {
	d := NewNonConcurrentDeque(4)
	require.NoError(t, d.PushTail(1))
	require.NoError(t, d.PushHead(0))
	assert.Equal(t, 2, d.Size())

	v, ok := d.PopHead()
	require.True(t, ok)
	assert.Equal(t, 0, v)

	v, ok = d.PopTail()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestSemiConcurrentDeque_PopTailUnsupported(t *testing.T) {
	d := NewSemiConcurrentDeque(4)
	require.NoError(t, d.PushTail(1))
	_, ok := d.PopTail()
	assert.False(t, ok)

	v, ok := d.PopHead()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLockedDeque_FullSurface(t *testing.T) {
	d := NewLockedDeque(4)
	require.NoError(t, d.PushTail(1))
	require.NoError(t, d.PushHead(0))
	assert.Equal(t, 2, d.Size())
	v, ok := d.PopHead()
	require.True(t, ok)
	assert.Equal(t, 0, v)
	v, ok = d.PopTail()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}
