package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleAllocator_AllocateFreeCoalesce(t *testing.T) {
	a := NewSimpleAllocator(1024)
	p1, err := a.Allocate(100, KindDataBlock)
	require.NoError(t, err)
	p2, err := a.Allocate(100, KindDataBlock)
	require.NoError(t, err)

	require.NoError(t, a.Free(p1))
	require.NoError(t, a.Free(p2))

	// After coalescing both frees with the remainder, a large allocation
	// spanning close to the full pool should succeed.
	p3, err := a.Allocate(900, KindDataBlock)
	require.NoError(t, err)
	assert.Len(t, p3, 900)
}

func TestSimpleAllocator_ZeroSizeRejected(t *testing.T) {
	a := NewSimpleAllocator(1024)
	_, err := a.Allocate(0, KindDataBlock)
	assert.Error(t, err)
}

func TestSimpleAllocator_OutOfMemory(t *testing.T) {
	a := NewSimpleAllocator(128)
	_, err := a.Allocate(1024, KindDataBlock)
	assert.Error(t, err)
}

func TestSimpleAllocator_DoubleFreeFails(t *testing.T) {
	a := NewSimpleAllocator(1024)
	p, err := a.Allocate(64, KindDataBlock)
	require.NoError(t, err)
	require.NoError(t, a.Free(p))
	assert.Error(t, a.Free(p))
}

func TestQuickAllocator_AllocateFreeReuse(t *testing.T) {
	a := NewQuickAllocator(4096)
	p1, err := a.Allocate(200, KindDataBlock)
	require.NoError(t, err)
	require.NoError(t, a.Free(p1))

	p2, err := a.Allocate(200, KindDataBlock)
	require.NoError(t, err)
	assert.Len(t, p2, 200)
}

func TestQuickAllocator_OutOfMemory(t *testing.T) {
	a := NewQuickAllocator(64)
	_, err := a.Allocate(4096, KindDataBlock)
	assert.Error(t, err)
}

func TestFreeListClass_Monotonic(t *testing.T) {
	assert.LessOrEqual(t, freeListClass(64), freeListClass(128))
	assert.LessOrEqual(t, freeListClass(128), freeListClass(4096))
}

func TestMallocProxyAllocator(t *testing.T) {
	a := MallocProxyAllocator{}
	p, err := a.Allocate(16, KindDataBlock)
	require.NoError(t, err)
	assert.Len(t, p, 16)
	assert.NoError(t, a.Free(p))

	_, err = a.Allocate(0, KindDataBlock)
	assert.Error(t, err)
}

func TestNullAllocator_AlwaysOutOfMemory(t *testing.T) {
	a := NullAllocator{}
	_, err := a.Allocate(1, KindDataBlock)
	assert.Error(t, err)
	assert.NoError(t, a.Free(nil))
}
