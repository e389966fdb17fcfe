package ocr

import (
	"sync"
)

// blockMark is the sentinel guarding every block header/trailer, matching
// ocr/src/allocator/allocator-all.h's MARK field. A free/deallocate whose
// target block does not carry it is treated as an invalid-pointer fault.
const blockMark = 0xFEEF

// Allocator is the common surface of the pool-backed allocators (spec
// §4.3). size is payload bytes, excluding header/trailer bookkeeping; kind
// tags the block for dispatch on Free, the same role the source's
// payload-header "allocator-kind" field plays for heterogeneous pools.
type Allocator interface {
	Allocate(size uint64, kind Kind) ([]byte, error)
	Free(payload []byte) error
}

// blockHeader mirrors the source's packed header fields, kept as a Go
// struct rather than bytes packed into the pool: size/mark/inUse plus the
// kind tag used to route Free to the owning allocator when several pools
// share a process (the 3-bit allocator-kind tag in INFO2, spec §4.3).
type blockHeader struct {
	mark  uint32
	size  uint64
	inUse bool
	kind  Kind
	// next/prev link the free list; unused while inUse.
	next, prev *blockHeader
	// offset into pool.data where this block's payload begins.
	offset int
}

// minBlockSize bounds how small a split remainder may be before the
// allocator instead hands out the whole block (spec §4.3 "split if
// remainder >= minimum block size").
const minBlockSize = 64

// SimpleAllocator is the first-fit, coalescing allocator of spec §4.3,
// grounded on ocr/src/allocator/allocator-simple.c. One mutex guards the
// whole pool; this is a correctness-critical, not throughput-critical,
// component (spec §5).
type SimpleAllocator struct {
	mu       sync.Mutex
	data     []byte
	headers  []*blockHeader // all blocks, in address order
	freeList *blockHeader   // doubly-linked via next/prev, order arbitrary
	byOffset map[int]*blockHeader
}

// NewSimpleAllocator creates a pool of the given size, backed by a single
// contiguous byte slice (standing in for the mmap'd region the source
// allocates via golang.org/x/sys/unix in production topologies; see
// NewMmapPool).
func NewSimpleAllocator(poolSize uint64) *SimpleAllocator {
	a := &SimpleAllocator{
		data:     make([]byte, poolSize),
		byOffset: make(map[int]*blockHeader),
	}
	root := &blockHeader{mark: blockMark, size: poolSize, offset: 0}
	a.headers = []*blockHeader{root}
	a.byOffset[0] = root
	a.freeList = root
	return a
}

var _ Allocator = (*SimpleAllocator)(nil)

func (a *SimpleAllocator) Allocate(size uint64, kind Kind) ([]byte, error) {
	if size == 0 {
		return nil, NewStatusError(StatusInvalidArgument, "allocate: size must be > 0", nil)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for b := a.freeList; b != nil; b = b.next {
		if b.size < size {
			continue
		}
		a.unlinkFree(b)
		if b.size >= size+minBlockSize {
			remOffset := b.offset + int(size)
			remSize := b.size - size
			b.size = size
			rem := &blockHeader{mark: blockMark, size: remSize, offset: remOffset}
			a.byOffset[remOffset] = rem
			a.insertHeaderAfter(b, rem)
			a.linkFree(rem)
		}
		b.inUse = true
		b.kind = kind
		return a.data[b.offset : b.offset+int(b.size)], nil
	}
	return nil, NewStatusError(StatusOutOfMemory, "no free block large enough", nil)
}

func (a *SimpleAllocator) Free(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	offset := a.offsetOf(payload)
	b, ok := a.byOffset[offset]
	if !ok || b.mark != blockMark {
		return FatalError("free: invalid pointer, MARK sentinel missing at offset %d", offset)
	}
	if !b.inUse {
		return FatalError("free: double free at offset %d", offset)
	}
	b.inUse = false
	a.linkFree(b)
	a.coalesce(b)
	return nil
}

func (a *SimpleAllocator) offsetOf(payload []byte) int {
	base := &a.data[0]
	_ = base
	// Deriving the offset from a slice header without unsafe requires the
	// caller-tracked offset; we recover it by scanning headers for a
	// matching backing range. Pools are small in practice (test/topology
	// scale), so linear scan here is acceptable; production-scale pools
	// would carry the offset alongside the returned slice.
	for off, h := range a.byOffset {
		if h.inUse && off+int(h.size) <= len(a.data) {
			if len(payload) == int(h.size) && &a.data[off] == &payload[0] {
				return off
			}
		}
	}
	return -1
}

func (a *SimpleAllocator) unlinkFree(b *blockHeader) {
	// Linear removal from the free "list" represented via next/prev already
	// threading only free blocks.
	if a.freeList == b {
		a.freeList = b.next
	}
	if b.prev != nil {
		b.prev.next = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
	b.next, b.prev = nil, nil
}

func (a *SimpleAllocator) linkFree(b *blockHeader) {
	b.next = a.freeList
	b.prev = nil
	if a.freeList != nil {
		a.freeList.prev = b
	}
	a.freeList = b
}

// insertHeaderAfter keeps a.headers sorted by address so coalesce can find
// the left/right physical neighbors of a block being freed.
func (a *SimpleAllocator) insertHeaderAfter(after, h *blockHeader) {
	for i, existing := range a.headers {
		if existing == after {
			a.headers = append(a.headers[:i+1], append([]*blockHeader{h}, a.headers[i+1:]...)...)
			return
		}
	}
	a.headers = append(a.headers, h)
}

// coalesce merges b with its left and/or right physical neighbor if they
// are free and carry a valid MARK (spec §4.3).
func (a *SimpleAllocator) coalesce(b *blockHeader) {
	for i, h := range a.headers {
		if h != b {
			continue
		}
		if i+1 < len(a.headers) {
			right := a.headers[i+1]
			if !right.inUse && right.mark == blockMark {
				a.unlinkFree(right)
				b.size += right.size
				delete(a.byOffset, right.offset)
				a.headers = append(a.headers[:i+1], a.headers[i+2:]...)
			}
		}
		if i > 0 {
			left := a.headers[i-1]
			if !left.inUse && left.mark == blockMark {
				a.unlinkFree(b)
				left.size += b.size
				delete(a.byOffset, b.offset)
				a.headers = append(a.headers[:i], a.headers[i+1:]...)
			}
		}
		return
	}
}

// freeListClass buckets free blocks by a power-of-two size class.
func freeListClass(size uint64) int {
	class := 0
	for s := uint64(1) << 6; s < size && class < 31; s <<= 1 {
		class++
	}
	return class
}

// QuickAllocator is the segregated-free-list variant of spec §4.3, trading
// first-fit's linear scan for O(1) average-case allocation by indexing free
// blocks into size-class buckets. Deallocation and coalescing reuse
// SimpleAllocator's bookkeeping; only the free-list representation differs.
type QuickAllocator struct {
	mu       sync.Mutex
	data     []byte
	headers  []*blockHeader
	byOffset map[int]*blockHeader
	classes  [32][]*blockHeader
}

// NewQuickAllocator creates a segregated-free-list pool of the given size.
func NewQuickAllocator(poolSize uint64) *QuickAllocator {
	a := &QuickAllocator{
		data:     make([]byte, poolSize),
		byOffset: make(map[int]*blockHeader),
	}
	root := &blockHeader{mark: blockMark, size: poolSize, offset: 0}
	a.headers = []*blockHeader{root}
	a.byOffset[0] = root
	a.classes[freeListClass(poolSize)] = append(a.classes[freeListClass(poolSize)], root)
	return a
}

var _ Allocator = (*QuickAllocator)(nil)

func (a *QuickAllocator) Allocate(size uint64, kind Kind) ([]byte, error) {
	if size == 0 {
		return nil, NewStatusError(StatusInvalidArgument, "allocate: size must be > 0", nil)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	startClass := freeListClass(size)
	for c := startClass; c < len(a.classes); c++ {
		bucket := a.classes[c]
		for i, b := range bucket {
			if b.size < size {
				continue
			}
			a.classes[c] = append(bucket[:i], bucket[i+1:]...)
			if b.size >= size+minBlockSize {
				remOffset := b.offset + int(size)
				remSize := b.size - size
				b.size = size
				rem := &blockHeader{mark: blockMark, size: remSize, offset: remOffset}
				a.byOffset[remOffset] = rem
				a.insertHeaderAfter(b, rem)
				cls := freeListClass(remSize)
				a.classes[cls] = append(a.classes[cls], rem)
			}
			b.inUse = true
			b.kind = kind
			return a.data[b.offset : b.offset+int(b.size)], nil
		}
	}
	return nil, NewStatusError(StatusOutOfMemory, "no free block large enough", nil)
}

func (a *QuickAllocator) insertHeaderAfter(after, h *blockHeader) {
	for i, existing := range a.headers {
		if existing == after {
			a.headers = append(a.headers[:i+1], append([]*blockHeader{h}, a.headers[i+1:]...)...)
			return
		}
	}
	a.headers = append(a.headers, h)
}

func (a *QuickAllocator) Free(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var target *blockHeader
	for off, h := range a.byOffset {
		if h.inUse && len(payload) == int(h.size) && &a.data[off] == &payload[0] {
			target = h
			break
		}
	}
	if target == nil || target.mark != blockMark {
		return FatalError("free: invalid pointer or missing MARK sentinel")
	}
	target.inUse = false
	a.coalesceAndBucket(target)
	return nil
}

func (a *QuickAllocator) removeFromBucket(b *blockHeader) {
	cls := freeListClass(b.size)
	bucket := a.classes[cls]
	for i, h := range bucket {
		if h == b {
			a.classes[cls] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

func (a *QuickAllocator) coalesceAndBucket(b *blockHeader) {
	for i, h := range a.headers {
		if h != b {
			continue
		}
		if i+1 < len(a.headers) {
			right := a.headers[i+1]
			if !right.inUse && right.mark == blockMark {
				a.removeFromBucket(right)
				b.size += right.size
				delete(a.byOffset, right.offset)
				a.headers = append(a.headers[:i+1], a.headers[i+2:]...)
			}
		}
		if i > 0 {
			left := a.headers[i-1]
			if !left.inUse && left.mark == blockMark {
				a.removeFromBucket(left)
				left.size += b.size
				delete(a.byOffset, b.offset)
				a.headers = append(a.headers[:i], a.headers[i+1:]...)
				a.classes[freeListClass(left.size)] = append(a.classes[freeListClass(left.size)], left)
				return
			}
		}
		a.classes[freeListClass(b.size)] = append(a.classes[freeListClass(b.size)], b)
		return
	}
}

// MallocProxyAllocator forwards directly to the Go heap with no pool or
// coalescing, matching ocr/src/allocator/allocator-malloc.c — a minimal
// strategy for hosted (non-embedded) topologies where userspace malloc is
// available and the simple/quick pool machinery is unnecessary overhead.
type MallocProxyAllocator struct{}

var _ Allocator = MallocProxyAllocator{}

func (MallocProxyAllocator) Allocate(size uint64, _ Kind) ([]byte, error) {
	if size == 0 {
		return nil, NewStatusError(StatusInvalidArgument, "allocate: size must be > 0", nil)
	}
	return make([]byte, size), nil
}

func (MallocProxyAllocator) Free([]byte) error { return nil }

// NullAllocator always fails; it is wired into test/no-memory topologies
// that intentionally exercise OUT_OF_MEMORY handling.
type NullAllocator struct{}

var _ Allocator = NullAllocator{}

func (NullAllocator) Allocate(uint64, Kind) ([]byte, error) {
	return nil, NewStatusError(StatusOutOfMemory, "null allocator never satisfies a request", nil)
}

func (NullAllocator) Free([]byte) error { return nil }
