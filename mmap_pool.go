package ocr

import (
	"golang.org/x/sys/unix"
)

// MmapPool is an anonymous mmap-backed byte region, used as the backing
// store for SimpleAllocator pools (NewSimpleAllocatorOnMmap) on topologies that want
// pages outside the Go heap (matching the source's mem-target abstraction
// over a raw address range, spec §4.3's "contiguous pool").
type MmapPool struct {
	data []byte
}

// NewMmapPool reserves size bytes via mmap(MAP_ANON|MAP_PRIVATE). The
// caller must call Close to munmap the region once the pool is torn down
// (runlevel MEMORY_OK tear-down, spec §4.1).
func NewMmapPool(size uint64) (*MmapPool, error) {
	if size == 0 {
		return nil, NewStatusError(StatusInvalidArgument, "mmap pool size must be > 0", nil)
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, NewStatusError(StatusOutOfMemory, "mmap pool allocation failed", err)
	}
	return &MmapPool{data: data}, nil
}

// Bytes exposes the reserved region for use as an allocator's backing pool.
func (p *MmapPool) Bytes() []byte { return p.data }

// Close unmaps the region. Safe to call once.
func (p *MmapPool) Close() error {
	if p.data == nil {
		return nil
	}
	err := unix.Munmap(p.data)
	p.data = nil
	if err != nil {
		return NewStatusError(StatusFatal, "munmap failed", err)
	}
	return nil
}

// NewSimpleAllocatorOnMmap builds a SimpleAllocator whose pool is backed by
// an anonymous mmap region instead of a Go-heap slice.
func NewSimpleAllocatorOnMmap(poolSize uint64) (*SimpleAllocator, *MmapPool, error) {
	pool, err := NewMmapPool(poolSize)
	if err != nil {
		return nil, nil, err
	}
	a := &SimpleAllocator{
		data:     pool.data,
		byOffset: make(map[int]*blockHeader),
	}
	root := &blockHeader{mark: blockMark, size: poolSize, offset: 0}
	a.headers = []*blockHeader{root}
	a.byOffset[0] = root
	a.freeList = root
	return a, pool, nil
}
