package ocr

// Layout constants used for cache-line padding; no unit test checks them.
const (
	// sizeOfCacheLine is the size of a CPU cache line.
	// 64 bytes is standard for x86-64.
	// 128 bytes is standard for Apple Silicon (M1/M2/M3) and other ARM64.
	// We use 128 to satisfy the largest common alignment requirement.
	sizeOfCacheLine = 128

	// sizeOfAtomicInt64 is the size of an atomic.Int64 variable.
	sizeOfAtomicInt64 = 8
)

// dequePad separates the owner-written head/tail cursors of a
// WorkStealingDeque across cache lines, since PushTail/PopTail (owner) and
// PopHead (thief) touch head and tail independently and frequently under
// contention; without padding they would false-share one line.
type dequePad [sizeOfCacheLine - sizeOfAtomicInt64]byte
