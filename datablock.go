package ocr

import "sync"

// AccessMode is the concurrency mode under which a data block is acquired,
// per spec §4.7's compatibility matrix.
type AccessMode uint8

const (
	// ModeRW is the default: read-write, no guarantees against other RW
	// acquirers (the program is responsible for not racing itself).
	ModeRW AccessMode = iota
	// ModeEW is exclusive-write: incompatible with every other acquisition,
	// including another EW.
	ModeEW
	// ModeRO is read-only; concurrent RO/CONST/NCR acquisitions are always
	// compatible with each other.
	ModeRO
	// ModeConst is a write-once-before-share constant view.
	ModeConst
	// ModeNCR is "no-copy read", a hint that the block should not be
	// duplicated across policy domains; concurrency-wise it behaves as RO.
	ModeNCR
)

func (m AccessMode) concurrentSafe() bool {
	switch m {
	case ModeRO, ModeConst, ModeNCR:
		return true
	default:
		return false
	}
}

// compatible reports whether a new acquisition in mode next may be granted
// given the existing set of modes already held.
func compatible(existing []AccessMode, next AccessMode) bool {
	if next == ModeEW {
		return len(existing) == 0
	}
	for _, m := range existing {
		if m == ModeEW {
			return false
		}
	}
	// RW is granted alongside other RW/RO/CONST/NCR acquirers; the runtime
	// makes no further guarantee between concurrent RWs (spec §4.7).
	return true
}

type acquisition struct {
	requestor Guid
	mode      AccessMode
}

// dataBlock is the metadata bound to a DataBlock's Guid; the backing
// payload itself is allocated from the policy domain's Allocator.
type dataBlock struct {
	guid Guid
	size uint64
	ptr  []byte

	mu           sync.Mutex
	acquisitions []acquisition
	ewWaiters    []chan struct{}
	destroyed    bool

	provider  GuidProvider
	allocator Allocator
}

// CreateDataBlock allocates size bytes from alloc and guidifies the block.
func CreateDataBlock(provider GuidProvider, alloc Allocator, size uint64) (Guid, error) {
	ptr, err := alloc.Allocate(size, KindDataBlock)
	if err != nil {
		return ErrorGuid, err
	}
	db := &dataBlock{size: size, ptr: ptr, provider: provider, allocator: alloc}
	guid, _, err := provider.CreateGuid(NullGuid, 0, KindDataBlock, GuidCreateProps{}, func(uint64) any { return db })
	if err != nil {
		alloc.Free(ptr)
		return ErrorGuid, err
	}
	db.guid = guid
	return guid, nil
}

func lookupDataBlock(provider GuidProvider, guid Guid) (*dataBlock, error) {
	v, kind, err := provider.GetVal(guid)
	if err != nil {
		return nil, err
	}
	db, ok := v.(*dataBlock)
	if !ok || kind != KindDataBlock {
		return nil, NewStatusError(StatusInvalidArgument, "guid does not resolve to a data block", nil)
	}
	return db, nil
}

// AcquireDataBlock resolves dbGuid and grants requestor an acquisition in
// mode, blocking while mode is incompatible with the acquisitions held (an
// EW request while anything is held, or any request while an EW is held).
// Returns the backing payload slice on success.
func AcquireDataBlock(provider GuidProvider, guid Guid, requestor Guid, mode AccessMode) ([]byte, error) {
	db, err := lookupDataBlock(provider, guid)
	if err != nil {
		return nil, err
	}
	for {
		db.mu.Lock()
		if db.destroyed {
			db.mu.Unlock()
			return nil, NewStatusError(StatusInvalidArgument, "data block already destroyed", nil)
		}
		existing := make([]AccessMode, len(db.acquisitions))
		for i, a := range db.acquisitions {
			existing[i] = a.mode
		}
		if compatible(existing, mode) {
			db.acquisitions = append(db.acquisitions, acquisition{requestor: requestor, mode: mode})
			ptr := db.ptr
			db.mu.Unlock()
			return ptr, nil
		}
		// EW acquire blocks until all current acquirers release (spec §4.7).
		wait := make(chan struct{})
		db.ewWaiters = append(db.ewWaiters, wait)
		db.mu.Unlock()
		<-wait
	}
}

// ReleaseDataBlock removes requestor's acquisition. writeBack is accepted
// for API symmetry with cross-policy-domain marshalling (spec §4.7); this
// single-process implementation has no remote payload to marshal and
// ignores it beyond bookkeeping.
func ReleaseDataBlock(provider GuidProvider, guid Guid, requestor Guid, writeBack bool) error {
	db, err := lookupDataBlock(provider, guid)
	if err != nil {
		return err
	}
	db.mu.Lock()
	idx := -1
	for i, a := range db.acquisitions {
		if a.requestor == requestor {
			idx = i
			break
		}
	}
	if idx < 0 {
		db.mu.Unlock()
		return NewStatusError(StatusInvalidArgument, "requestor holds no acquisition on this data block", nil)
	}
	db.acquisitions = append(db.acquisitions[:idx], db.acquisitions[idx+1:]...)
	var wake []chan struct{}
	if len(db.acquisitions) == 0 && len(db.ewWaiters) > 0 {
		wake = db.ewWaiters
		db.ewWaiters = nil
	}
	db.mu.Unlock()
	for _, ch := range wake {
		close(ch)
	}
	return nil
}

// DestroyDataBlock frees the backing payload and releases the GUID. Per
// spec §4.7, this only succeeds once the active-acquisition count is zero.
func DestroyDataBlock(provider GuidProvider, guid Guid) error {
	db, err := lookupDataBlock(provider, guid)
	if err != nil {
		return err
	}
	db.mu.Lock()
	if len(db.acquisitions) > 0 {
		db.mu.Unlock()
		return NewStatusError(StatusInvalidArgument, "data block has active acquisitions", nil)
	}
	db.destroyed = true
	db.mu.Unlock()
	return provider.ReleaseGuid(guid, true, func(any) { db.allocator.Free(db.ptr) })
}
