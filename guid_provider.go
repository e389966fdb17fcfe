package ocr

import (
	"sync"
	"sync/atomic"
)

// guidEntry is the value bound to a live Guid: a pointer to caller-owned
// metadata, the Kind it was created with, and the location it originated
// from (redundant with Guid.Location, kept for provider-local bookkeeping).
type guidEntry struct {
	value  any
	kind   Kind
	origin uint8
}

// GuidProvider is the process-wide registry mapping Guids to object
// metadata (spec §4.2). Three strategies are provided: counted-map,
// labeled, and pointer-embed; all implement this interface.
type GuidProvider interface {
	// GetGuid generates the next Guid bound to value, of the given kind.
	GetGuid(value any, kind Kind) (Guid, error)
	// CreateGuid allocates metadata (via the supplied alloc func), binds it,
	// and returns both. props controls IS_LABELED/CHECK/BLOCK behavior; see
	// GuidCreateProps.
	CreateGuid(label Guid, size uint64, kind Kind, props GuidCreateProps, alloc func(size uint64) any) (Guid, any, error)
	// GetVal resolves guid to its bound value and kind.
	GetVal(guid Guid) (value any, kind Kind, err error)
	// GetLocation extracts the origin location from the Guid's bits, never
	// touching the map.
	GetLocation(guid Guid) uint8
	// ReleaseGuid removes guid from the map first, then — if
	// releaseMetadata is true — invokes freeFn(value). Ordering (remove
	// before free) is mandatory: see spec §4.2.
	ReleaseGuid(guid Guid, releaseMetadata bool, freeFn func(value any)) error
	// Reserve atomically reserves n consecutive labeled Guids of the given
	// kind. Only the labeled strategy supports this; others return
	// ErrNotSupported.
	Reserve(n uint64, kind Kind) (Guid, error)
}

const guidBucketCount = 10000

type guidBucket struct {
	mu sync.RWMutex
	m  map[Guid]*guidEntry
}

// guidTable is the bucketed concurrent map shared by the counted-map and
// labeled strategies (spec §5: "bucketed locks, ≈10000 buckets by
// default"), adapted from the registry's map-plus-mutex pattern in the
// teacher's registry.go (there keyed by a uint64 promise id; here keyed by
// Guid, with no weak-pointer GC since Guid lifetime is owner-managed, not
// GC-managed).
type guidTable struct {
	buckets [guidBucketCount]guidBucket
}

func newGuidTable() *guidTable {
	t := &guidTable{}
	for i := range t.buckets {
		t.buckets[i].m = make(map[Guid]*guidEntry)
	}
	return t
}

func (t *guidTable) bucket(g Guid) *guidBucket {
	return &t.buckets[uint64(g)%guidBucketCount]
}

// insert binds guid to entry. If check is true and a binding already
// exists, returns (existing, false) without overwriting — the caller
// (labeled CreateGuid) treats that as GUID_EXISTS.
func (t *guidTable) insert(guid Guid, entry *guidEntry, check bool) (existing *guidEntry, inserted bool) {
	b := t.bucket(guid)
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.m[guid]; ok {
		if check {
			return cur, false
		}
	}
	b.m[guid] = entry
	return entry, true
}

func (t *guidTable) get(guid Guid) (*guidEntry, bool) {
	b := t.bucket(guid)
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.m[guid]
	return e, ok
}

func (t *guidTable) remove(guid Guid) (*guidEntry, bool) {
	b := t.bucket(guid)
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.m[guid]
	if ok {
		delete(b.m, guid)
	}
	return e, ok
}

// GuidCreateProps controls CreateGuid behavior, mirroring the source's
// property flags (spec §4.2).
type GuidCreateProps struct {
	// IsLabeled indicates the caller supplies the Guid (label) rather than
	// the provider generating one.
	IsLabeled bool
	// Check requests GUID_EXISTS on collision instead of overwriting.
	Check bool
	// Block requests the provider retry until it wins the insertion race,
	// spinning on the publication marker rather than returning a
	// partially-initialized pointer (spec §4.2's "publication race").
	Block bool
}

// ---- counted-map strategy ----

// countedMapProvider is the simplest strategy: a plain bucketed hash map
// keyed by Guid, with a per-(location) monotonic counter. Labeling is not
// supported.
type countedMapProvider struct {
	location uint8
	table    *guidTable
	counter  atomic.Uint64
}

// NewCountedMapProvider constructs the counted-map GUID strategy for the
// given originating location.
func NewCountedMapProvider(location uint8) GuidProvider {
	return &countedMapProvider{location: location, table: newGuidTable()}
}

func (p *countedMapProvider) nextCounter() (uint64, error) {
	c := p.counter.Add(1)
	if c&^guidCounterMask != 0 {
		return 0, NewStatusError(StatusFatal, "guid counter overflow", nil)
	}
	return c, nil
}

func (p *countedMapProvider) GetGuid(value any, kind Kind) (Guid, error) {
	c, err := p.nextCounter()
	if err != nil {
		return ErrorGuid, err
	}
	g := makeGuid(p.location, kind, c, false)
	p.table.insert(g, &guidEntry{value: value, kind: kind, origin: p.location}, false)
	return g, nil
}

func (p *countedMapProvider) CreateGuid(label Guid, size uint64, kind Kind, props GuidCreateProps, alloc func(uint64) any) (Guid, any, error) {
	if props.IsLabeled {
		return ErrorGuid, nil, NewStatusError(StatusNotSupported, "counted-map provider does not support labeled create", nil)
	}
	value := alloc(size)
	g, err := p.GetGuid(value, kind)
	if err != nil {
		return ErrorGuid, nil, err
	}
	return g, value, nil
}

func (p *countedMapProvider) GetVal(guid Guid) (any, Kind, error) {
	e, ok := p.table.get(guid)
	if !ok {
		return nil, KindNone, NewStatusError(StatusNotFound, guid.String(), nil)
	}
	return e.value, e.kind, nil
}

func (p *countedMapProvider) GetLocation(guid Guid) uint8 { return guid.Location() }

func (p *countedMapProvider) ReleaseGuid(guid Guid, releaseMetadata bool, freeFn func(any)) error {
	e, ok := p.table.remove(guid)
	if !ok {
		return NewStatusError(StatusNotFound, guid.String(), nil)
	}
	if releaseMetadata && freeFn != nil {
		freeFn(e.value)
	}
	return nil
}

func (p *countedMapProvider) Reserve(uint64, Kind) (Guid, error) {
	return ErrorGuid, NewStatusError(StatusNotSupported, "counted-map provider does not support labeling", nil)
}

// ---- labeled strategy ----

// labeledProvider extends the counted-map strategy with a reserved-range
// counter, used to hand out contiguous blocks of Guids to callers that need
// to name entities before creating them (spec §4.2's guidReserve, ported
// from ocr/src/guid/labeled/labeled-guid.c).
type labeledProvider struct {
	location      uint8
	table         *guidTable
	counter       atomic.Uint64
	reservedCtr   atomic.Uint64
	publishSpinNS int
}

// NewLabeledProvider constructs the labeled GUID strategy.
func NewLabeledProvider(location uint8) GuidProvider {
	return &labeledProvider{location: location, table: newGuidTable()}
}

func (p *labeledProvider) nextCounter() (uint64, error) {
	c := p.counter.Add(1)
	if c&^guidCounterMask != 0 {
		return 0, NewStatusError(StatusFatal, "guid counter overflow", nil)
	}
	return c, nil
}

func (p *labeledProvider) GetGuid(value any, kind Kind) (Guid, error) {
	c, err := p.nextCounter()
	if err != nil {
		return ErrorGuid, err
	}
	g := makeGuid(p.location, kind, c, false)
	p.table.insert(g, &guidEntry{value: value, kind: kind, origin: p.location}, false)
	return g, nil
}

func (p *labeledProvider) CreateGuid(label Guid, size uint64, kind Kind, props GuidCreateProps, alloc func(uint64) any) (Guid, any, error) {
	if !props.IsLabeled {
		value := alloc(size)
		g, err := p.GetGuid(value, kind)
		return g, value, err
	}

	for {
		existing, inserted := p.table.insert(label, nil, true)
		if inserted {
			// We won the slot, with a nil placeholder: allocate now and
			// publish. Readers racing us (props.Block) spin on this entry's
			// value being non-nil.
			value := alloc(size)
			entry := &guidEntry{value: value, kind: kind, origin: p.location}
			p.table.insert(label, entry, false)
			return label, value, nil
		}
		// Collision.
		if existing == nil || existing.value == nil {
			if !props.Block {
				if props.Check {
					return label, nil, NewStatusError(StatusExists, label.String(), nil)
				}
				continue
			}
			// BLOCK: spin until the winner publishes its value, resolving
			// the publication race described in spec §4.2.
			for {
				e, ok := p.table.get(label)
				if ok && e != nil && e.value != nil {
					return label, e.value, nil
				}
			}
		}
		if props.Check {
			return label, existing.value, NewStatusError(StatusExists, label.String(), nil)
		}
		return label, existing.value, nil
	}
}

func (p *labeledProvider) GetVal(guid Guid) (any, Kind, error) {
	e, ok := p.table.get(guid)
	if !ok || e == nil || e.value == nil {
		return nil, KindNone, NewStatusError(StatusNotFound, guid.String(), nil)
	}
	return e.value, e.kind, nil
}

func (p *labeledProvider) GetLocation(guid Guid) uint8 { return guid.Location() }

func (p *labeledProvider) ReleaseGuid(guid Guid, releaseMetadata bool, freeFn func(any)) error {
	e, ok := p.table.remove(guid)
	if !ok {
		return NewStatusError(StatusNotFound, guid.String(), nil)
	}
	if releaseMetadata && freeFn != nil && e != nil {
		freeFn(e.value)
	}
	return nil
}

// Reserve atomically reserves n consecutive Guids in the reserved
// (labeled) range, all of the given kind, returning the first.
func (p *labeledProvider) Reserve(n uint64, kind Kind) (Guid, error) {
	if n == 0 {
		return ErrorGuid, NewStatusError(StatusInvalidArgument, "reserve: n must be > 0", nil)
	}
	start := p.reservedCtr.Add(n) - n
	if (start+n)&^guidCounterMask != 0 {
		return ErrorGuid, NewStatusError(StatusFatal, "guid reserved-range counter overflow", nil)
	}
	return makeGuid(p.location, kind, start, true), nil
}

// ---- pointer-embed strategy ----

// ptrEmbedProvider makes the Guid *be* a canonicalized metadata pointer
// (represented here as a small side-record index, since Go offers no
// portable pointer-to-integer story): no map lookup is required to
// resolve a Guid to its value. Labeling is not supported (spec §4.2 table).
type ptrEmbedProvider struct {
	location uint8
	mu       sync.RWMutex
	slots    []*guidEntry
	free     []uint64
	counter  atomic.Uint64
}

// NewPointerEmbedProvider constructs the pointer-embed GUID strategy.
func NewPointerEmbedProvider(location uint8) GuidProvider {
	return &ptrEmbedProvider{location: location, slots: make([]*guidEntry, 1, 1024)}
}

func (p *ptrEmbedProvider) allocSlot(e *guidEntry) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		p.slots[idx] = e
		return idx
	}
	idx := uint64(len(p.slots))
	p.slots = append(p.slots, e)
	return idx
}

func (p *ptrEmbedProvider) GetGuid(value any, kind Kind) (Guid, error) {
	idx := p.allocSlot(&guidEntry{value: value, kind: kind, origin: p.location})
	if idx&^guidCounterMask != 0 {
		return ErrorGuid, NewStatusError(StatusFatal, "pointer-embed slot overflow", nil)
	}
	return makeGuid(p.location, kind, idx, false), nil
}

func (p *ptrEmbedProvider) CreateGuid(_ Guid, size uint64, kind Kind, props GuidCreateProps, alloc func(uint64) any) (Guid, any, error) {
	if props.IsLabeled {
		return ErrorGuid, nil, NewStatusError(StatusNotSupported, "pointer-embed provider does not support labeling", nil)
	}
	value := alloc(size)
	g, err := p.GetGuid(value, kind)
	return g, value, err
}

func (p *ptrEmbedProvider) GetVal(guid Guid) (any, Kind, error) {
	idx := uint64(guid) & guidCounterMask
	p.mu.RLock()
	defer p.mu.RUnlock()
	if idx >= uint64(len(p.slots)) || p.slots[idx] == nil {
		return nil, KindNone, NewStatusError(StatusNotFound, guid.String(), nil)
	}
	e := p.slots[idx]
	return e.value, e.kind, nil
}

func (p *ptrEmbedProvider) GetLocation(guid Guid) uint8 { return guid.Location() }

func (p *ptrEmbedProvider) ReleaseGuid(guid Guid, releaseMetadata bool, freeFn func(any)) error {
	idx := uint64(guid) & guidCounterMask
	p.mu.Lock()
	if idx >= uint64(len(p.slots)) || p.slots[idx] == nil {
		p.mu.Unlock()
		return NewStatusError(StatusNotFound, guid.String(), nil)
	}
	e := p.slots[idx]
	p.slots[idx] = nil
	p.free = append(p.free, idx)
	p.mu.Unlock()
	if releaseMetadata && freeFn != nil {
		freeFn(e.value)
	}
	return nil
}

func (p *ptrEmbedProvider) Reserve(uint64, Kind) (Guid, error) {
	return ErrorGuid, NewStatusError(StatusNotSupported, "pointer-embed provider does not support labeling", nil)
}
