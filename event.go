package ocr

import (
	"sync"
)

// EventKind discriminates the six event variants of spec §4.5.
type EventKind uint8

const (
	EventOnce EventKind = iota
	EventIdempotent
	EventSticky
	EventLatch
	EventCounted
	EventChannel
)

func (k EventKind) toEntityKind() Kind {
	switch k {
	case EventOnce:
		return KindEventOnce
	case EventIdempotent:
		return KindEventIdempotent
	case EventSticky:
		return KindEventSticky
	case EventLatch:
		return KindEventLatch
	case EventCounted:
		return KindEventCounted
	case EventChannel:
		return KindEventChannel
	default:
		return KindNone
	}
}

// waiterSlot identifies where a satisfied payload should be delivered: a
// task's input dependence slot, or another event acting as a pass-through
// waiter (event-to-event chaining, spec §4.6 step 6).
type waiterSlot struct {
	guid Guid
	slot int
	// deliver receives the payload GUID once the waiter's predicate fires.
	// Owned by whichever subsystem registered the waiter (task engine or
	// another event); never nil.
	deliver func(payload Guid)
}

// event is the shared representation for all six variants. Variant-specific
// state lives in the fields below that only that variant touches; this
// mirrors the teacher's promise type using a single struct with a
// discriminant rather than six unrelated types, which keeps the GUID table
// entry shape uniform (spec §4.2's guidEntry.value is `any`).
type event struct {
	guid Guid
	kind EventKind

	mu sync.Mutex

	// Once/Idempotent/Sticky/Counted: has a satisfy occurred, and with what
	// payload.
	satisfied bool
	payload   Guid

	// Latch.
	latchIncr uint64
	latchDecr uint64

	// Counted.
	countedExpected  int
	countedRemaining int
	countedWaiters   int

	// Channel: two FIFOs, paired off as both become non-empty.
	chanSatisfies []Guid
	chanWaiters   []waiterSlot

	waiters   []waiterSlot
	destroyed bool

	provider GuidProvider
}

// EventCreateParams mirrors ocrEventParams_t for Latch/Counted variants.
type EventCreateParams struct {
	// CountedExpected is the N for EventCounted; ignored otherwise.
	CountedExpected int
}

// CreateEvent allocates a new event of the given kind, registers it in the
// provider's GUID table and returns its Guid.
func CreateEvent(provider GuidProvider, kind EventKind, params EventCreateParams) (Guid, error) {
	ev := &event{kind: kind, provider: provider}
	if kind == EventCounted {
		if params.CountedExpected < 0 {
			return ErrorGuid, NewStatusError(StatusInvalidArgument, "negative counted-event expectation", nil)
		}
		ev.countedExpected = params.CountedExpected
		ev.countedRemaining = params.CountedExpected
	}
	guid, val, err := provider.CreateGuid(NullGuid, 0, kind.toEntityKind(), GuidCreateProps{}, func(uint64) any { return ev })
	if err != nil {
		return ErrorGuid, err
	}
	ev.guid = guid
	_ = val
	return guid, nil
}

func lookupEvent(provider GuidProvider, guid Guid) (*event, error) {
	v, kind, err := provider.GetVal(guid)
	if err != nil {
		return nil, err
	}
	ev, ok := v.(*event)
	if !ok {
		return nil, NewStatusError(StatusInvalidArgument, "guid does not resolve to an event", nil)
	}
	if ev.kind.toEntityKind() != kind {
		return nil, FatalError("event kind mismatch for %s", guid)
	}
	return ev, nil
}

// RegisterWaiter attaches a waiter to the event, delivering immediately if
// the event's firing predicate already holds (e.g. Idempotent/Sticky already
// satisfied), matching the teacher's addHandler optimistic-settled check in
// promise.go. A Latch waiter is always queued until the latch fires; the
// increment/decrement counter is chosen by the slot passed to Satisfy, not
// by registration.
func (e *event) RegisterWaiter(w waiterSlot) error {
	e.mu.Lock()

	switch e.kind {
	case EventOnce, EventIdempotent, EventSticky:
		if e.satisfied {
			payload := e.payload
			e.mu.Unlock()
			w.deliver(payload)
			return nil
		}
		e.waiters = append(e.waiters, w)
		e.mu.Unlock()
		return nil

	case EventLatch:
		e.waiters = append(e.waiters, w)
		e.mu.Unlock()
		return nil

	case EventCounted:
		if e.countedWaiters >= e.countedExpected {
			e.mu.Unlock()
			return NewStatusError(StatusInvalidArgument, "counted event waiter registration exceeds N", nil)
		}
		e.countedWaiters++
		if e.satisfied {
			payload := e.payload
			e.maybeDestroyCountedLocked()
			e.mu.Unlock()
			w.deliver(payload)
			return nil
		}
		e.waiters = append(e.waiters, w)
		e.mu.Unlock()
		return nil

	case EventChannel:
		if len(e.chanSatisfies) > 0 {
			payload := e.chanSatisfies[0]
			e.chanSatisfies = e.chanSatisfies[1:]
			e.mu.Unlock()
			w.deliver(payload)
			return nil
		}
		e.chanWaiters = append(e.chanWaiters, w)
		e.mu.Unlock()
		return nil

	default:
		e.mu.Unlock()
		return FatalError("unknown event kind")
	}
}

// Satisfy delivers payload to slot (0 for all but Latch, where 0=increment
// and 1=decrement). Returns ErrProtocolViolation for a second Sticky
// satisfy, per spec §4.5.
func (e *event) Satisfy(slot int, payload Guid) error {
	e.mu.Lock()

	switch e.kind {
	case EventOnce:
		if e.satisfied {
			e.mu.Unlock()
			return NewStatusError(StatusProtocolViolation, "once event already satisfied", nil)
		}
		e.satisfied = true
		e.payload = payload
		waiters := e.waiters
		e.waiters = nil
		e.mu.Unlock()
		for _, w := range waiters {
			w.deliver(payload)
		}
		return e.destroySelf()

	case EventIdempotent:
		if e.satisfied {
			e.mu.Unlock()
			return nil
		}
		e.satisfied = true
		e.payload = payload
		waiters := e.waiters
		e.waiters = nil
		e.mu.Unlock()
		for _, w := range waiters {
			w.deliver(payload)
		}
		return nil

	case EventSticky:
		if e.satisfied {
			e.mu.Unlock()
			return NewStatusError(StatusProtocolViolation, "sticky event satisfied twice", nil)
		}
		e.satisfied = true
		e.payload = payload
		waiters := e.waiters
		e.waiters = nil
		e.mu.Unlock()
		for _, w := range waiters {
			w.deliver(payload)
		}
		return nil

	case EventLatch:
		switch slot {
		case 0:
			e.latchIncr++
		case 1:
			e.latchDecr++
		default:
			e.mu.Unlock()
			return NewStatusError(StatusInvalidArgument, "latch slot must be 0 or 1", nil)
		}
		fire := e.latchIncr == e.latchDecr && e.latchIncr != 0 && !e.satisfied
		if fire {
			e.satisfied = true
			e.payload = payload
		}
		waiters := e.waiters
		if fire {
			e.waiters = nil
		}
		e.mu.Unlock()
		if fire {
			for _, w := range waiters {
				w.deliver(payload)
			}
			return e.destroySelf()
		}
		return nil

	case EventCounted:
		if e.satisfied {
			e.mu.Unlock()
			return NewStatusError(StatusProtocolViolation, "counted event already satisfied", nil)
		}
		e.satisfied = true
		e.payload = payload
		waiters := e.waiters
		e.waiters = nil
		e.maybeDestroyCountedLocked()
		e.mu.Unlock()
		for _, w := range waiters {
			w.deliver(payload)
		}
		return nil

	case EventChannel:
		if len(e.chanWaiters) > 0 {
			w := e.chanWaiters[0]
			e.chanWaiters = e.chanWaiters[1:]
			e.mu.Unlock()
			w.deliver(payload)
			return nil
		}
		e.chanSatisfies = append(e.chanSatisfies, payload)
		e.mu.Unlock()
		return nil

	default:
		e.mu.Unlock()
		return FatalError("unknown event kind")
	}
}

// maybeDestroyCountedLocked marks the counted event for destruction once
// the satisfy has occurred and all N expected waiters have registered and
// consumed it. Must be called with e.mu held. It only sets e.destroyed;
// no caller releases the GUID afterwards.
func (e *event) maybeDestroyCountedLocked() {
	if e.countedRemaining > 0 {
		e.countedRemaining--
	}
	if e.satisfied && e.countedRemaining == 0 && e.countedWaiters >= e.countedExpected {
		e.destroyed = true
	}
}

// destroySelf releases the event's GUID. Once/Latch call this immediately
// on firing. Counted events never call it: maybeDestroyCountedLocked only
// sets e.destroyed, and a Counted event's GUID stays bound until
// DestroyEvent is called on it.
func (e *event) destroySelf() error {
	return e.provider.ReleaseGuid(e.guid, false, nil)
}

// DestroyEvent implements ocrEventDestroy for the user-visible lifetime
// management of Idempotent/Sticky/Channel events, which do not self-destruct.
func DestroyEvent(provider GuidProvider, guid Guid) error {
	ev, err := lookupEvent(provider, guid)
	if err != nil {
		return err
	}
	ev.mu.Lock()
	ev.destroyed = true
	ev.mu.Unlock()
	return provider.ReleaseGuid(guid, false, nil)
}
