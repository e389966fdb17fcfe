package ocr

import (
	"sync"
	"sync/atomic"
)

// TaskState is the lifecycle of a Task, per spec §3.
type TaskState int32

const (
	TaskCreated TaskState = iota
	TaskPartiallySatisfied
	TaskReady
	TaskExecuting
	TaskFinished
	TaskDestroyed
)

// TaskBody is the user-supplied function reference invoked on execution.
// It receives the resolved dependence pointers and returns an optional
// result GUID (NullGuid if none).
type TaskBody func(paramv []uint64, depv []DependenceSlot) Guid

// TaskTemplate pairs a TaskBody with its declared parameter/dependence
// counts and an optional symbolic name (spec §3).
type TaskTemplate struct {
	guid      Guid
	Body      TaskBody
	ParamC    int
	DepC      int
	Name      string
	paramDefs []uint64
}

// CreateTaskTemplate guidifies a new template.
func CreateTaskTemplate(provider GuidProvider, body TaskBody, paramc, depc int, name string, paramDefaults []uint64) (Guid, error) {
	t := &TaskTemplate{Body: body, ParamC: paramc, DepC: depc, Name: name, paramDefs: paramDefaults}
	guid, _, err := provider.CreateGuid(NullGuid, 0, KindTemplate, GuidCreateProps{}, func(uint64) any { return t })
	if err != nil {
		return ErrorGuid, err
	}
	t.guid = guid
	return guid, nil
}

func lookupTemplate(provider GuidProvider, guid Guid) (*TaskTemplate, error) {
	v, kind, err := provider.GetVal(guid)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*TaskTemplate)
	if !ok || kind != KindTemplate {
		return nil, NewStatusError(StatusInvalidArgument, "guid does not resolve to a task template", nil)
	}
	return t, nil
}

// DependenceSlot is one entry of a Task's dependence vector: the source
// GUID that will (or did) satisfy it, the resolved payload once satisfied,
// and the access mode to apply if the source is a data block.
type DependenceSlot struct {
	Source  Guid
	Payload Guid
	Mode    AccessMode
	ptr     []byte
}

// TaskCreateProps mirrors the EDT_PROP_* flags consulted by createTask.
type TaskCreateProps struct {
	// Finish marks this task as a finish-EDT: it gets its own finish-latch,
	// and its post-event does not fire until every transitively created
	// child has finished (spec §4.6).
	Finish bool
	// WantOutputEvent requests a pre-linked Once event on the task's
	// result (spec §4.6 step 6).
	WantOutputEvent bool
}

// Task is the runtime record for one EDT instance (spec §3).
type Task struct {
	guid     Guid
	template *TaskTemplate

	mu    sync.Mutex
	state TaskState

	paramv []uint64
	depv   []DependenceSlot

	unsatisfied atomic.Int32

	finishLatch Guid // weak back-reference; NullGuid if none
	ownLatch    Guid // non-null only for a finish-EDT's own latch
	outputEvent Guid
	result      Guid // body's return value, read by the ownLatch waiter once fired

	hint Hint

	provider  GuidProvider
	scheduler *Scheduler
}

func lookupTask(provider GuidProvider, guid Guid) (*Task, error) {
	v, kind, err := provider.GetVal(guid)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*Task)
	if !ok || kind != KindTask {
		return nil, NewStatusError(StatusInvalidArgument, "guid does not resolve to a task", nil)
	}
	return t, nil
}

// CreateTask implements createTask (spec §4.6): resolves template,
// allocates and guidifies task metadata, copies param/dep vectors, attaches
// to the parent's finish-scope if any, wires each already-specified
// dependence, and optionally creates a pre-linked output event.
func CreateTask(provider GuidProvider, scheduler *Scheduler, templateGuid Guid, paramv []uint64, depc int, depv []DependenceSlot, props TaskCreateProps, hint Hint, parentFinishLatch Guid) (taskGuid Guid, outEvent Guid, err error) {
	tmpl, err := lookupTemplate(provider, templateGuid)
	if err != nil {
		return ErrorGuid, ErrorGuid, err
	}

	pv := make([]uint64, tmpl.ParamC)
	copy(pv, tmpl.paramDefs)
	copy(pv, paramv)

	dv := make([]DependenceSlot, depc)
	copy(dv, depv)

	t := &Task{
		template:    tmpl,
		paramv:      pv,
		depv:        dv,
		state:       TaskCreated,
		provider:    provider,
		scheduler:   scheduler,
		finishLatch: parentFinishLatch,
		hint:        hint,
	}
	t.unsatisfied.Store(int32(depc))

	guid, _, err := provider.CreateGuid(NullGuid, 0, KindTask, GuidCreateProps{}, func(uint64) any { return t })
	if err != nil {
		return ErrorGuid, ErrorGuid, err
	}
	t.guid = guid

	// Attach to parent's finish-scope: increment its latch's increment slot
	// (spec §4.6 step 4). This happens unconditionally, including for a
	// nested finish-EDT: from the outer scope's point of view a nested
	// finish-EDT is a single child, whether or not it carries its own
	// sub-scope.
	if parentFinishLatch != NullGuid {
		if latchEv, lerr := lookupEvent(provider, parentFinishLatch); lerr == nil {
			_ = latchEv.Satisfy(0, guid)
		}
	}

	if props.Finish {
		latchGuid, lerr := CreateEvent(provider, EventLatch, EventCreateParams{})
		if lerr != nil {
			return guid, ErrorGuid, lerr
		}
		t.ownLatch = latchGuid
		// The finish-EDT counts itself as ownLatch's first participant,
		// incremented here at creation and decremented in Execute once its
		// own body returns (matching the original OCR, not excluding the
		// parent from its own latch). Without this, a finish-EDT that
		// spawns dependency-free children could have its latch's
		// incr==decr predicate satisfied by those children alone, before
		// the parent body finishes creating the rest of them, firing the
		// output event early.
		if latchEv, lerr2 := lookupEvent(provider, latchGuid); lerr2 == nil {
			_ = latchEv.Satisfy(0, guid)
		}
		// Children (and their descendants) created against this task's
		// scope attach to ownLatch too (CreateTask callers pass this
		// task's ownLatch as their parentFinishLatch). Execute's generic
		// finishLatch-decrement step below performs this task's own
		// decrement against ownLatch, alongside every child's.
		t.finishLatch = latchGuid
		// The outer scope (if any) isn't decremented until every
		// transitive child of THIS scope has finished, i.e. once ownLatch
		// itself fires — not merely when this task's own body returns —
		// so the outer decrement is wired as a separate ownLatch waiter
		// rather than reusing the generic finishLatch decrement.
		if parentFinishLatch != NullGuid {
			if latchEv, lerr2 := lookupEvent(provider, latchGuid); lerr2 == nil {
				outer := parentFinishLatch
				_ = latchEv.RegisterWaiter(waiterSlot{guid: guid, slot: 1, deliver: func(Guid) {
					if outerEv, oerr := lookupEvent(provider, outer); oerr == nil {
						_ = outerEv.Satisfy(1, guid)
					}
				}})
			}
		}
	}

	for i := range dv {
		if dv[i].Source == NullGuid {
			continue
		}
		if err := addDependenceToTask(provider, t, dv[i].Source, i, dv[i].Mode); err != nil {
			return guid, ErrorGuid, err
		}
	}

	outEvent = NullGuid
	if props.WantOutputEvent {
		ev, everr := CreateEvent(provider, EventOnce, EventCreateParams{})
		if everr != nil {
			return guid, ErrorGuid, everr
		}
		t.outputEvent = ev
		outEvent = ev
		if t.ownLatch != NullGuid {
			// Finish-EDT: the post-event fires only once ownLatch fires
			// (every transitively-created child has finished), not when
			// this task's own body merely returns (spec §4.6 "Finish
			// EDT").
			if latchEv, lerr2 := lookupEvent(provider, t.ownLatch); lerr2 == nil {
				_ = latchEv.RegisterWaiter(waiterSlot{guid: guid, slot: 0, deliver: func(Guid) {
					if oev, oerr := lookupEvent(provider, ev); oerr == nil {
						_ = oev.Satisfy(0, t.result)
					}
				}})
			}
		}
	}

	t.checkReady()
	return guid, outEvent, nil
}

// AddDependence implements addDependence (spec §4.6): if src is NullGuid,
// treat as an immediate satisfy with no payload; otherwise register the
// destination slot as a waiter of src, which may be an event or a data
// block.
func AddDependence(provider GuidProvider, src, dst Guid, slot int, mode AccessMode) error {
	if dst == NullGuid {
		return NewStatusError(StatusInvalidArgument, "addDependence: dst must not be NullGuid", nil)
	}
	v, kind, err := provider.GetVal(dst)
	if err != nil {
		return err
	}
	t, ok := v.(*Task)
	if !ok || kind != KindTask {
		return NewStatusError(StatusInvalidArgument, "addDependence: dst does not resolve to a task", nil)
	}
	if src == NullGuid {
		return satisfyTaskSlot(provider, t, slot, NullGuid, mode)
	}
	return addDependenceToTask(provider, t, src, slot, mode)
}

func addDependenceToTask(provider GuidProvider, t *Task, src Guid, slot int, mode AccessMode) error {
	_, kind, err := provider.GetVal(src)
	if err != nil {
		return err
	}
	deliver := func(payload Guid) {
		_ = satisfyTaskSlot(provider, t, slot, payload, mode)
	}
	if kind == KindDataBlock {
		// Data blocks satisfy immediately (no waiter queue of their own);
		// the dependence is "ready" as soon as it is wired.
		deliver(src)
		return nil
	}
	ev, err := lookupEvent(provider, src)
	if err != nil {
		return err
	}
	return ev.RegisterWaiter(waiterSlot{guid: t.guid, slot: slot, deliver: deliver})
}

func satisfyTaskSlot(provider GuidProvider, t *Task, slot int, payload Guid, mode AccessMode) error {
	t.mu.Lock()
	if slot < 0 || slot >= len(t.depv) {
		t.mu.Unlock()
		return NewStatusError(StatusInvalidArgument, "dependence slot out of range", nil)
	}
	t.depv[slot].Payload = payload
	t.depv[slot].Mode = mode
	t.mu.Unlock()

	if t.unsatisfied.Add(-1) == 0 {
		t.checkReady()
	}
	return nil
}

// checkReady hands the task to the scheduler once every dependence slot has
// been satisfied (spec §4.6: "when a task's unsatisfied counter reaches
// zero, the task is handed to the scheduler via NOTIFY(task-ready)").
func (t *Task) checkReady() {
	if t.unsatisfied.Load() != 0 {
		t.mu.Lock()
		if t.state == TaskCreated {
			t.state = TaskPartiallySatisfied
		}
		t.mu.Unlock()
		return
	}
	t.mu.Lock()
	if t.state == TaskReady || t.state == TaskExecuting || t.state == TaskFinished || t.state == TaskDestroyed {
		t.mu.Unlock()
		return
	}
	t.state = TaskReady
	t.mu.Unlock()
	if t.scheduler != nil {
		t.scheduler.NotifyTaskReady(t)
	}
}

// Execute runs the task body with its resolved dependence pointers,
// acquiring any data-block dependences first and releasing them afterward,
// satisfies the output event if any, decrements the parent finish-latch,
// and finally releases the task's own metadata (spec §4.6 "Execution").
func (t *Task) Execute(allocator Allocator) {
	t.mu.Lock()
	t.state = TaskExecuting
	depv := append([]DependenceSlot(nil), t.depv...)
	t.mu.Unlock()

	for i := range depv {
		if depv[i].Payload == NullGuid || depv[i].Payload == ErrorGuid {
			continue
		}
		if _, kind, err := t.provider.GetVal(depv[i].Payload); err == nil && kind == KindDataBlock {
			if ptr, aerr := AcquireDataBlock(t.provider, depv[i].Payload, t.guid, depv[i].Mode); aerr == nil {
				depv[i].ptr = ptr
			}
		}
	}

	result := NullGuid
	if t.template.Body != nil {
		result = t.template.Body(t.paramv, depv)
	}
	t.result = result

	for i := range depv {
		if depv[i].ptr != nil {
			_ = ReleaseDataBlock(t.provider, depv[i].Payload, t.guid, depv[i].Mode != ModeRO)
		}
	}

	// A finish-EDT's output event is wired in CreateTask to fire off of
	// ownLatch (all transitive children finished), not off this task's own
	// body returning — see the ownLatch waiter registered there.
	if t.outputEvent != NullGuid && t.ownLatch == NullGuid {
		if ev, err := lookupEvent(t.provider, t.outputEvent); err == nil {
			_ = ev.Satisfy(0, result)
		}
	}

	if t.finishLatch != NullGuid {
		if ev, err := lookupEvent(t.provider, t.finishLatch); err == nil {
			_ = ev.Satisfy(1, t.guid)
		}
	}

	t.mu.Lock()
	t.state = TaskFinished
	t.mu.Unlock()

	_ = t.provider.ReleaseGuid(t.guid, true, func(any) {})
	t.mu.Lock()
	t.state = TaskDestroyed
	t.mu.Unlock()
}
