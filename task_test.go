package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(numWorkers int) *Scheduler {
	compute := NewWorkStealingHeuristic(numWorkers, DefaultDequeCapacity, numWorkers)
	return NewScheduler(compute, nil, nil)
}

func TestCreateTask_NoDependencesIsImmediatelyReady(t *testing.T) {
	p := NewCountedMapProvider(0)
	sched := newTestScheduler(1)

	var ran bool
	tmplGuid, err := CreateTaskTemplate(p, func(_ []uint64, _ []DependenceSlot) Guid {
		ran = true
		return NullGuid
	}, 0, 0, "noop", nil)
	require.NoError(t, err)

	taskGuid, _, err := CreateTask(p, sched, tmplGuid, nil, 0, nil, TaskCreateProps{}, Hint{}, NullGuid)
	require.NoError(t, err)

	task, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)
	task.Execute(NewSimpleAllocator(1 << 20))
	assert.True(t, ran)

	tk, err := lookupTask(p, taskGuid)
	// task releases its own guid on finish; lookup should fail post-execute.
	if err == nil {
		assert.Equal(t, TaskDestroyed, tk.state)
	}
}

func TestCreateTask_WaitsOnDependenceEvent(t *testing.T) {
	p := NewCountedMapProvider(0)
	sched := newTestScheduler(1)

	var observed Guid
	tmplGuid, err := CreateTaskTemplate(p, func(_ []uint64, depv []DependenceSlot) Guid {
		observed = depv[0].Payload
		return NullGuid
	}, 0, 1, "dep", nil)
	require.NoError(t, err)

	evGuid, err := CreateEvent(p, EventOnce, EventCreateParams{})
	require.NoError(t, err)

	depv := []DependenceSlot{{Source: evGuid, Mode: ModeRO}}
	_, _, err = CreateTask(p, sched, tmplGuid, nil, 1, depv, TaskCreateProps{}, Hint{}, NullGuid)
	require.NoError(t, err)

	// Not yet ready: nothing should be schedulable.
	_, ok := sched.GetWork(GetWorkCompute, 0)
	assert.False(t, ok)

	ev, err := lookupEvent(p, evGuid)
	require.NoError(t, err)
	require.NoError(t, ev.Satisfy(0, Guid(123)))

	task, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)
	task.Execute(NewSimpleAllocator(1 << 20))
	assert.Equal(t, Guid(123), observed)
}

func TestCreateTask_OutputEventFiresOnCompletion(t *testing.T) {
	p := NewCountedMapProvider(0)
	sched := newTestScheduler(1)

	tmplGuid, err := CreateTaskTemplate(p, func([]uint64, []DependenceSlot) Guid {
		return Guid(77)
	}, 0, 0, "produces", nil)
	require.NoError(t, err)

	_, outEvent, err := CreateTask(p, sched, tmplGuid, nil, 0, nil, TaskCreateProps{WantOutputEvent: true}, Hint{}, NullGuid)
	require.NoError(t, err)
	require.NotEqual(t, NullGuid, outEvent)

	task, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)
	task.Execute(NewSimpleAllocator(1 << 20))

	ev, err := lookupEvent(p, outEvent)
	require.NoError(t, err)
	var got Guid
	require.NoError(t, ev.RegisterWaiter(waiterSlot{deliver: func(payload Guid) { got = payload }}))
	assert.Equal(t, Guid(77), got)
}

func TestCreateTask_FinishScopeLatchDecrementsOnChildCompletion(t *testing.T) {
	p := NewCountedMapProvider(0)
	sched := newTestScheduler(1)

	parentTmpl, err := CreateTaskTemplate(p, func([]uint64, []DependenceSlot) Guid { return NullGuid }, 0, 0, "parent", nil)
	require.NoError(t, err)
	_, _, err = CreateTask(p, sched, parentTmpl, nil, 0, nil, TaskCreateProps{Finish: true}, Hint{}, NullGuid)
	require.NoError(t, err)

	// The finish task itself is immediately ready; pull it to discover its latch.
	parentTask, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)
	latchGuid := parentTask.ownLatch
	require.NotEqual(t, NullGuid, latchGuid)

	fired := false
	latchEv, err := lookupEvent(p, latchGuid)
	require.NoError(t, err)
	require.NoError(t, latchEv.RegisterWaiter(waiterSlot{deliver: func(Guid) { fired = true }}))

	childTmpl, err := CreateTaskTemplate(p, func([]uint64, []DependenceSlot) Guid { return NullGuid }, 0, 0, "child", nil)
	require.NoError(t, err)
	_, _, err = CreateTask(p, sched, childTmpl, nil, 0, nil, TaskCreateProps{}, Hint{}, latchGuid)
	require.NoError(t, err)

	childTask, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)
	childTask.Execute(NewSimpleAllocator(1 << 20))
	assert.False(t, fired, "latch must not fire until the parent's own body has also returned")

	parentTask.Execute(NewSimpleAllocator(1 << 20))
	assert.True(t, fired, "latch fires once incr (self + child attach) == decr (self + child completion)")
}

func TestCreateTask_FinishOutputEventWaitsForChildren(t *testing.T) {
	p := NewCountedMapProvider(0)
	sched := newTestScheduler(1)

	parentTmpl, err := CreateTaskTemplate(p, func([]uint64, []DependenceSlot) Guid { return Guid(99) }, 0, 0, "parent", nil)
	require.NoError(t, err)
	_, outEvent, err := CreateTask(p, sched, parentTmpl, nil, 0, nil, TaskCreateProps{Finish: true, WantOutputEvent: true}, Hint{}, NullGuid)
	require.NoError(t, err)
	require.NotEqual(t, NullGuid, outEvent)

	parentTask, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)
	latchGuid := parentTask.ownLatch
	require.NotEqual(t, NullGuid, latchGuid)

	childTmpl, err := CreateTaskTemplate(p, func([]uint64, []DependenceSlot) Guid { return NullGuid }, 0, 0, "child", nil)
	require.NoError(t, err)
	_, _, err = CreateTask(p, sched, childTmpl, nil, 0, nil, TaskCreateProps{}, Hint{}, latchGuid)
	require.NoError(t, err)

	childTask, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)

	ev, err := lookupEvent(p, outEvent)
	require.NoError(t, err)
	var got Guid
	fired := false
	require.NoError(t, ev.RegisterWaiter(waiterSlot{deliver: func(payload Guid) { fired = true; got = payload }}))

	// Running the parent's own body must not fire the output event yet: the
	// finish scope isn't done until the child has also finished.
	parentTask.Execute(NewSimpleAllocator(1 << 20))
	assert.False(t, fired, "finish output event must not fire before children finish")

	childTask.Execute(NewSimpleAllocator(1 << 20))
	assert.True(t, fired, "finish output event must fire once every child has finished")
	assert.Equal(t, Guid(99), got)
}

func TestCreateTask_NestedFinishPropagatesToOuterLatchOnlyAfterInnerChildren(t *testing.T) {
	p := NewCountedMapProvider(0)
	sched := newTestScheduler(1)

	outerTmpl, err := CreateTaskTemplate(p, func([]uint64, []DependenceSlot) Guid { return NullGuid }, 0, 0, "outer", nil)
	require.NoError(t, err)
	_, _, err = CreateTask(p, sched, outerTmpl, nil, 0, nil, TaskCreateProps{Finish: true}, Hint{}, NullGuid)
	require.NoError(t, err)
	outerTask, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)
	outerLatch := outerTask.ownLatch

	outerFired := false
	outerEv, err := lookupEvent(p, outerLatch)
	require.NoError(t, err)
	require.NoError(t, outerEv.RegisterWaiter(waiterSlot{deliver: func(Guid) { outerFired = true }}))

	innerTmpl, err := CreateTaskTemplate(p, func([]uint64, []DependenceSlot) Guid { return NullGuid }, 0, 0, "inner", nil)
	require.NoError(t, err)
	_, _, err = CreateTask(p, sched, innerTmpl, nil, 0, nil, TaskCreateProps{Finish: true}, Hint{}, outerLatch)
	require.NoError(t, err)
	innerTask, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)
	innerLatch := innerTask.ownLatch

	grandchildTmpl, err := CreateTaskTemplate(p, func([]uint64, []DependenceSlot) Guid { return NullGuid }, 0, 0, "grandchild", nil)
	require.NoError(t, err)
	_, _, err = CreateTask(p, sched, grandchildTmpl, nil, 0, nil, TaskCreateProps{}, Hint{}, innerLatch)
	require.NoError(t, err)
	grandchildTask, ok := sched.GetWork(GetWorkCompute, 0)
	require.True(t, ok)

	// Running the nested finish-EDT's own body must not yet propagate to the
	// outer latch: its scope isn't done until its own child (grandchild)
	// finishes too.
	innerTask.Execute(NewSimpleAllocator(1 << 20))
	assert.False(t, outerFired, "outer scope must not complete before the inner scope's descendants finish")

	grandchildTask.Execute(NewSimpleAllocator(1 << 20))
	assert.False(t, outerFired, "outer scope must not complete before the outer finish-EDT's own body has also returned")

	outerTask.Execute(NewSimpleAllocator(1 << 20))
	assert.True(t, outerFired, "outer scope completes once the nested finish-EDT's scope and the outer's own body are both done")
}
