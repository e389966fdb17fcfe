package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkStealingHeuristic_GetWorkLocalBeforeSteal(t *testing.T) {
	h := NewWorkStealingHeuristic(2, 16, 2)
	task := &Task{}
	h.Notify(NotifyTaskReady, task) // lands on the least-loaded (worker 0) deque

	v, ok := h.GetWork(0)
	require.True(t, ok)
	assert.Same(t, task, v)
}

func TestWorkStealingHeuristic_StealsFromPeerWhenLocalEmpty(t *testing.T) {
	h := NewWorkStealingHeuristic(2, 16, 2)
	task := &Task{}
	h.Notify(NotifyTaskReady, task)

	v, ok := h.GetWork(1)
	require.True(t, ok, "worker 1 should steal the task pushed to worker 0's deque")
	assert.Same(t, task, v)
}

func TestWorkStealingHeuristic_NotifyBalancesAcrossLeastLoadedDeque(t *testing.T) {
	h := NewWorkStealingHeuristic(2, 16, 2)
	for i := 0; i < 3; i++ {
		h.Notify(NotifyTaskReady, &Task{})
	}
	sizes := h.Analyze()["dequeSizes"].([]int)
	assert.InDelta(t, sizes[0], sizes[1], 1)
}

func TestWorkStealingHeuristic_MetricsRecordDepth(t *testing.T) {
	h := NewWorkStealingHeuristic(1, 16, 1)
	m := NewMetrics()
	h.SetMetrics(m)
	h.Notify(NotifyTaskReady, &Task{})

	current, _, _ := m.Deque.Snapshot(0)
	assert.Equal(t, 1, current)
}

func TestScheduler_GetWorkRoutesToCompute(t *testing.T) {
	compute := NewWorkStealingHeuristic(1, 16, 1)
	sched := NewScheduler(compute, nil, nil)
	compute.Notify(NotifyTaskReady, &Task{})

	_, ok := sched.GetWork(GetWorkCompute, 0)
	assert.True(t, ok)

	_, ok = sched.GetWork(GetWorkComm, 0)
	assert.False(t, ok, "GetWork(COMM) must never touch the compute heuristic")
}

func TestAffinityPlacementHeuristic_RewritesDestinationFromHint(t *testing.T) {
	h := &AffinityPlacementHeuristic{DefaultLocation: 9}
	msg := &PolicyMessage{}
	msg.Hint.Set(HintAffinity, 4)
	h.Notify(NotifyPreProcessMsg, msg)
	assert.Equal(t, uint8(4), msg.Destination)
}

func TestAffinityPlacementHeuristic_FallsBackToDefaultLocation(t *testing.T) {
	h := &AffinityPlacementHeuristic{DefaultLocation: 9}
	msg := &PolicyMessage{}
	h.Notify(NotifyPreProcessMsg, msg)
	assert.Equal(t, uint8(9), msg.Destination)
}
