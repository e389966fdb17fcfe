package ocr

import (
	"math/rand"
)

// NotifyKind discriminates the notify events routed to scheduler heuristics
// (spec §4.8's routing table).
type NotifyKind uint8

const (
	NotifyTaskReady NotifyKind = iota
	NotifyDbCreate
	NotifyEvtCreate
	NotifyPreProcessMsg
	NotifyCommReady
)

// GetWorkKind selects which heuristic services a getWork call.
type GetWorkKind uint8

const (
	GetWorkCompute GetWorkKind = iota
	GetWorkComm
)

// Heuristic is the four-operation surface every scheduler heuristic slot
// implements (spec §4.8).
type Heuristic interface {
	GetWork(workerID int) (*Task, bool)
	Notify(kind NotifyKind, payload any)
	Transact(req any) any
	Analyze() map[string]any
}

// Scheduler is the common scheduler of spec §4.8: three pluggable
// heuristic slots (compute, placement, communication), routed by notify
// kind and getWork kind. There is no global scheduler lock; each heuristic
// owns its own concurrency story (typically per-worker deques for compute).
type Scheduler struct {
	guid Guid

	Compute       Heuristic
	Placement     Heuristic
	Communication Heuristic
}

// NewScheduler wires the three heuristic slots. Any slot may be nil if the
// topology does not configure one, matching the source's optional
// scheduler-heuristic modules.
func NewScheduler(compute, placement, communication Heuristic) *Scheduler {
	return &Scheduler{Compute: compute, Placement: placement, Communication: communication}
}

// NotifyTaskReady routes a freshly-ready task to the compute heuristic,
// called by Task.checkReady once its dependence vector is fully satisfied.
func (s *Scheduler) NotifyTaskReady(t *Task) {
	if s.Compute != nil {
		s.Compute.Notify(NotifyTaskReady, t)
	}
}

// NotifyDbCreateFn routes a freshly-created data block to the compute
// heuristic, matching the routing table's notify(DB_CREATE) entry.
func (s *Scheduler) NotifyDbCreateFn(guid Guid) {
	if s.Compute != nil {
		s.Compute.Notify(NotifyDbCreate, guid)
	}
}

// NotifyPreProcessMsgFn lets the placement heuristic rewrite an outgoing
// policy message's destination before it is sent.
func (s *Scheduler) NotifyPreProcessMsgFn(msg *PolicyMessage) {
	if s.Placement != nil {
		s.Placement.Notify(NotifyPreProcessMsg, msg)
	}
}

// NotifyCommReadyFn hands an outbound message to the communication
// heuristic's queue.
func (s *Scheduler) NotifyCommReadyFn(msg *PolicyMessage) {
	if s.Communication != nil {
		s.Communication.Notify(NotifyCommReady, msg)
	}
}

// GetWork dispatches to the compute heuristic for GetWorkCompute. A comm
// worker asking for outbound work should instead call GetOutboundMessage,
// since the communication heuristic's unit of work is a PolicyMessage, not
// a Task (spec §4.8's "getWork(COMM) → communication heuristic").
func (s *Scheduler) GetWork(kind GetWorkKind, workerID int) (*Task, bool) {
	if kind == GetWorkComm || s.Compute == nil {
		return nil, false
	}
	return s.Compute.GetWork(workerID)
}

// GetOutboundMessage services a comm worker's getWork(COMM) request.
func (s *Scheduler) GetOutboundMessage() (*PolicyMessage, bool) {
	if ch, ok := s.Communication.(*CommunicationHeuristic); ok {
		return ch.TakeOutbound()
	}
	return nil, false
}

// ---- compute heuristic: work-stealing over per-worker deques ----

// WorkStealingHeuristic is the default compute heuristic: each worker owns
// a WorkStealingDeque; getWork pops locally first, then steals from a
// bounded number of randomly-chosen peers (spec §4.8).
type WorkStealingHeuristic struct {
	deques      []*WorkStealingDeque
	stealProbes int
	metrics     *Metrics
}

// SetMetrics attaches a Metrics sink that records each deque's depth on
// every push/steal, so ocrQuery-style introspection can see worker load.
func (h *WorkStealingHeuristic) SetMetrics(m *Metrics) { h.metrics = m }

func (h *WorkStealingHeuristic) recordDepth(workerID int) {
	if h.metrics == nil || workerID < 0 || workerID >= len(h.deques) {
		return
	}
	h.metrics.Deque.UpdateDepth(workerID, h.deques[workerID].Size())
}

// NewWorkStealingHeuristic constructs one deque per worker.
func NewWorkStealingHeuristic(numWorkers, dequeCapacity, stealProbes int) *WorkStealingHeuristic {
	deques := make([]*WorkStealingDeque, numWorkers)
	for i := range deques {
		deques[i] = NewWorkStealingDeque(dequeCapacity)
	}
	if stealProbes <= 0 {
		stealProbes = numWorkers
	}
	return &WorkStealingHeuristic{deques: deques, stealProbes: stealProbes}
}

var _ Heuristic = (*WorkStealingHeuristic)(nil)

func (h *WorkStealingHeuristic) GetWork(workerID int) (*Task, bool) {
	if workerID < 0 || workerID >= len(h.deques) {
		return nil, false
	}
	if v, ok := h.deques[workerID].PopTail(); ok {
		h.recordDepth(workerID)
		return v.(*Task), true
	}
	n := len(h.deques)
	if n <= 1 {
		return nil, false
	}
	start := rand.Intn(n)
	for i := 0; i < h.stealProbes && i < n; i++ {
		peer := (start + i) % n
		if peer == workerID {
			continue
		}
		if v, ok := h.deques[peer].PopHead(); ok {
			h.recordDepth(peer)
			return v.(*Task), true
		}
	}
	return nil, false
}

func (h *WorkStealingHeuristic) Notify(kind NotifyKind, payload any) {
	if kind != NotifyTaskReady {
		return
	}
	t, ok := payload.(*Task)
	if !ok {
		return
	}
	// Placement: push onto the least-loaded deque, approximating the
	// source's compute-heuristic-default of enqueueing onto the creating
	// worker's own deque; here we pick the shallowest deque as a simple
	// load-balancing policy.
	best := 0
	bestSize := h.deques[0].Size()
	for i := 1; i < len(h.deques); i++ {
		if s := h.deques[i].Size(); s < bestSize {
			best, bestSize = i, s
		}
	}
	_ = h.deques[best].PushTail(t)
	h.recordDepth(best)
}

func (h *WorkStealingHeuristic) Transact(req any) any { return nil }

func (h *WorkStealingHeuristic) Analyze() map[string]any {
	sizes := make([]int, len(h.deques))
	for i, d := range h.deques {
		sizes[i] = d.Size()
	}
	return map[string]any{"dequeSizes": sizes}
}

// ---- placement heuristic ----

// AffinityPlacementHeuristic rewrites an outbound message's destination
// location based on the hint carried on its payload, falling back to the
// default location when no affinity hint is set (spec §4.8's
// "notify(PRE_PROCESS_MSG) ... may rewrite the destination field").
type AffinityPlacementHeuristic struct {
	DefaultLocation uint8
}

var _ Heuristic = (*AffinityPlacementHeuristic)(nil)

func (h *AffinityPlacementHeuristic) GetWork(int) (*Task, bool) { return nil, false }

func (h *AffinityPlacementHeuristic) Notify(kind NotifyKind, payload any) {
	if kind != NotifyPreProcessMsg {
		return
	}
	msg, ok := payload.(*PolicyMessage)
	if !ok {
		return
	}
	if aff, set := msg.Hint.Get(HintAffinity); set {
		msg.Destination = uint8(aff)
	} else {
		msg.Destination = h.DefaultLocation
	}
}

func (h *AffinityPlacementHeuristic) Transact(any) any { return nil }

func (h *AffinityPlacementHeuristic) Analyze() map[string]any { return nil }
