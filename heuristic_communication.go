package ocr

import (
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
)

// CommunicationHeuristic queues outbound policy messages for a comm worker
// (spec §4.8's "notify(COMM_READY) → communication heuristic, which
// enqueues outbound messages for a comm worker"). It additionally throttles
// sends per destination location using a sliding-window rate limiter, so a
// hot destination cannot starve the comm platform — a policy the source
// leaves to the platform layer but which composes naturally with a
// catrate.Limiter here.
type CommunicationHeuristic struct {
	mu      sync.Mutex
	queue   *MessageChunkQueue
	limiter *catrate.Limiter
}

// NewCommunicationHeuristic builds a heuristic that allows at most maxPerWindow
// outbound messages per destination within window.
func NewCommunicationHeuristic(window time.Duration, maxPerWindow int) *CommunicationHeuristic {
	return &CommunicationHeuristic{
		queue:   NewMessageChunkQueue(),
		limiter: catrate.NewLimiter(map[time.Duration]int{window: maxPerWindow}),
	}
}

var _ Heuristic = (*CommunicationHeuristic)(nil)

func (h *CommunicationHeuristic) GetWork(int) (*Task, bool) { return nil, false }

func (h *CommunicationHeuristic) Notify(kind NotifyKind, payload any) {
	if kind != NotifyCommReady {
		return
	}
	msg, ok := payload.(*PolicyMessage)
	if !ok {
		return
	}
	if _, allowed := h.limiter.Allow(msg.Destination); !allowed {
		// Over the limit: the message is dropped and not requeued, and the
		// caller is not told; the heuristic never blocks the notifying worker.
		return
	}
	h.mu.Lock()
	h.queue.Push(msg)
	h.mu.Unlock()
}

// TakeOutbound pops the next queued message for a comm worker (MGT_RL's
// analogue of getWork(COMM), routed here by Scheduler.GetOutboundMessage).
func (h *CommunicationHeuristic) TakeOutbound() (*PolicyMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queue.Pop()
}

func (h *CommunicationHeuristic) Transact(any) any { return nil }

func (h *CommunicationHeuristic) Analyze() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return map[string]any{"queued": h.queue.Length()}
}
