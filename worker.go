package ocr

import (
	"context"
	"time"
)

// Worker runs the getWork→execute→release loop of spec §5 on one OS
// thread-equivalent (a goroutine here, matching Go's scheduling model
// standing in for "one worker per compute target").
type Worker struct {
	ID        int
	scheduler *Scheduler
	allocator Allocator
	domain    *PolicyDomain
	metrics   *Metrics
	registry  *TaskRegistry

	// guid is bound in COMPUTE_OK's first up-phase and released in its last
	// down-phase (spec §4.1); NullGuid before bring-up and after tear-down.
	guid Guid

	// ProgressBackoff bounds how long a worker sleeps between failed steal
	// attempts before retrying (spec §5's monitorProgress "releases the
	// worker cooperatively" on persistent miss).
	ProgressBackoff time.Duration
}

// NewWorker constructs a worker bound to scheduler/allocator/domain. metrics
// may be nil, in which case execution timing is not recorded.
func NewWorker(id int, scheduler *Scheduler, allocator Allocator, domain *PolicyDomain, metrics *Metrics) *Worker {
	return &Worker{ID: id, scheduler: scheduler, allocator: allocator, domain: domain, metrics: metrics, ProgressBackoff: time.Millisecond}
}

// Run drives the worker loop until ctx is cancelled or the policy domain's
// runlevel drops below COMPUTE_OK (spec §4.1: "workers observe the runlevel
// change at their next scheduler interaction and unwind").
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if w.domain != nil && w.domain.Runlevel() < RunlevelComputeOK {
			return
		}
		if w.domain != nil {
			w.domain.pause.Wait()
		}
		t, ok := w.scheduler.GetWork(GetWorkCompute, w.ID)
		if !ok {
			if w.registry != nil {
				w.registry.Scavenge(32)
			}
			w.monitorProgress(ctx)
			continue
		}
		if w.registry != nil {
			w.registry.Register(t)
		}
		if w.metrics != nil {
			start := time.Now()
			t.Execute(w.allocator)
			w.metrics.RecordExecution(time.Since(start))
		} else {
			t.Execute(w.allocator)
		}
	}
}

// monitorProgress is the advisory cooperative-yield hook of spec §5: a
// worker that finds nothing to steal backs off briefly rather than
// spinning, and returns early if ctx is cancelled meanwhile.
func (w *Worker) monitorProgress(ctx context.Context) {
	backoff := w.ProgressBackoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-time.After(backoff):
	}
}

// CommWorker drains the communication heuristic's outbound queue, handing
// each message to send. This is the comm-platform analogue of Worker.Run,
// separated because its unit of work is a PolicyMessage rather than a Task
// (spec §4.8's getWork(COMM)).
type CommWorker struct {
	scheduler *Scheduler
	send      func(*PolicyMessage) error

	ProgressBackoff time.Duration
}

// NewCommWorker constructs a comm worker that calls send for each outbound
// message taken from the scheduler's communication heuristic.
func NewCommWorker(scheduler *Scheduler, send func(*PolicyMessage) error) *CommWorker {
	return &CommWorker{scheduler: scheduler, send: send, ProgressBackoff: time.Millisecond}
}

// Run drains and sends until ctx is cancelled.
func (w *CommWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, ok := w.scheduler.GetOutboundMessage()
		if !ok {
			backoff := w.ProgressBackoff
			if backoff <= 0 {
				backoff = time.Millisecond
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		if w.send != nil {
			_ = w.send(msg)
		}
	}
}
