package ocr

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PolicyDomain owns the GUID provider, allocator(s), scheduler, and workers
// for the lifetime between bring-up and tear-down (spec §3's "Ownership").
// ProcessMessage is its single dispatch point (spec §4.9).
type PolicyDomain struct {
	Location  uint8
	Provider  GuidProvider
	Allocator Allocator
	Scheduler *Scheduler
	Metrics   *Metrics
	Tasks     *TaskRegistry
	Workers   []*Worker

	runlevel      atomic.Uint32
	driver        *RunlevelDriver
	cancel        context.CancelFunc
	workersWg     sync.WaitGroup
	allocatorGuid Guid // bound/released alongside Scheduler.guid at COMPUTE_OK

	shutdownOnce sync.Once
	exitCode     atomic.Int32
	shutdownCh   chan struct{}

	pause   *pauseSignal
	inbound *InboundMessageRing
}

// PolicyDomainConfig bundles the construction-time choices that would, in
// the source, come from parsing the INI topology file (spec §6).
type PolicyDomainConfig struct {
	Location     uint8
	GuidStrategy string // "counted", "labeled", or "pointer-embed"
	NumWorkers   int
	DequeCap     int
	PoolSize     uint64
}

// NewPolicyDomain constructs a policy domain from cfg, selecting the GUID
// strategy and wiring a work-stealing compute heuristic over NumWorkers
// deques.
func NewPolicyDomain(cfg PolicyDomainConfig) (*PolicyDomain, error) {
	var provider GuidProvider
	switch cfg.GuidStrategy {
	case "labeled":
		provider = NewLabeledProvider(cfg.Location)
	case "pointer-embed":
		provider = NewPointerEmbedProvider(cfg.Location)
	default:
		provider = NewCountedMapProvider(cfg.Location)
	}

	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 64 << 20
	}
	alloc := NewSimpleAllocator(poolSize)

	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	dequeCap := cfg.DequeCap
	if dequeCap <= 0 {
		dequeCap = DefaultDequeCapacity
	}
	compute := NewWorkStealingHeuristic(numWorkers, dequeCap, numWorkers)
	placement := &AffinityPlacementHeuristic{DefaultLocation: cfg.Location}
	comm := NewCommunicationHeuristic(defaultCommWindow, defaultCommBurst)
	sched := NewScheduler(compute, placement, comm)

	metrics := NewMetrics()
	compute.SetMetrics(metrics)

	pd := &PolicyDomain{
		Location:   cfg.Location,
		Provider:   provider,
		Allocator:  alloc,
		Scheduler:  sched,
		Metrics:    metrics,
		Tasks:      NewTaskRegistry(),
		shutdownCh: make(chan struct{}),
		pause:      newPauseSignal(),
		inbound:    NewInboundMessageRing(),
	}
	pd.runlevel.Store(uint32(RunlevelConfigParse))
	pd.driver = NewRunlevelDriver(
		NewInertComponent("config"),
		NewInertComponent("network"),
		NewInertComponent("policy-domain"),
		NewInertComponent("memory"),
		NewInertComponent("guid"),
		&computeGuidifyComponent{pd: pd},
		NewInertComponent("user"),
	)
	return pd, nil
}

const (
	defaultCommWindow = 100 * time.Millisecond
	defaultCommBurst  = 1 << 20
)

// NewPolicyDomainFromOptions is the functional-option constructor
// alternative to NewPolicyDomain, for callers building a domain
// programmatically rather than from a parsed topology file.
func NewPolicyDomainFromOptions(opts ...PolicyDomainOption) (*PolicyDomain, error) {
	cfg, err := resolvePolicyDomainOptions(opts)
	if err != nil {
		return nil, err
	}
	return NewPolicyDomain(*cfg)
}

// Runlevel reports the last runlevel fully reached.
func (pd *PolicyDomain) Runlevel() Runlevel { return Runlevel(pd.runlevel.Load()) }

// BringUp drives the runlevel driver up to USER_OK and starts the worker
// pool (spec §4.1, §5).
func (pd *PolicyDomain) BringUp(ctx context.Context, numWorkers int) error {
	// Workers must exist before the driver reaches COMPUTE_OK so that
	// compute's first up-phase can guidify them (spec §4.1); their
	// goroutines aren't started until bring-up as a whole has completed.
	pd.Workers = make([]*Worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		w := NewWorker(i, pd.Scheduler, pd.Allocator, pd, pd.Metrics)
		w.registry = pd.Tasks
		pd.Workers[i] = w
	}

	if err := pd.driver.BringUp(RolePDMaster); err != nil {
		return err
	}
	pd.runlevel.Store(uint32(RunlevelUserOK))

	workerCtx, cancel := context.WithCancel(ctx)
	pd.cancel = cancel

	pd.workersWg.Add(1)
	go func() {
		defer pd.workersWg.Done()
		pd.dispatchLoop(workerCtx)
	}()

	for _, w := range pd.Workers {
		w := w
		pd.workersWg.Add(1)
		go func() {
			defer pd.workersWg.Done()
			w.Run(workerCtx)
		}()
	}
	return nil
}

// Deliver enqueues an inbound message for asynchronous dispatch via
// ProcessMessage. Safe to call from any goroutine, including a transport
// handling a remote policy domain's request (spec §4.9's "single dispatch
// point" fed by a network-facing ingress queue).
func (pd *PolicyDomain) Deliver(msg *PolicyMessage) {
	pd.inbound.Push(msg)
}

// dispatchLoop is the single consumer of pd.inbound, calling ProcessMessage
// for every delivered message until ctx is cancelled.
func (pd *PolicyDomain) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, ok := pd.inbound.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
			continue
		}
		pd.ProcessMessage(msg)
	}
}

// ProcessMessage is the single dispatch point for policy messages (spec
// §4.9). It resolves the message kind to the relevant subsystem and
// returns a response message with ReturnDetail set.
func (pd *PolicyDomain) ProcessMessage(msg *PolicyMessage) *PolicyMessage {
	resp := &PolicyMessage{Kind: msg.Kind, Direction: DirResponse, Source: pd.Location, Destination: msg.Source}

	switch msg.Kind {
	case MsgGuidReserve:
		g, err := pd.Provider.Reserve(msg.Size, KindNone)
		resp.ResultGuid = g
		resp.ReturnDetail = StatusOf(err)

	case MsgGuidInfo:
		_, _, err := pd.Provider.GetVal(msg.TargetGuid)
		resp.ReturnDetail = StatusOf(err)

	case MsgGuidDestroy:
		err := pd.Provider.ReleaseGuid(msg.TargetGuid, false, nil)
		resp.ReturnDetail = StatusOf(err)

	case MsgMemAlloc:
		ptr, err := pd.Allocator.Allocate(msg.Size, KindDataBlock)
		resp.ReturnDetail = StatusOf(err)
		if err == nil {
			resp.ResultData = ptr
		}

	case MsgMemFree:
		err := pd.Allocator.Free(msg.ResultData)
		resp.ReturnDetail = StatusOf(err)

	case MsgEvtSatisfy:
		ev, err := lookupEvent(pd.Provider, msg.TargetGuid)
		if err == nil {
			err = ev.Satisfy(0, msg.ResultGuid)
		}
		resp.ReturnDetail = StatusOf(err)

	case MsgDbAcquire:
		ptr, err := AcquireDataBlock(pd.Provider, msg.TargetGuid, msg.ResultGuid, msg.Mode)
		resp.ReturnDetail = StatusOf(err)
		resp.ResultData = ptr

	case MsgDbRelease:
		err := ReleaseDataBlock(pd.Provider, msg.TargetGuid, msg.ResultGuid, msg.Mode != ModeRO)
		resp.ReturnDetail = StatusOf(err)

	case MsgSchedNotify:
		if pd.Scheduler != nil {
			pd.Scheduler.NotifyPreProcessMsgFn(msg)
		}
		resp.ReturnDetail = StatusOK

	case MsgMgtRlNotify:
		resp.ReturnDetail = StatusOK

	default:
		resp.ReturnDetail = StatusNotSupported
	}
	return resp
}

// Shutdown implements ocrShutdown: it records code and posts the
// COMPUTE_OK|TEAR_DOWN|BARRIER transition that propagates through every
// worker (spec §4.1). Only the first call has effect, matching "shutdown
// begins when any worker posts MGT_RL_NOTIFY".
func (pd *PolicyDomain) Shutdown(code int) {
	pd.shutdownOnce.Do(func() {
		pd.exitCode.Store(int32(code))
		pd.runlevel.Store(uint32(RunlevelComputeOK))
		if pd.cancel != nil {
			pd.cancel()
		}
		close(pd.shutdownCh)
	})
}

// Abort implements ocrAbort: identical propagation to Shutdown but
// conventionally called with a non-zero code from an error path (spec §5's
// "Cancellation").
func (pd *PolicyDomain) Abort(code int) {
	pd.Shutdown(code)
}

// Wait blocks until Shutdown/Abort has been called and every worker has
// unwound, then tears the runlevel driver down and returns the exit code
// that should be propagated by the driver process (spec §6 "Exit code").
func (pd *PolicyDomain) Wait() int {
	<-pd.shutdownCh
	pd.workersWg.Wait()
	_ = pd.driver.TearDown(RolePDMaster, int(pd.exitCode.Load()))
	return int(pd.exitCode.Load())
}
