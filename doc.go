// Package ocr implements the Open Community Runtime event-driven task (EDT)
// programming model: GUID-addressed tasks, events, and data blocks scheduled
// by a work-stealing runtime within a policy domain.
//
// # Architecture
//
// A [PolicyDomain] owns a [GuidProvider], an [Allocator], and a [Scheduler],
// and brings them up through the seven-level runlevel lattice described by
// [RunlevelDriver] before starting its worker pool. Every task, event, and
// data block is addressed by a [Guid] minted from the domain's provider;
// never by a Go pointer, since GUIDs must remain meaningful across policy
// domains and, conceptually, across nodes.
//
// [CreateTask] instantiates a [Task] from a [TaskTemplate] with a dependence
// vector of paramv/depv slots; the task becomes Ready once every slot is
// satisfied ([AddDependence], a data block's immediate availability, or an
// event of some [EventKind] firing to a waiter registered on it), at which point the [Scheduler]'s
// compute [Heuristic] is notified and a [Worker] eventually calls
// [Task.Execute].
//
// Six event kinds ([EventKind]) cover the model's synchronization
// primitives — Once, Idempotent, Sticky, Latch, Counted, and Channel — each
// with its own satisfy/registerWaiter semantics implemented in event.go.
//
// Data blocks are GUID-addressed byte slices allocated from a policy
// domain's [Allocator] (one of [SimpleAllocator], [QuickAllocator],
// [MallocProxyAllocator], [NullAllocator], or a [MmapPool]-backed pool) and
// acquired under an [AccessMode] that determines whether concurrent
// acquisitions are compatible.
//
// # Scheduling
//
// The [Scheduler] dispatches to a pluggable [Heuristic] per slot
// (Compute/Placement/Communication). [WorkStealingHeuristic] gives every
// worker a [WorkStealingDeque] (the Chase-Lev lock-free deque: owner-only
// push/pop at the tail, CAS-arbitrated thief steals from the head) and
// probes other workers' deques when its own is empty.
// [AffinityPlacementHeuristic] rewrites message destinations from a
// [Hint]'s affinity key. [CommunicationHeuristic] throttles outbound
// [PolicyMessage] delivery through a sliding-window rate limiter.
//
// # Configuration
//
// A topology is described by an INI file parsed by [ParseTopologyConfig]
// into a [TopologyConfig] of [ComponentSpec] entries; the ocrrun command
// (cmd/ocrrun) reads this file via -ocr:cfg/OCR_CONFIG, brings up a
// [PolicyDomain], and propagates its [PolicyDomain.Wait] exit code as the
// process exit status.
//
// # Error Types
//
// Runtime errors are reported as [*StatusError], wrapping one of the
// [Status] taxonomy values (StatusOutOfMemory, StatusProtocolViolation,
// StatusNotSupported, and so on); see errors.go.
package ocr

// Version is the runtime's release version, reported by `ocrrun -ocr:version`.
const Version = "0.1.0"
