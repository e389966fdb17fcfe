package ocr

import (
	"sync/atomic"
)

// Runlevel is one of the ordered bring-up/tear-down stages of spec §4.1.
// Values are ordered so bring-up is ascending and tear-down descending. The
// original C runtime counts an eighth, terminal level folded here into
// USER_OK's tear-down path rather than modeled as a distinct state.
type Runlevel uint32

const (
	RunlevelConfigParse Runlevel = iota
	RunlevelNetworkOK
	RunlevelPDOK
	RunlevelMemoryOK
	RunlevelGUIDOK
	RunlevelComputeOK
	RunlevelUserOK
)

func (r Runlevel) String() string {
	switch r {
	case RunlevelConfigParse:
		return "CONFIG_PARSE"
	case RunlevelNetworkOK:
		return "NETWORK_OK"
	case RunlevelPDOK:
		return "PD_OK"
	case RunlevelMemoryOK:
		return "MEMORY_OK"
	case RunlevelGUIDOK:
		return "GUID_OK"
	case RunlevelComputeOK:
		return "COMPUTE_OK"
	case RunlevelUserOK:
		return "USER_OK"
	default:
		return "UNKNOWN_RUNLEVEL"
	}
}

// RunlevelDirection distinguishes ascending bring-up from descending
// tear-down.
type RunlevelDirection uint8

const (
	DirectionBringUp RunlevelDirection = iota
	DirectionTearDown
)

// RunlevelPhaseKind distinguishes a barrier phase (driver blocks until
// every target acknowledges) from an async phase (returns immediately).
type RunlevelPhaseKind uint8

const (
	PhaseBarrier RunlevelPhaseKind = iota
	PhaseAsync
)

// RunlevelRole is the caller's role in a switchRunlevel call, carried in
// RunlevelProperties.
type RunlevelRole uint8

const (
	RoleNodeMaster RunlevelRole = iota
	RolePDMaster
	RoleAsyncWorker
)

// RunlevelProperties bundles the flags passed to every switchRunlevel call
// (spec §4.1).
type RunlevelProperties struct {
	Direction RunlevelDirection
	Phase     RunlevelPhaseKind
	Role      RunlevelRole
	// ErrorCode carries the ocrAbort/ocrShutdown exit code on every
	// tear-down transition; it is zero during bring-up.
	ErrorCode int
}

// RunlevelComponent is a policy-domain-owned subsystem that participates in
// bring-up/tear-down. A component with zero phases at every level is
// "inert" and is never called (spec §4.1: "its callback pointer must be the
// null sentinel").
type RunlevelComponent interface {
	// Name identifies the component for logging/diagnostics.
	Name() string
	// PhasesAt declares how many phases this component needs at level
	// during CONFIG_PARSE; the driver takes the max across all components
	// per level.
	PhasesAt(level Runlevel) int
	// SwitchRunlevel performs this component's work for one phase. A
	// non-nil error on a mandatory transition aborts the whole policy
	// domain (spec §4.1 "Fatal").
	SwitchRunlevel(level Runlevel, phase int, props RunlevelProperties) error
}

// RunlevelDriver brings a fixed set of components up through the seven
// runlevels and tears them down symmetrically, grounded on the teacher's
// FastState cache-padded atomic (state.go) generalized from a 5-state loop
// lifecycle to the 7-level runlevel lattice.
type RunlevelDriver struct {
	components []RunlevelComponent
	current    atomic.Uint32 // Runlevel, padded implicitly by struct layout
}

// NewRunlevelDriver constructs a driver starting at RunlevelConfigParse.
func NewRunlevelDriver(components ...RunlevelComponent) *RunlevelDriver {
	d := &RunlevelDriver{components: components}
	d.current.Store(uint32(RunlevelConfigParse))
	return d
}

// Current returns the runlevel last fully reached.
func (d *RunlevelDriver) Current() Runlevel {
	return Runlevel(d.current.Load())
}

func (d *RunlevelDriver) maxPhases(level Runlevel) int {
	max := 0
	for _, c := range d.components {
		if n := c.PhasesAt(level); n > max {
			max = n
		}
	}
	return max
}

// BringUp drives every level from CONFIG_PARSE through to RunlevelUserOK,
// ascending levels and phases, calling every component's SwitchRunlevel at
// each phase. A component error on any phase is fatal and aborts the
// policy domain (spec §4.1).
func (d *RunlevelDriver) BringUp(role RunlevelRole) error {
	for level := RunlevelConfigParse; level <= RunlevelUserOK; level++ {
		phases := d.maxPhases(level)
		for phase := 0; phase < phases; phase++ {
			props := RunlevelProperties{Direction: DirectionBringUp, Phase: PhaseBarrier, Role: role}
			for _, c := range d.components {
				if phase >= c.PhasesAt(level) {
					continue
				}
				if err := c.SwitchRunlevel(level, phase, props); err != nil {
					return NewStatusError(StatusFatal, "runlevel bring-up failed at "+level.String(), err)
				}
			}
		}
		d.current.Store(uint32(level))
	}
	return nil
}

// TearDown drives every level from the current level back down to
// RunlevelConfigParse, descending levels and phases. errorCode is the
// ocrShutdown/ocrAbort exit code, propagated to every component's
// RunlevelProperties.ErrorCode on every tear-down transition (spec §4.1:
// "The shutdown code ... is returned as the process exit code").
func (d *RunlevelDriver) TearDown(role RunlevelRole, errorCode int) error {
	start := Runlevel(d.current.Load())
	for level := start; ; level-- {
		phases := d.maxPhases(level)
		for phase := phases - 1; phase >= 0; phase-- {
			props := RunlevelProperties{Direction: DirectionTearDown, Phase: PhaseBarrier, Role: role, ErrorCode: errorCode}
			for i := len(d.components) - 1; i >= 0; i-- {
				c := d.components[i]
				if phase >= c.PhasesAt(level) {
					continue
				}
				if err := c.SwitchRunlevel(level, phase, props); err != nil {
					return NewStatusError(StatusFatal, "runlevel tear-down failed at "+level.String(), err)
				}
			}
		}
		if level == RunlevelConfigParse {
			break
		}
	}
	d.current.Store(uint32(RunlevelConfigParse))
	return nil
}

// inertComponent is a RunlevelComponent with zero phases everywhere; it
// documents the "null sentinel" case rather than requiring every caller to
// special-case components that take no independent bring-up action.
type inertComponent struct{ name string }

func NewInertComponent(name string) RunlevelComponent { return inertComponent{name: name} }

func (c inertComponent) Name() string                                           { return c.name }
func (c inertComponent) PhasesAt(Runlevel) int                                  { return 0 }
func (c inertComponent) SwitchRunlevel(Runlevel, int, RunlevelProperties) error { return nil }

// computeGuidifyComponent binds a Guid to every entity that spec §4.1 names
// as requiring one at COMPUTE_OK (the scheduler, the allocator, and each
// worker) in the level's single up-phase, and releases them in the same
// (its only, hence last) down-phase.
type computeGuidifyComponent struct {
	pd *PolicyDomain
}

func (c *computeGuidifyComponent) Name() string { return "compute" }

func (c *computeGuidifyComponent) PhasesAt(level Runlevel) int {
	if level == RunlevelComputeOK {
		return 1
	}
	return 0
}

func (c *computeGuidifyComponent) SwitchRunlevel(level Runlevel, phase int, props RunlevelProperties) error {
	if level != RunlevelComputeOK || phase != 0 {
		return nil
	}
	pd := c.pd
	if props.Direction == DirectionBringUp {
		if pd.Scheduler != nil && pd.Scheduler.guid == NullGuid {
			g, err := pd.Provider.GetGuid(pd.Scheduler, KindScheduler)
			if err != nil {
				return err
			}
			pd.Scheduler.guid = g
		}
		if pd.Allocator != nil && pd.allocatorGuid == NullGuid {
			g, err := pd.Provider.GetGuid(pd.Allocator, KindAllocator)
			if err != nil {
				return err
			}
			pd.allocatorGuid = g
		}
		for _, w := range pd.Workers {
			if w.guid != NullGuid {
				continue
			}
			g, err := pd.Provider.GetGuid(w, KindWorker)
			if err != nil {
				return err
			}
			w.guid = g
		}
		return nil
	}
	for _, w := range pd.Workers {
		if w.guid == NullGuid {
			continue
		}
		_ = pd.Provider.ReleaseGuid(w.guid, false, nil)
		w.guid = NullGuid
	}
	if pd.allocatorGuid != NullGuid {
		_ = pd.Provider.ReleaseGuid(pd.allocatorGuid, false, nil)
		pd.allocatorGuid = NullGuid
	}
	if pd.Scheduler != nil && pd.Scheduler.guid != NullGuid {
		_ = pd.Provider.ReleaseGuid(pd.Scheduler.guid, false, nil)
		pd.Scheduler.guid = NullGuid
	}
	return nil
}
