// Package patch runs the interaction graph: gestures and timers enter at
// trigger patches and signals propagate synchronously along connections.
//
// An Engine is not safe for concurrent use. All calls, including scheduler
// callbacks, are expected to run on the scheduler's goroutine.
package patch

import (
	"sort"
	"time"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/graph"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/scheduler"
)

// Signal is what travels along a connection. Value is nil for a bare pulse.
type Signal struct {
	Value interface{}
}

// Pulse is a signal that carries no value.
var Pulse = Signal{}

// Emission records a signal leaving an output port.
type Emission struct {
	PatchID string
	PortID  string
	Signal  Signal
}

// Host applies action patches to the rest of the runtime.
type Host interface {
	// Project returns the current project snapshot. It must not be mutated.
	Project() *model.Project
	ActiveDisplayState() string
	// SwitchDisplayState activates the display state with the given id.
	// An empty id returns to the base elements.
	SwitchDisplayState(id string) error
	SetVariable(id string, v interface{}) error
	AnimateProperty(patchID string, cfg model.AnimatePropertyConfig, to interface{}) error
}

// Engine holds per-patch runtime state and drives propagation passes.
type Engine struct {
	host      Host
	sched     scheduler.Scheduler
	highlight time.Duration

	states    map[string]*patchState
	lastFired map[string]time.Duration
	observers []func(Emission)
	cycles    int

	// current is the pass in progress. Re-entry through the host, such as a
	// setVariable write waking a variableChange patch, joins it.
	current *pass
}

// patchState is the mutable state of one patch across passes.
type patchState struct {
	toggle bool
	count  float64
	option int

	latched    interface{}
	hasLatched bool

	// pending is set while a delay, timer or display-state reversion is armed.
	timer    scheduler.TimerID
	pending  bool
	revertTo string
}

// pass is one synchronous propagation. Each (patch, input port) pair is
// visited at most once.
type pass struct {
	proj    *model.Project
	visited map[graph.Endpoint]bool
}

// NewEngine creates an engine bound to host and sched. Patches that emitted
// within highlight are reported by Active.
func NewEngine(host Host, sched scheduler.Scheduler, highlight time.Duration) *Engine {
	return &Engine{
		host:      host,
		sched:     sched,
		highlight: highlight,
		states:    make(map[string]*patchState),
		lastFired: make(map[string]time.Duration),
	}
}

// OnEmit registers fn to observe every output emission.
func (e *Engine) OnEmit(fn func(Emission)) {
	e.observers = append(e.observers, fn)
}

// Start arms every timer patch configured with autoStart.
func (e *Engine) Start() {
	proj := e.host.Project()
	for i := range proj.Patches {
		pt := &proj.Patches[i]
		if cfg, ok := pt.Config.(model.TimerConfig); ok && cfg.AutoStart {
			e.armTimer(pt, cfg)
		}
	}
}

// Reset cancels every pending timer and forgets all patch state.
func (e *Engine) Reset() {
	for id, st := range e.states {
		e.cancelPending(id, st)
	}
	e.states = make(map[string]*patchState)
	e.lastFired = make(map[string]time.Duration)
}

// Prune drops state for patches no longer present in the project and
// cancels their timers.
func (e *Engine) Prune() {
	proj := e.host.Project()
	for id, st := range e.states {
		if proj.FindPatch(id) == nil {
			e.cancelPending(id, st)
			delete(e.states, id)
			delete(e.lastFired, id)
		}
	}
}

// Fire emits sig on an output port of patchID and propagates it.
func (e *Engine) Fire(patchID, portID string, sig Signal) {
	e.within(func(ps *pass) { e.emit(ps, patchID, portID, sig) })
}

// Deliver delivers sig to an input port of patchID as if it arrived
// over a connection.
func (e *Engine) Deliver(patchID, portID string, sig Signal) {
	e.within(func(ps *pass) { e.deliver(ps, patchID, portID, sig) })
}

// VariableChanged fires the variableChange patches bound to id. Patches
// with no variable configured observe every variable.
func (e *Engine) VariableChanged(id string, v interface{}) {
	proj := e.host.Project()
	for i := range proj.Patches {
		pt := &proj.Patches[i]
		cfg, ok := pt.Config.(model.VariableChangeConfig)
		if !ok || (cfg.VariableID != "" && cfg.VariableID != id) {
			continue
		}
		patchID := pt.ID
		e.within(func(ps *pass) {
			e.emit(ps, patchID, "value", Signal{Value: model.CloneValue(v)})
			e.emit(ps, patchID, "onChange", Pulse)
		})
	}
}

// Active returns the ids of patches that emitted within the highlight
// window or hold a pending timer, sorted.
func (e *Engine) Active() []string {
	now := e.sched.Now()
	set := make(map[string]struct{})
	for id, at := range e.lastFired {
		if now-at <= e.highlight {
			set[id] = struct{}{}
		} else {
			delete(e.lastFired, id)
		}
	}
	for id, st := range e.states {
		if st.pending {
			set[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CycleCount returns how many revisits have been skipped since creation.
func (e *Engine) CycleCount() int {
	return e.cycles
}

// within runs fn in the pass in progress, or in a new one when the engine
// is idle.
func (e *Engine) within(fn func(ps *pass)) {
	if e.current != nil {
		fn(e.current)
		return
	}
	ps := &pass{
		proj:    e.host.Project(),
		visited: make(map[graph.Endpoint]bool),
	}
	e.current = ps
	defer func() { e.current = nil }()
	fn(ps)
}

func (e *Engine) emit(ps *pass, patchID, portID string, sig Signal) {
	e.lastFired[patchID] = e.sched.Now()
	em := Emission{PatchID: patchID, PortID: portID, Signal: sig}
	for _, fn := range e.observers {
		fn(em)
	}
	events.Emit("debug", "patch.fired", "", map[string]interface{}{
		"patch_id": patchID,
		"port_id":  portID,
	})

	for _, c := range graph.Outgoing(ps.proj, patchID, portID) {
		e.deliver(ps, c.ToPatchID, c.ToPortID, sig)
	}
}

func (e *Engine) deliver(ps *pass, patchID, portID string, sig Signal) {
	key := graph.Endpoint{PatchID: patchID, PortID: portID}
	if ps.visited[key] {
		e.cycles++
		events.Emit("warn", "patch.cycle_skipped", "input already visited in this pass", map[string]interface{}{
			"patch_id": patchID,
			"port_id":  portID,
		})
		return
	}
	ps.visited[key] = true

	pt := ps.proj.FindPatch(patchID)
	if pt == nil {
		return
	}
	e.evaluate(ps, pt, portID, sig)
}

// state returns the runtime state of pt, creating it from the config.
func (e *Engine) state(pt *model.Patch) *patchState {
	if st, ok := e.states[pt.ID]; ok {
		return st
	}
	st := &patchState{}
	switch cfg := pt.Config.(type) {
	case model.ToggleConfig:
		st.toggle = cfg.Initial
	case model.OptionSwitchConfig:
		st.option = clampIndex(cfg.Initial, len(cfg.Options))
	}
	e.states[pt.ID] = st
	return st
}

func (e *Engine) cancelPending(patchID string, st *patchState) {
	if !st.pending {
		return
	}
	e.sched.Cancel(st.timer)
	st.pending = false
	events.Emit("info", "timer.cancelled", "", map[string]interface{}{"patch_id": patchID})
}

func (e *Engine) actionFailed(pt *model.Patch, err error) {
	events.Emit("warn", "patch.action_failed", err.Error(), map[string]interface{}{
		"patch_id": pt.ID,
		"type":     string(pt.Type),
	})
}
