// Package player runs a prototype: it wires the patch engine, keyframe
// machine and variable engine to one scheduler and composes the frames the
// preview renders.
package player

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tanema/gween/ease"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/patch"
	"github.com/AaronLay10/protoflow/internal/resolve"
	"github.com/AaronLay10/protoflow/internal/scheduler"
	"github.com/AaronLay10/protoflow/internal/store"
	"github.com/AaronLay10/protoflow/internal/transition"
	"github.com/AaronLay10/protoflow/internal/variables"
)

// DefaultPropertyDuration times property animations that have no
// transition to borrow timing from.
const DefaultPropertyDuration = 300 * time.Millisecond

// Options tunes a Player.
type Options struct {
	// Highlight is how long a patch stays in ActivePatchIDs after emitting.
	Highlight time.Duration
}

// Player owns the runtime state of one prototype. Exported methods are safe
// to call from any goroutine; they run on the scheduler.
type Player struct {
	store *store.Store
	sched scheduler.Scheduler

	patches *patch.Engine
	machine *transition.Machine
	vars    *variables.Engine

	running   bool
	activeDS  string
	view      *transition.Interpolation
	last      *model.Transition
	overrides map[string]model.Props
	anims     map[string]*propertyAnim
	drag      *patch.Gesture
	seq       uint64

	frame atomic.Pointer[Frame]

	mu        sync.Mutex
	listeners []func(*Frame)
}

// propertyAnim is an in-flight animateProperty or setProperty blend.
type propertyAnim struct {
	elementID string
	property  string
	ip        *transition.Interpolation
}

// New creates a player over st. Call Start to enter the first keyframe.
func New(st *store.Store, sched scheduler.Scheduler, opts Options) *Player {
	p := &Player{
		store:     st,
		sched:     sched,
		overrides: make(map[string]model.Props),
		anims:     make(map[string]*propertyAnim),
	}
	p.patches = patch.NewEngine(patchHost{p}, sched, opts.Highlight)
	p.machine = transition.NewMachine(machineHost{p}, sched)
	p.vars = variables.New(st, ruleActions{p})

	p.vars.OnChange(func(id string, v interface{}) {
		p.patches.VariableChanged(id, v)
		p.machine.Handle(transition.Trigger{Type: model.TriggerVariable, VariableID: id})
	})
	st.OnChange(p.projectChanged)

	p.frame.Store(&Frame{Elements: []model.Element{}, ActivePatchIDs: []string{}})
	return p
}

// Start enters the initial keyframe and arms auto-start timers.
func (p *Player) Start() {
	p.sched.Do(func() {
		p.start()
		p.tick()
	})
}

// Stop cancels every timer and animation. The last frame stays published.
func (p *Player) Stop() {
	p.sched.Do(p.stop)
}

// Restart resets variables to their defaults and starts over.
func (p *Player) Restart() {
	p.sched.Do(func() {
		p.stop()
		p.store.ResetVariables()
		p.start()
		p.tick()
	})
}

// Running reports whether the player has been started.
func (p *Player) Running() bool {
	var running bool
	p.sched.Do(func() { running = p.running })
	return running
}

// Gesture routes an input event to the patch graph and the keyframe
// machine. Drag moves are coalesced and applied on the next frame.
func (p *Player) Gesture(g patch.Gesture) error {
	if err := g.Validate(); err != nil {
		return err
	}
	p.sched.Do(func() { p.gesture(g) })
	return nil
}

// SetVariable writes a variable as the running prototype would.
func (p *Player) SetVariable(id string, v interface{}) error {
	var err error
	p.sched.Do(func() { err = p.vars.Set(id, v) })
	return err
}

// GoTo moves the keyframe machine to keyframeID.
func (p *Player) GoTo(keyframeID string) error {
	var err error
	p.sched.Do(func() { err = p.machine.GoTo(keyframeID) })
	return err
}

// Pulse delivers a pulse to an input port, as the inspector's fire button does.
func (p *Player) Pulse(patchID, portID string) error {
	var err error
	p.sched.Do(func() {
		pt := p.store.Project().FindPatch(patchID)
		if pt == nil {
			err = fmt.Errorf("patch not found: %s", patchID)
			return
		}
		if _, ok := pt.Input(portID); ok {
			p.patches.Deliver(patchID, portID, patch.Pulse)
			return
		}
		if _, ok := pt.Output(portID); ok {
			p.patches.Fire(patchID, portID, patch.Pulse)
			return
		}
		err = fmt.Errorf("port not found: %s.%s", patchID, portID)
	})
	return err
}

// Edit runs fn against the store on the scheduler so change hooks see a
// consistent runtime.
func (p *Player) Edit(fn func(*store.Store) error) error {
	var err error
	p.sched.Do(func() { err = fn(p.store) })
	return err
}

// Store returns the underlying project store. Mutations should go
// through Edit.
func (p *Player) Store() *store.Store {
	return p.store
}

// Frame returns the most recently composed frame.
func (p *Player) Frame() *Frame {
	return p.frame.Load()
}

// OnFrame registers fn to receive every composed frame. fn runs on the
// scheduler and must not block.
func (p *Player) OnFrame(fn func(*Frame)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Tick composes and publishes a frame. It must run on the scheduler; wire
// it as the loop's frame hook.
func (p *Player) Tick() {
	p.tick()
}

// Ambiguities lists transitions shadowed by an earlier declaration.
func (p *Player) Ambiguities() int {
	return len(p.machine.Ambiguities())
}

func (p *Player) start() {
	p.running = true
	p.patches.Reset()
	p.view = nil
	p.last = nil
	p.drag = nil
	p.overrides = make(map[string]model.Props)
	p.anims = make(map[string]*propertyAnim)

	proj := p.store.Project()
	p.activeDS = ""
	if len(proj.DisplayStates) > 0 {
		p.activeDS = proj.DisplayStates[0].ID
	}
	p.machine.Start()
	p.patches.Start()
}

func (p *Player) stop() {
	p.running = false
	p.machine.Stop()
	p.patches.Reset()
	p.view = nil
	p.anims = make(map[string]*propertyAnim)
	p.drag = nil
}

func (p *Player) gesture(g patch.Gesture) {
	if !p.running {
		return
	}
	if g.Kind == patch.GestureDragMove {
		p.drag = &g
		return
	}
	p.flushDrag()
	p.patches.Gesture(g)

	switch g.Kind {
	case patch.GestureTap:
		p.machine.Handle(transition.Trigger{Type: model.TriggerTap, ElementID: g.ElementID})
	case patch.GestureHoverEnter:
		p.machine.Handle(transition.Trigger{Type: model.TriggerHover, ElementID: g.ElementID})
	case patch.GestureDragEnd:
		p.machine.Handle(transition.DragTrigger(g.ElementID, g.Translation.X, g.Translation.Y))
	case patch.GestureScroll:
		p.machine.Handle(transition.ScrollTrigger(g.ElementID, g.Offset))
	}
}

// flushDrag applies the latest coalesced drag sample.
func (p *Player) flushDrag() {
	if p.drag == nil {
		return
	}
	g := *p.drag
	p.drag = nil
	p.patches.Gesture(g)
}

func (p *Player) tick() {
	p.flushDrag()
	now := p.sched.Now()

	if p.view != nil && p.view.Done(now) {
		events.Emit("info", "transition.completed", "", map[string]interface{}{"transition_id": p.view.TransitionID})
		p.view = nil
	}

	f := &Frame{
		At:                   millis(now),
		Elements:             p.compose(now),
		ActiveDisplayStateID: p.activeDS,
		ActiveKeyframeID:     p.machine.Current(),
		ActivePatchIDs:       p.patches.Active(),
	}
	if p.view != nil {
		f.Transition = &TransitionProgress{ID: p.view.TransitionID, Progress: p.view.Progress(now)}
	}
	for key, a := range p.anims {
		if a.ip.Done(now) {
			delete(p.anims, key)
		}
	}

	p.seq++
	f.Seq = p.seq
	p.frame.Store(f)

	p.mu.Lock()
	listeners := p.listeners
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(f)
	}
}

// settled is the element set with no animation in flight.
func (p *Player) settled() []model.Element {
	elements := resolve.Effective(p.store.Project(), p.activeDS)
	if len(p.overrides) == 0 {
		return elements
	}
	for i, el := range elements {
		if o, ok := p.overrides[el.ID]; ok {
			elements[i] = model.Element{ID: el.ID, Props: resolve.Merge(el.Props, o)}
		}
	}
	return elements
}

// compose is what is on screen at now.
func (p *Player) compose(now time.Duration) []model.Element {
	var elements []model.Element
	if p.view != nil {
		elements = p.view.Sample(now)
	} else {
		elements = p.settled()
	}
	for _, a := range p.anims {
		sample := a.ip.Sample(now)
		if len(sample) == 0 {
			continue
		}
		v, ok := sample[0].Props[a.property]
		if !ok {
			continue
		}
		for i := range elements {
			if elements[i].ID == a.elementID {
				elements[i].Props = resolve.Merge(elements[i].Props, model.Props{a.property: v})
			}
		}
	}
	return elements
}

// enter applies a keyframe change from the machine.
func (p *Player) enter(kf model.Keyframe, t *model.Transition) {
	now := p.sched.Now()
	from := p.compose(now)
	if p.view != nil && !p.view.Done(now) {
		events.Emit("info", "transition.cancelled", "interrupted", map[string]interface{}{"transition_id": p.view.TransitionID})
	}
	p.setDisplayState(kf.DisplayStateID)

	if t == nil {
		p.view = nil
		return
	}
	tc := t.Clone()
	p.last = &tc
	p.view = transition.NewInterpolation(tc, from, p.settled(), now)
}

func (p *Player) setDisplayState(id string) {
	if id == p.activeDS {
		return
	}
	prev := p.activeDS
	p.activeDS = id
	events.Emit("info", "displaystate.changed", "", map[string]interface{}{
		"from": prev,
		"to":   id,
	})
}

// switchDisplayState handles a switchDisplayState patch. A display state
// bound to a keyframe moves the machine so declared transitions animate
// the change; any other state is applied directly.
func (p *Player) switchDisplayState(id string) error {
	proj := p.store.Project()
	if id != "" && proj.FindDisplayState(id) == nil {
		return fmt.Errorf("display state not found: %s", id)
	}
	for _, kf := range proj.Keyframes {
		if kf.DisplayStateID == id && id != "" {
			if kf.ID != p.machine.Current() {
				return p.machine.GoTo(kf.ID)
			}
			break
		}
	}

	now := p.sched.Now()
	if p.view != nil && !p.view.Done(now) {
		events.Emit("info", "transition.cancelled", "display state switched", map[string]interface{}{"transition_id": p.view.TransitionID})
		p.view = nil
	}
	p.setDisplayState(id)
	return nil
}

// animateProperty blends one property toward to. Timing comes from the
// patch's transition, else the transition in flight, else the last one
// fired, else a default ease over DefaultPropertyDuration.
func (p *Player) animateProperty(cfg model.AnimatePropertyConfig, to interface{}) error {
	proj := p.store.Project()
	if _, ok := resolve.Find(proj.SharedElements, cfg.TargetElementID); !ok {
		return fmt.Errorf("element not found: %s", cfg.TargetElementID)
	}

	timing := p.last
	if p.view != nil {
		if t := proj.FindTransition(p.view.TransitionID); t != nil {
			timing = t
		}
	}
	if cfg.TransitionID != "" {
		t := proj.FindTransition(cfg.TransitionID)
		if t == nil {
			return fmt.Errorf("transition not found: %s", cfg.TransitionID)
		}
		timing = t
	}

	now := p.sched.Now()
	current := p.compose(now)
	el, _ := resolve.Find(current, cfg.TargetElementID)
	from := []model.Element{{ID: cfg.TargetElementID, Props: model.Props{cfg.Property: el.Props[cfg.Property]}}}
	target := []model.Element{{ID: cfg.TargetElementID, Props: model.Props{cfg.Property: to}}}

	var ip *transition.Interpolation
	if timing != nil {
		t := timing.Clone()
		t.ID = ""
		ip = transition.NewInterpolation(t, from, target, now)
	} else {
		ip = transition.Blend(from, target, now, DefaultPropertyDuration, ease.InOutSine)
	}

	p.setOverride(cfg.TargetElementID, cfg.Property, to)
	p.anims[cfg.TargetElementID+"\x00"+cfg.Property] = &propertyAnim{
		elementID: cfg.TargetElementID,
		property:  cfg.Property,
		ip:        ip,
	}
	return nil
}

// setProperty applies a rule's setProperty action immediately.
func (p *Player) setProperty(elementID, property string, v interface{}) error {
	if _, ok := resolve.Find(p.store.Project().SharedElements, elementID); !ok {
		return fmt.Errorf("element not found: %s", elementID)
	}
	if property == "" {
		return fmt.Errorf("no property given for element %s", elementID)
	}
	delete(p.anims, elementID+"\x00"+property)
	p.setOverride(elementID, property, v)
	return nil
}

func (p *Player) setOverride(elementID, property string, v interface{}) {
	o, ok := p.overrides[elementID]
	if !ok {
		o = model.Props{}
		p.overrides[elementID] = o
	}
	o[property] = model.CloneValue(v)
}

// projectChanged keeps runtime state consistent with an edited project.
func (p *Player) projectChanged(proj *model.Project) {
	p.patches.Prune()
	if !p.running {
		return
	}
	if cur := p.machine.Current(); cur != "" && proj.FindKeyframe(cur) == nil {
		p.machine.Start()
	}
	if p.activeDS != "" && proj.FindDisplayState(p.activeDS) == nil {
		p.setDisplayState("")
	}
	for id := range p.overrides {
		if _, ok := resolve.Find(proj.SharedElements, id); !ok {
			delete(p.overrides, id)
		}
	}
}
