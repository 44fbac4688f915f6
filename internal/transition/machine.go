// Package transition runs the keyframe state machine: triggers select an
// outgoing transition of the current keyframe and the resulting change is
// animated by an Interpolation.
package transition

import (
	"fmt"
	"math"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/graph"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/scheduler"
)

// Trigger is an input the machine may react to.
type Trigger struct {
	Type       model.TriggerType
	ElementID  string
	VariableID string
	// Direction and Distance describe drag and scroll samples.
	Direction string
	Distance  float64
}

// DragTrigger classifies a drag translation by its dominant axis.
// Screen coordinates grow rightwards and downwards.
func DragTrigger(elementID string, dx, dy float64) Trigger {
	tr := Trigger{Type: model.TriggerDrag, ElementID: elementID}
	if math.Abs(dx) >= math.Abs(dy) {
		tr.Distance = math.Abs(dx)
		tr.Direction = "right"
		if dx < 0 {
			tr.Direction = "left"
		}
	} else {
		tr.Distance = math.Abs(dy)
		tr.Direction = "down"
		if dy < 0 {
			tr.Direction = "up"
		}
	}
	return tr
}

// ScrollTrigger classifies a scroll offset.
func ScrollTrigger(elementID string, offset float64) Trigger {
	dir := "down"
	if offset < 0 {
		dir = "up"
	}
	return Trigger{Type: model.TriggerScroll, ElementID: elementID, Direction: dir, Distance: math.Abs(offset)}
}

// Host receives keyframe changes.
type Host interface {
	Project() *model.Project
	// Enter is called after the machine moves to kf. t is nil when the
	// move was a jump with no transition.
	Enter(kf model.Keyframe, t *model.Transition)
}

// Machine is the keyframe state machine. It is not safe for concurrent use.
type Machine struct {
	host    Host
	sched   scheduler.Scheduler
	current string
	timers  []scheduler.TimerID
}

// NewMachine creates a machine. Call Start to enter the initial keyframe.
func NewMachine(host Host, sched scheduler.Scheduler) *Machine {
	return &Machine{host: host, sched: sched}
}

// Start enters the first declared keyframe and reports ambiguous
// transitions. A project without keyframes leaves the machine idle.
func (m *Machine) Start() {
	m.cancelTimers()
	m.current = ""

	proj := m.host.Project()
	for _, a := range m.Ambiguities() {
		events.Emit("warn", "transition.ambiguous", "later transition is shadowed", map[string]interface{}{
			"from":     a.From,
			"winner":   a.Winner,
			"shadowed": a.Shadowed,
			"trigger":  string(a.Trigger),
		})
	}
	if len(proj.Keyframes) == 0 {
		return
	}
	m.enter(proj.Keyframes[0], nil)
}

// Current returns the current keyframe id, or "" before Start.
func (m *Machine) Current() string {
	return m.current
}

// Ambiguities reports transitions shadowed by an earlier declaration.
func (m *Machine) Ambiguities() []graph.Ambiguity {
	return graph.AmbiguousTransitions(m.host.Project().Transitions)
}

// Handle fires the first declared transition out of the current keyframe
// whose trigger matches tr. Timer transitions are armed internally and
// never match here. It reports whether a transition fired.
func (m *Machine) Handle(tr Trigger) bool {
	if m.current == "" || tr.Type == model.TriggerTimer {
		return false
	}
	proj := m.host.Project()
	for i := range proj.Transitions {
		t := &proj.Transitions[i]
		if t.From != m.current || !Matches(t.Trigger, tr) {
			continue
		}
		if m.fire(proj, *t) {
			return true
		}
	}
	return false
}

// Matches reports whether tr satisfies the trigger descriptor d.
func Matches(d model.TriggerDescriptor, tr Trigger) bool {
	if d.Type != tr.Type {
		return false
	}
	switch d.Type {
	case model.TriggerTap, model.TriggerHover:
		return d.ElementID == "" || d.ElementID == tr.ElementID
	case model.TriggerDrag, model.TriggerScroll:
		if d.ElementID != "" && d.ElementID != tr.ElementID {
			return false
		}
		if d.Direction != "" && d.Direction != tr.Direction {
			return false
		}
		return tr.Distance >= d.Threshold
	case model.TriggerVariable:
		return d.VariableID == "" || d.VariableID == tr.VariableID
	}
	return false
}

// GoTo moves to keyframeID. The first declared transition from the current
// keyframe to the target is used when one exists; otherwise the machine
// jumps without animation.
func (m *Machine) GoTo(keyframeID string) error {
	proj := m.host.Project()
	kf := proj.FindKeyframe(keyframeID)
	if kf == nil {
		return fmt.Errorf("keyframe not found: %s", keyframeID)
	}
	if keyframeID == m.current {
		return nil
	}
	for i := range proj.Transitions {
		t := proj.Transitions[i]
		if t.From == m.current && t.To == keyframeID && m.fire(proj, t) {
			return nil
		}
	}
	m.enter(*kf, nil)
	return nil
}

// Stop cancels armed timer transitions and leaves the machine idle.
func (m *Machine) Stop() {
	m.cancelTimers()
	m.current = ""
}

func (m *Machine) fire(proj *model.Project, t model.Transition) bool {
	kf := proj.FindKeyframe(t.To)
	if kf == nil {
		return false
	}
	events.Emit("info", "transition.started", "", map[string]interface{}{
		"transition_id": t.ID,
		"from":          t.From,
		"to":            t.To,
		"trigger":       string(t.Trigger.Type),
	})
	m.enter(*kf, &t)
	return true
}

func (m *Machine) enter(kf model.Keyframe, t *model.Transition) {
	m.cancelTimers()
	m.current = kf.ID
	events.Emit("info", "keyframe.entered", "", map[string]interface{}{
		"keyframe_id":      kf.ID,
		"display_state_id": kf.DisplayStateID,
	})
	m.host.Enter(kf, t)

	// Enter may have moved the machine again.
	if m.current == kf.ID {
		m.armTimers()
	}
}

// armTimers schedules every timer transition out of the current keyframe.
// Equal delays fire in declaration order, and the first firing cancels the rest.
func (m *Machine) armTimers() {
	from := m.current
	for _, t := range m.host.Project().Transitions {
		if t.From != from || t.Trigger.Type != model.TriggerTimer {
			continue
		}
		id := t.ID
		m.timers = append(m.timers, m.sched.After(model.Millis(t.Trigger.TimerDelay), func() {
			if m.current != from {
				return
			}
			proj := m.host.Project()
			current := proj.FindTransition(id)
			if current == nil || current.From != from || current.Trigger.Type != model.TriggerTimer {
				return
			}
			m.fire(proj, *current)
		}))
	}
}

func (m *Machine) cancelTimers() {
	for _, id := range m.timers {
		m.sched.Cancel(id)
	}
	m.timers = m.timers[:0]
}
