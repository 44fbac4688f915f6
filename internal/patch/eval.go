package patch

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/value"
)

var errNoVariable = errors.New("no variable configured")

// evaluate runs the behavior of pt for a signal arriving on portID.
func (e *Engine) evaluate(ps *pass, pt *model.Patch, portID string, sig Signal) {
	switch cfg := pt.Config.(type) {
	case model.TimerConfig:
		e.evalTimer(pt, cfg, portID)
	case model.SwitchDisplayStateConfig:
		e.evalSwitchDisplayState(ps, pt, cfg, portID, sig)
	case model.SetVariableConfig:
		e.evalSetVariable(ps, pt, cfg, portID, sig)
	case model.AnimatePropertyConfig:
		e.evalAnimateProperty(ps, pt, cfg, portID, sig)
	case model.ConditionConfig:
		e.evalCondition(ps, pt, cfg, sig)
	case model.DelayConfig:
		e.evalDelay(pt, cfg, sig)
	case model.ToggleConfig:
		st := e.state(pt)
		st.toggle = !st.toggle
		if st.toggle {
			e.emit(ps, pt.ID, "on", Pulse)
		} else {
			e.emit(ps, pt.ID, "off", Pulse)
		}
		e.emit(ps, pt.ID, "state", Signal{Value: st.toggle})
	case model.CounterConfig:
		e.evalCounter(ps, pt, cfg, portID)
	case model.OptionSwitchConfig:
		e.evalOptionSwitch(ps, pt, cfg, portID, sig)
	case model.DragBindingConfig:
		t := toTranslation(sig.Value)
		n := t.X
		if cfg.Axis == "y" {
			n = t.Y
		}
		e.emit(ps, pt.ID, "value", Signal{Value: value.Clamp(n*cfg.Multiplier, cfg.Min, cfg.Max)})
	}
	// Gesture and variableChange triggers have no inputs.
}

func (e *Engine) evalTimer(pt *model.Patch, cfg model.TimerConfig, portID string) {
	switch portID {
	case "start":
		e.armTimer(pt, cfg)
	case "stop":
		e.cancelPending(pt.ID, e.state(pt))
	}
}

// armTimer (re)starts the countdown of a timer patch. Repeating timers
// re-arm before firing so a stop reached from onFire wins.
func (e *Engine) armTimer(pt *model.Patch, cfg model.TimerConfig) {
	id := pt.ID
	st := e.state(pt)
	e.cancelPending(id, st)

	d := model.Millis(cfg.Duration)
	st.pending = true
	st.timer = e.sched.After(d, func() {
		st.pending = false
		events.Emit("info", "timer.expired", "", map[string]interface{}{"patch_id": id})

		current := e.host.Project().FindPatch(id)
		if current == nil {
			return
		}
		if next, ok := current.Config.(model.TimerConfig); ok && next.Repeat && next.Duration > 0 {
			e.armTimer(current, next)
		}
		e.Fire(id, "onFire", Pulse)
	})
	events.Emit("info", "timer.started", "", map[string]interface{}{
		"patch_id":    id,
		"duration_ms": cfg.Duration,
	})
}

func (e *Engine) evalDelay(pt *model.Patch, cfg model.DelayConfig, sig Signal) {
	id := pt.ID
	st := e.state(pt)
	e.cancelPending(id, st)

	carried := sig
	st.pending = true
	st.timer = e.sched.After(model.Millis(cfg.Delay), func() {
		st.pending = false
		events.Emit("info", "timer.expired", "", map[string]interface{}{"patch_id": id})
		e.Fire(id, "output", carried)
	})
	events.Emit("info", "timer.started", "", map[string]interface{}{
		"patch_id":    id,
		"duration_ms": cfg.Delay,
	})
}

func (e *Engine) evalSwitchDisplayState(ps *pass, pt *model.Patch, cfg model.SwitchDisplayStateConfig, portID string, sig Signal) {
	st := e.state(pt)
	if portID == "target" {
		st.latched = value.String(sig.Value)
		st.hasLatched = true
		return
	}

	target := cfg.TargetDisplayStateID
	if s, _ := st.latched.(string); st.hasLatched && s != "" {
		target = s
	}
	if target == "" {
		e.actionFailed(pt, errors.New("no target display state"))
		return
	}

	previous := e.host.ActiveDisplayState()
	if err := e.host.SwitchDisplayState(target); err != nil {
		e.actionFailed(pt, err)
		return
	}

	if cfg.AutoReverse {
		// A retrigger while a reversion is pending restarts the countdown
		// but keeps the state that was active before the first switch.
		if st.pending {
			e.sched.Cancel(st.timer)
		} else {
			st.revertTo = previous
		}
		id, revertTo := pt.ID, st.revertTo
		st.pending = true
		st.timer = e.sched.After(model.Millis(cfg.ReverseDelay), func() {
			st.pending = false
			if err := e.host.SwitchDisplayState(revertTo); err != nil {
				events.Emit("warn", "patch.action_failed", err.Error(), map[string]interface{}{"patch_id": id})
				return
			}
			events.Emit("info", "displaystate.reverted", "", map[string]interface{}{
				"patch_id":         id,
				"display_state_id": revertTo,
			})
		})
	}

	e.emit(ps, pt.ID, "done", Pulse)
	e.emit(ps, pt.ID, "activeState", Signal{Value: target})
}

func (e *Engine) evalSetVariable(ps *pass, pt *model.Patch, cfg model.SetVariableConfig, portID string, sig Signal) {
	st := e.state(pt)
	if portID == "value" {
		st.latched = model.CloneValue(sig.Value)
		st.hasLatched = true
		return
	}

	v := cfg.Value
	if st.hasLatched {
		v = st.latched
	}
	if cfg.VariableID == "" {
		e.actionFailed(pt, errNoVariable)
		return
	}
	if err := e.host.SetVariable(cfg.VariableID, model.CloneValue(v)); err != nil {
		e.actionFailed(pt, err)
		return
	}
	e.emit(ps, pt.ID, "done", Pulse)
}

func (e *Engine) evalAnimateProperty(ps *pass, pt *model.Patch, cfg model.AnimatePropertyConfig, portID string, sig Signal) {
	st := e.state(pt)
	if portID == "toValue" {
		st.latched = model.CloneValue(sig.Value)
		st.hasLatched = true
		return
	}

	to := cfg.ToValue
	if st.hasLatched {
		to = st.latched
	}
	if cfg.TargetElementID == "" || cfg.Property == "" {
		e.actionFailed(pt, fmt.Errorf("animate target incomplete: element=%q property=%q", cfg.TargetElementID, cfg.Property))
		return
	}
	if err := e.host.AnimateProperty(pt.ID, cfg, model.CloneValue(to)); err != nil {
		e.actionFailed(pt, err)
		return
	}
	e.emit(ps, pt.ID, "done", Pulse)
}

func (e *Engine) evalCondition(ps *pass, pt *model.Patch, cfg model.ConditionConfig, sig Signal) {
	var ok bool
	if cfg.Operator != "" && cfg.CompareTo != nil {
		ok = value.Compare(model.VarNumber, cfg.Operator, sig.Value, *cfg.CompareTo)
	} else {
		ok = value.Truthy(sig.Value)
	}
	if ok {
		e.emit(ps, pt.ID, "true", Pulse)
	} else {
		e.emit(ps, pt.ID, "false", Pulse)
	}
}

func (e *Engine) evalCounter(ps *pass, pt *model.Patch, cfg model.CounterConfig, portID string) {
	st := e.state(pt)
	switch portID {
	case "increment":
		st.count = value.Clamp(st.count+cfg.Step, cfg.Min, cfg.Max)
	case "decrement":
		st.count = value.Clamp(st.count-cfg.Step, cfg.Min, cfg.Max)
	case "reset":
		st.count = 0
	default:
		return
	}
	e.emit(ps, pt.ID, "count", Signal{Value: st.count})
}

func (e *Engine) evalOptionSwitch(ps *pass, pt *model.Patch, cfg model.OptionSwitchConfig, portID string, sig Signal) {
	st := e.state(pt)
	n := len(cfg.Options)
	idx := st.option
	switch portID {
	case "select":
		f, _ := value.Number(sig.Value)
		idx = clampIndex(int(f), n)
	case "next":
		idx = wrapIndex(st.option+1, n)
	case "previous":
		idx = wrapIndex(st.option-1, n)
	default:
		return
	}

	changed := idx != st.option
	st.option = idx
	label := ""
	if n > 0 {
		label = cfg.Options[idx]
	}
	e.emit(ps, pt.ID, "index", Signal{Value: float64(idx)})
	e.emit(ps, pt.ID, "value", Signal{Value: label})
	if changed {
		e.emit(ps, pt.ID, "changed", Pulse)
	}
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func wrapIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	return ((i % n) + n) % n
}
