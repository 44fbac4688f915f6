// Package variables applies typed variable writes and runs the condition
// rules bound to them.
package variables

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/value"
)

// ErrUnknownVariable is returned when a write names a missing variable.
var ErrUnknownVariable = errors.New("unknown variable")

// Store holds variable values.
type Store interface {
	Project() *model.Project
	WriteVariable(id string, v interface{}) error
}

// Actions performs the side effects of matched rules.
type Actions interface {
	GoToState(keyframeID string) error
	SetProperty(elementID, property string, v interface{}) error
}

// Engine coerces and stores variable writes, then evaluates rules.
// It is not safe for concurrent use.
type Engine struct {
	store     Store
	actions   Actions
	listeners []func(id string, v interface{})
}

// New creates an engine writing through store and acting through actions.
func New(store Store, actions Actions) *Engine {
	return &Engine{store: store, actions: actions}
}

// OnChange registers fn to run after a write that changes the stored value,
// before rules are evaluated.
func (e *Engine) OnChange(fn func(id string, v interface{})) {
	e.listeners = append(e.listeners, fn)
}

// Set coerces v to the variable's declared type, stores it and evaluates
// every condition rule bound to the variable.
func (e *Engine) Set(id string, v interface{}) error {
	return e.set(id, v, make(map[string]bool))
}

// set runs one write. running holds the rules on the current cascade
// stack; a rule reached again through its own actions is skipped.
func (e *Engine) set(id string, v interface{}, running map[string]bool) error {
	proj := e.store.Project()
	vr := proj.FindVariable(id)
	if vr == nil {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, id)
	}

	coerced, ok := value.Coerce(vr.Type, v)
	if !ok {
		events.Emit("warn", "variable.coerced", "value did not match declared type", map[string]interface{}{
			"variable_id": id,
			"type":        string(vr.Type),
			"input":       fmt.Sprint(v),
			"stored":      fmt.Sprint(coerced),
		})
	}
	// Rules see every write; listeners only see changes.
	if !reflect.DeepEqual(vr.CurrentValue, coerced) {
		if err := e.store.WriteVariable(id, coerced); err != nil {
			return err
		}
		events.Emit("info", "variable.changed", "", map[string]interface{}{
			"variable_id": id,
			"value":       coerced,
		})
		for _, fn := range e.listeners {
			fn(id, coerced)
		}
	}

	for _, r := range proj.ConditionRules {
		if r.VariableID != id {
			continue
		}
		if running[r.ID] {
			events.Emit("warn", "rule.skipped", "rule already running in this cascade", map[string]interface{}{
				"rule_id":     r.ID,
				"variable_id": id,
			})
			continue
		}
		if !value.Compare(vr.Type, r.Operator, coerced, r.Value) {
			continue
		}

		running[r.ID] = true
		events.Emit("info", "rule.matched", "", map[string]interface{}{
			"rule_id":     r.ID,
			"variable_id": id,
			"operator":    string(r.Operator),
		})
		e.run(r, running)
		delete(running, r.ID)
	}
	return nil
}

// run executes a rule's actions in order. A failed action is reported
// and the remaining actions still run.
func (e *Engine) run(r model.ConditionRule, running map[string]bool) {
	for i, a := range r.Actions {
		var err error
		switch a.Type {
		case model.ActionGoToState:
			err = e.actions.GoToState(a.KeyframeID)
		case model.ActionSetVariable:
			err = e.set(a.VariableID, model.CloneValue(a.Value), running)
		case model.ActionSetProperty:
			err = e.actions.SetProperty(a.ElementID, a.Property, model.CloneValue(a.Value))
		default:
			err = fmt.Errorf("unknown action type %q", a.Type)
		}
		if err != nil {
			events.Emit("warn", "rule.action_failed", err.Error(), map[string]interface{}{
				"rule_id": r.ID,
				"action":  i,
				"type":    string(a.Type),
			})
		}
	}
}
