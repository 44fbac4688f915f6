package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// patch graph
	"patch.added":         {},
	"patch.updated":       {},
	"patch.removed":       {},
	"patch.fired":         {},
	"patch.cycle_skipped": {},
	"patch.action_failed": {},

	// connections
	"connection.added":    {},
	"connection.removed":  {},
	"connection.rejected": {},

	// display states
	"displaystate.changed":  {},
	"displaystate.reverted": {},

	// transition machine
	"keyframe.entered":     {},
	"transition.started":   {},
	"transition.completed": {},
	"transition.cancelled": {},
	"transition.ambiguous": {},

	// variables and rules
	"variable.changed":   {},
	"variable.coerced":   {},
	"rule.matched":       {},
	"rule.skipped":       {},
	"rule.action_failed": {},

	// timers
	"timer.started":   {},
	"timer.expired":   {},
	"timer.cancelled": {},

	// gestures
	"gesture.received": {},

	// mqtt bridge
	"bridge.received": {},
	"bridge.rejected": {},

	// editing
	"project.loaded":  {},
	"project.saved":   {},
	"project.edited":  {},
	"project.invalid": {},
	"history.undo":    {},
	"history.redo":    {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
