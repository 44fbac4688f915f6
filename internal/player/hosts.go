package player

import (
	"github.com/AaronLay10/protoflow/internal/model"
)

// patchHost applies action patches.
type patchHost struct{ p *Player }

func (h patchHost) Project() *model.Project { return h.p.store.Project() }

func (h patchHost) ActiveDisplayState() string { return h.p.activeDS }

func (h patchHost) SwitchDisplayState(id string) error { return h.p.switchDisplayState(id) }

func (h patchHost) SetVariable(id string, v interface{}) error { return h.p.vars.Set(id, v) }

func (h patchHost) AnimateProperty(_ string, cfg model.AnimatePropertyConfig, to interface{}) error {
	return h.p.animateProperty(cfg, to)
}

// machineHost receives keyframe changes.
type machineHost struct{ p *Player }

func (h machineHost) Project() *model.Project { return h.p.store.Project() }

func (h machineHost) Enter(kf model.Keyframe, t *model.Transition) { h.p.enter(kf, t) }

// ruleActions performs condition rule side effects.
type ruleActions struct{ p *Player }

func (a ruleActions) GoToState(keyframeID string) error { return a.p.machine.GoTo(keyframeID) }

func (a ruleActions) SetProperty(elementID, property string, v interface{}) error {
	return a.p.setProperty(elementID, property, v)
}
