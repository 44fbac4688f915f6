package graph

import (
	"fmt"

	"github.com/AaronLay10/protoflow/internal/model"
)

// IssueKind classifies a validation finding.
type IssueKind string

const (
	IssueInvalidConnection   IssueKind = "invalid_connection"
	IssueDanglingReference   IssueKind = "dangling_reference"
	IssueAmbiguousTrigger    IssueKind = "ambiguous_trigger"
	IssueDuplicatePort       IssueKind = "duplicate_port"
	IssueUnknownPatchType    IssueKind = "unknown_patch_type"
	IssueMissingDisplayState IssueKind = "missing_display_state"
)

// Issue is one validation finding. Issues never block editing; they describe
// parts of the project the runtime treats as inert.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	EntityID string    `json:"entity_id"`
	Message  string    `json:"message"`
}

// Ambiguity is a pair of outgoing transitions from one keyframe that share a
// trigger. The first declared transition wins at runtime.
type Ambiguity struct {
	From     string
	Winner   string
	Shadowed string
	Trigger  model.TriggerType
}

// AmbiguousTransitions reports transitions shadowed by an earlier transition
// with the same from state, trigger type and trigger target.
func AmbiguousTransitions(transitions []model.Transition) []Ambiguity {
	type key struct {
		from    string
		trigger model.TriggerType
		target  string
	}
	first := make(map[key]string)
	var out []Ambiguity
	for _, t := range transitions {
		k := key{from: t.From, trigger: t.Trigger.Type, target: t.Trigger.ElementID + "|" + t.Trigger.VariableID + "|" + t.Trigger.Direction}
		if winner, ok := first[k]; ok {
			out = append(out, Ambiguity{From: t.From, Winner: winner, Shadowed: t.ID, Trigger: t.Trigger.Type})
			continue
		}
		first[k] = t.ID
	}
	return out
}

// Validate lints a project. It returns nil for a clean project.
func Validate(p *model.Project) []Issue {
	var issues []Issue
	add := func(kind IssueKind, id, format string, args ...interface{}) {
		issues = append(issues, Issue{Kind: kind, EntityID: id, Message: fmt.Sprintf(format, args...)})
	}

	if len(p.DisplayStates) == 0 {
		add(IssueMissingDisplayState, "", "project has no display states")
	}

	for _, pt := range p.Patches {
		if _, ok := model.PortTable[pt.Type]; !ok {
			add(IssueUnknownPatchType, pt.ID, "unknown patch type %q", pt.Type)
		}
		if dup := duplicatePort(pt.Inputs); dup != "" {
			add(IssueDuplicatePort, pt.ID, "duplicate input port %q", dup)
		}
		if dup := duplicatePort(pt.Outputs); dup != "" {
			add(IssueDuplicatePort, pt.ID, "duplicate output port %q", dup)
		}
		validatePatchRefs(p, pt, add)
	}

	seen := make(map[string]bool)
	for _, c := range p.PatchConnections {
		tuple := c.FromPatchID + "\x00" + c.FromPortID + "\x00" + c.ToPatchID + "\x00" + c.ToPortID
		if seen[tuple] {
			add(IssueInvalidConnection, c.ID, "duplicate connection")
			continue
		}
		seen[tuple] = true

		// Check against a project without this connection so it is not its own duplicate.
		probe := *p
		probe.PatchConnections = nil
		if rej := CheckConnection(&probe, Endpoint{c.FromPatchID, c.FromPortID}, Endpoint{c.ToPatchID, c.ToPortID}); rej != nil {
			add(IssueInvalidConnection, c.ID, "%s", rej.Error())
		}
	}

	for _, k := range p.Keyframes {
		if p.FindDisplayState(k.DisplayStateID) == nil {
			add(IssueDanglingReference, k.ID, "keyframe references missing display state %q", k.DisplayStateID)
		}
	}

	for _, t := range p.Transitions {
		if p.FindKeyframe(t.From) == nil {
			add(IssueDanglingReference, t.ID, "transition from missing keyframe %q", t.From)
		}
		if p.FindKeyframe(t.To) == nil {
			add(IssueDanglingReference, t.ID, "transition to missing keyframe %q", t.To)
		}
		if t.Trigger.Type == model.TriggerVariable && t.Trigger.VariableID != "" && p.FindVariable(t.Trigger.VariableID) == nil {
			add(IssueDanglingReference, t.ID, "transition bound to missing variable %q", t.Trigger.VariableID)
		}
	}
	for _, a := range AmbiguousTransitions(p.Transitions) {
		add(IssueAmbiguousTrigger, a.Shadowed, "%s trigger from %q already handled by %q", a.Trigger, a.From, a.Winner)
	}

	for _, r := range p.ConditionRules {
		if p.FindVariable(r.VariableID) == nil {
			add(IssueDanglingReference, r.ID, "rule references missing variable %q", r.VariableID)
		}
		for _, a := range r.Actions {
			switch a.Type {
			case model.ActionGoToState:
				if p.FindKeyframe(a.KeyframeID) == nil {
					add(IssueDanglingReference, r.ID, "goToState action references missing keyframe %q", a.KeyframeID)
				}
			case model.ActionSetVariable:
				if p.FindVariable(a.VariableID) == nil {
					add(IssueDanglingReference, r.ID, "setVariable action references missing variable %q", a.VariableID)
				}
			}
		}
	}

	return issues
}

func validatePatchRefs(p *model.Project, pt model.Patch, add func(IssueKind, string, string, ...interface{})) {
	switch cfg := pt.Config.(type) {
	case model.SwitchDisplayStateConfig:
		if cfg.TargetDisplayStateID != "" && p.FindDisplayState(cfg.TargetDisplayStateID) == nil {
			add(IssueDanglingReference, pt.ID, "target display state %q does not exist", cfg.TargetDisplayStateID)
		}
	case model.SetVariableConfig:
		if cfg.VariableID != "" && p.FindVariable(cfg.VariableID) == nil {
			add(IssueDanglingReference, pt.ID, "variable %q does not exist", cfg.VariableID)
		}
	case model.VariableChangeConfig:
		if cfg.VariableID != "" && p.FindVariable(cfg.VariableID) == nil {
			add(IssueDanglingReference, pt.ID, "variable %q does not exist", cfg.VariableID)
		}
	case model.AnimatePropertyConfig:
		if cfg.TransitionID != "" && p.FindTransition(cfg.TransitionID) == nil {
			add(IssueDanglingReference, pt.ID, "transition %q does not exist", cfg.TransitionID)
		}
	}
}

func duplicatePort(ports []model.Port) string {
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if seen[p.ID] {
			return p.ID
		}
		seen[p.ID] = true
	}
	return ""
}
