// Package resolve computes effective element properties from the shared
// baseline, component masters and the active display state.
package resolve

import (
	"github.com/AaronLay10/protoflow/internal/model"
)

// Merge returns base with every key of overlay applied on top.
// The merge is shallow per property key; neither input is mutated.
func Merge(base, overlay model.Props) model.Props {
	out := make(model.Props, len(base)+len(overlay))
	for k, v := range base {
		out[k] = model.CloneValue(v)
	}
	for k, v := range overlay {
		out[k] = model.CloneValue(v)
	}
	return out
}

// Resolve merges the overrides of the active display state over the shared
// elements. Overrides for the same layer apply in list order, so the last
// entry wins per key. Elements without a matching override pass through
// unchanged, and an unknown activeID yields the baseline.
func Resolve(shared []model.Element, states []model.DisplayState, activeID string) []model.Element {
	var active *model.DisplayState
	for i := range states {
		if states[i].ID == activeID {
			active = &states[i]
			break
		}
	}

	out := make([]model.Element, len(shared))
	if active == nil || len(active.LayerOverrides) == 0 {
		for i, el := range shared {
			out[i] = el.Clone()
		}
		return out
	}

	byLayer := make(map[string][]model.Props, len(active.LayerOverrides))
	for _, o := range active.LayerOverrides {
		byLayer[o.LayerID] = append(byLayer[o.LayerID], o.Properties)
	}

	for i, el := range shared {
		overrides, ok := byLayer[el.ID]
		if !ok {
			out[i] = el.Clone()
			continue
		}
		props := el.Props
		for _, o := range overrides {
			props = Merge(props, o)
		}
		out[i] = model.Element{ID: el.ID, Props: props}
	}
	return out
}

// Instances expands component instances. An element carrying componentId is
// resolved as its master's props with the element's own props merged on
// top, using the same Merge as display state overrides. Instances of unknown
// components pass through unchanged.
func Instances(components []model.Component, elements []model.Element) []model.Element {
	out := make([]model.Element, len(elements))
	if len(components) == 0 {
		for i, el := range elements {
			out[i] = el.Clone()
		}
		return out
	}

	masters := make(map[string]int, len(components))
	for i, c := range components {
		masters[c.ID] = i
	}

	for i, el := range elements {
		idx, ok := masters[el.ComponentID()]
		if !ok {
			out[i] = el.Clone()
			continue
		}
		out[i] = model.Element{ID: el.ID, Props: Merge(components[idx].Props, el.Props)}
	}
	return out
}

// Effective resolves instances and then applies the active display state.
func Effective(p *model.Project, activeID string) []model.Element {
	return Resolve(Instances(p.Components, p.SharedElements), p.DisplayStates, activeID)
}

// Find returns the element with the given id.
func Find(elements []model.Element, id string) (model.Element, bool) {
	for _, el := range elements {
		if el.ID == id {
			return el, true
		}
	}
	return model.Element{}, false
}
