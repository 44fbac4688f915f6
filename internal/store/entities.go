package store

import (
	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/graph"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/value"
)

// collection describes one entity list of a project.
type collection[T interface{}] struct {
	kind   string
	prefix string
	items  func(*model.Project) *[]T
	id     func(*T) *string
	clone  func(T) T
}

func (c collection[T]) index(p *model.Project, id string) int {
	items := *c.items(p)
	for i := range items {
		if *c.id(&items[i]) == id {
			return i
		}
	}
	return -1
}

func identity[T interface{}](v T) T { return v }

var (
	keyframes = collection[model.Keyframe]{
		kind:   "keyframe",
		prefix: "kf",
		items:  func(p *model.Project) *[]model.Keyframe { return &p.Keyframes },
		id:     func(k *model.Keyframe) *string { return &k.ID },
		clone:  identity[model.Keyframe],
	}
	transitions = collection[model.Transition]{
		kind:   "transition",
		prefix: "tr",
		items:  func(p *model.Project) *[]model.Transition { return &p.Transitions },
		id:     func(t *model.Transition) *string { return &t.ID },
		clone:  model.Transition.Clone,
	}
	displayStates = collection[model.DisplayState]{
		kind:   "displayState",
		prefix: "ds",
		items:  func(p *model.Project) *[]model.DisplayState { return &p.DisplayStates },
		id:     func(d *model.DisplayState) *string { return &d.ID },
		clone:  model.DisplayState.Clone,
	}
	variables = collection[model.Variable]{
		kind:   "variable",
		prefix: "var",
		items:  func(p *model.Project) *[]model.Variable { return &p.Variables },
		id:     func(v *model.Variable) *string { return &v.ID },
		clone:  model.Variable.Clone,
	}
	rules = collection[model.ConditionRule]{
		kind:   "conditionRule",
		prefix: "rule",
		items:  func(p *model.Project) *[]model.ConditionRule { return &p.ConditionRules },
		id:     func(r *model.ConditionRule) *string { return &r.ID },
		clone:  model.ConditionRule.Clone,
	}
	elements = collection[model.Element]{
		kind:   "element",
		prefix: "el",
		items:  func(p *model.Project) *[]model.Element { return &p.SharedElements },
		id:     func(e *model.Element) *string { return &e.ID },
		clone:  model.Element.Clone,
	}
	components = collection[model.Component]{
		kind:   "component",
		prefix: "cmp",
		items:  func(p *model.Project) *[]model.Component { return &p.Components },
		id:     func(c *model.Component) *string { return &c.ID },
		clone:  model.Component.Clone,
	}
)

type checkFunc[T interface{}] func(p *model.Project, item T) error

func add[T interface{}](s *Store, c collection[T], item T, check checkFunc[T]) (T, error) {
	item = c.clone(item)
	if idp := c.id(&item); *idp == "" {
		*idp = graph.NewID(c.prefix)
	}
	id := *c.id(&item)
	_, err := s.commit(c.kind+".add", func(p *model.Project) (*model.Project, error) {
		if c.index(p, id) >= 0 {
			return nil, &Rejection{Reason: ReasonDuplicateID, Kind: c.kind, ID: id}
		}
		if check != nil {
			if err := check(p, item); err != nil {
				return nil, err
			}
		}
		next := p.Clone()
		list := c.items(next)
		*list = append(*list, c.clone(item))
		return next, nil
	})
	return item, err
}

func update[T interface{}](s *Store, c collection[T], item T, check checkFunc[T]) error {
	id := *c.id(&item)
	_, err := s.commit(c.kind+".update", func(p *model.Project) (*model.Project, error) {
		i := c.index(p, id)
		if i < 0 {
			return nil, &Rejection{Reason: ReasonNotFound, Kind: c.kind, ID: id}
		}
		if check != nil {
			if err := check(p, item); err != nil {
				return nil, err
			}
		}
		next := p.Clone()
		(*c.items(next))[i] = c.clone(item)
		return next, nil
	})
	return err
}

func remove[T interface{}](s *Store, c collection[T], id string, guard func(*model.Project) error, cascade func(*model.Project)) error {
	_, err := s.commit(c.kind+".remove", func(p *model.Project) (*model.Project, error) {
		i := c.index(p, id)
		if i < 0 {
			return nil, &Rejection{Reason: ReasonNotFound, Kind: c.kind, ID: id}
		}
		if guard != nil {
			if err := guard(p); err != nil {
				return nil, err
			}
		}
		next := p.Clone()
		list := c.items(next)
		*list = append((*list)[:i], (*list)[i+1:]...)
		if cascade != nil {
			cascade(next)
		}
		return next, nil
	})
	return err
}

// Patches and connections

// AddPatch creates a patch of type t with its fixed ports.
func (s *Store) AddPatch(t model.PatchType, pos model.Position) (model.Patch, error) {
	pt := graph.NewPatch(t, pos)
	_, err := s.commit("patch.add", func(p *model.Project) (*model.Project, error) {
		return graph.AddPatch(p, pt), nil
	})
	if err == nil {
		events.Emit("info", "patch.added", "", map[string]interface{}{"patch_id": pt.ID, "type": string(t)})
	}
	return pt, err
}

// UpdatePatch changes the name, position and config of a patch.
func (s *Store) UpdatePatch(pt model.Patch) error {
	_, err := s.commit("patch.update", func(p *model.Project) (*model.Project, error) {
		next, ok := graph.UpdatePatch(p, pt)
		if !ok {
			return nil, &Rejection{Reason: ReasonNotFound, Kind: "patch", ID: pt.ID}
		}
		return next, nil
	})
	if err == nil {
		events.Emit("info", "patch.updated", "", map[string]interface{}{"patch_id": pt.ID})
	}
	return err
}

// RemovePatch deletes a patch and its connections.
func (s *Store) RemovePatch(id string) error {
	_, err := s.commit("patch.remove", func(p *model.Project) (*model.Project, error) {
		next, ok := graph.RemovePatch(p, id)
		if !ok {
			return nil, &Rejection{Reason: ReasonNotFound, Kind: "patch", ID: id}
		}
		return next, nil
	})
	if err == nil {
		events.Emit("info", "patch.removed", "", map[string]interface{}{"patch_id": id})
	}
	return err
}

// Connect adds a connection. A refused connection leaves the project and
// history untouched and returns a *graph.Rejection.
func (s *Store) Connect(from, to graph.Endpoint) (model.Connection, error) {
	var conn model.Connection
	_, err := s.commit("connection.add", func(p *model.Project) (*model.Project, error) {
		next, c, err := graph.Connect(p, from, to)
		conn = c
		return next, err
	})
	if err != nil {
		events.Emit("warn", "connection.rejected", err.Error(), map[string]interface{}{
			"from": from.PatchID + "." + from.PortID,
			"to":   to.PatchID + "." + to.PortID,
		})
		return model.Connection{}, err
	}
	events.Emit("info", "connection.added", "", map[string]interface{}{"connection_id": conn.ID})
	return conn, nil
}

// RemoveConnection deletes a connection.
func (s *Store) RemoveConnection(id string) error {
	_, err := s.commit("connection.remove", func(p *model.Project) (*model.Project, error) {
		next, ok := graph.RemoveConnection(p, id)
		if !ok {
			return nil, &Rejection{Reason: ReasonNotFound, Kind: "connection", ID: id}
		}
		return next, nil
	})
	if err == nil {
		events.Emit("info", "connection.removed", "", map[string]interface{}{"connection_id": id})
	}
	return err
}

// Keyframes

func checkKeyframe(p *model.Project, kf model.Keyframe) error {
	if kf.DisplayStateID != "" && p.FindDisplayState(kf.DisplayStateID) == nil {
		return &Rejection{Reason: ReasonUnknownReference, Kind: "displayState", ID: kf.DisplayStateID}
	}
	return nil
}

func (s *Store) AddKeyframe(kf model.Keyframe) (model.Keyframe, error) {
	return add(s, keyframes, kf, checkKeyframe)
}

func (s *Store) UpdateKeyframe(kf model.Keyframe) error {
	return update(s, keyframes, kf, checkKeyframe)
}

// RemoveKeyframe deletes a keyframe and every transition touching it.
func (s *Store) RemoveKeyframe(id string) error {
	return remove(s, keyframes, id, nil, func(next *model.Project) {
		kept := next.Transitions[:0]
		for _, t := range next.Transitions {
			if t.From != id && t.To != id {
				kept = append(kept, t)
			}
		}
		next.Transitions = kept
	})
}

// Transitions

func checkTransition(p *model.Project, t model.Transition) error {
	for _, id := range []string{t.From, t.To} {
		if p.FindKeyframe(id) == nil {
			return &Rejection{Reason: ReasonUnknownReference, Kind: "keyframe", ID: id}
		}
	}
	return nil
}

func (s *Store) AddTransition(t model.Transition) (model.Transition, error) {
	if t.Curve == "" {
		t.Curve = model.CurveEase
	}
	return add(s, transitions, t, checkTransition)
}

func (s *Store) UpdateTransition(t model.Transition) error {
	return update(s, transitions, t, checkTransition)
}

func (s *Store) RemoveTransition(id string) error {
	return remove(s, transitions, id, nil, nil)
}

// Display states

func (s *Store) AddDisplayState(d model.DisplayState) (model.DisplayState, error) {
	if d.LayerOverrides == nil {
		d.LayerOverrides = []model.LayerOverride{}
	}
	return add(s, displayStates, d, nil)
}

func (s *Store) UpdateDisplayState(d model.DisplayState) error {
	return update(s, displayStates, d, nil)
}

// RemoveDisplayState deletes a display state. The last one cannot be removed.
// Keyframes bound to it are left dangling and resolve to the base elements.
func (s *Store) RemoveDisplayState(id string) error {
	return remove(s, displayStates, id, func(p *model.Project) error {
		if len(p.DisplayStates) <= 1 {
			return &Rejection{Reason: ReasonLastDisplayState, Kind: "displayState", ID: id}
		}
		return nil
	}, nil)
}

// Variables

// normalizeVariable coerces the default value and seeds the current value.
func normalizeVariable(v model.Variable) model.Variable {
	if v.Type == "" {
		v.Type = model.VarString
	}
	v.DefaultValue, _ = value.Coerce(v.Type, v.DefaultValue)
	if v.CurrentValue == nil {
		v.CurrentValue = model.CloneValue(v.DefaultValue)
	} else {
		v.CurrentValue, _ = value.Coerce(v.Type, v.CurrentValue)
	}
	return v
}

func (s *Store) AddVariable(v model.Variable) (model.Variable, error) {
	return add(s, variables, normalizeVariable(v), nil)
}

func (s *Store) UpdateVariable(v model.Variable) error {
	return update(s, variables, normalizeVariable(v), nil)
}

// RemoveVariable deletes a variable. Rules bound to it stay and become inert.
func (s *Store) RemoveVariable(id string) error {
	return remove(s, variables, id, nil, nil)
}

// Condition rules

func checkRule(p *model.Project, r model.ConditionRule) error {
	if p.FindVariable(r.VariableID) == nil {
		return &Rejection{Reason: ReasonUnknownReference, Kind: "variable", ID: r.VariableID}
	}
	return nil
}

func (s *Store) AddConditionRule(r model.ConditionRule) (model.ConditionRule, error) {
	if r.Actions == nil {
		r.Actions = []model.Action{}
	}
	return add(s, rules, r, checkRule)
}

func (s *Store) UpdateConditionRule(r model.ConditionRule) error {
	return update(s, rules, r, checkRule)
}

func (s *Store) RemoveConditionRule(id string) error {
	return remove(s, rules, id, nil, nil)
}

// Shared elements and components

func (s *Store) AddElement(e model.Element) (model.Element, error) {
	if e.Props == nil {
		e.Props = model.Props{}
	}
	return add(s, elements, e, nil)
}

func (s *Store) UpdateElement(e model.Element) error {
	return update(s, elements, e, nil)
}

func (s *Store) RemoveElement(id string) error {
	return remove(s, elements, id, nil, nil)
}

func (s *Store) AddComponent(c model.Component) (model.Component, error) {
	return add(s, components, c, nil)
}

func (s *Store) UpdateComponent(c model.Component) error {
	return update(s, components, c, nil)
}

func (s *Store) RemoveComponent(id string) error {
	return remove(s, components, id, nil, nil)
}

// SetFrame changes the viewport size and canvas background.
func (s *Store) SetFrame(size model.FrameSize, background string) error {
	_, err := s.commit("frame.update", func(p *model.Project) (*model.Project, error) {
		if p.FrameSize == size && p.CanvasBackground == background {
			return p, nil
		}
		next := p.Clone()
		next.FrameSize = size
		next.CanvasBackground = background
		return next, nil
	})
	return err
}
