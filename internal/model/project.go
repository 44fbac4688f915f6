package model

import (
	"encoding/json"
)

// Props is an opaque property bag. The runtime merges and relocates props
// but never interprets their pixel semantics.
type Props map[string]interface{}

// Clone returns a deep copy of the props.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies JSON-shaped values (maps, slices, scalars).
func CloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case Props:
		return t.Clone()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	default:
		return v
	}
}

// Element is a shared layer element. Everything except the id is opaque.
type Element struct {
	ID    string
	Props Props
}

// ComponentIDKey marks an element as an instance of a component master.
const ComponentIDKey = "componentId"

// ComponentID returns the component master the element instantiates, if any.
func (e Element) ComponentID() string {
	if id, ok := e.Props[ComponentIDKey].(string); ok {
		return id
	}
	return ""
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	return Element{ID: e.ID, Props: e.Props.Clone()}
}

// MarshalJSON flattens the id into the property object.
func (e Element) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(e.Props)+1)
	for k, v := range e.Props {
		m[k] = v
	}
	m["id"] = e.ID
	return json.Marshal(m)
}

// UnmarshalJSON splits the id from the remaining properties.
func (e *Element) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	id, _ := m["id"].(string)
	delete(m, "id")
	e.ID = id
	e.Props = Props(m)
	return nil
}

// Component is a reusable master template. Instances are elements carrying
// componentId plus a sparse override map.
type Component struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Props Props  `json:"props"`
}

// Clone returns a deep copy of the component.
func (c Component) Clone() Component {
	return Component{ID: c.ID, Name: c.Name, Props: c.Props.Clone()}
}

// LayerOverride overrides properties of one layer within a display state.
type LayerOverride struct {
	LayerID    string `json:"layerId"`
	Properties Props  `json:"properties"`
	IsKey      bool   `json:"isKey"`
}

// DisplayState is a named bundle of overrides applied over the shared elements.
type DisplayState struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	LayerOverrides []LayerOverride `json:"layerOverrides"`
}

// Clone returns a deep copy of the display state.
func (d DisplayState) Clone() DisplayState {
	out := d
	out.LayerOverrides = cloneSlice(d.LayerOverrides, func(o LayerOverride) LayerOverride {
		return LayerOverride{LayerID: o.LayerID, Properties: o.Properties.Clone(), IsKey: o.IsKey}
	})
	return out
}

// Keyframe is a state of the transition machine bound to one display state.
type Keyframe struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DisplayStateID string `json:"displayStateId"`
	Summary        string `json:"summary"`
}

// TriggerType is the gesture or condition that fires a transition.
type TriggerType string

const (
	TriggerTap      TriggerType = "tap"
	TriggerHover    TriggerType = "hover"
	TriggerDrag     TriggerType = "drag"
	TriggerScroll   TriggerType = "scroll"
	TriggerTimer    TriggerType = "timer"
	TriggerVariable TriggerType = "variable"
)

// TriggerDescriptor describes when a transition becomes eligible.
type TriggerDescriptor struct {
	Type       TriggerType `json:"type"`
	Direction  string      `json:"direction,omitempty"`
	Threshold  float64     `json:"threshold,omitempty"`
	TimerDelay float64     `json:"timerDelay,omitempty"`
	ElementID  string      `json:"elementId,omitempty"`
	VariableID string      `json:"variableId,omitempty"`
}

// Curve names an easing curve.
type Curve string

const (
	CurveLinear    Curve = "linear"
	CurveEase      Curve = "ease"
	CurveEaseIn    Curve = "ease-in"
	CurveEaseOut   Curve = "ease-out"
	CurveEaseInOut Curve = "ease-in-out"
	CurveSpring    Curve = "spring"
)

// Transition is a timed, triggered, eased edge between two keyframes.
// Duration and Delay are milliseconds.
type Transition struct {
	ID             string            `json:"id"`
	From           string            `json:"from"`
	To             string            `json:"to"`
	Trigger        TriggerDescriptor `json:"trigger"`
	Duration       float64           `json:"duration"`
	Delay          float64           `json:"delay"`
	Curve          Curve             `json:"curve"`
	SpringDamping  *float64          `json:"springDamping,omitempty"`
	SpringResponse *float64          `json:"springResponse,omitempty"`
}

// Clone returns a deep copy of the transition.
func (t Transition) Clone() Transition {
	out := t
	if t.SpringDamping != nil {
		v := *t.SpringDamping
		out.SpringDamping = &v
	}
	if t.SpringResponse != nil {
		v := *t.SpringResponse
		out.SpringResponse = &v
	}
	return out
}

// VariableType is the declared type of a variable.
type VariableType string

const (
	VarString  VariableType = "string"
	VarNumber  VariableType = "number"
	VarBoolean VariableType = "boolean"
	VarColor   VariableType = "color"
)

// Variable is a typed, named, mutable value.
type Variable struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         VariableType `json:"type"`
	DefaultValue interface{}  `json:"defaultValue"`
	CurrentValue interface{}  `json:"currentValue"`
}

// Clone returns a deep copy of the variable.
func (v Variable) Clone() Variable {
	out := v
	out.DefaultValue = CloneValue(v.DefaultValue)
	out.CurrentValue = CloneValue(v.CurrentValue)
	return out
}

// Operator compares a variable value against a rule value.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// ActionType is the kind of a condition rule action.
type ActionType string

const (
	ActionGoToState   ActionType = "goToState"
	ActionSetVariable ActionType = "setVariable"
	ActionSetProperty ActionType = "setProperty"
)

// Action is one step executed when a condition rule matches.
type Action struct {
	Type       ActionType  `json:"type"`
	KeyframeID string      `json:"keyframeId,omitempty"`
	VariableID string      `json:"variableId,omitempty"`
	ElementID  string      `json:"elementId,omitempty"`
	Property   string      `json:"property,omitempty"`
	Value      interface{} `json:"value"`
}

// ConditionRule fires its actions when a variable comparison holds.
type ConditionRule struct {
	ID         string      `json:"id"`
	VariableID string      `json:"variableId"`
	Operator   Operator    `json:"operator"`
	Value      interface{} `json:"value"`
	Actions    []Action    `json:"actions"`
}

// Clone returns a deep copy of the rule.
func (r ConditionRule) Clone() ConditionRule {
	out := r
	out.Value = CloneValue(r.Value)
	out.Actions = cloneSlice(r.Actions, func(a Action) Action {
		a.Value = CloneValue(a.Value)
		return a
	})
	return out
}

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	ID          string `json:"id"`
	FromPatchID string `json:"fromPatchId"`
	FromPortID  string `json:"fromPortId"`
	ToPatchID   string `json:"toPatchId"`
	ToPortID    string `json:"toPortId"`
}

// FrameSize is the prototype viewport size.
type FrameSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Project is the complete authored state of a prototype.
type Project struct {
	Keyframes        []Keyframe      `json:"keyframes"`
	Transitions      []Transition    `json:"transitions"`
	DisplayStates    []DisplayState  `json:"displayStates"`
	Patches          []Patch         `json:"patches"`
	PatchConnections []Connection    `json:"patchConnections"`
	Variables        []Variable      `json:"variables"`
	ConditionRules   []ConditionRule `json:"conditionRules"`
	SharedElements   []Element       `json:"sharedElements"`
	Components       []Component     `json:"components,omitempty"`
	FrameSize        FrameSize       `json:"frameSize"`
	CanvasBackground string          `json:"canvasBackground"`
}

// Clone returns a deep copy of the project. Nil collections stay nil.
func (p *Project) Clone() *Project {
	return &Project{
		Keyframes:        cloneSlice(p.Keyframes, nil),
		Transitions:      cloneSlice(p.Transitions, Transition.Clone),
		DisplayStates:    cloneSlice(p.DisplayStates, DisplayState.Clone),
		Patches:          cloneSlice(p.Patches, Patch.Clone),
		PatchConnections: cloneSlice(p.PatchConnections, nil),
		Variables:        cloneSlice(p.Variables, Variable.Clone),
		ConditionRules:   cloneSlice(p.ConditionRules, ConditionRule.Clone),
		SharedElements:   cloneSlice(p.SharedElements, Element.Clone),
		Components:       cloneSlice(p.Components, Component.Clone),
		FrameSize:        p.FrameSize,
		CanvasBackground: p.CanvasBackground,
	}
}

// cloneSlice copies s element-wise, preserving nil.
func cloneSlice[T interface{}](s []T, deep func(T) T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	for i, v := range s {
		if deep != nil {
			v = deep(v)
		}
		out[i] = v
	}
	return out
}

// Normalize replaces nil collections with empty ones so the encoded form
// always carries arrays.
func (p *Project) Normalize() {
	if p.Keyframes == nil {
		p.Keyframes = []Keyframe{}
	}
	if p.Transitions == nil {
		p.Transitions = []Transition{}
	}
	if p.DisplayStates == nil {
		p.DisplayStates = []DisplayState{}
	}
	if p.Patches == nil {
		p.Patches = []Patch{}
	}
	if p.PatchConnections == nil {
		p.PatchConnections = []Connection{}
	}
	if p.Variables == nil {
		p.Variables = []Variable{}
	}
	if p.ConditionRules == nil {
		p.ConditionRules = []ConditionRule{}
	}
	if p.SharedElements == nil {
		p.SharedElements = []Element{}
	}
}

// FindPatch returns the patch with the given id.
func (p *Project) FindPatch(id string) *Patch {
	for i := range p.Patches {
		if p.Patches[i].ID == id {
			return &p.Patches[i]
		}
	}
	return nil
}

// FindKeyframe returns the keyframe with the given id.
func (p *Project) FindKeyframe(id string) *Keyframe {
	for i := range p.Keyframes {
		if p.Keyframes[i].ID == id {
			return &p.Keyframes[i]
		}
	}
	return nil
}

// FindDisplayState returns the display state with the given id.
func (p *Project) FindDisplayState(id string) *DisplayState {
	for i := range p.DisplayStates {
		if p.DisplayStates[i].ID == id {
			return &p.DisplayStates[i]
		}
	}
	return nil
}

// FindVariable returns the variable with the given id.
func (p *Project) FindVariable(id string) *Variable {
	for i := range p.Variables {
		if p.Variables[i].ID == id {
			return &p.Variables[i]
		}
	}
	return nil
}

// FindTransition returns the transition with the given id.
func (p *Project) FindTransition(id string) *Transition {
	for i := range p.Transitions {
		if p.Transitions[i].ID == id {
			return &p.Transitions[i]
		}
	}
	return nil
}
