package model

import (
	"encoding/json"
	"fmt"
)

// PatchType identifies the behavior of a patch.
// Allowed types: tap, doubleTap, longPress, drag, hover, scroll, timer, variableChange,
// switchDisplayState, setVariable, animateProperty, condition, delay, toggle, counter,
// optionSwitch, dragBinding
type PatchType string

const (
	PatchTap            PatchType = "tap"
	PatchDoubleTap      PatchType = "doubleTap"
	PatchLongPress      PatchType = "longPress"
	PatchDrag           PatchType = "drag"
	PatchHover          PatchType = "hover"
	PatchScroll         PatchType = "scroll"
	PatchTimer          PatchType = "timer"
	PatchVariableChange PatchType = "variableChange"

	PatchSwitchDisplayState PatchType = "switchDisplayState"
	PatchSetVariable        PatchType = "setVariable"
	PatchAnimateProperty    PatchType = "animateProperty"

	PatchCondition    PatchType = "condition"
	PatchDelay        PatchType = "delay"
	PatchToggle       PatchType = "toggle"
	PatchCounter      PatchType = "counter"
	PatchOptionSwitch PatchType = "optionSwitch"
	PatchDragBinding  PatchType = "dragBinding"
)

// Category groups patch types by role in the graph.
type Category string

const (
	CategoryTrigger Category = "trigger"
	CategoryAction  Category = "action"
	CategoryLogic   Category = "logic"
)

// DataType is the type carried by a port.
type DataType string

const (
	DataPulse        DataType = "pulse"
	DataBoolean      DataType = "boolean"
	DataNumber       DataType = "number"
	DataString       DataType = "string"
	DataDisplayState DataType = "displayState"
	DataAny          DataType = "any"
)

// Port is a typed, named input or output on a patch.
type Port struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	DataType DataType `json:"dataType"`
}

// Position is the patch location on the graph canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Patch is a node in the interaction graph.
type Patch struct {
	ID       string      `json:"id"`
	Type     PatchType   `json:"type"`
	Name     string      `json:"name"`
	Position Position    `json:"position"`
	Config   PatchConfig `json:"config"`
	Inputs   []Port      `json:"inputs"`
	Outputs  []Port      `json:"outputs"`
}

// Input returns the input port with the given id.
func (p *Patch) Input(id string) (Port, bool) {
	for _, port := range p.Inputs {
		if port.ID == id {
			return port, true
		}
	}
	return Port{}, false
}

// Output returns the output port with the given id.
func (p *Patch) Output(id string) (Port, bool) {
	for _, port := range p.Outputs {
		if port.ID == id {
			return port, true
		}
	}
	return Port{}, false
}

// UnmarshalJSON decodes the config payload according to the patch type.
func (p *Patch) UnmarshalJSON(data []byte) error {
	type rawPatch struct {
		ID       string          `json:"id"`
		Type     PatchType       `json:"type"`
		Name     string          `json:"name"`
		Position Position        `json:"position"`
		Config   json.RawMessage `json:"config"`
		Inputs   []Port          `json:"inputs"`
		Outputs  []Port          `json:"outputs"`
	}
	var raw rawPatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cfg, err := DecodeConfig(raw.Type, raw.Config)
	if err != nil {
		return fmt.Errorf("patch %s: %w", raw.ID, err)
	}
	*p = Patch{
		ID:       raw.ID,
		Type:     raw.Type,
		Name:     raw.Name,
		Position: raw.Position,
		Config:   cfg,
		Inputs:   raw.Inputs,
		Outputs:  raw.Outputs,
	}
	return nil
}

// Clone returns a deep copy of the patch.
func (p Patch) Clone() Patch {
	out := p
	out.Inputs = cloneSlice(p.Inputs, nil)
	out.Outputs = cloneSlice(p.Outputs, nil)
	if p.Config != nil {
		out.Config = p.Config.clone()
	}
	return out
}

// PortSet is the fixed input/output layout of a patch type.
type PortSet struct {
	Category Category
	Inputs   []Port
	Outputs  []Port
}

func port(id, name string, dt DataType) Port {
	return Port{ID: id, Name: name, DataType: dt}
}

// PortTable is the fixed port layout keyed by patch type.
var PortTable = map[PatchType]PortSet{
	PatchTap: {
		Category: CategoryTrigger,
		Outputs:  []Port{port("onTap", "On Tap", DataPulse)},
	},
	PatchDoubleTap: {
		Category: CategoryTrigger,
		Outputs:  []Port{port("onDoubleTap", "On Double Tap", DataPulse)},
	},
	PatchLongPress: {
		Category: CategoryTrigger,
		Outputs:  []Port{port("onLongPress", "On Long Press", DataPulse)},
	},
	PatchDrag: {
		Category: CategoryTrigger,
		Outputs: []Port{
			port("onDragStart", "On Drag Start", DataPulse),
			port("onDrag", "On Drag", DataPulse),
			port("onDragEnd", "On Drag End", DataPulse),
			port("translation", "Translation", DataAny),
		},
	},
	PatchHover: {
		Category: CategoryTrigger,
		Outputs: []Port{
			port("onEnter", "On Enter", DataPulse),
			port("onLeave", "On Leave", DataPulse),
			port("isHovering", "Is Hovering", DataBoolean),
		},
	},
	PatchScroll: {
		Category: CategoryTrigger,
		Outputs: []Port{
			port("onScroll", "On Scroll", DataPulse),
			port("offset", "Offset", DataNumber),
		},
	},
	PatchTimer: {
		Category: CategoryTrigger,
		Inputs: []Port{
			port("start", "Start", DataPulse),
			port("stop", "Stop", DataPulse),
		},
		Outputs: []Port{port("onFire", "On Fire", DataPulse)},
	},
	PatchVariableChange: {
		Category: CategoryTrigger,
		Outputs: []Port{
			port("onChange", "On Change", DataPulse),
			port("value", "Value", DataAny),
		},
	},
	PatchSwitchDisplayState: {
		Category: CategoryAction,
		Inputs: []Port{
			port("trigger", "Trigger", DataPulse),
			port("target", "Target", DataDisplayState),
		},
		Outputs: []Port{
			port("done", "Done", DataPulse),
			port("activeState", "Active State", DataDisplayState),
		},
	},
	PatchSetVariable: {
		Category: CategoryAction,
		Inputs: []Port{
			port("trigger", "Trigger", DataPulse),
			port("value", "Value", DataAny),
		},
		Outputs: []Port{port("done", "Done", DataPulse)},
	},
	PatchAnimateProperty: {
		Category: CategoryAction,
		Inputs: []Port{
			port("trigger", "Trigger", DataPulse),
			port("toValue", "To Value", DataNumber),
		},
		Outputs: []Port{port("done", "Done", DataPulse)},
	},
	PatchCondition: {
		Category: CategoryLogic,
		Inputs:   []Port{port("value", "Value", DataBoolean)},
		Outputs: []Port{
			port("true", "True", DataPulse),
			port("false", "False", DataPulse),
		},
	},
	PatchDelay: {
		Category: CategoryLogic,
		Inputs:   []Port{port("trigger", "Trigger", DataPulse)},
		Outputs:  []Port{port("output", "Output", DataPulse)},
	},
	PatchToggle: {
		Category: CategoryLogic,
		Inputs:   []Port{port("trigger", "Trigger", DataPulse)},
		Outputs: []Port{
			port("on", "On", DataPulse),
			port("off", "Off", DataPulse),
			port("state", "State", DataBoolean),
		},
	},
	PatchCounter: {
		Category: CategoryLogic,
		Inputs: []Port{
			port("increment", "Increment", DataPulse),
			port("decrement", "Decrement", DataPulse),
			port("reset", "Reset", DataPulse),
		},
		Outputs: []Port{port("count", "Count", DataNumber)},
	},
	PatchOptionSwitch: {
		Category: CategoryLogic,
		Inputs: []Port{
			port("select", "Select", DataNumber),
			port("next", "Next", DataPulse),
			port("previous", "Previous", DataPulse),
		},
		Outputs: []Port{
			port("index", "Index", DataNumber),
			port("value", "Value", DataString),
			port("changed", "Changed", DataPulse),
		},
	},
	PatchDragBinding: {
		Category: CategoryLogic,
		Inputs:   []Port{port("translation", "Translation", DataAny)},
		Outputs:  []Port{port("value", "Value", DataNumber)},
	},
}

// CategoryOf returns the category of a patch type, or "" for unknown types.
func CategoryOf(t PatchType) Category {
	return PortTable[t].Category
}

// DefaultPorts returns fresh copies of the fixed ports for a patch type.
func DefaultPorts(t PatchType) (inputs, outputs []Port) {
	set := PortTable[t]
	inputs = append([]Port{}, set.Inputs...)
	outputs = append([]Port{}, set.Outputs...)
	return inputs, outputs
}
