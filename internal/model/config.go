package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// PatchConfig is the typed configuration payload of a patch.
// Each patch type has exactly one config struct.
type PatchConfig interface {
	clone() PatchConfig
}

// Millis converts a millisecond count from the project format to a duration.
func Millis(ms float64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// GestureConfig configures tap, doubleTap, longPress, drag, hover and scroll triggers.
// An empty TargetElementID matches gestures on any element.
type GestureConfig struct {
	TargetElementID string `json:"targetElementId,omitempty"`
}

func (c GestureConfig) clone() PatchConfig { return c }

// TimerConfig configures a timer trigger. Timers are one-shot unless Repeat is set.
type TimerConfig struct {
	Duration  float64 `json:"duration"`
	Repeat    bool    `json:"repeat,omitempty"`
	AutoStart bool    `json:"autoStart,omitempty"`
}

func (c TimerConfig) clone() PatchConfig { return c }

// VariableChangeConfig configures a variableChange trigger.
type VariableChangeConfig struct {
	VariableID string `json:"variableId"`
}

func (c VariableChangeConfig) clone() PatchConfig { return c }

type SwitchDisplayStateConfig struct {
	TargetDisplayStateID string  `json:"targetDisplayStateId"`
	AutoReverse          bool    `json:"autoReverse,omitempty"`
	ReverseDelay         float64 `json:"reverseDelay,omitempty"`
}

func (c SwitchDisplayStateConfig) clone() PatchConfig { return c }

type SetVariableConfig struct {
	VariableID string      `json:"variableId"`
	Value      interface{} `json:"value"`
}

func (c SetVariableConfig) clone() PatchConfig {
	c.Value = CloneValue(c.Value)
	return c
}

// AnimatePropertyConfig animates one element property. Timing comes from
// TransitionID when set, otherwise from the transition in flight.
type AnimatePropertyConfig struct {
	TargetElementID string      `json:"targetElementId"`
	Property        string      `json:"property"`
	ToValue         interface{} `json:"toValue"`
	TransitionID    string      `json:"transitionId,omitempty"`
}

func (c AnimatePropertyConfig) clone() PatchConfig {
	c.ToValue = CloneValue(c.ToValue)
	return c
}

// ConditionConfig optionally turns a numeric input into a boolean via Operator/CompareTo.
type ConditionConfig struct {
	Operator  Operator `json:"operator,omitempty"`
	CompareTo *float64 `json:"compareTo,omitempty"`
}

func (c ConditionConfig) clone() PatchConfig {
	if c.CompareTo != nil {
		v := *c.CompareTo
		c.CompareTo = &v
	}
	return c
}

type DelayConfig struct {
	Delay float64 `json:"delay"`
}

func (c DelayConfig) clone() PatchConfig { return c }

type ToggleConfig struct {
	Initial bool `json:"initial,omitempty"`
}

func (c ToggleConfig) clone() PatchConfig { return c }

type CounterConfig struct {
	Step float64 `json:"step"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

func (c CounterConfig) clone() PatchConfig { return c }

type OptionSwitchConfig struct {
	Options []string `json:"options"`
	Initial int      `json:"initial,omitempty"`
}

func (c OptionSwitchConfig) clone() PatchConfig {
	c.Options = cloneSlice(c.Options, nil)
	return c
}

// DragBindingConfig maps drag translation on Axis ("x" or "y") to a clamped value.
type DragBindingConfig struct {
	Axis       string  `json:"axis"`
	Multiplier float64 `json:"multiplier"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
}

func (c DragBindingConfig) clone() PatchConfig { return c }

// DefaultConfig returns the config a freshly created patch of type t carries.
func DefaultConfig(t PatchType) PatchConfig {
	switch t {
	case PatchTap, PatchDoubleTap, PatchLongPress, PatchDrag, PatchHover, PatchScroll:
		return GestureConfig{}
	case PatchTimer:
		return TimerConfig{Duration: 1000}
	case PatchVariableChange:
		return VariableChangeConfig{}
	case PatchSwitchDisplayState:
		return SwitchDisplayStateConfig{}
	case PatchSetVariable:
		return SetVariableConfig{}
	case PatchAnimateProperty:
		return AnimatePropertyConfig{}
	case PatchCondition:
		return ConditionConfig{}
	case PatchDelay:
		return DelayConfig{Delay: 500}
	case PatchToggle:
		return ToggleConfig{}
	case PatchCounter:
		return CounterConfig{Step: 1, Min: 0, Max: 10}
	case PatchOptionSwitch:
		return OptionSwitchConfig{Options: []string{}}
	case PatchDragBinding:
		return DragBindingConfig{Axis: "x", Multiplier: 1, Min: 0, Max: 100}
	default:
		return nil
	}
}

// DecodeConfig decodes a raw JSON config for the given patch type.
// Fields absent from raw keep their defaults.
func DecodeConfig(t PatchType, raw json.RawMessage) (PatchConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultConfig(t), nil
	}

	var err error
	switch c := DefaultConfig(t).(type) {
	case GestureConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case TimerConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case VariableChangeConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case SwitchDisplayStateConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case SetVariableConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case AnimatePropertyConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case ConditionConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case DelayConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case ToggleConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case CounterConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case OptionSwitchConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	case DragBindingConfig:
		err = json.Unmarshal(raw, &c)
		return c, wrapConfigErr(t, err)
	default:
		// Unknown patch types keep no config; the graph treats them as inert.
		return nil, nil
	}
}

func wrapConfigErr(t PatchType, err error) error {
	if err != nil {
		return fmt.Errorf("invalid %s config: %w", t, err)
	}
	return nil
}
