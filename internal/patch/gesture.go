package patch

import (
	"fmt"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/value"
)

// Translation is a drag sample relative to where the drag started.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GestureKind is a discrete input event delivered by the preview surface.
type GestureKind string

const (
	GestureTap        GestureKind = "tap"
	GestureDoubleTap  GestureKind = "doubleTap"
	GestureLongPress  GestureKind = "longPress"
	GestureDragStart  GestureKind = "dragStart"
	GestureDragMove   GestureKind = "dragMove"
	GestureDragEnd    GestureKind = "dragEnd"
	GestureHoverEnter GestureKind = "hoverEnter"
	GestureHoverLeave GestureKind = "hoverLeave"
	GestureScroll     GestureKind = "scroll"
)

// Gesture is one input event aimed at an element.
type Gesture struct {
	Kind        GestureKind `json:"kind"`
	ElementID   string      `json:"elementId,omitempty"`
	Translation Translation `json:"translation"`
	Offset      float64     `json:"offset,omitempty"`
}

// PatchType returns the trigger patch type that listens for k.
func (k GestureKind) PatchType() model.PatchType {
	switch k {
	case GestureTap:
		return model.PatchTap
	case GestureDoubleTap:
		return model.PatchDoubleTap
	case GestureLongPress:
		return model.PatchLongPress
	case GestureDragStart, GestureDragMove, GestureDragEnd:
		return model.PatchDrag
	case GestureHoverEnter, GestureHoverLeave:
		return model.PatchHover
	case GestureScroll:
		return model.PatchScroll
	}
	return ""
}

// Validate reports whether g names a known gesture kind.
func (g Gesture) Validate() error {
	if g.Kind.PatchType() == "" {
		return fmt.Errorf("unknown gesture kind: %q", g.Kind)
	}
	return nil
}

// outputs lists the emissions a matching trigger patch makes, in order.
// Value outputs precede the pulse so downstream patches see fresh data.
func (g Gesture) outputs() []Emission {
	switch g.Kind {
	case GestureTap:
		return []Emission{{PortID: "onTap"}}
	case GestureDoubleTap:
		return []Emission{{PortID: "onDoubleTap"}}
	case GestureLongPress:
		return []Emission{{PortID: "onLongPress"}}
	case GestureDragStart:
		return []Emission{{PortID: "translation", Signal: Signal{Value: g.Translation}}, {PortID: "onDragStart"}}
	case GestureDragMove:
		return []Emission{{PortID: "translation", Signal: Signal{Value: g.Translation}}, {PortID: "onDrag"}}
	case GestureDragEnd:
		return []Emission{{PortID: "translation", Signal: Signal{Value: g.Translation}}, {PortID: "onDragEnd"}}
	case GestureHoverEnter:
		return []Emission{{PortID: "isHovering", Signal: Signal{Value: true}}, {PortID: "onEnter"}}
	case GestureHoverLeave:
		return []Emission{{PortID: "isHovering", Signal: Signal{Value: false}}, {PortID: "onLeave"}}
	case GestureScroll:
		return []Emission{{PortID: "offset", Signal: Signal{Value: g.Offset}}, {PortID: "onScroll"}}
	}
	return nil
}

// Gesture fires every trigger patch whose type matches g and whose target
// element is unset or equal to g.ElementID. The outputs of one patch share
// a propagation pass. It returns the number of patches fired.
func (e *Engine) Gesture(g Gesture) int {
	want := g.Kind.PatchType()
	if want == "" {
		return 0
	}

	proj := e.host.Project()
	var matched []string
	for i := range proj.Patches {
		pt := &proj.Patches[i]
		if pt.Type != want {
			continue
		}
		if cfg, ok := pt.Config.(model.GestureConfig); ok && cfg.TargetElementID != "" && cfg.TargetElementID != g.ElementID {
			continue
		}
		matched = append(matched, pt.ID)
	}

	events.Emit("debug", "gesture.received", "", map[string]interface{}{
		"kind":       string(g.Kind),
		"element_id": g.ElementID,
		"matched":    len(matched),
	})

	outs := g.outputs()
	for _, id := range matched {
		e.within(func(ps *pass) {
			for _, out := range outs {
				e.emit(ps, id, out.PortID, out.Signal)
			}
		})
	}
	return len(matched)
}

// toTranslation reads a drag sample from a signal value. Bare numbers
// apply to both axes.
func toTranslation(v interface{}) Translation {
	switch t := v.(type) {
	case Translation:
		return t
	case *Translation:
		if t != nil {
			return *t
		}
	case map[string]interface{}:
		x, _ := value.Number(t["x"])
		y, _ := value.Number(t["y"])
		return Translation{X: x, Y: y}
	default:
		if n, ok := value.Number(v); ok {
			return Translation{X: n, Y: n}
		}
	}
	return Translation{}
}
