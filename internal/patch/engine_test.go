package patch

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/AaronLay10/protoflow/internal/graph"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/scheduler"
)

type fakeHost struct {
	proj     *model.Project
	active   string
	switches []string
	vars     map[string]interface{}
	anims    []interface{}
	failVar  error
	// onSet runs after a successful variable write.
	onSet    func(id string, v interface{})
}

func (h *fakeHost) Project() *model.Project { return h.proj }
func (h *fakeHost) ActiveDisplayState() string { return h.active }

func (h *fakeHost) SwitchDisplayState(id string) error {
	h.active = id
	h.switches = append(h.switches, id)
	return nil
}

func (h *fakeHost) SetVariable(id string, v interface{}) error {
	if h.failVar != nil {
		return h.failVar
	}
	h.vars[id] = v
	if h.onSet != nil {
		h.onSet(id, v)
	}
	return nil
}

func (h *fakeHost) AnimateProperty(patchID string, cfg model.AnimatePropertyConfig, to interface{}) error {
	h.anims = append(h.anims, to)
	return nil
}

func mk(typ model.PatchType, id string, cfg model.PatchConfig) model.Patch {
	pt := graph.NewPatch(typ, model.Position{})
	pt.ID = id
	if cfg != nil {
		pt.Config = cfg
	}
	return pt
}

// link is fromPatch, fromPort, toPatch, toPort.
type link [4]string

func newHost(t *testing.T, patches []model.Patch, links ...link) *fakeHost {
	t.Helper()
	p := &model.Project{}
	p.Normalize()
	for _, pt := range patches {
		p = graph.AddPatch(p, pt)
	}
	for _, l := range links {
		var err error
		p, _, err = graph.Connect(p, graph.Endpoint{PatchID: l[0], PortID: l[1]}, graph.Endpoint{PatchID: l[2], PortID: l[3]})
		if err != nil {
			t.Fatalf("connect %v: %v", l, err)
		}
	}
	return &fakeHost{proj: p, vars: make(map[string]interface{})}
}

// record collects emissions from one patch.
func record(e *Engine, patchID string) *[]Emission {
	var out []Emission
	e.OnEmit(func(em Emission) {
		if em.PatchID == patchID {
			out = append(out, em)
		}
	})
	return &out
}

func ports(ems []Emission) []string {
	var out []string
	for _, em := range ems {
		out = append(out, em.PortID)
	}
	return out
}

func TestToggleAlternates(t *testing.T) {
	h := newHost(t, []model.Patch{mk(model.PatchToggle, "tg", nil)})
	e := NewEngine(h, scheduler.NewManual(), 0)
	got := record(e, "tg")

	for i := 0; i < 3; i++ {
		e.Deliver("tg", "trigger", Pulse)
	}

	want := []string{"on", "state", "off", "state", "on", "state"}
	if !reflect.DeepEqual(ports(*got), want) {
		t.Fatalf("expected %v, got %v", want, ports(*got))
	}
	if (*got)[3].Signal.Value != false {
		t.Errorf("expected state false after second pulse, got %v", (*got)[3].Signal.Value)
	}
}

func TestToggleInitialState(t *testing.T) {
	h := newHost(t, []model.Patch{mk(model.PatchToggle, "tg", model.ToggleConfig{Initial: true})})
	e := NewEngine(h, scheduler.NewManual(), 0)
	got := record(e, "tg")

	e.Deliver("tg", "trigger", Pulse)
	if (*got)[0].PortID != "off" {
		t.Errorf("expected off from initially-on toggle, got %s", (*got)[0].PortID)
	}
}

func TestCounterClampsAndResets(t *testing.T) {
	h := newHost(t, []model.Patch{mk(model.PatchCounter, "ct", model.CounterConfig{Step: 1, Min: 0, Max: 3})})
	e := NewEngine(h, scheduler.NewManual(), 0)
	got := record(e, "ct")

	for i := 0; i < 5; i++ {
		e.Deliver("ct", "increment", Pulse)
	}
	var counts []interface{}
	for _, em := range *got {
		counts = append(counts, em.Signal.Value)
	}
	want := []interface{}{1.0, 2.0, 3.0, 3.0, 3.0}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("expected %v, got %v", want, counts)
	}

	e.Deliver("ct", "reset", Pulse)
	last := (*got)[len(*got)-1]
	if last.Signal.Value != 0.0 {
		t.Errorf("expected 0 after reset, got %v", last.Signal.Value)
	}

	e.Deliver("ct", "decrement", Pulse)
	last = (*got)[len(*got)-1]
	if last.Signal.Value != 0.0 {
		t.Errorf("expected decrement to clamp at min, got %v", last.Signal.Value)
	}
}

func TestDelayRetriggerRestarts(t *testing.T) {
	h := newHost(t, []model.Patch{mk(model.PatchDelay, "dl", model.DelayConfig{Delay: 100})})
	sched := scheduler.NewManual()
	e := NewEngine(h, sched, 0)

	var firedAt []time.Duration
	e.OnEmit(func(em Emission) {
		if em.PatchID == "dl" && em.PortID == "output" {
			firedAt = append(firedAt, sched.Now())
		}
	})

	e.Deliver("dl", "trigger", Pulse)
	sched.Advance(50 * time.Millisecond)
	e.Deliver("dl", "trigger", Signal{Value: "second"})
	sched.Advance(500 * time.Millisecond)

	if len(firedAt) != 1 {
		t.Fatalf("expected exactly one output, got %d", len(firedAt))
	}
	if firedAt[0] != 150*time.Millisecond {
		t.Errorf("expected output at 150ms, got %v", firedAt[0])
	}
}

func TestDelayCarriesValue(t *testing.T) {
	h := newHost(t, []model.Patch{mk(model.PatchDelay, "dl", model.DelayConfig{Delay: 10})})
	sched := scheduler.NewManual()
	e := NewEngine(h, sched, 0)
	got := record(e, "dl")

	e.Deliver("dl", "trigger", Signal{Value: 7.0})
	sched.Advance(10 * time.Millisecond)
	if len(*got) != 1 || (*got)[0].Signal.Value != 7.0 {
		t.Fatalf("expected delayed value 7, got %v", *got)
	}
}

func TestTapSwitchesDisplayStateAndReverts(t *testing.T) {
	h := newHost(t,
		[]model.Patch{
			mk(model.PatchTap, "tap", nil),
			mk(model.PatchSwitchDisplayState, "sw", model.SwitchDisplayStateConfig{
				TargetDisplayStateID: "ds-pressed",
				AutoReverse:          true,
				ReverseDelay:         300,
			}),
		},
		link{"tap", "onTap", "sw", "trigger"},
	)
	h.active = "ds-default"
	sched := scheduler.NewManual()
	e := NewEngine(h, sched, 0)

	if n := e.Gesture(Gesture{Kind: GestureTap, ElementID: "button"}); n != 1 {
		t.Fatalf("expected one tap patch fired, got %d", n)
	}
	if h.active != "ds-pressed" {
		t.Fatalf("expected ds-pressed after tap, got %q", h.active)
	}

	sched.AdvanceTo(299 * time.Millisecond)
	if h.active != "ds-pressed" {
		t.Fatalf("reverted too early: %q", h.active)
	}
	sched.AdvanceTo(300 * time.Millisecond)
	if h.active != "ds-default" {
		t.Errorf("expected ds-default at 300ms, got %q", h.active)
	}
}

func TestAutoReverseRetriggerKeepsOriginalState(t *testing.T) {
	h := newHost(t, []model.Patch{
		mk(model.PatchSwitchDisplayState, "sw", model.SwitchDisplayStateConfig{
			TargetDisplayStateID: "ds-b",
			AutoReverse:          true,
			ReverseDelay:         100,
		}),
	})
	h.active = "ds-a"
	sched := scheduler.NewManual()
	e := NewEngine(h, sched, 0)

	e.Deliver("sw", "trigger", Pulse)
	sched.Advance(60 * time.Millisecond)
	e.Deliver("sw", "trigger", Pulse)
	sched.Advance(60 * time.Millisecond)
	if h.active != "ds-b" {
		t.Fatalf("expected reversion to restart, got %q", h.active)
	}
	sched.Advance(40 * time.Millisecond)
	if h.active != "ds-a" {
		t.Errorf("expected revert to ds-a, got %q", h.active)
	}
}

func TestGestureTargetFiltering(t *testing.T) {
	h := newHost(t, []model.Patch{
		mk(model.PatchTap, "any", nil),
		mk(model.PatchTap, "only-card", model.GestureConfig{TargetElementID: "card"}),
		mk(model.PatchHover, "hover", nil),
	})
	e := NewEngine(h, scheduler.NewManual(), 0)

	if n := e.Gesture(Gesture{Kind: GestureTap, ElementID: "button"}); n != 1 {
		t.Errorf("expected 1 patch for button tap, got %d", n)
	}
	if n := e.Gesture(Gesture{Kind: GestureTap, ElementID: "card"}); n != 2 {
		t.Errorf("expected 2 patches for card tap, got %d", n)
	}
	if n := e.Gesture(Gesture{Kind: "pinch"}); n != 0 {
		t.Errorf("expected unknown gesture to fire nothing, got %d", n)
	}
}

func TestCycleIsSkipped(t *testing.T) {
	h := newHost(t,
		[]model.Patch{
			mk(model.PatchCondition, "c1", nil),
			mk(model.PatchCondition, "c2", nil),
		},
		link{"c1", "true", "c2", "value"},
		link{"c2", "false", "c1", "value"},
	)
	e := NewEngine(h, scheduler.NewManual(), 0)
	got := record(e, "c1")

	e.Deliver("c1", "value", Signal{Value: true})

	if e.CycleCount() != 1 {
		t.Errorf("expected one skipped revisit, got %d", e.CycleCount())
	}
	if len(*got) != 1 {
		t.Errorf("expected c1 to evaluate once, got %v", ports(*got))
	}
}

func TestVariableWriteLoopIsSkipped(t *testing.T) {
	h := newHost(t,
		[]model.Patch{
			mk(model.PatchVariableChange, "watch", model.VariableChangeConfig{VariableID: "v"}),
			mk(model.PatchSetVariable, "set", model.SetVariableConfig{VariableID: "v", Value: 1.0}),
		},
		link{"watch", "onChange", "set", "trigger"},
	)
	e := NewEngine(h, scheduler.NewManual(), 0)
	// Every write is reported as a change, so only the visited set can
	// stop the loop.
	h.onSet = func(id string, v interface{}) { e.VariableChanged(id, v) }
	done := record(e, "set")

	e.VariableChanged("v", 5.0)

	if h.vars["v"] != 1.0 {
		t.Errorf("expected v=1, got %v", h.vars["v"])
	}
	if e.CycleCount() != 1 {
		t.Errorf("expected one skipped revisit, got %d", e.CycleCount())
	}
	if len(*done) != 1 {
		t.Errorf("expected set to run once, got %v", ports(*done))
	}
}

func TestGestureOutputsShareOnePass(t *testing.T) {
	h := newHost(t,
		[]model.Patch{
			mk(model.PatchDrag, "drag", nil),
			mk(model.PatchCondition, "c", nil),
		},
		link{"drag", "translation", "c", "value"},
		link{"drag", "onDrag", "c", "value"},
	)
	e := NewEngine(h, scheduler.NewManual(), 0)
	got := record(e, "c")

	e.Gesture(Gesture{Kind: GestureDragMove, ElementID: "box", Translation: Translation{X: 4}})

	if len(*got) != 1 {
		t.Errorf("expected c to evaluate once per gesture, got %v", ports(*got))
	}
	if e.CycleCount() != 1 {
		t.Errorf("expected the pulse to be skipped, got %d cycles", e.CycleCount())
	}

	// A second gesture is a new pass.
	e.Gesture(Gesture{Kind: GestureDragMove, ElementID: "box", Translation: Translation{X: 8}})
	if len(*got) != 2 {
		t.Errorf("expected c to evaluate again, got %v", ports(*got))
	}
}

func TestConditionCompare(t *testing.T) {
	limit := 5.0
	h := newHost(t, []model.Patch{
		mk(model.PatchCondition, "c", model.ConditionConfig{Operator: model.OpGreater, CompareTo: &limit}),
	})
	e := NewEngine(h, scheduler.NewManual(), 0)
	got := record(e, "c")

	e.Deliver("c", "value", Signal{Value: 7.0})
	e.Deliver("c", "value", Signal{Value: 2.0})
	if !reflect.DeepEqual(ports(*got), []string{"true", "false"}) {
		t.Errorf("expected true,false got %v", ports(*got))
	}
}

func TestSetVariableUsesLatchedValue(t *testing.T) {
	h := newHost(t, []model.Patch{
		mk(model.PatchSetVariable, "sv", model.SetVariableConfig{VariableID: "v1", Value: "config"}),
	})
	e := NewEngine(h, scheduler.NewManual(), 0)

	e.Deliver("sv", "trigger", Pulse)
	if h.vars["v1"] != "config" {
		t.Fatalf("expected config value, got %v", h.vars["v1"])
	}
	e.Deliver("sv", "value", Signal{Value: 42.0})
	e.Deliver("sv", "trigger", Pulse)
	if h.vars["v1"] != 42.0 {
		t.Errorf("expected latched value 42, got %v", h.vars["v1"])
	}
}

func TestSetVariableFailureDoesNotEmitDone(t *testing.T) {
	h := newHost(t, []model.Patch{
		mk(model.PatchSetVariable, "sv", model.SetVariableConfig{VariableID: "missing"}),
	})
	h.failVar = errors.New("unknown variable")
	e := NewEngine(h, scheduler.NewManual(), 0)
	got := record(e, "sv")

	e.Deliver("sv", "trigger", Pulse)
	if len(*got) != 0 {
		t.Errorf("expected no emissions on failure, got %v", ports(*got))
	}
}

func TestTimerOneShotAndRepeat(t *testing.T) {
	h := newHost(t, []model.Patch{
		mk(model.PatchTimer, "once", model.TimerConfig{Duration: 100, AutoStart: true}),
		mk(model.PatchTimer, "loop", model.TimerConfig{Duration: 100, Repeat: true}),
	})
	sched := scheduler.NewManual()
	e := NewEngine(h, sched, 0)
	once := record(e, "once")
	loop := record(e, "loop")

	e.Start()
	e.Deliver("loop", "start", Pulse)
	sched.Advance(350 * time.Millisecond)

	if len(*once) != 1 {
		t.Errorf("expected one-shot timer to fire once, got %d", len(*once))
	}
	if len(*loop) != 3 {
		t.Errorf("expected repeating timer to fire 3 times, got %d", len(*loop))
	}

	e.Deliver("loop", "stop", Pulse)
	sched.Advance(time.Second)
	if len(*loop) != 3 {
		t.Errorf("expected stop to cancel repeating timer, got %d fires", len(*loop))
	}
}

func TestOptionSwitchWraps(t *testing.T) {
	h := newHost(t, []model.Patch{
		mk(model.PatchOptionSwitch, "os", model.OptionSwitchConfig{Options: []string{"a", "b", "c"}}),
	})
	e := NewEngine(h, scheduler.NewManual(), 0)
	got := record(e, "os")

	e.Deliver("os", "previous", Pulse)
	if (*got)[1].Signal.Value != "c" {
		t.Fatalf("expected wrap to c, got %v", (*got)[1].Signal.Value)
	}
	e.Deliver("os", "select", Signal{Value: 9.0})
	if len(*got) != 5 {
		t.Fatalf("expected select without change to skip changed, got %v", ports(*got))
	}
	if idx := (*got)[3]; idx.Signal.Value != 2.0 {
		t.Errorf("expected select to clamp to 2, got %v", idx.Signal.Value)
	}
}

func TestDragBindingClamps(t *testing.T) {
	h := newHost(t,
		[]model.Patch{
			mk(model.PatchDrag, "drag", nil),
			mk(model.PatchDragBinding, "db", model.DragBindingConfig{Axis: "y", Multiplier: 2, Min: 0, Max: 50}),
		},
		link{"drag", "translation", "db", "translation"},
	)
	e := NewEngine(h, scheduler.NewManual(), 0)
	got := record(e, "db")

	e.Gesture(Gesture{Kind: GestureDragMove, Translation: Translation{X: 1, Y: 10}})
	e.Gesture(Gesture{Kind: GestureDragMove, Translation: Translation{X: 1, Y: 40}})
	if len(*got) != 2 || (*got)[0].Signal.Value != 20.0 || (*got)[1].Signal.Value != 50.0 {
		t.Errorf("expected 20 then 50, got %v", *got)
	}
}

func TestActiveHighlightWindow(t *testing.T) {
	h := newHost(t, []model.Patch{
		mk(model.PatchTap, "tap", nil),
		mk(model.PatchDelay, "dl", model.DelayConfig{Delay: 1000}),
	})
	sched := scheduler.NewManual()
	e := NewEngine(h, sched, 200*time.Millisecond)

	e.Gesture(Gesture{Kind: GestureTap})
	e.Deliver("dl", "trigger", Pulse)
	if got := e.Active(); !reflect.DeepEqual(got, []string{"dl", "tap"}) {
		t.Fatalf("expected dl and tap active, got %v", got)
	}

	sched.Advance(300 * time.Millisecond)
	if got := e.Active(); !reflect.DeepEqual(got, []string{"dl"}) {
		t.Errorf("expected only pending delay active, got %v", got)
	}
}

func TestPruneCancelsRemovedPatchTimers(t *testing.T) {
	h := newHost(t, []model.Patch{mk(model.PatchDelay, "dl", model.DelayConfig{Delay: 100})})
	sched := scheduler.NewManual()
	e := NewEngine(h, sched, 0)

	e.Deliver("dl", "trigger", Pulse)
	h.proj, _ = graph.RemovePatch(h.proj, "dl")
	e.Prune()
	if sched.Pending() != 0 {
		t.Errorf("expected pending timer cancelled, got %d", sched.Pending())
	}
}
