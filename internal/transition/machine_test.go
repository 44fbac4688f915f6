package transition

import (
	"testing"
	"time"

	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/scheduler"
)

type enterCall struct {
	keyframe     string
	transitionID string
}

type fakeHost struct {
	proj    *model.Project
	entered []enterCall
}

func (h *fakeHost) Project() *model.Project { return h.proj }

func (h *fakeHost) Enter(kf model.Keyframe, t *model.Transition) {
	call := enterCall{keyframe: kf.ID}
	if t != nil {
		call.transitionID = t.ID
	}
	h.entered = append(h.entered, call)
}

func twoKeyframes(transitions ...model.Transition) *fakeHost {
	return &fakeHost{proj: &model.Project{
		Keyframes: []model.Keyframe{
			{ID: "kf-a", DisplayStateID: "ds-a"},
			{ID: "kf-b", DisplayStateID: "ds-b"},
		},
		Transitions: transitions,
	}}
}

func TestStartEntersFirstKeyframe(t *testing.T) {
	h := twoKeyframes()
	m := NewMachine(h, scheduler.NewManual())
	m.Start()
	if m.Current() != "kf-a" {
		t.Fatalf("expected kf-a, got %q", m.Current())
	}
	if len(h.entered) != 1 || h.entered[0].transitionID != "" {
		t.Errorf("expected one jump enter, got %+v", h.entered)
	}
}

func TestStartWithoutKeyframesIsIdle(t *testing.T) {
	m := NewMachine(&fakeHost{proj: &model.Project{}}, scheduler.NewManual())
	m.Start()
	if m.Current() != "" {
		t.Errorf("expected idle machine, got %q", m.Current())
	}
	if m.Handle(Trigger{Type: model.TriggerTap}) {
		t.Error("idle machine should not fire")
	}
}

func TestTapFiresFirstDeclared(t *testing.T) {
	h := twoKeyframes(
		model.Transition{ID: "t1", From: "kf-a", To: "kf-b", Trigger: model.TriggerDescriptor{Type: model.TriggerTap}},
		model.Transition{ID: "t2", From: "kf-a", To: "kf-a", Trigger: model.TriggerDescriptor{Type: model.TriggerTap}},
	)
	m := NewMachine(h, scheduler.NewManual())
	m.Start()

	if len(m.Ambiguities()) != 1 {
		t.Errorf("expected one ambiguity, got %v", m.Ambiguities())
	}
	if !m.Handle(Trigger{Type: model.TriggerTap, ElementID: "button"}) {
		t.Fatal("expected tap to fire")
	}
	if m.Current() != "kf-b" {
		t.Errorf("expected kf-b, got %q", m.Current())
	}
	if last := h.entered[len(h.entered)-1]; last.transitionID != "t1" {
		t.Errorf("expected t1 to win, got %q", last.transitionID)
	}
}

func TestElementFilter(t *testing.T) {
	h := twoKeyframes(model.Transition{
		ID: "t1", From: "kf-a", To: "kf-b",
		Trigger: model.TriggerDescriptor{Type: model.TriggerTap, ElementID: "card"},
	})
	m := NewMachine(h, scheduler.NewManual())
	m.Start()

	if m.Handle(Trigger{Type: model.TriggerTap, ElementID: "other"}) {
		t.Error("tap on other element should not fire")
	}
	if !m.Handle(Trigger{Type: model.TriggerTap, ElementID: "card"}) {
		t.Error("tap on card should fire")
	}
}

func TestDragThresholdAndDirection(t *testing.T) {
	h := twoKeyframes(model.Transition{
		ID: "t1", From: "kf-a", To: "kf-b",
		Trigger: model.TriggerDescriptor{Type: model.TriggerDrag, Direction: "left", Threshold: 50},
	})
	m := NewMachine(h, scheduler.NewManual())
	m.Start()

	if m.Handle(DragTrigger("", -30, 5)) {
		t.Error("drag below threshold should not fire")
	}
	if m.Handle(DragTrigger("", 80, 0)) {
		t.Error("drag in wrong direction should not fire")
	}
	if !m.Handle(DragTrigger("", -80, 10)) {
		t.Error("long left drag should fire")
	}
}

func TestScrollTrigger(t *testing.T) {
	tr := ScrollTrigger("list", -120)
	if tr.Direction != "up" || tr.Distance != 120 {
		t.Errorf("unexpected scroll trigger %+v", tr)
	}
}

func TestTimerTransitionArmedOnEntry(t *testing.T) {
	h := twoKeyframes(
		model.Transition{ID: "auto", From: "kf-a", To: "kf-b", Trigger: model.TriggerDescriptor{Type: model.TriggerTimer, TimerDelay: 500}},
		model.Transition{ID: "back", From: "kf-b", To: "kf-a", Trigger: model.TriggerDescriptor{Type: model.TriggerTap}},
	)
	sched := scheduler.NewManual()
	m := NewMachine(h, sched)
	m.Start()

	sched.Advance(499 * time.Millisecond)
	if m.Current() != "kf-a" {
		t.Fatalf("timer fired early")
	}
	sched.Advance(time.Millisecond)
	if m.Current() != "kf-b" {
		t.Fatalf("expected timer transition at 500ms, got %q", m.Current())
	}
	if m.Handle(Trigger{Type: model.TriggerTimer}) {
		t.Error("external timer triggers should be ignored")
	}
}

func TestTimerCancelledOnLeave(t *testing.T) {
	h := &fakeHost{proj: &model.Project{
		Keyframes: []model.Keyframe{{ID: "kf-a"}, {ID: "kf-b"}, {ID: "kf-c"}},
		Transitions: []model.Transition{
			{ID: "auto", From: "kf-a", To: "kf-b", Trigger: model.TriggerDescriptor{Type: model.TriggerTimer, TimerDelay: 500}},
			{ID: "tap", From: "kf-a", To: "kf-c", Trigger: model.TriggerDescriptor{Type: model.TriggerTap}},
		},
	}}
	sched := scheduler.NewManual()
	m := NewMachine(h, sched)
	m.Start()

	m.Handle(Trigger{Type: model.TriggerTap})
	sched.Advance(time.Second)
	if m.Current() != "kf-c" {
		t.Errorf("expected timer cancelled after leaving kf-a, got %q", m.Current())
	}
	if sched.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", sched.Pending())
	}
}

func TestVariableTrigger(t *testing.T) {
	h := twoKeyframes(model.Transition{
		ID: "t1", From: "kf-a", To: "kf-b",
		Trigger: model.TriggerDescriptor{Type: model.TriggerVariable, VariableID: "v1"},
	})
	m := NewMachine(h, scheduler.NewManual())
	m.Start()

	if m.Handle(Trigger{Type: model.TriggerVariable, VariableID: "v2"}) {
		t.Error("other variable should not fire")
	}
	if !m.Handle(Trigger{Type: model.TriggerVariable, VariableID: "v1"}) {
		t.Error("bound variable should fire")
	}
}

func TestGoTo(t *testing.T) {
	h := &fakeHost{proj: &model.Project{
		Keyframes: []model.Keyframe{{ID: "kf-a"}, {ID: "kf-b"}, {ID: "kf-c"}},
		Transitions: []model.Transition{
			{ID: "ab", From: "kf-a", To: "kf-b", Trigger: model.TriggerDescriptor{Type: model.TriggerTap}},
		},
	}}
	m := NewMachine(h, scheduler.NewManual())
	m.Start()

	if err := m.GoTo("kf-b"); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if last := h.entered[len(h.entered)-1]; last.transitionID != "ab" {
		t.Errorf("expected GoTo to use declared transition, got %+v", last)
	}

	if err := m.GoTo("kf-c"); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if last := h.entered[len(h.entered)-1]; last.keyframe != "kf-c" || last.transitionID != "" {
		t.Errorf("expected jump to kf-c, got %+v", last)
	}

	if err := m.GoTo("missing"); err == nil {
		t.Error("expected error for unknown keyframe")
	}
}

func TestDanglingTargetIsInert(t *testing.T) {
	h := twoKeyframes(model.Transition{
		ID: "t1", From: "kf-a", To: "gone",
		Trigger: model.TriggerDescriptor{Type: model.TriggerTap},
	})
	m := NewMachine(h, scheduler.NewManual())
	m.Start()
	if m.Handle(Trigger{Type: model.TriggerTap}) {
		t.Error("transition to missing keyframe should not fire")
	}
	if m.Current() != "kf-a" {
		t.Errorf("expected to stay on kf-a, got %q", m.Current())
	}
}
