package store

import (
	"errors"
	"reflect"
	"testing"

	"github.com/AaronLay10/protoflow/internal/graph"
	"github.com/AaronLay10/protoflow/internal/model"
)

func seeded() *Store {
	return New(&model.Project{
		DisplayStates: []model.DisplayState{{ID: "ds-default", Name: "Default"}},
		Keyframes:     []model.Keyframe{{ID: "kf-a", DisplayStateID: "ds-default"}},
	}, DefaultDepth)
}

func TestUndoRedoRestoresSnapshots(t *testing.T) {
	s := seeded()

	var snapshots []*model.Project
	snapshots = append(snapshots, s.Project().Clone())

	tap, _ := s.AddPatch(model.PatchTap, model.Position{})
	snapshots = append(snapshots, s.Project().Clone())
	tg, _ := s.AddPatch(model.PatchToggle, model.Position{X: 100})
	snapshots = append(snapshots, s.Project().Clone())
	if _, err := s.Connect(graph.Endpoint{PatchID: tap.ID, PortID: "onTap"}, graph.Endpoint{PatchID: tg.ID, PortID: "trigger"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	snapshots = append(snapshots, s.Project().Clone())
	if _, err := s.AddVariable(model.Variable{ID: "v", Type: model.VarNumber, DefaultValue: "3"}); err != nil {
		t.Fatalf("AddVariable: %v", err)
	}
	after := s.Project().Clone()

	if !s.Undo() {
		t.Fatal("expected undo")
	}
	if !reflect.DeepEqual(s.Project(), snapshots[3]) {
		t.Errorf("undo did not restore the snapshot before the last op")
	}
	if !s.Redo() {
		t.Fatal("expected redo")
	}
	if !reflect.DeepEqual(s.Project(), after) {
		t.Errorf("redo did not restore the state after the last op")
	}

	for i := 3; i >= 0; i-- {
		s.Undo()
		if !reflect.DeepEqual(s.Project(), snapshots[i]) {
			t.Fatalf("undo step to snapshot %d mismatched", i)
		}
	}
	if s.Undo() {
		t.Error("expected nothing left to undo")
	}
}

func TestNewEditClearsRedo(t *testing.T) {
	s := seeded()
	s.AddPatch(model.PatchTap, model.Position{})
	s.Undo()
	s.AddPatch(model.PatchDelay, model.Position{})
	if s.Redo() {
		t.Error("expected redo cleared by new edit")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	s := New(&model.Project{DisplayStates: []model.DisplayState{{ID: "ds"}}}, 50)
	for i := 0; i < 60; i++ {
		s.AddPatch(model.PatchTap, model.Position{X: float64(i)})
	}
	undo, _ := s.History()
	if undo != 50 {
		t.Fatalf("expected 50 undo steps, got %d", undo)
	}
	for s.Undo() {
	}
	if len(s.Project().Patches) != 10 {
		t.Errorf("expected oldest 10 edits evicted, got %d patches", len(s.Project().Patches))
	}
}

func TestRejectedConnectionRecordsNothing(t *testing.T) {
	s := seeded()
	tap, _ := s.AddPatch(model.PatchTap, model.Position{})
	before, _ := s.History()

	_, err := s.Connect(graph.Endpoint{PatchID: tap.ID, PortID: "onTap"}, graph.Endpoint{PatchID: tap.ID, PortID: "onTap"})
	var rej *graph.Rejection
	if !errors.As(err, &rej) || rej.Reason != graph.RejectSelfLoop {
		t.Fatalf("expected self_loop rejection, got %v", err)
	}
	if after, _ := s.History(); after != before {
		t.Errorf("rejected connection should not record history")
	}
}

func TestLastDisplayStateCannotBeRemoved(t *testing.T) {
	s := seeded()
	err := s.RemoveDisplayState("ds-default")
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != ReasonLastDisplayState {
		t.Fatalf("expected last_display_state rejection, got %v", err)
	}

	s.AddDisplayState(model.DisplayState{ID: "ds-hover"})
	if err := s.RemoveDisplayState("ds-default"); err != nil {
		t.Errorf("expected removal with two states, got %v", err)
	}
}

func TestRemoveKeyframeCascadesTransitions(t *testing.T) {
	s := seeded()
	s.AddKeyframe(model.Keyframe{ID: "kf-b", DisplayStateID: "ds-default"})
	if _, err := s.AddTransition(model.Transition{ID: "t1", From: "kf-a", To: "kf-b"}); err != nil {
		t.Fatalf("AddTransition: %v", err)
	}
	if got := s.Project().FindTransition("t1").Curve; got != model.CurveEase {
		t.Errorf("expected default curve ease, got %q", got)
	}

	s.RemoveKeyframe("kf-b")
	if len(s.Project().Transitions) != 0 {
		t.Errorf("expected transition removed with keyframe")
	}
}

func TestReferenceChecks(t *testing.T) {
	s := seeded()
	var rej *Rejection

	_, err := s.AddTransition(model.Transition{From: "kf-a", To: "nope"})
	if !errors.As(err, &rej) || rej.Reason != ReasonUnknownReference {
		t.Errorf("expected unknown_reference for transition, got %v", err)
	}
	_, err = s.AddConditionRule(model.ConditionRule{VariableID: "nope"})
	if !errors.As(err, &rej) || rej.Reason != ReasonUnknownReference {
		t.Errorf("expected unknown_reference for rule, got %v", err)
	}
	_, err = s.AddKeyframe(model.Keyframe{ID: "kf-a"})
	if !errors.As(err, &rej) || rej.Reason != ReasonDuplicateID {
		t.Errorf("expected duplicate_id, got %v", err)
	}
	if err := s.RemovePatch("nope"); !errors.As(err, &rej) || rej.Reason != ReasonNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestGeneratedIDs(t *testing.T) {
	s := seeded()
	v, err := s.AddVariable(model.Variable{Name: "count", Type: model.VarNumber, DefaultValue: "2"})
	if err != nil {
		t.Fatalf("AddVariable: %v", err)
	}
	if v.ID == "" {
		t.Fatal("expected generated id")
	}
	stored := s.Project().FindVariable(v.ID)
	if stored.DefaultValue != 2.0 || stored.CurrentValue != 2.0 {
		t.Errorf("expected coerced default and current 2, got %v/%v", stored.DefaultValue, stored.CurrentValue)
	}
}

func TestWriteVariableSkipsHistory(t *testing.T) {
	s := seeded()
	s.AddVariable(model.Variable{ID: "v", Type: model.VarNumber})
	before, _ := s.History()

	if err := s.WriteVariable("v", 9.0); err != nil {
		t.Fatalf("WriteVariable: %v", err)
	}
	if after, _ := s.History(); after != before {
		t.Errorf("runtime write recorded history")
	}
	if s.Project().FindVariable("v").CurrentValue != 9.0 {
		t.Errorf("value not stored")
	}

	s.ResetVariables()
	if s.Project().FindVariable("v").CurrentValue != 0.0 {
		t.Errorf("expected reset to default 0, got %v", s.Project().FindVariable("v").CurrentValue)
	}
}

func TestUndoRedoKeepRuntimeValues(t *testing.T) {
	s := seeded()
	s.AddVariable(model.Variable{ID: "v", Type: model.VarNumber})
	if _, err := s.AddKeyframe(model.Keyframe{ID: "kf-b", DisplayStateID: "ds-default"}); err != nil {
		t.Fatalf("AddKeyframe: %v", err)
	}

	s.WriteVariable("v", 4.0)
	s.Undo()
	if s.Project().FindKeyframe("kf-b") != nil {
		t.Fatal("expected undo to remove kf-b")
	}
	if got := s.Project().FindVariable("v").CurrentValue; got != 4.0 {
		t.Errorf("expected undo to keep v=4, got %v", got)
	}

	s.WriteVariable("v", 6.0)
	s.Redo()
	if s.Project().FindKeyframe("kf-b") == nil {
		t.Fatal("expected redo to restore kf-b")
	}
	if got := s.Project().FindVariable("v").CurrentValue; got != 6.0 {
		t.Errorf("expected redo to keep v=6, got %v", got)
	}

	if err := s.UpdateVariable(model.Variable{ID: "v", Type: model.VarBoolean}); err != nil {
		t.Fatalf("UpdateVariable: %v", err)
	}
	s.WriteVariable("v", true)
	s.Undo()
	if got := s.Project().FindVariable("v").CurrentValue; got != 1.0 {
		t.Errorf("expected true coerced back to number 1, got %v", got)
	}
}

func TestSnapshotsAreNotMutatedByEdits(t *testing.T) {
	s := seeded()
	s.AddElement(model.Element{ID: "box", Props: model.Props{"x": 1.0}})
	old := s.Project()

	s.UpdateElement(model.Element{ID: "box", Props: model.Props{"x": 2.0}})
	if old.SharedElements[0].Props["x"] != 1.0 {
		t.Errorf("published snapshot was mutated")
	}
}

func TestOnChangeHook(t *testing.T) {
	s := seeded()
	calls := 0
	s.OnChange(func(*model.Project) { calls++ })
	s.AddPatch(model.PatchTap, model.Position{})
	s.Undo()
	s.Redo()
	s.WriteVariable("missing", 1)
	if calls != 3 {
		t.Errorf("expected 3 notifications, got %d", calls)
	}
}
