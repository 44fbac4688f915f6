package graph

import (
	"errors"
	"testing"

	"github.com/AaronLay10/protoflow/internal/model"
)

func withPatches(patches ...model.Patch) *model.Project {
	p := &model.Project{DisplayStates: []model.DisplayState{{ID: "ds-default"}}}
	p.Normalize()
	for _, pt := range patches {
		p = AddPatch(p, pt)
	}
	return p
}

func patchOf(t model.PatchType, id string) model.Patch {
	pt := NewPatch(t, model.Position{})
	pt.ID = id
	return pt
}

func TestNewPatchHasFixedPorts(t *testing.T) {
	for typ, set := range model.PortTable {
		pt := NewPatch(typ, model.Position{X: 1, Y: 2})
		if len(pt.Inputs) != len(set.Inputs) || len(pt.Outputs) != len(set.Outputs) {
			t.Errorf("%s: expected %d/%d ports, got %d/%d", typ, len(set.Inputs), len(set.Outputs), len(pt.Inputs), len(pt.Outputs))
		}
		if pt.ID == "" {
			t.Errorf("%s: expected generated id", typ)
		}
		if pt.Config == nil {
			t.Errorf("%s: expected default config", typ)
		}
		if set.Category == model.CategoryTrigger && typ != model.PatchTimer && len(pt.Inputs) != 0 {
			t.Errorf("%s: trigger patches should be outputs-only", typ)
		}
	}

	// Mutating the returned ports must not touch the table.
	pt := NewPatch(model.PatchTap, model.Position{})
	pt.Outputs[0].ID = "changed"
	if model.PortTable[model.PatchTap].Outputs[0].ID != "onTap" {
		t.Error("port table aliased by NewPatch")
	}
}

func TestNewPatchUnknownType(t *testing.T) {
	pt := NewPatch("wobble", model.Position{})
	if len(pt.Inputs) != 0 || len(pt.Outputs) != 0 {
		t.Errorf("expected no ports for unknown type, got %v %v", pt.Inputs, pt.Outputs)
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		from, to model.DataType
		want     bool
	}{
		{model.DataNumber, model.DataNumber, true},
		{model.DataPulse, model.DataNumber, true},
		{model.DataNumber, model.DataPulse, true},
		{model.DataAny, model.DataBoolean, true},
		{model.DataString, model.DataAny, true},
		{model.DataNumber, model.DataBoolean, false},
		{model.DataDisplayState, model.DataString, false},
	}
	for _, tt := range tests {
		if got := Compatible(tt.from, tt.to); got != tt.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestConnectOnceThenDuplicateIsNoop(t *testing.T) {
	p := withPatches(patchOf(model.PatchTap, "a"), patchOf(model.PatchToggle, "b"))

	p, conn, err := Connect(p, Endpoint{"a", "onTap"}, Endpoint{"b", "trigger"})
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if conn.ID == "" {
		t.Error("expected connection id")
	}

	again, _, err := Connect(p, Endpoint{"a", "onTap"}, Endpoint{"b", "trigger"})
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != RejectDuplicate {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if again != p {
		t.Error("rejected edit should return the original project")
	}
	if len(p.PatchConnections) != 1 {
		t.Errorf("expected 1 connection, got %d", len(p.PatchConnections))
	}
}

func TestConnectPulseToNumber(t *testing.T) {
	p := withPatches(patchOf(model.PatchTap, "tap"), patchOf(model.PatchAnimateProperty, "anim"))
	if _, _, err := Connect(p, Endpoint{"tap", "onTap"}, Endpoint{"anim", "toValue"}); err != nil {
		t.Errorf("expected pulse -> number to connect, got %v", err)
	}
}

func TestConnectNumberToBooleanRejected(t *testing.T) {
	p := withPatches(patchOf(model.PatchCounter, "counter"), patchOf(model.PatchCondition, "cond"))
	next, _, err := Connect(p, Endpoint{"counter", "count"}, Endpoint{"cond", "value"})
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != RejectIncompatible {
		t.Fatalf("expected incompatible rejection, got %v", err)
	}
	if len(next.PatchConnections) != 0 {
		t.Error("rejected connection was added")
	}
}

func TestConnectRejections(t *testing.T) {
	p := withPatches(patchOf(model.PatchTap, "a"), patchOf(model.PatchToggle, "b"))
	tests := []struct {
		name     string
		from, to Endpoint
		want     RejectReason
	}{
		{"self loop", Endpoint{"b", "on"}, Endpoint{"b", "trigger"}, RejectSelfLoop},
		{"unknown source", Endpoint{"x", "onTap"}, Endpoint{"b", "trigger"}, RejectUnknownPatch},
		{"unknown target", Endpoint{"a", "onTap"}, Endpoint{"x", "trigger"}, RejectUnknownPatch},
		{"input used as output", Endpoint{"b", "trigger"}, Endpoint{"a", "onTap"}, RejectUnknownPort},
		{"missing input", Endpoint{"a", "onTap"}, Endpoint{"b", "nope"}, RejectUnknownPort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Connect(p, tt.from, tt.to)
			var rej *Rejection
			if !errors.As(err, &rej) {
				t.Fatalf("expected rejection, got %v", err)
			}
			if rej.Reason != tt.want {
				t.Errorf("expected %s, got %s", tt.want, rej.Reason)
			}
		})
	}
}

func TestRemovePatchCascades(t *testing.T) {
	p := withPatches(patchOf(model.PatchTap, "a"), patchOf(model.PatchToggle, "b"), patchOf(model.PatchDelay, "c"))
	p, _, _ = Connect(p, Endpoint{"a", "onTap"}, Endpoint{"b", "trigger"})
	p, keep, _ := Connect(p, Endpoint{"a", "onTap"}, Endpoint{"c", "trigger"})
	p, _, _ = Connect(p, Endpoint{"b", "on"}, Endpoint{"c", "trigger"})

	next, ok := RemovePatch(p, "b")
	if !ok {
		t.Fatal("expected patch removed")
	}
	if next.FindPatch("b") != nil {
		t.Error("patch still present")
	}
	if len(next.PatchConnections) != 1 || next.PatchConnections[0].ID != keep.ID {
		t.Errorf("expected only %s to survive, got %v", keep.ID, next.PatchConnections)
	}
	if len(p.PatchConnections) != 3 {
		t.Error("original project mutated")
	}

	if _, ok := RemovePatch(next, "b"); ok {
		t.Error("removing a missing patch should report false")
	}
}

func TestRemoveConnection(t *testing.T) {
	p := withPatches(patchOf(model.PatchTap, "a"), patchOf(model.PatchToggle, "b"))
	p, conn, _ := Connect(p, Endpoint{"a", "onTap"}, Endpoint{"b", "trigger"})

	next, ok := RemoveConnection(p, conn.ID)
	if !ok || len(next.PatchConnections) != 0 {
		t.Errorf("expected connection removed, got %v", next.PatchConnections)
	}
	if _, ok := RemoveConnection(next, conn.ID); ok {
		t.Error("expected false for missing connection")
	}
}

func TestUpdatePatchKeepsPorts(t *testing.T) {
	p := withPatches(patchOf(model.PatchDelay, "d"))
	upd := model.Patch{ID: "d", Name: "Wait", Config: model.DelayConfig{Delay: 250}}
	next, ok := UpdatePatch(p, upd)
	if !ok {
		t.Fatal("expected update")
	}
	got := next.FindPatch("d")
	if got.Name != "Wait" || got.Config.(model.DelayConfig).Delay != 250 {
		t.Errorf("update not applied: %+v", got)
	}
	if len(got.Inputs) != 1 || len(got.Outputs) != 1 {
		t.Errorf("ports changed: %v %v", got.Inputs, got.Outputs)
	}
}
