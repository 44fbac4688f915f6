package project

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/AaronLay10/protoflow/internal/model"
)

func TestLoadFixture(t *testing.T) {
	p, err := Load("testdata/button.json")
	if err != nil {
		t.Fatalf("failed to load project: %v", err)
	}

	if len(p.Keyframes) != 2 {
		t.Errorf("expected 2 keyframes, got %d", len(p.Keyframes))
	}
	if len(p.Patches) != 3 {
		t.Errorf("expected 3 patches, got %d", len(p.Patches))
	}

	press := p.FindPatch("p-press")
	cfg, ok := press.Config.(model.SwitchDisplayStateConfig)
	if !ok {
		t.Fatalf("expected switchDisplayState config, got %T", press.Config)
	}
	if !cfg.AutoReverse || cfg.ReverseDelay != 150 || cfg.TargetDisplayStateID != "ds-pressed" {
		t.Errorf("unexpected config %+v", cfg)
	}

	tr := p.FindTransition("tr-open")
	if tr.SpringDamping == nil || *tr.SpringDamping != 0.6 {
		t.Errorf("expected spring damping 0.6")
	}

	button := p.SharedElements[0]
	if button.ID != "button" || button.Props["fill"] != "#2244ee" {
		t.Errorf("unexpected element %+v", button)
	}
	if p.Components != nil {
		t.Errorf("expected no components, got %v", p.Components)
	}
}

func TestRoundTrip(t *testing.T) {
	p, err := Load("testdata/button.json")
	if err != nil {
		t.Fatalf("failed to load project: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.json")
	if err := Save(path, p); err != nil {
		t.Fatalf("failed to save project: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("failed to reload project: %v", err)
	}
	if !reflect.DeepEqual(p, back) {
		t.Error("round trip changed project content")
	}

	again, err := Encode(back)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	first, _ := os.ReadFile(path)
	if string(first) != string(again) {
		t.Error("encoding is not stable across round trips")
	}
}

func TestEncodeAlwaysWritesCollections(t *testing.T) {
	data, err := Encode(&model.Project{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, field := range []string{
		`"keyframes": []`, `"transitions": []`, `"displayStates": []`, `"patches": []`,
		`"patchConnections": []`, `"variables": []`, `"conditionRules": []`, `"sharedElements": []`,
		`"frameSize"`, `"canvasBackground"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("expected %s in encoded output", field)
		}
	}
	if strings.Contains(string(data), "components") {
		t.Error("empty components should be omitted")
	}
}

func TestDecodeRejectsBadConfig(t *testing.T) {
	_, err := Decode([]byte(`{"patches":[{"id":"p","type":"delay","config":{"delay":"soon"}}]}`))
	if err == nil {
		t.Fatal("expected error for mistyped config")
	}
}

func TestDecodeKeepsConfigDefaults(t *testing.T) {
	p, err := Decode([]byte(`{"patches":[{"id":"p","type":"counter","config":{"max":3}}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cfg := p.Patches[0].Config.(model.CounterConfig)
	if cfg.Step != 1 || cfg.Max != 3 {
		t.Errorf("expected default step with max 3, got %+v", cfg)
	}
}
