// Package project reads and writes the persisted project format.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AaronLay10/protoflow/internal/model"
)

// Decode parses a project document. Missing collections decode as empty.
func Decode(data []byte) (*model.Project, error) {
	var p model.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project JSON: %w", err)
	}
	p.Normalize()
	return &p, nil
}

// Encode serializes p in the persisted format, indented for diffing.
func Encode(p *model.Project) ([]byte, error) {
	out := p.Clone()
	out.Normalize()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode project: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads a project file.
func Load(path string) (*model.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	return Decode(data)
}

// Save writes p to path, replacing the file atomically.
func Save(path string, p *model.Project) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".protoflow-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace project file: %w", err)
	}
	return nil
}
