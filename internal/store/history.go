package store

import "github.com/AaronLay10/protoflow/internal/model"

// DefaultDepth is the number of undo steps kept when none is configured.
const DefaultDepth = 50

// History is a bounded undo/redo stack of whole project snapshots.
// Snapshots are never mutated after being published, so they are stored
// by pointer.
type History struct {
	depth  int
	past   []*model.Project
	future []*model.Project
}

// NewHistory creates a history keeping at most depth undo steps.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History{depth: depth}
}

// Record saves the snapshot taken before a mutation. Any redo steps are
// discarded and the oldest entry is evicted beyond the depth.
func (h *History) Record(before *model.Project) {
	h.past = append(h.past, before)
	if len(h.past) > h.depth {
		copy(h.past, h.past[1:])
		h.past[len(h.past)-1] = nil
		h.past = h.past[:len(h.past)-1]
	}
	h.future = nil
}

// Undo returns the snapshot to restore and remembers current for Redo.
func (h *History) Undo(current *model.Project) (*model.Project, bool) {
	if len(h.past) == 0 {
		return nil, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, current)
	return prev, true
}

// Redo returns the snapshot undone most recently.
func (h *History) Redo(current *model.Project) (*model.Project, bool) {
	if len(h.future) == 0 {
		return nil, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, current)
	return next, true
}

// Len returns the number of undo and redo steps available.
func (h *History) Len() (undo, redo int) {
	return len(h.past), len(h.future)
}

// Clear drops every step.
func (h *History) Clear() {
	h.past = nil
	h.future = nil
}
