// Package store holds the live project. Every change publishes a new
// snapshot; readers load the current pointer and never lock.
package store

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/value"
)

// Reason explains why a store mutation was refused.
type Reason string

const (
	ReasonNotFound         Reason = "not_found"
	ReasonDuplicateID      Reason = "duplicate_id"
	ReasonLastDisplayState Reason = "last_display_state"
	ReasonUnknownReference Reason = "unknown_reference"
)

// Rejection is returned for refused mutations. The project is unchanged.
type Rejection struct {
	Reason Reason
	Kind   string
	ID     string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s %s: %s", r.Kind, r.ID, r.Reason)
}

// Store is the live project plus its edit history. Writers are
// serialized; Project may be called from any goroutine.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[model.Project]
	history *History
	hooks   []func(*model.Project)
}

// New creates a store holding p with an undo depth of depth.
func New(p *model.Project, depth int) *Store {
	s := &Store{history: NewHistory(depth)}
	if p == nil {
		p = &model.Project{}
	}
	p.Normalize()
	s.current.Store(p)
	return s
}

// Project returns the current snapshot. Callers must not mutate it.
func (s *Store) Project() *model.Project {
	return s.current.Load()
}

// OnChange registers fn to run after every published snapshot.
func (s *Store) OnChange(fn func(*model.Project)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Replace swaps in a whole new project and clears history.
func (s *Store) Replace(p *model.Project) {
	p.Normalize()
	s.mu.Lock()
	s.history.Clear()
	s.current.Store(p)
	hooks := s.hooks
	s.mu.Unlock()

	notify(hooks, p)
}

// History returns how many undo and redo steps are available.
func (s *Store) History() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// Undo restores the snapshot taken before the last recorded mutation.
// Variables keep their live runtime values.
func (s *Store) Undo() bool {
	s.mu.Lock()
	cur := s.current.Load()
	prev, ok := s.history.Undo(cur)
	if ok {
		prev = withRuntimeValues(prev, cur)
		s.current.Store(prev)
	}
	hooks := s.hooks
	s.mu.Unlock()

	if ok {
		events.Emit("info", "history.undo", "", nil)
		notify(hooks, prev)
	}
	return ok
}

// Redo reapplies the most recently undone mutation.
func (s *Store) Redo() bool {
	s.mu.Lock()
	cur := s.current.Load()
	next, ok := s.history.Redo(cur)
	if ok {
		next = withRuntimeValues(next, cur)
		s.current.Store(next)
	}
	hooks := s.hooks
	s.mu.Unlock()

	if ok {
		events.Emit("info", "history.redo", "", nil)
		notify(hooks, next)
	}
	return ok
}

// WriteVariable stores a runtime value for a variable. Runtime writes are
// not recorded in history.
func (s *Store) WriteVariable(id string, v interface{}) error {
	_, err := s.commit("", func(p *model.Project) (*model.Project, error) {
		if p.FindVariable(id) == nil {
			return nil, &Rejection{Reason: ReasonNotFound, Kind: "variable", ID: id}
		}
		next := p.Clone()
		next.FindVariable(id).CurrentValue = v
		return next, nil
	})
	return err
}

// ResetVariables returns every variable to its default value without
// recording history.
func (s *Store) ResetVariables() {
	s.commit("", func(p *model.Project) (*model.Project, error) {
		next := p.Clone()
		for i := range next.Variables {
			next.Variables[i].CurrentValue = model.CloneValue(next.Variables[i].DefaultValue)
		}
		return next, nil
	})
}

// commit runs fn against the current snapshot and publishes the result.
// A non-empty op records history. fn returning its input unchanged is a
// no-op.
func (s *Store) commit(op string, fn func(*model.Project) (*model.Project, error)) (*model.Project, error) {
	s.mu.Lock()
	cur := s.current.Load()
	next, err := fn(cur)
	if err != nil || next == nil || next == cur {
		s.mu.Unlock()
		return cur, err
	}
	if op != "" {
		s.history.Record(cur)
	}
	s.current.Store(next)
	hooks := s.hooks
	s.mu.Unlock()

	if op != "" {
		events.Emit("info", "project.edited", "", map[string]interface{}{"op": op})
	}
	notify(hooks, next)
	return next, nil
}

// withRuntimeValues returns p carrying the current values of live's
// variables, coerced when p declares another type. Variables absent from
// live keep theirs. p is cloned only when a value differs.
func withRuntimeValues(p, live *model.Project) *model.Project {
	next := p
	for i := range p.Variables {
		pv := &p.Variables[i]
		lv := live.FindVariable(pv.ID)
		if lv == nil || reflect.DeepEqual(lv.CurrentValue, pv.CurrentValue) {
			continue
		}
		v := model.CloneValue(lv.CurrentValue)
		if lv.Type != pv.Type {
			v, _ = value.Coerce(pv.Type, v)
		}
		if next == p {
			next = p.Clone()
		}
		next.Variables[i].CurrentValue = v
	}
	return next
}

func notify(hooks []func(*model.Project), p *model.Project) {
	for _, fn := range hooks {
		fn(p)
	}
}
