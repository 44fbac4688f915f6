// Package graph validates and applies edits to the patch graph.
// Every edit returns a new project; the input is never modified.
package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/AaronLay10/protoflow/internal/model"
)

// RejectReason explains why a connection was not created.
type RejectReason string

const (
	RejectSelfLoop     RejectReason = "self_loop"
	RejectDuplicate    RejectReason = "duplicate"
	RejectIncompatible RejectReason = "incompatible"
	RejectUnknownPatch RejectReason = "unknown_patch"
	RejectUnknownPort  RejectReason = "unknown_port"
)

// Rejection is returned when a graph edit is refused. The graph is unchanged.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return "connection rejected: " + string(r.Reason)
	}
	return fmt.Sprintf("connection rejected: %s: %s", r.Reason, r.Detail)
}

// Endpoint names one port of one patch.
type Endpoint struct {
	PatchID string `json:"patchId"`
	PortID  string `json:"portId"`
}

// NewID returns a fresh entity id with the given prefix.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// NewPatch returns a patch of type t with the type's fixed ports and default config.
// Unknown types produce a patch with no ports.
func NewPatch(t model.PatchType, pos model.Position) model.Patch {
	inputs, outputs := model.DefaultPorts(t)
	return model.Patch{
		ID:       NewID("patch"),
		Type:     t,
		Name:     string(t),
		Position: pos,
		Config:   model.DefaultConfig(t),
		Inputs:   inputs,
		Outputs:  outputs,
	}
}

// Compatible reports whether a value of type from may flow into a port of type to.
// Equal types, the any type, and pulse on either side are compatible.
func Compatible(from, to model.DataType) bool {
	if from == to {
		return true
	}
	if from == model.DataAny || to == model.DataAny {
		return true
	}
	return from == model.DataPulse || to == model.DataPulse
}

// CheckConnection validates a prospective connection against the project.
func CheckConnection(p *model.Project, from, to Endpoint) *Rejection {
	if from.PatchID == to.PatchID {
		return &Rejection{Reason: RejectSelfLoop, Detail: from.PatchID}
	}

	src := p.FindPatch(from.PatchID)
	if src == nil {
		return &Rejection{Reason: RejectUnknownPatch, Detail: from.PatchID}
	}
	dst := p.FindPatch(to.PatchID)
	if dst == nil {
		return &Rejection{Reason: RejectUnknownPatch, Detail: to.PatchID}
	}

	out, ok := src.Output(from.PortID)
	if !ok {
		return &Rejection{Reason: RejectUnknownPort, Detail: from.PatchID + "." + from.PortID}
	}
	in, ok := dst.Input(to.PortID)
	if !ok {
		return &Rejection{Reason: RejectUnknownPort, Detail: to.PatchID + "." + to.PortID}
	}

	for _, c := range p.PatchConnections {
		if c.FromPatchID == from.PatchID && c.FromPortID == from.PortID &&
			c.ToPatchID == to.PatchID && c.ToPortID == to.PortID {
			return &Rejection{Reason: RejectDuplicate, Detail: c.ID}
		}
	}

	if !Compatible(out.DataType, in.DataType) {
		return &Rejection{
			Reason: RejectIncompatible,
			Detail: fmt.Sprintf("%s -> %s", out.DataType, in.DataType),
		}
	}
	return nil
}

// Connect returns a copy of p with a new connection from -> to.
// On rejection it returns p itself and a *Rejection.
func Connect(p *model.Project, from, to Endpoint) (*model.Project, model.Connection, error) {
	if rej := CheckConnection(p, from, to); rej != nil {
		return p, model.Connection{}, rej
	}
	conn := model.Connection{
		ID:          NewID("conn"),
		FromPatchID: from.PatchID,
		FromPortID:  from.PortID,
		ToPatchID:   to.PatchID,
		ToPortID:    to.PortID,
	}
	next := p.Clone()
	next.PatchConnections = append(next.PatchConnections, conn)
	return next, conn, nil
}

// AddPatch returns a copy of p with patch appended.
func AddPatch(p *model.Project, patch model.Patch) *model.Project {
	next := p.Clone()
	next.Patches = append(next.Patches, patch.Clone())
	return next
}

// UpdatePatch replaces the name, position and config of an existing patch.
// Ports are fixed by type and are not taken from the update.
func UpdatePatch(p *model.Project, patch model.Patch) (*model.Project, bool) {
	next := p.Clone()
	target := next.FindPatch(patch.ID)
	if target == nil {
		return p, false
	}
	target.Name = patch.Name
	target.Position = patch.Position
	if patch.Config != nil {
		target.Config = patch.Clone().Config
	}
	return next, true
}

// RemovePatch removes a patch and every connection touching it.
func RemovePatch(p *model.Project, id string) (*model.Project, bool) {
	if p.FindPatch(id) == nil {
		return p, false
	}
	next := p.Clone()
	patches := next.Patches[:0]
	for _, pt := range next.Patches {
		if pt.ID != id {
			patches = append(patches, pt)
		}
	}
	next.Patches = patches

	conns := next.PatchConnections[:0]
	for _, c := range next.PatchConnections {
		if c.FromPatchID != id && c.ToPatchID != id {
			conns = append(conns, c)
		}
	}
	next.PatchConnections = conns
	return next, true
}

// RemoveConnection removes a single connection by id.
func RemoveConnection(p *model.Project, id string) (*model.Project, bool) {
	idx := -1
	for i, c := range p.PatchConnections {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return p, false
	}
	next := p.Clone()
	next.PatchConnections = append(next.PatchConnections[:idx], next.PatchConnections[idx+1:]...)
	return next, true
}

// Outgoing returns the connections leaving the given patch output, in declared order.
func Outgoing(p *model.Project, patchID, portID string) []model.Connection {
	var out []model.Connection
	for _, c := range p.PatchConnections {
		if c.FromPatchID == patchID && c.FromPortID == portID {
			out = append(out, c)
		}
	}
	return out
}
