package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AaronLay10/protoflow/internal/graph"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/patch"
	"github.com/AaronLay10/protoflow/internal/project"
	"github.com/AaronLay10/protoflow/internal/store"
	"github.com/AaronLay10/protoflow/internal/variables"
)

// maxBody bounds request bodies, including whole project documents.
const maxBody = 8 << 20

type APIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type HistoryResponse struct {
	Undo int `json:"undo"`
	Redo int `json:"redo"`
}

type PatchRequest struct {
	Type     model.PatchType `json:"type"`
	Position model.Position  `json:"position"`
}

type ConnectionRequest struct {
	From graph.Endpoint `json:"from"`
	To   graph.Endpoint `json:"to"`
}

type ValueRequest struct {
	Value interface{} `json:"value"`
}

type GoToRequest struct {
	KeyframeID string `json:"keyframeId"`
}

type FrameSizeRequest struct {
	FrameSize        model.FrameSize `json:"frameSize"`
	CanvasBackground string          `json:"canvasBackground"`
}

func (s *Server) inspectorRoutes(r chi.Router) {
	// Previewing: anyone who can see the prototype can play it.
	r.Group(func(r chi.Router) {
		r.Use(Middleware(RoleEditor, RoleViewer))

		r.Get("/project", s.getProject)
		r.Get("/frame", s.getFrame)
		r.Get("/validate", s.validate)
		r.Get("/history", s.history)

		r.Post("/gestures", s.gesture)
		r.Put("/variables/{id}/value", s.setVariableValue)
		r.Post("/goto", s.goTo)
		r.Post("/patches/{id}/ports/{port}/pulse", s.pulse)
		r.Post("/restart", s.restart)
	})

	// Authoring.
	r.Group(func(r chi.Router) {
		r.Use(Middleware(RoleEditor))

		r.Put("/project", s.replaceProject)
		r.Post("/project/save", s.saveProject)
		r.Post("/undo", s.undo)
		r.Post("/redo", s.redo)
		r.Put("/frame-size", s.setFrameSize)

		r.Post("/patches", s.addPatch)
		r.Put("/patches/{id}", s.updatePatch)
		r.Delete("/patches/{id}", s.removePatch)
		r.Post("/connections", s.connect)
		r.Delete("/connections/{id}", s.removeConnection)

		mount(r, s, "/keyframes", entity[model.Keyframe]{
			name:   "keyframe",
			add:    (*store.Store).AddKeyframe,
			update: (*store.Store).UpdateKeyframe,
			remove: (*store.Store).RemoveKeyframe,
			setID:  func(k *model.Keyframe, id string) { k.ID = id },
		})
		mount(r, s, "/transitions", entity[model.Transition]{
			name:   "transition",
			add:    (*store.Store).AddTransition,
			update: (*store.Store).UpdateTransition,
			remove: (*store.Store).RemoveTransition,
			setID:  func(t *model.Transition, id string) { t.ID = id },
		})
		mount(r, s, "/display-states", entity[model.DisplayState]{
			name:   "displayState",
			add:    (*store.Store).AddDisplayState,
			update: (*store.Store).UpdateDisplayState,
			remove: (*store.Store).RemoveDisplayState,
			setID:  func(d *model.DisplayState, id string) { d.ID = id },
		})
		mount(r, s, "/variables", entity[model.Variable]{
			name:   "variable",
			add:    (*store.Store).AddVariable,
			update: (*store.Store).UpdateVariable,
			remove: (*store.Store).RemoveVariable,
			setID:  func(v *model.Variable, id string) { v.ID = id },
		})
		mount(r, s, "/rules", entity[model.ConditionRule]{
			name:   "conditionRule",
			add:    (*store.Store).AddConditionRule,
			update: (*store.Store).UpdateConditionRule,
			remove: (*store.Store).RemoveConditionRule,
			setID:  func(c *model.ConditionRule, id string) { c.ID = id },
		})
		mount(r, s, "/elements", entity[model.Element]{
			name:   "element",
			add:    (*store.Store).AddElement,
			update: (*store.Store).UpdateElement,
			remove: (*store.Store).RemoveElement,
			setID:  func(e *model.Element, id string) { e.ID = id },
		})
		mount(r, s, "/components", entity[model.Component]{
			name:   "component",
			add:    (*store.Store).AddComponent,
			update: (*store.Store).UpdateComponent,
			remove: (*store.Store).RemoveComponent,
			setID:  func(c *model.Component, id string) { c.ID = id },
		})
	})
}

// entity binds one project collection to create, update and delete routes.
type entity[T interface{}] struct {
	name   string
	add    func(*store.Store, T) (T, error)
	update func(*store.Store, T) error
	remove func(*store.Store, string) error
	setID  func(*T, string)
}

func mount[T interface{}](r chi.Router, s *Server, path string, e entity[T]) {
	r.Post(path, func(w http.ResponseWriter, r *http.Request) {
		var item T
		if !decodeBody(w, r, &item) {
			return
		}
		var created T
		err := s.edit(e.name, func(st *store.Store) (err error) {
			created, err = e.add(st, item)
			return err
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	})

	r.Put(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		var item T
		if !decodeBody(w, r, &item) {
			return
		}
		e.setID(&item, chi.URLParam(r, "id"))
		if err := s.edit(e.name, func(st *store.Store) error { return e.update(st, item) }); err != nil {
			writeEditError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	})

	r.Delete(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.edit(e.name, func(st *store.Store) error { return e.remove(st, id) }); err != nil {
			writeEditError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{OK: true})
	})
}

// edit runs fn through the player and counts the outcome.
func (s *Server) edit(entity string, fn func(*store.Store) error) error {
	err := s.player.Edit(fn)
	s.metrics.observeEdit(entity, err)
	return err
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	data, err := project.Encode(s.player.Store().Project())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) replaceProject(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	p, err := project.Decode(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.player.Edit(func(st *store.Store) error {
		st.Replace(p)
		return nil
	})
	s.player.Restart()
	s.metrics.observeEdit("project", nil)
	writeJSON(w, http.StatusOK, APIResponse{OK: true})
}

func (s *Server) saveProject(w http.ResponseWriter, r *http.Request) {
	if s.saver == nil {
		writeError(w, http.StatusNotImplemented, "no project destination configured")
		return
	}
	if err := s.saver(s.player.Store().Project()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{OK: true})
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Frame())
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	issues := graph.Validate(s.player.Store().Project())
	if issues == nil {
		issues = []graph.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	undo, redo := s.player.Store().History()
	writeJSON(w, http.StatusOK, HistoryResponse{Undo: undo, Redo: redo})
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	s.step(w, (*store.Store).Undo, "nothing to undo")
}

func (s *Server) redo(w http.ResponseWriter, r *http.Request) {
	s.step(w, (*store.Store).Redo, "nothing to redo")
}

func (s *Server) step(w http.ResponseWriter, fn func(*store.Store) bool, empty string) {
	var ok bool
	s.player.Edit(func(st *store.Store) error {
		ok = fn(st)
		return nil
	})
	if !ok {
		writeError(w, http.StatusConflict, empty)
		return
	}
	undo, redo := s.player.Store().History()
	writeJSON(w, http.StatusOK, HistoryResponse{Undo: undo, Redo: redo})
}

func (s *Server) setFrameSize(w http.ResponseWriter, r *http.Request) {
	var req FrameSizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.edit("frame", func(st *store.Store) error {
		return st.SetFrame(req.FrameSize, req.CanvasBackground)
	})
	if err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{OK: true})
}

func (s *Server) addPatch(w http.ResponseWriter, r *http.Request) {
	var req PatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type required")
		return
	}
	var created model.Patch
	err := s.edit("patch", func(st *store.Store) (err error) {
		created, err = st.AddPatch(req.Type, req.Position)
		return err
	})
	if err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updatePatch(w http.ResponseWriter, r *http.Request) {
	var pt model.Patch
	if !decodeBody(w, r, &pt) {
		return
	}
	pt.ID = chi.URLParam(r, "id")
	if err := s.edit("patch", func(st *store.Store) error { return st.UpdatePatch(pt) }); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.player.Store().Project().FindPatch(pt.ID))
}

func (s *Server) removePatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.edit("patch", func(st *store.Store) error { return st.RemovePatch(id) }); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{OK: true})
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var conn model.Connection
	err := s.edit("connection", func(st *store.Store) (err error) {
		conn, err = st.Connect(req.From, req.To)
		return err
	})
	if err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

func (s *Server) removeConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.edit("connection", func(st *store.Store) error { return st.RemoveConnection(id) }); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{OK: true})
}

func (s *Server) gesture(w http.ResponseWriter, r *http.Request) {
	var g patch.Gesture
	if !decodeBody(w, r, &g) {
		return
	}
	if err := s.player.Gesture(g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.observeGesture(string(g.Kind))
	writeJSON(w, http.StatusAccepted, APIResponse{OK: true})
}

func (s *Server) setVariableValue(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.player.SetVariable(chi.URLParam(r, "id"), req.Value); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{OK: true})
}

func (s *Server) goTo(w http.ResponseWriter, r *http.Request) {
	var req GoToRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.player.GoTo(req.KeyframeID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{OK: true})
}

func (s *Server) pulse(w http.ResponseWriter, r *http.Request) {
	if err := s.player.Pulse(chi.URLParam(r, "id"), chi.URLParam(r, "port")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, APIResponse{OK: true})
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	s.player.Restart()
	writeJSON(w, http.StatusOK, APIResponse{OK: true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// writeEditError maps store and graph rejections to status codes.
func writeEditError(w http.ResponseWriter, err error) {
	var sr *store.Rejection
	var gr *graph.Rejection
	switch {
	case errors.As(err, &sr) && sr.Reason == store.ReasonNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &sr) && sr.Reason == store.ReasonDuplicateID:
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, variables.ErrUnknownVariable):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &sr), errors.As(err, &gr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{OK: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
