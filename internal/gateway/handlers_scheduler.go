package gateway

import (
	"net/http"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func (s *Server) handleTasksList(w http.ResponseWriter, r *http.Request) {
	list, err := s.schedulerStore.List(r.Context())
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list tasks", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "tasks": list})
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var t models.Task
	if status, err := decodeJSON(w, r, &t); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if t.Name == "" {
		writeErr(w, http.StatusBadRequest, "name is required")
		return
	}
	if !t.Enabled {
		t.Enabled = true
	}
	if err := s.schedulerStore.Create(r.Context(), &t); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create task", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "task": t})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := s.schedulerStore.Get(r.Context(), id)
	if err != nil {
		s.writeAppErr(w, mapStorageErr(err, "task not found"))
		return
	}
	writeOK(w, map[string]any{"ok": true, "task": t})
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.schedulerStore.Delete(r.Context(), id); err != nil {
		s.writeAppErr(w, mapStorageErr(err, "task not found"))
		return
	}
	writeOK(w, map[string]any{"ok": true})
}
