package platform

import (
	"net/http"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/auth"
)

func (s *Server) handleTenantConfigsList(w http.ResponseWriter, r *http.Request) {
	_, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	cfg, err := s.store.Configs().List(r.Context(), tenant.ID)
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list configs", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "configs": cfg})
}

type setConfigRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleTenantConfigSet(w http.ResponseWriter, r *http.Request) {
	user, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	if !auth.CanWrite(user, tenant) {
		s.writeAppErr(w, apperror.New(apperror.Auth, "write access required", nil))
		return
	}
	var req setConfigRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if req.Key == "" {
		writeErr(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := s.store.Configs().Set(r.Context(), tenant.ID, req.Key, req.Value); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "set config", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "key": req.Key, "value": req.Value})
}
