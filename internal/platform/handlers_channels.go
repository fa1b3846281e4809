package platform

import (
	"net/http"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/auth"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func (s *Server) handleTenantChannelsList(w http.ResponseWriter, r *http.Request) {
	_, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	list, err := s.store.Channels().List(r.Context(), tenant.ID)
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list channels", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "channels": list})
}

func (s *Server) handleTenantChannelCreate(w http.ResponseWriter, r *http.Request) {
	user, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	if !auth.CanWrite(user, tenant) {
		s.writeAppErr(w, apperror.New(apperror.Auth, "write access required", nil))
		return
	}
	var inst models.ChannelInstance
	if status, err := decodeJSON(w, r, &inst); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if inst.Type == "" {
		writeErr(w, http.StatusBadRequest, "channel_type is required")
		return
	}
	if inst.Status == "" {
		inst.Status = models.ChannelDisconnected
	}
	if err := s.store.Channels().Create(r.Context(), tenant.ID, &inst); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create channel", err))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "channel_configured", "user", user.ID, tenant.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "channel": inst})
}

func (s *Server) handleTenantChannelDelete(w http.ResponseWriter, r *http.Request) {
	user, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	if !auth.CanWrite(user, tenant) {
		s.writeAppErr(w, apperror.New(apperror.Auth, "write access required", nil))
		return
	}
	if err := s.store.Channels().Delete(r.Context(), tenant.ID, r.PathValue("channel_id")); err != nil {
		s.writeAppErr(w, mapStorageErr(err, "channel not found"))
		return
	}
	writeOK(w, map[string]any{"ok": true})
}
