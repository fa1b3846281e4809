package platform

import (
	"net/http"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/auth"
	"github.com/atlasforge/agentmesh/internal/orchestrator"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// visibleTenants filters a tenant list down to what user's role may see
// per spec §4.9's RBAC rules.
func visibleTenants(user *models.User, all []*models.Tenant) []*models.Tenant {
	out := make([]*models.Tenant, 0, len(all))
	for _, t := range all {
		if auth.CanView(user, t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) handleTenantsList(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	all, err := s.store.Tenants().List(r.Context(), "")
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list tenants", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "tenants": visibleTenants(user, all)})
}

func (s *Server) loadTenantForUser(r *http.Request) (*models.User, *models.Tenant, error) {
	user, _ := currentUser(r)
	tenant, err := s.store.Tenants().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return user, nil, apperror.New(apperror.NotFound, "tenant not found", err)
	}
	if !auth.CanView(user, tenant) {
		return user, nil, apperror.New(apperror.NotFound, "tenant not found", nil)
	}
	return user, tenant, nil
}

type createTenantRequest struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// handleTenantCreate provisions a tenant via the orchestrator: port
// allocation, pairing code, config file, spawn, and routing regeneration
// all happen inside orch.Create. Any non-superadmin caller becomes the
// tenant's owner.
func (s *Server) handleTenantCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	var req createTenantRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if req.Name == "" {
		writeErr(w, http.StatusBadRequest, "name is required")
		return
	}

	tenant, err := s.orch.Create(r.Context(), orchestrator.CreateParams{
		Name:     req.Name,
		Slug:     req.Slug,
		Provider: req.Provider,
		Model:    req.Model,
		OwnerID:  user.ID,
	})
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "tenant": tenant})
}

func (s *Server) handleTenantGet(w http.ResponseWriter, r *http.Request) {
	_, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	writeOK(w, map[string]any{"ok": true, "tenant": tenant})
}

// handleTenantDelete cascades through the orchestrator: stop the
// process, delete dependent rows, delete the tenant, regenerate routing.
func (s *Server) handleTenantDelete(w http.ResponseWriter, r *http.Request) {
	user, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	if !auth.CanWrite(user, tenant) {
		s.writeAppErr(w, apperror.New(apperror.Auth, "write access required", nil))
		return
	}
	if err := s.orch.Delete(r.Context(), tenant.ID); err != nil {
		s.writeAppErr(w, err)
		return
	}
	writeOK(w, map[string]any{"ok": true})
}

func (s *Server) handleTenantStart(w http.ResponseWriter, r *http.Request) {
	s.withWritableTenant(w, r, func(tenant *models.Tenant) {
		updated, err := s.orch.Start(r.Context(), tenant.ID)
		if err != nil {
			s.writeAppErr(w, err)
			return
		}
		writeOK(w, map[string]any{"ok": true, "tenant": updated})
	})
}

func (s *Server) handleTenantStop(w http.ResponseWriter, r *http.Request) {
	s.withWritableTenant(w, r, func(tenant *models.Tenant) {
		updated, err := s.orch.Stop(r.Context(), tenant.ID)
		if err != nil {
			s.writeAppErr(w, err)
			return
		}
		writeOK(w, map[string]any{"ok": true, "tenant": updated})
	})
}

func (s *Server) handleTenantRestart(w http.ResponseWriter, r *http.Request) {
	s.withWritableTenant(w, r, func(tenant *models.Tenant) {
		updated, err := s.orch.Restart(r.Context(), tenant.ID)
		if err != nil {
			s.writeAppErr(w, err)
			return
		}
		writeOK(w, map[string]any{"ok": true, "tenant": updated})
	})
}

func (s *Server) handleTenantResetPairing(w http.ResponseWriter, r *http.Request) {
	s.withWritableTenant(w, r, func(tenant *models.Tenant) {
		code, err := s.orch.ResetPairing(r.Context(), tenant.ID)
		if err != nil {
			s.writeAppErr(w, err)
			return
		}
		writeOK(w, map[string]any{"ok": true, "pairing_code": code})
	})
}

// withWritableTenant loads the path tenant, enforces RBAC write access,
// and invokes fn — the common prefix shared by every tenant action route.
func (s *Server) withWritableTenant(w http.ResponseWriter, r *http.Request, fn func(tenant *models.Tenant)) {
	user, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	if !auth.CanWrite(user, tenant) {
		s.writeAppErr(w, apperror.New(apperror.Auth, "write access required", nil))
		return
	}
	fn(tenant)
}
