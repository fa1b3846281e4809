package platform

import (
	"net/http"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/auth"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// requireSuperAdmin gates user-management endpoints to the superadmin
// role: unlike tenants, users are a platform-wide resource with no
// per-row ownership to scope an "admin" role against.
func (s *Server) requireSuperAdmin(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, _ := currentUser(r)
	if !auth.IsSuperAdmin(user) {
		s.writeAppErr(w, apperror.New(apperror.Auth, "superadmin role required", nil))
		return nil, false
	}
	return user, true
}

func (s *Server) handleUsersList(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSuperAdmin(w, r); !ok {
		return
	}
	list, err := s.store.Users().List(r.Context())
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list users", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "users": list})
}

type createUserRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
	TenantID *string         `json:"tenant_id,omitempty"`
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireSuperAdmin(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	email := req.Email
	if !emailPattern.MatchString(email) {
		writeErr(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		writeErr(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleViewer
	}
	var hash string
	if err := s.blockingPool.Do(r.Context(), func() error {
		var hashErr error
		hash, hashErr = auth.HashPassword(req.Password)
		return hashErr
	}); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Internal, "hash password", err))
		return
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         req.Role,
		Status:       models.UserActive,
		TenantID:     req.TenantID,
	}
	if err := s.store.Users().Create(r.Context(), user); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create user", err))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "user_created", "user", actor.ID, user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "user": user})
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSuperAdmin(w, r); !ok {
		return
	}
	user, err := s.store.Users().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppErr(w, mapStorageErr(err, "user not found"))
		return
	}
	writeOK(w, map[string]any{"ok": true, "user": user})
}

// handleUserDelete cascades: stop and delete every tenant the user owns,
// then delete the user row, mirroring the orchestrator's own cascade
// semantics (spec §8 scenario 5).
func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireSuperAdmin(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	owned, err := s.store.Tenants().List(r.Context(), id)
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list owned tenants", err))
		return
	}
	for _, t := range owned {
		if err := s.orch.Delete(r.Context(), t.ID); err != nil {
			s.logger.Warn("cascade tenant delete failed", "tenant", t.ID, "error", err)
		}
	}
	if err := s.store.Users().Delete(r.Context(), id); err != nil {
		s.writeAppErr(w, mapStorageErr(err, "user not found"))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "user_deleted", "user", actor.ID, id)
	writeOK(w, map[string]any{"ok": true})
}

func (s *Server) loadUserForUpdate(w http.ResponseWriter, r *http.Request) (*models.User, *models.User, bool) {
	actor, ok := s.requireSuperAdmin(w, r)
	if !ok {
		return nil, nil, false
	}
	target, err := s.store.Users().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppErr(w, mapStorageErr(err, "user not found"))
		return nil, nil, false
	}
	return actor, target, true
}

type updateTenantRequest struct {
	TenantID *string `json:"tenant_id"`
}

func (s *Server) handleUserTenantUpdate(w http.ResponseWriter, r *http.Request) {
	_, target, ok := s.loadUserForUpdate(w, r)
	if !ok {
		return
	}
	var req updateTenantRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	target.TenantID = req.TenantID
	if err := s.store.Users().Update(r.Context(), target); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "update user", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "user": target})
}

type updateStatusRequest struct {
	Status models.UserStatus `json:"status"`
}

func (s *Server) handleUserStatusUpdate(w http.ResponseWriter, r *http.Request) {
	actor, target, ok := s.loadUserForUpdate(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	switch req.Status {
	case models.UserPending, models.UserActive, models.UserSuspended:
	default:
		writeErr(w, http.StatusBadRequest, "invalid status")
		return
	}
	target.Status = req.Status
	if err := s.store.Users().Update(r.Context(), target); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "update user", err))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "user_status_updated", "user", actor.ID, target.ID)
	writeOK(w, map[string]any{"ok": true, "user": target})
}

type updateRoleRequest struct {
	Role models.UserRole `json:"role"`
}

func (s *Server) handleUserRoleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, target, ok := s.loadUserForUpdate(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	switch req.Role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleViewer:
	default:
		writeErr(w, http.StatusBadRequest, "invalid role")
		return
	}
	target.Role = req.Role
	if err := s.store.Users().Update(r.Context(), target); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "update user", err))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "user_role_updated", "user", actor.ID, target.ID)
	writeOK(w, map[string]any{"ok": true, "user": target})
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// handleUserPasswordReset is the superadmin-forced counterpart to the
// self-service /password-reset flow: no token, immediate effect.
func (s *Server) handleUserPasswordReset(w http.ResponseWriter, r *http.Request) {
	actor, target, ok := s.loadUserForUpdate(w, r)
	if !ok {
		return
	}
	var req resetPasswordRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if len(req.NewPassword) < 8 {
		writeErr(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	var hash string
	if err := s.blockingPool.Do(r.Context(), func() error {
		var hashErr error
		hash, hashErr = auth.HashPassword(req.NewPassword)
		return hashErr
	}); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Internal, "hash password", err))
		return
	}
	target.PasswordHash = hash
	if err := s.store.Users().Update(r.Context(), target); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "update user", err))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "password_reset", "user", actor.ID, target.ID)
	writeOK(w, map[string]any{"ok": true})
}
