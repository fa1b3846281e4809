package platform

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/auth"
	"github.com/atlasforge/agentmesh/internal/orchestrator"
	"github.com/atlasforge/agentmesh/pkg/models"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin verifies the bcrypt password and the user's active status,
// then issues a signed session token. Rate-limited per email per spec
// §4.9 (5 attempts / 5 min); a failed attempt still consumes a slot so a
// credential-stuffing run can't probe indefinitely.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !s.loginLimiter.Allow(email) {
		writeErr(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	user, err := s.store.Users().GetByEmail(r.Context(), email)
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	var passwordOK bool
	_ = s.blockingPool.Do(r.Context(), func() error {
		passwordOK = auth.CheckPassword(user.PasswordHash, req.Password)
		return nil
	})
	if !passwordOK || !user.CanAuthenticate() {
		writeErr(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Internal, "issue session token", err))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "login_success", "user", user.ID, "")
	writeOK(w, map[string]any{"ok": true, "token": token, "user": user})
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TenantName string `json:"tenant_name"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
}

// handleRegister self-provisions a new admin account plus its owned
// tenant in one call: the user row is created first so the tenant can
// carry owner_id, then the orchestrator allocates and starts the tenant.
// Tenant slug collisions are resolved deterministically (-1, -2, ...)
// per spec §8 rather than rejected, since the caller picked a display
// name, not a slug.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		writeErr(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		writeErr(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	if !s.registerLimiter.Allow(email) {
		writeErr(w, http.StatusTooManyRequests, "too many registration attempts, try again later")
		return
	}

	if _, err := s.store.Users().GetByEmail(r.Context(), email); err == nil {
		writeErr(w, http.StatusBadRequest, "email already registered")
		return
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
		Role:         models.RoleAdmin,
		Status:       models.UserActive,
	}
	if err := s.store.Users().Create(r.Context(), user); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create user", err))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "user_registered", "user", user.ID, "")

	tenantName := req.TenantName
	if tenantName == "" {
		tenantName = email
	}
	base := orchestrator.Slugify(tenantName)
	slug := orchestrator.UniqueSlug(base, func(candidate string) bool {
		taken, _ := s.store.Tenants().SlugExists(r.Context(), candidate)
		return taken
	})

	tenant, err := s.orch.Create(r.Context(), orchestrator.CreateParams{
		Name:     tenantName,
		Slug:     slug,
		Provider: req.Provider,
		Model:    req.Model,
		OwnerID:  user.ID,
	})
	if err != nil {
		s.writeAppErr(w, err)
		return
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Internal, "issue session token", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "token": token, "user": user, "tenant": tenant})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// handlePasswordResetRequest always reports the same success body
// regardless of whether the email exists, per spec §7's anti-enumeration
// rule, even though it is itself rate-limited per spec §4.9 (3 / 15 min).
func (s *Server) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !s.resetLimiter.Allow(email) {
		writeOK(w, map[string]any{"ok": true, "message": "if that email is registered, a reset link has been sent"})
		return
	}

	if user, err := s.store.Users().GetByEmail(r.Context(), email); err == nil {
		token := generateResetToken()
		if err := s.store.PasswordResets().Create(r.Context(), user.ID, token, resetTokenExpiry()); err != nil {
			s.logger.Warn("password reset token create failed", "error", err)
		} else {
			_ = s.store.Audit().Log(r.Context(), "password_reset_requested", "user", user.ID, "")
			// Delivery of the reset link itself is an external
			// collaborator (SMTP) per spec §1's scope boundary; the
			// token is logged at debug level for operators running
			// without an outbound mailer configured.
			s.logger.Debug("password reset token issued", "user", user.ID, "token", token)
		}
	}

	writeOK(w, map[string]any{"ok": true, "message": "if that email is registered, a reset link has been sent"})
}

type passwordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirmRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if len(req.NewPassword) < 8 {
		writeErr(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	userID, err := s.store.PasswordResets().Consume(r.Context(), req.Token)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid or expired reset token")
		return
	}
	user, err := s.store.Users().Get(r.Context(), userID)
	if err != nil {
		s.writeAppErr(w, mapStorageErr(err, "user not found"))
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
	user.PasswordHash = hash
	if err := s.store.Users().Update(r.Context(), user); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "update password", err))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "password_reset", "user", user.ID, "")
	writeOK(w, map[string]any{"ok": true})
}

type pairingValidateRequest struct {
	Slug string `json:"slug"`
	Code string `json:"code"`
}

// handlePairingValidate consumes a tenant's single-use pairing code and
// mints a bearer session token for it; a second call with the same body
// fails because the code was already consumed on the first success.
func (s *Server) handlePairingValidate(w http.ResponseWriter, r *http.Request) {
	var req pairingValidateRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	tenant, err := s.orch.ValidatePairing(r.Context(), req.Slug, req.Code)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	token, err := s.jwt.Generate(&models.User{ID: tenant.ID, Email: tenant.Slug})
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Internal, "issue session token", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "token": token, "tenant_id": tenant.ID, "slug": tenant.Slug, "port": tenant.Port})
}
