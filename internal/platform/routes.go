package platform

import "net/http"

// routes builds the platform's full mux: unauthenticated endpoints
// (login, register, password reset, pairing validation) alongside a
// JWT-gated /api/admin surface, all behind the fixed security headers.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/admin/login", s.handleLogin)
	mux.HandleFunc("POST /api/admin/register", s.handleRegister)
	mux.HandleFunc("POST /api/admin/password-reset", s.handlePasswordResetRequest)
	mux.HandleFunc("POST /api/admin/password-reset/confirm", s.handlePasswordResetConfirm)
	mux.HandleFunc("POST /api/admin/pairing/validate", s.handlePairingValidate)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /api/admin/stats", s.handleStats)

	admin.HandleFunc("GET /api/admin/tenants", s.handleTenantsList)
	admin.HandleFunc("POST /api/admin/tenants", s.handleTenantCreate)
	admin.HandleFunc("GET /api/admin/tenants/{id}", s.handleTenantGet)
	admin.HandleFunc("DELETE /api/admin/tenants/{id}", s.handleTenantDelete)
	admin.HandleFunc("POST /api/admin/tenants/{id}/start", s.handleTenantStart)
	admin.HandleFunc("POST /api/admin/tenants/{id}/stop", s.handleTenantStop)
	admin.HandleFunc("POST /api/admin/tenants/{id}/restart", s.handleTenantRestart)
	admin.HandleFunc("POST /api/admin/tenants/{id}/pairing", s.handleTenantResetPairing)

	admin.HandleFunc("GET /api/admin/tenants/{id}/channels", s.handleTenantChannelsList)
	admin.HandleFunc("POST /api/admin/tenants/{id}/channels", s.handleTenantChannelCreate)
	admin.HandleFunc("DELETE /api/admin/tenants/{id}/channels/{channel_id}", s.handleTenantChannelDelete)

	admin.HandleFunc("GET /api/admin/tenants/{id}/configs", s.handleTenantConfigsList)
	admin.HandleFunc("POST /api/admin/tenants/{id}/configs", s.handleTenantConfigSet)

	admin.HandleFunc("GET /api/admin/tenants/{id}/agents", s.handleTenantAgentsList)
	admin.HandleFunc("POST /api/admin/tenants/{id}/agents", s.handleTenantAgentCreate)
	admin.HandleFunc("DELETE /api/admin/tenants/{id}/agents/{name}", s.handleTenantAgentDelete)

	admin.HandleFunc("GET /api/admin/users", s.handleUsersList)
	admin.HandleFunc("POST /api/admin/users", s.handleUserCreate)
	admin.HandleFunc("GET /api/admin/users/{id}", s.handleUserGet)
	admin.HandleFunc("DELETE /api/admin/users/{id}", s.handleUserDelete)
	admin.HandleFunc("PUT /api/admin/users/{id}/tenant", s.handleUserTenantUpdate)
	admin.HandleFunc("PUT /api/admin/users/{id}/status", s.handleUserStatusUpdate)
	admin.HandleFunc("PUT /api/admin/users/{id}/role", s.handleUserRoleUpdate)
	admin.HandleFunc("PUT /api/admin/users/{id}/password/reset", s.handleUserPasswordReset)

	mux.Handle("/api/admin/", s.requireAuth(admin))

	return securityHeaders(s.tracer.HTTPMiddleware(mux))
}
