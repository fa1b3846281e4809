package gateway

import (
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type infoResponse struct {
	OK        bool      `json:"ok"`
	Identity  string    `json:"identity"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeOK(w, infoResponse{
		OK:        true,
		Identity:  s.cfg.Identity.Name,
		Provider:  s.cfg.LLM.Provider,
		Model:     s.cfg.LLM.Model,
		StartedAt: s.startTime,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"ok": true, "config": s.cfg})
}

type configUpdateRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Identity string `json:"identity"`
}

// handleConfigUpdate patches the in-memory running config and persists it
// back to the tenant's on-disk config.yaml. A process restart is required
// for changes that affect the bind address.
func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if req.Provider != "" {
		s.cfg.LLM.Provider = req.Provider
	}
	if req.Model != "" {
		s.cfg.LLM.Model = req.Model
	}
	if req.Identity != "" {
		s.cfg.Identity.Name = req.Identity
	}
	s.pool.mu.Lock()
	s.pool.handles = map[string]*agentHandle{}
	s.pool.mu.Unlock()

	data, err := yaml.Marshal(s.cfg)
	if err == nil {
		_ = os.WriteFile(s.dataDir+"/config.yaml", data, 0o600)
	}
	writeOK(w, map[string]any{"ok": true, "config": s.cfg})
}

func (s *Server) handleConfigFull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providers, _ := s.db.ListProviders(ctx)
	agents, _ := s.db.ListAgents(ctx)
	channels, _ := s.db.ListChannelInstances(ctx)
	writeOK(w, map[string]any{
		"ok":        true,
		"config":    s.cfg,
		"providers": providers,
		"agents":    agents,
		"channels":  channels,
	})
}
