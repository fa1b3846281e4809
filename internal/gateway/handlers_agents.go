package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func (s *Server) handleAgentsList(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListAgents(r.Context())
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list agents", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "agents": list})
}

func (s *Server) handleAgentCreate(w http.ResponseWriter, r *http.Request) {
	var a models.Agent
	if status, err := decodeJSON(w, r, &a); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if a.Name == "" {
		writeErr(w, http.StatusBadRequest, "name is required")
		return
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if !a.Enabled {
		a.Enabled = true
	}
	if err := s.db.UpsertAgent(r.Context(), &a); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create agent", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "agent": a})
}

func (s *Server) handleAgentUpdate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	existing, err := s.db.GetAgent(r.Context(), name)
	if err != nil {
		s.writeAppErr(w, mapStorageErr(err, "agent not found"))
		return
	}
	var patch models.Agent
	if status, err := decodeJSON(w, r, &patch); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	patch.Name = existing.Name
	patch.CreatedAt = existing.CreatedAt
	if err := s.db.UpsertAgent(r.Context(), &patch); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "update agent", err))
		return
	}
	s.pool.Invalidate(name)
	writeOK(w, map[string]any{"ok": true, "agent": patch})
}

func (s *Server) handleAgentDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.db.DeleteAgent(r.Context(), name); err != nil {
		s.writeAppErr(w, mapStorageErr(err, "agent not found"))
		return
	}
	s.pool.Invalidate(name)
	writeOK(w, map[string]any{"ok": true})
}

type chatRequest struct {
	Content string `json:"content"`
}

type chatResponse struct {
	OK    bool   `json:"ok"`
	Reply string `json:"reply"`
}

func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req chatRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if req.Content == "" {
		writeErr(w, http.StatusBadRequest, "content is required")
		return
	}
	reply, err := s.pool.RunAgentPrompt(r.Context(), name, req.Content)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	writeOK(w, chatResponse{OK: true, Reply: reply})
}

type broadcastRequest struct {
	Content string `json:"content"`
}

type broadcastResult struct {
	Agent string `json:"agent"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleAgentBroadcast fans one message out to every enabled agent
// concurrently; each agent's own per-agent mutex still serializes its own
// turn, but agents run in parallel with each other.
func (s *Server) handleAgentBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	agents, err := s.db.ListAgents(r.Context())
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list agents", err))
		return
	}

	results := make([]broadcastResult, len(agents))
	var wg sync.WaitGroup
	for i, a := range agents {
		if !a.Enabled {
			results[i] = broadcastResult{Agent: a.Name, Error: "disabled"}
			continue
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			reply, err := s.pool.RunAgentPrompt(r.Context(), name, req.Content)
			if err != nil {
				results[i] = broadcastResult{Agent: name, Error: err.Error()}
				return
			}
			results[i] = broadcastResult{Agent: name, Reply: reply}
		}(i, a.Name)
	}
	wg.Wait()
	writeOK(w, map[string]any{"ok": true, "results": results})
}
