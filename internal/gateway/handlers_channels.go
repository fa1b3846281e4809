package gateway

import (
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/pkg/models"
)

type channelSummary struct {
	Type      models.ChannelType `json:"channel_type"`
	Connected bool               `json:"connected"`
	Error     string             `json:"error,omitempty"`
}

// handleChannelsList reports the live connection status of every
// registered adapter, regardless of whether any per-agent channel
// instances are bound to it.
func (s *Server) handleChannelsList(w http.ResponseWriter, r *http.Request) {
	health := s.channels.HealthAdapters()
	summaries := make([]channelSummary, 0, len(health))
	for t, h := range health {
		status := h.Status()
		summaries = append(summaries, channelSummary{Type: t, Connected: status.Connected, Error: status.Error})
	}
	writeOK(w, map[string]any{"ok": true, "channels": summaries})
}

type channelsUpdateRequest struct {
	Telegram map[string]string `json:"telegram"`
	Discord  map[string]string `json:"discord"`
	Slack    map[string]string `json:"slack"`
	Email    map[string]string `json:"email"`
	Webhook  map[string]string `json:"webhook"`
}

// handleChannelsUpdate patches channel credentials, persists them to
// config.yaml, and tears down and rebuilds every adapter against the
// new configuration.
func (s *Server) handleChannelsUpdate(w http.ResponseWriter, r *http.Request) {
	var req channelsUpdateRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if req.Telegram != nil {
		s.cfg.Channels.Telegram = req.Telegram
	}
	if req.Discord != nil {
		s.cfg.Channels.Discord = req.Discord
	}
	if req.Slack != nil {
		s.cfg.Channels.Slack = req.Slack
	}
	if req.Email != nil {
		s.cfg.Channels.Email = req.Email
	}
	if req.Webhook != nil {
		s.cfg.Channels.Webhook = req.Webhook
	}

	if data, err := yaml.Marshal(s.cfg); err == nil {
		_ = os.WriteFile(s.dataDir+"/config.yaml", data, 0o600)
	}

	s.reloadChannels(r.Context())
	writeOK(w, map[string]any{"ok": true, "channels": s.cfg.Channels})
}

func (s *Server) handleChannelInstancesList(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListChannelInstances(r.Context())
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list channel instances", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "instances": list})
}

func (s *Server) handleChannelInstanceCreate(w http.ResponseWriter, r *http.Request) {
	var inst models.ChannelInstance
	if status, err := decodeJSON(w, r, &inst); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if inst.Type == "" {
		writeErr(w, http.StatusBadRequest, "channel_type is required")
		return
	}
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inst.CreatedAt, inst.UpdatedAt = now, now
	if inst.Status == "" {
		inst.Status = models.ChannelDisconnected
	}
	if err := s.db.UpsertChannelInstance(r.Context(), &inst); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create channel instance", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "instance": inst})
}

func (s *Server) handleChannelInstanceDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.db.DeleteChannelInstance(r.Context(), id); err != nil {
		s.writeAppErr(w, mapStorageErr(err, "channel instance not found"))
		return
	}
	writeOK(w, map[string]any{"ok": true})
}
