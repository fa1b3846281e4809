package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atlasforge/agentmesh/internal/apperror"
)

// maxRequestBodyBytes caps every decoded JSON body per the spec's 1 MiB limit.
var maxRequestBodyBytes int64 = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, payload)
}

func writeErr(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

// writeAppErr maps an apperror.Kind to an HTTP status and a generic,
// client-safe message; anything not recognized as an *apperror.Error is
// logged and surfaced as a plain internal error.
func (s *Server) writeAppErr(w http.ResponseWriter, err error) {
	var ae *apperror.Error
	if !errors.As(err, &ae) {
		s.logger.Error("unhandled error", "error", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	status := http.StatusInternalServerError
	switch ae.Kind {
	case apperror.Config, apperror.Conflict:
		status = http.StatusBadRequest
	case apperror.Auth:
		status = http.StatusUnauthorized
	case apperror.NotFound:
		status = http.StatusNotFound
	case apperror.PolicyDenied:
		status = http.StatusForbidden
	case apperror.Timeout:
		status = http.StatusGatewayTimeout
	case apperror.Provider, apperror.ChannelError:
		status = http.StatusBadGateway
	case apperror.Storage, apperror.Internal:
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "kind", ae.Kind, "error", ae.Cause)
		writeErr(w, status, "internal error")
		return
	}
	writeErr(w, status, ae.Message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, err
		}
		return http.StatusBadRequest, err
	}
	return 0, nil
}
