package gateway

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlasforge/agentmesh/internal/apperror"
)

// brainDir is the tenant's shared brain workspace directory; every
// agent built by buildEngine points its brain.Workspace at this same
// path, so these handlers read and write the files agents actually use.
func (s *Server) brainDir() string {
	return filepath.Join(s.dataDir, "brain")
}

func (s *Server) handleBrainList(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.brainDir())
	if err != nil {
		if os.IsNotExist(err) {
			writeOK(w, map[string]any{"ok": true, "files": []string{}})
			return
		}
		s.writeAppErr(w, apperror.New(apperror.Storage, "list brain files", err))
		return
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			files = append(files, e.Name())
		}
	}
	writeOK(w, map[string]any{"ok": true, "files": files})
}

func (s *Server) handleBrainGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := s.resolveBrainPath(name)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid file name")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeErr(w, http.StatusNotFound, "brain file not found")
			return
		}
		s.writeAppErr(w, apperror.New(apperror.Storage, "read brain file", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "name": name, "content": string(data)})
}

type brainUpdateRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleBrainUpdate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := s.resolveBrainPath(name)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid file name")
		return
	}
	var req brainUpdateRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if err := os.MkdirAll(s.brainDir(), 0o755); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create brain workspace", err))
		return
	}
	if err := os.WriteFile(path, []byte(req.Content), 0o644); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "write brain file", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "name": name})
}

// resolveBrainPath confines name to the brain workspace directory,
// rejecting path traversal and anything outside the markdown files the
// agent's system prompt assembly reads.
func (s *Server) resolveBrainPath(name string) (string, error) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") || !strings.HasSuffix(name, ".md") {
		return "", apperror.New(apperror.Config, "invalid brain file name", nil)
	}
	return filepath.Join(s.brainDir(), name), nil
}
