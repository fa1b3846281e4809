package gateway

import (
	"net/http"

	"github.com/atlasforge/agentmesh/internal/apperror"
)

func (s *Server) handleKnowledgeList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.knowledge.ListDocuments(r.Context())
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list knowledge documents", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "documents": docs})
}

type knowledgeIngestRequest struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

func (s *Server) handleKnowledgeIngest(w http.ResponseWriter, r *http.Request) {
	var req knowledgeIngestRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if req.Name == "" || req.Content == "" {
		writeErr(w, http.StatusBadRequest, "name and content are required")
		return
	}
	doc, err := s.knowledge.Ingest(r.Context(), req.Name, req.Source, req.Content)
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "ingest document", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "document": doc})
}

func (s *Server) handleKnowledgeSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeErr(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 10
	results, err := s.knowledge.Search(r.Context(), query, limit)
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "search knowledge", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "results": results})
}

func (s *Server) handleKnowledgeDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.knowledge.DeleteDocument(r.Context(), id); err != nil {
		s.writeAppErr(w, mapStorageErr(err, "document not found"))
		return
	}
	writeOK(w, map[string]any{"ok": true})
}
