package gateway

import (
	"net/http"
	"time"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/providers"
	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func (s *Server) handleProvidersList(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListProviders(r.Context())
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list providers", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "providers": list})
}

func (s *Server) handleProviderCreate(w http.ResponseWriter, r *http.Request) {
	var p models.ProviderRecord
	if status, err := decodeJSON(w, r, &p); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if p.Name == "" {
		writeErr(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.db.UpsertProvider(r.Context(), &p); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create provider", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "provider": p})
}

func (s *Server) handleProviderUpdate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	existing, err := s.db.GetProvider(r.Context(), name)
	if err != nil {
		s.writeAppErr(w, mapStorageErr(err, "provider not found"))
		return
	}
	var patch models.ProviderRecord
	if status, err := decodeJSON(w, r, &patch); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	patch.Name = existing.Name
	if err := s.db.UpsertProvider(r.Context(), &patch); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "update provider", err))
		return
	}
	s.invalidateProviderModelsCache(name)
	if agents, err := s.db.ListAgents(r.Context()); err == nil {
		for _, a := range agents {
			if a.Provider == name {
				s.pool.Invalidate(a.Name)
			}
		}
	}
	writeOK(w, map[string]any{"ok": true, "provider": patch})
}

func (s *Server) handleProviderDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.db.DeleteProvider(r.Context(), name); err != nil {
		s.writeAppErr(w, mapStorageErr(err, "provider not found"))
		return
	}
	s.invalidateProviderModelsCache(name)
	writeOK(w, map[string]any{"ok": true})
}

// handleProviderModels live-fetches the provider's current model listing,
// falling back to the catalog's static defaults on error, and caches the
// result for modelCacheTTL so repeated calls don't hammer the upstream.
func (s *Server) handleProviderModels(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.modelCacheMu.Lock()
	if entry, ok := s.modelCache[name]; ok && time.Since(entry.fetchedAt) < modelCacheTTL {
		s.modelCacheMu.Unlock()
		writeOK(w, map[string]any{"ok": true, "models": entry.models, "cached": true})
		return
	}
	s.modelCacheMu.Unlock()

	rec, err := s.db.GetProvider(r.Context(), name)
	if err != nil {
		s.writeAppErr(w, mapStorageErr(err, "provider not found"))
		return
	}

	client := providers.NewClient(providers.Config{
		Name:       rec.Name,
		BaseURL:    rec.BaseURL,
		ChatPath:   rec.ChatPath,
		ModelsPath: rec.ModelsPath,
		EnvKeys:    rec.EnvKeys,
		AuthStyle:  rec.AuthStyle,
	}, rec.APIKey, "")

	catalogCfg, _ := providers.Lookup(rec.Name)
	list, err := client.ListModels(r.Context(), catalogCfg, rec.ModelsPath)
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Provider, "list models", err))
		return
	}

	s.modelCacheMu.Lock()
	s.modelCache[name] = modelCacheEntry{fetchedAt: time.Now(), models: list}
	s.modelCacheMu.Unlock()

	writeOK(w, map[string]any{"ok": true, "models": list, "cached": false})
}

func (s *Server) invalidateProviderModelsCache(name string) {
	s.modelCacheMu.Lock()
	delete(s.modelCache, name)
	s.modelCacheMu.Unlock()
}

func mapStorageErr(err error, notFoundMsg string) error {
	if err == storage.ErrNotFound {
		return apperror.New(apperror.NotFound, notFoundMsg, err)
	}
	return apperror.New(apperror.Storage, "storage error", err)
}
