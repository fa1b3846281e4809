package gateway

import "net/http"

// routes builds the gateway's full mux: public endpoints unguarded,
// everything under /api/v1 behind the pairing-code middleware, all of it
// behind the fixed security headers.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /webhooks/whatsapp", s.handleWhatsAppVerify)
	mux.HandleFunc("POST /webhooks/whatsapp", s.handleWhatsAppReceive)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/info", s.handleInfo)
	api.HandleFunc("GET /api/v1/config", s.handleConfigGet)
	api.HandleFunc("POST /api/v1/config/update", s.handleConfigUpdate)
	api.HandleFunc("GET /api/v1/config/full", s.handleConfigFull)

	api.HandleFunc("GET /api/v1/providers", s.handleProvidersList)
	api.HandleFunc("POST /api/v1/providers", s.handleProviderCreate)
	api.HandleFunc("PUT /api/v1/providers/{name}", s.handleProviderUpdate)
	api.HandleFunc("DELETE /api/v1/providers/{name}", s.handleProviderDelete)
	api.HandleFunc("GET /api/v1/providers/{name}/models", s.handleProviderModels)

	api.HandleFunc("GET /api/v1/agents", s.handleAgentsList)
	api.HandleFunc("POST /api/v1/agents", s.handleAgentCreate)
	api.HandleFunc("PUT /api/v1/agents/{name}", s.handleAgentUpdate)
	api.HandleFunc("DELETE /api/v1/agents/{name}", s.handleAgentDelete)
	api.HandleFunc("POST /api/v1/agents/{name}/chat", s.handleAgentChat)
	api.HandleFunc("POST /api/v1/agents/broadcast", s.handleAgentBroadcast)

	api.HandleFunc("GET /api/v1/channels", s.handleChannelsList)
	api.HandleFunc("POST /api/v1/channels/update", s.handleChannelsUpdate)
	api.HandleFunc("GET /api/v1/channel-instances", s.handleChannelInstancesList)
	api.HandleFunc("POST /api/v1/channel-instances", s.handleChannelInstanceCreate)
	api.HandleFunc("DELETE /api/v1/channel-instances/{id}", s.handleChannelInstanceDelete)

	api.HandleFunc("GET /api/v1/scheduler/tasks", s.handleTasksList)
	api.HandleFunc("POST /api/v1/scheduler/tasks", s.handleTaskCreate)
	api.HandleFunc("GET /api/v1/scheduler/tasks/{id}", s.handleTaskGet)
	api.HandleFunc("DELETE /api/v1/scheduler/tasks/{id}", s.handleTaskDelete)

	api.HandleFunc("GET /api/v1/knowledge", s.handleKnowledgeList)
	api.HandleFunc("POST /api/v1/knowledge", s.handleKnowledgeIngest)
	api.HandleFunc("GET /api/v1/knowledge/search", s.handleKnowledgeSearch)
	api.HandleFunc("DELETE /api/v1/knowledge/{id}", s.handleKnowledgeDelete)

	api.HandleFunc("GET /api/v1/brain/files", s.handleBrainList)
	api.HandleFunc("GET /api/v1/brain/files/{name}", s.handleBrainGet)
	api.HandleFunc("POST /api/v1/brain/files/{name}", s.handleBrainUpdate)

	api.HandleFunc("GET /api/v1/workflow-rules", s.handleWorkflowRulesList)
	api.HandleFunc("POST /api/v1/workflow-rules", s.handleWorkflowRuleCreate)
	api.HandleFunc("DELETE /api/v1/workflow-rules/{id}", s.handleWorkflowRuleDelete)

	mux.Handle("/api/v1/", s.requirePairing(api))
	mux.Handle("/ws", s.requirePairing(http.HandlerFunc(s.handleWS)))

	return securityHeaders(s.tracer.HTTPMiddleware(mux))
}
