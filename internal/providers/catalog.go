// Package providers implements LLM backend dispatch: one compile-time
// catalog of endpoint shapes plus a Client that sends each chat completion
// through the OpenAI, Anthropic or Gemini SDK, depending on the backend.
package providers

import "github.com/atlasforge/agentmesh/pkg/models"

// ModelDef is a statically known model offered by a provider, used as a
// fallback when a provider's models endpoint is unreachable or empty.
type ModelDef struct {
	ID              string
	Name            string
	ContextLength   int
	MaxOutputTokens int
}

func (m ModelDef) toModelInfo(provider string) models.ModelInfo {
	return models.ModelInfo{
		ID:              m.ID,
		Name:            m.Name,
		Provider:        provider,
		ContextLength:   m.ContextLength,
		MaxOutputTokens: m.MaxOutputTokens,
	}
}

// Config is the static shape of one backend: where it lives, how chat
// completions and model listings are reached, and how credentials attach.
type Config struct {
	Name          string
	BaseURL       string
	ChatPath      string
	ModelsPath    string
	EnvKeys       []string
	AuthStyle     models.AuthStyle
	BaseURLEnv    string
	DefaultModels []ModelDef
}

var openAIModels = []ModelDef{
	{ID: "gpt-4o", Name: "GPT-4o", ContextLength: 128000, MaxOutputTokens: 4096},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextLength: 128000, MaxOutputTokens: 4096},
}

var openRouterModels = []ModelDef{
	{ID: "openai/gpt-4o", Name: "GPT-4o (OpenRouter)", ContextLength: 128000, MaxOutputTokens: 4096},
	{ID: "anthropic/claude-sonnet-4-20250514", Name: "Claude Sonnet 4 (OpenRouter)", ContextLength: 200000, MaxOutputTokens: 8192},
}

var anthropicModels = []ModelDef{
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextLength: 200000, MaxOutputTokens: 8192},
	{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextLength: 200000, MaxOutputTokens: 8192},
	{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ContextLength: 200000, MaxOutputTokens: 8192},
}

var deepseekModels = []ModelDef{
	{ID: "deepseek-chat", Name: "DeepSeek Chat", ContextLength: 128000, MaxOutputTokens: 8192},
	{ID: "deepseek-reasoner", Name: "DeepSeek R1", ContextLength: 64000, MaxOutputTokens: 8192},
}

var groqModels = []ModelDef{
	{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B", ContextLength: 128000, MaxOutputTokens: 32768},
	{ID: "llama-3.1-8b-instant", Name: "Llama 3.1 8B", ContextLength: 128000, MaxOutputTokens: 8192},
	{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B", ContextLength: 32768, MaxOutputTokens: 8192},
}

var mistralModels = []ModelDef{
	{ID: "mistral-large-latest", Name: "Mistral Large", ContextLength: 128000, MaxOutputTokens: 8192},
	{ID: "mistral-small-latest", Name: "Mistral Small", ContextLength: 128000, MaxOutputTokens: 8192},
}

var cohereModels = []ModelDef{
	{ID: "command-r-plus", Name: "Command R+", ContextLength: 128000, MaxOutputTokens: 4096},
}

var togetherModels = []ModelDef{
	{ID: "meta-llama/Llama-3.3-70B-Instruct-Turbo", Name: "Llama 3.3 70B (Together)", ContextLength: 128000, MaxOutputTokens: 4096},
}

var fireworksModels = []ModelDef{
	{ID: "accounts/fireworks/models/llama-v3p3-70b-instruct", Name: "Llama 3.3 70B (Fireworks)", ContextLength: 128000, MaxOutputTokens: 4096},
}

var perplexityModels = []ModelDef{
	{ID: "sonar", Name: "Sonar", ContextLength: 127000, MaxOutputTokens: 4096},
	{ID: "sonar-pro", Name: "Sonar Pro", ContextLength: 200000, MaxOutputTokens: 8192},
}

var xaiModels = []ModelDef{
	{ID: "grok-3", Name: "Grok 3", ContextLength: 131072, MaxOutputTokens: 16384},
	{ID: "grok-3-mini", Name: "Grok 3 Mini", ContextLength: 131072, MaxOutputTokens: 16384},
}

var azureModels = []ModelDef{
	{ID: "gpt-4o", Name: "GPT-4o (Azure)", ContextLength: 128000, MaxOutputTokens: 4096},
}

var bedrockProxyModels = []ModelDef{
	{ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", Name: "Claude 3.5 Sonnet (Bedrock)", ContextLength: 200000, MaxOutputTokens: 8192},
}

var ollamaModels = []ModelDef{
	{ID: "llama3.2", Name: "Llama 3.2 (Ollama)", ContextLength: 4096, MaxOutputTokens: 4096},
}

var brainModels = []ModelDef{
	{ID: "local", Name: "Local Brain Model", ContextLength: 8192, MaxOutputTokens: 4096},
}

var geminiModels = []ModelDef{
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextLength: 1048576, MaxOutputTokens: 8192},
	{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", ContextLength: 2097152, MaxOutputTokens: 8192},
}

// catalog is the compile-time list of all known backends. Each entry
// describes only endpoint shape and credential resolution. The dispatcher
// in dispatch.go sends a backend through the Anthropic SDK when its name is
// "anthropic" or its base URL contains "anthropic", through the Gemini SDK
// when its name is "gemini" or its base URL contains "generativelanguage",
// and through the OpenAI SDK otherwise.
var catalog = []Config{
	{Name: "openai", BaseURL: "https://api.openai.com/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"OPENAI_API_KEY"}, AuthStyle: models.AuthBearer, BaseURLEnv: "OPENAI_API_BASE", DefaultModels: openAIModels},
	{Name: "openrouter", BaseURL: "https://openrouter.ai/api/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: openRouterModels},
	{Name: "anthropic", BaseURL: "https://api.anthropic.com/v1", ChatPath: "/messages", ModelsPath: "/models",
		EnvKeys: []string{"ANTHROPIC_API_KEY"}, AuthStyle: models.AuthHeaderKeyed, DefaultModels: anthropicModels},
	{Name: "deepseek", BaseURL: "https://api.deepseek.com", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"DEEPSEEK_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: deepseekModels},
	{Name: "groq", BaseURL: "https://api.groq.com/openai/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"GROQ_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: groqModels},
	{Name: "mistral", BaseURL: "https://api.mistral.ai/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"MISTRAL_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: mistralModels},
	{Name: "cohere", BaseURL: "https://api.cohere.ai/compatibility/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"COHERE_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: cohereModels},
	{Name: "together", BaseURL: "https://api.together.xyz/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"TOGETHER_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: togetherModels},
	{Name: "fireworks", BaseURL: "https://api.fireworks.ai/inference/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"FIREWORKS_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: fireworksModels},
	{Name: "perplexity", BaseURL: "https://api.perplexity.ai", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"PERPLEXITY_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: perplexityModels},
	{Name: "xai", BaseURL: "https://api.x.ai/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"XAI_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: xaiModels},
	{Name: "azure", BaseURL: "", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"AZURE_OPENAI_API_KEY"}, AuthStyle: models.AuthHeaderKeyed, BaseURLEnv: "AZURE_OPENAI_ENDPOINT", DefaultModels: azureModels},
	{Name: "bedrock-proxy", BaseURL: "http://localhost:8088/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		EnvKeys: []string{"BEDROCK_PROXY_API_KEY"}, AuthStyle: models.AuthBearer, BaseURLEnv: "BEDROCK_PROXY_HOST", DefaultModels: bedrockProxyModels},
	{Name: "ollama", BaseURL: "http://localhost:11434/v1", ChatPath: "/chat/completions", ModelsPath: "/models",
		AuthStyle: models.AuthNone, BaseURLEnv: "OLLAMA_HOST", DefaultModels: ollamaModels},
	{Name: "brain", BaseURL: "http://localhost:8089/v1", ChatPath: "/chat/completions", ModelsPath: "",
		AuthStyle: models.AuthNone, BaseURLEnv: "BRAIN_HOST", DefaultModels: brainModels},
	{Name: "gemini", BaseURL: "https://generativelanguage.googleapis.com", ChatPath: "", ModelsPath: "",
		EnvKeys: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, AuthStyle: models.AuthBearer, DefaultModels: geminiModels},
}

var aliases = map[string]string{
	"google":      "gemini",
	"grok":        "xai",
	"togetherai":  "together",
	"together_ai": "together",
	"azureopenai": "azure",
	"bedrock":     "bedrock-proxy",
}

// Lookup returns the static config for a provider name, resolving known
// aliases first. The bool is false when the name is not in the catalog.
func Lookup(name string) (Config, bool) {
	if canon, ok := aliases[name]; ok {
		name = canon
	}
	for _, c := range catalog {
		if c.Name == name {
			return c, true
		}
	}
	return Config{}, false
}

// Names returns every provider name known to the catalog, in declaration order.
func Names() []string {
	out := make([]string, len(catalog))
	for i, c := range catalog {
		out[i] = c.Name
	}
	return out
}
