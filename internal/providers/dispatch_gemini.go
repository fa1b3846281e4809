package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func (c *Client) geminiClient(ctx context.Context) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     c.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient(),
	}
	return genai.NewClient(ctx, cfg)
}

func (c *Client) chatCompletionGemini(ctx context.Context, messages []models.Message, tools []ToolDefinition, params GenerateParams) (*Response, error) {
	client, err := c.geminiClient(ctx)
	if err != nil {
		return nil, apperror.Newf(apperror.Provider, err, "%s client init failed", c.Name)
	}

	system, contents := geminiContents(messages)

	resp, err := client.Models.GenerateContent(ctx, params.Model, contents, geminiConfig(system, tools, params))
	if err == nil {
		return geminiResponseToResponse(resp), nil
	}

	if len(tools) > 0 && rejectsTools(err.Error()) {
		retryResp, retryErr := client.Models.GenerateContent(ctx, params.Model, contents, geminiConfig(system, nil, params))
		if retryErr != nil {
			return nil, apperror.Newf(apperror.Provider, retryErr, "%s retry without tools failed", c.Name)
		}
		return geminiResponseToResponse(retryResp), nil
	}

	return nil, apperror.Newf(apperror.Provider, err, "%s API error", c.Name)
}

// geminiContents splits the conversation into Gemini's system-instruction
// text plus a role-tagged content list; tool results need the originating
// call's name, which Gemini's FunctionResponse part requires but the
// dispatch contract's Message only carries as a ToolCallID.
func geminiContents(messages []models.Message) (string, []*genai.Content) {
	var system string
	contents := make([]*genai.Content, 0, len(messages))
	callNames := make(map[string]string)

	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case models.RoleAssistant:
			parts := make([]*genai.Part, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				callNames[tc.ID] = tc.Name
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args}})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case models.RoleTool:
			name := geminiToolName(callNames, m.ToolCallID)
			var response map[string]any
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]any{"result": m.Content}
			}
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{Name: name, Response: response}}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return system, contents
}

func geminiToolName(callNames map[string]string, callID string) string {
	if name, ok := callNames[callID]; ok {
		return name
	}
	return callID
}

func geminiConfig(system string, tools []ToolDefinition, params GenerateParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if params.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(params.MaxTokens)
	}
	if len(tools) > 0 {
		cfg.Tools = []*genai.Tool{geminiTools(tools)}
	}
	return cfg
}

func geminiTools(tools []ToolDefinition) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		var schema any
		if len(t.Parameters) > 0 {
			_ = json.Unmarshal(t.Parameters, &schema)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: schema,
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func geminiResponseToResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	candidate := resp.Candidates[0]
	out.FinishReason = string(candidate.FinishReason)

	var content string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			content += part.Text
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:        geminiToolCallID(part.FunctionCall.Name),
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}
	out.Content = content
	return out
}

// geminiToolCallID synthesizes a call id since Gemini's function-call parts
// don't carry one of their own.
func geminiToolCallID(name string) string {
	return fmt.Sprintf("call_%s_%d", name, time.Now().UnixNano())
}
