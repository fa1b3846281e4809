package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// openAIClient builds an SDK client around this dispatcher's resolved
// credentials and base URL. Azure is the one catalog entry that speaks
// the OpenAI schema but authenticates with a keyed header instead of a
// bearer token; the SDK's own Azure mode handles that, including the
// deployment-scoped URL and api-version query parameter.
func (c *Client) openAIClient() *openai.Client {
	cfg := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	cfg.HTTPClient = c.httpClient()
	if c.AuthStyle == models.AuthHeaderKeyed {
		cfg.APIType = openai.APITypeAzure
		cfg.APIVersion = "2024-02-01"
	}
	return openai.NewClientWithConfig(cfg)
}

func (c *Client) chatCompletionOpenAI(ctx context.Context, messages []models.Message, tools []ToolDefinition, params GenerateParams) (*Response, error) {
	client := c.openAIClient()

	resp, err := client.CreateChatCompletion(ctx, buildOpenAIRequest(messages, tools, params))
	if err == nil {
		return openAIResponseToResponse(resp)
	}

	var apiErr *openai.APIError
	if len(tools) > 0 && errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest && rejectsTools(apiErr.Message) {
		retryResp, retryErr := client.CreateChatCompletion(ctx, buildOpenAIRequest(messages, nil, params))
		if retryErr != nil {
			return nil, apperror.Newf(apperror.Provider, retryErr, "%s retry without tools failed", c.Name)
		}
		return openAIResponseToResponse(retryResp)
	}

	return nil, apperror.Newf(apperror.Provider, err, "%s API error", c.Name)
}

func buildOpenAIRequest(messages []models.Message, tools []ToolDefinition, params GenerateParams) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       params.Model,
		Temperature: float32(params.Temperature),
		MaxTokens:   params.MaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openAIMessage(m))
	}
	if len(tools) == 0 {
		return req
	}
	req.Tools = make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolParameters(t.Parameters),
			},
		})
	}
	return req
}

func openAIMessage(m models.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:       tc.ID,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return msg
}

// toolParameters unmarshals a tool's raw JSON schema into the generic
// value go-openai's FunctionDefinition.Parameters expects, falling back
// to an empty object schema when the tool carries none.
func toolParameters(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return v
}

func openAIResponseToResponse(resp openai.ChatCompletionResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, apperror.New(apperror.Provider, "no choices in provider response", nil)
	}
	choice := resp.Choices[0]
	out := &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}
