package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/pkg/models"
)

const anthropicMaxTokens = 4096

// anthropicErrorPayload mirrors the {"error":{"message":...}} envelope
// Anthropic wraps its error responses in, so a raw *anthropic.Error (which
// only strongly types the HTTP status) can still be inspected for the
// tool-rejection phrasing.
type anthropicErrorPayload struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) anthropicClient() anthropic.Client {
	opts := []option.RequestOption{option.WithHTTPClient(c.httpClient())}
	if c.APIKey != "" {
		opts = append(opts, option.WithAPIKey(c.APIKey))
	}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	return anthropic.NewClient(opts...)
}

func (c *Client) chatCompletionAnthropic(ctx context.Context, messages []models.Message, tools []ToolDefinition, params GenerateParams) (*Response, error) {
	client := c.anthropicClient()

	msg, err := client.Messages.New(ctx, anthropicParams(messages, tools, params))
	if err == nil {
		return anthropicMessageToResponse(msg), nil
	}

	var apiErr *anthropic.Error
	if len(tools) > 0 && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && rejectsTools(anthropicErrorMessage(apiErr)) {
		retryMsg, retryErr := client.Messages.New(ctx, anthropicParams(messages, nil, params))
		if retryErr != nil {
			return nil, apperror.Newf(apperror.Provider, retryErr, "%s retry without tools failed", c.Name)
		}
		return anthropicMessageToResponse(retryMsg), nil
	}

	return nil, apperror.Newf(apperror.Provider, err, "%s API error", c.Name)
}

func anthropicErrorMessage(apiErr *anthropic.Error) string {
	var payload anthropicErrorPayload
	if err := json.Unmarshal([]byte(apiErr.RawJSON()), &payload); err != nil {
		return apiErr.Error()
	}
	if payload.Error.Message != "" {
		return payload.Error.Message
	}
	return apiErr.Error()
}

func anthropicParams(messages []models.Message, tools []ToolDefinition, params GenerateParams) anthropic.MessageNewParams {
	maxTokens := int64(params.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model),
		MaxTokens: maxTokens,
	}

	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			req.System = append(req.System, anthropic.NewTextBlock(m.Content))
			continue
		}
		converted = append(converted, anthropicMessage(m))
	}
	req.Messages = converted

	if len(tools) > 0 {
		req.Tools = anthropicTools(tools)
	}
	return req
}

func anthropicMessage(m models.Message) anthropic.MessageParam {
	switch m.Role {
	case models.RoleTool:
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
	case models.RoleAssistant:
		if len(m.ToolCalls) == 0 {
			return anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content))
		}
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
		if m.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			var input map[string]any
			_ = json.Unmarshal([]byte(tc.Arguments), &input)
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		return anthropic.NewAssistantMessage(blocks...)
	default:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
	}
}

func anthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropicInputSchema(t.Parameters)
		tool := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if t.Description != "" {
			tool.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, tool)
	}
	return out
}

func anthropicInputSchema(raw json.RawMessage) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{}
	if len(raw) == 0 {
		return schema
	}
	var parsed struct {
		Properties any      `json:"properties"`
		Required   []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return schema
	}
	schema.Properties = parsed.Properties
	schema.Required = parsed.Required
	return schema
}

func anthropicMessageToResponse(msg *anthropic.Message) *Response {
	out := &Response{
		FinishReason: string(msg.StopReason),
		PromptTokens: int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}

	var content strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			tu := block.AsToolUse()
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: string(tu.Input),
			})
		}
	}
	out.Content = content.String()
	return out
}
