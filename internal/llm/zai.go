package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/retry"
)

const (
	// ZAIEndpoint is the base URL for Z.ai Coding API
	ZAIEndpoint = "https://api.z.ai/api/coding/paas/v4/chat/completions"
	// ZAIDefaultModel is used when no model is configured.
	ZAIDefaultModel = "glm-4.7"
	// ZAIRequestTimeout is the default timeout for API requests
	ZAIRequestTimeout = 60 * time.Second
	// zaiRequestsPerMinute limits outgoing API calls.
	zaiRequestsPerMinute = 30
)

// ZAIConfig contains configuration for the Z.ai provider.
type ZAIConfig struct {
	APIKey         string `json:"api_key"`         // API key for authentication
	Model          string `json:"model"`           // Default model to use (optional, defaults to glm-4.7)
	TimeoutSeconds int    `json:"timeout_seconds"` // Timeout for HTTP requests in seconds
}

// ZAIProvider implements the Provider interface for Z.ai Coding API.
type ZAIProvider struct {
	client  *http.Client // HTTP client for API requests
	config  ZAIConfig    // Provider configuration
	apiURL  string       // API endpoint URL
	limiter *TokenBucketRateLimiter
	logger  *logger.Logger
}

// zaiRequest represents the request format for Z.ai API.
type zaiRequest struct {
	Messages    []zaiMessage `json:"messages"`              // Conversation messages
	Model       string       `json:"model"`                 // Model identifier
	Temperature float64      `json:"temperature,omitempty"` // Sampling temperature
	MaxTokens   int          `json:"max_tokens,omitempty"`  // Maximum tokens to generate
	Tools       []zaiTool    `json:"tools,omitempty"`       // Available tools/functions
	ToolChoice  string       `json:"tool_choice,omitempty"` // Tool selection mode (auto)
}

// zaiMessage represents a message in Z.ai API format.
type zaiMessage struct {
	Role             string        `json:"role"`                        // Role of the message sender
	Content          string        `json:"content"`                     // Message content
	ToolCallID       string        `json:"tool_call_id,omitempty"`      // Tool call ID for role=tool messages
	ReasoningContent string        `json:"reasoning_content,omitempty"` // Reasoning content (GLM-4.5+)
	ToolCalls        []zaiToolCall `json:"tool_calls,omitempty"`        // Tool calls requested
}

// zaiTool represents a tool definition in Z.ai API format.
type zaiTool struct {
	Type     string                 `json:"type"`     // Always "function"
	Function map[string]interface{} `json:"function"` // Function definition
}

// zaiResponse represents the response format from Z.ai API.
type zaiResponse struct {
	ID      string       `json:"id"`              // Response identifier
	Object  string       `json:"object"`          // Response object type
	Created int64        `json:"created"`         // Unix timestamp
	Model   string       `json:"model"`           // Model used
	Choices []zaiChoice  `json:"choices"`         // Response choices
	Usage   zaiUsage     `json:"usage"`           // Token usage
	Error   *zaiAPIError `json:"error,omitempty"` // API error if present
}

// zaiChoice represents a choice in the response.
type zaiChoice struct {
	Index        int        `json:"index"`                   // Choice index
	Message      zaiMessage `json:"message"`                 // The generated message
	FinishReason string     `json:"finish_reason,omitempty"` // Reason generation stopped
}

// zaiToolCall represents a tool call in the response.
type zaiToolCall struct {
	ID       string `json:"id"`              // Tool call identifier
	Type     string `json:"type"`            // Always "function"
	Index    int    `json:"index,omitempty"` // Tool call index
	Function struct {
		Name      string `json:"name"`      // Function name
		Arguments string `json:"arguments"` // Function arguments as JSON string
	} `json:"function"`
}

// zaiUsage represents token usage information.
type zaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`     // Tokens in prompt
	CompletionTokens int `json:"completion_tokens"` // Tokens in completion
	TotalTokens      int `json:"total_tokens"`      // Total tokens used
}

// zaiAPIError represents an error response from the API.
type zaiAPIError struct {
	Message string `json:"message"` // Error message
	Type    string `json:"type"`    // Error type
	Code    string `json:"code"`    // Error code
}

// NewZAIProvider creates a new ZAIProvider instance.
func NewZAIProvider(cfg ZAIConfig, log *logger.Logger) *ZAIProvider {
	// Set default model if not provided
	if cfg.Model == "" {
		cfg.Model = ZAIDefaultModel
	}

	// Set timeout from config or use default
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = ZAIRequestTimeout
	}

	return &ZAIProvider{
		client: &http.Client{
			Timeout: timeout,
		},
		config:  cfg,
		apiURL:  ZAIEndpoint,
		limiter: NewTokenBucketRateLimiter(zaiRequestsPerMinute, time.Minute/zaiRequestsPerMinute, 1),
		logger:  log,
	}
}

// zaiHTTPError represents an HTTP error from the API.
type zaiHTTPError struct {
	StatusCode int    // HTTP status code
	Body       string // Response body
}

func (e *zaiHTTPError) Error() string {
	return fmt.Sprintf("HTTP error: status=%d, body=%s", e.StatusCode, e.Body)
}

// Name implements the Provider interface.
func (p *ZAIProvider) Name() string {
	return "zai"
}

// ModelName implements the Provider interface.
func (p *ZAIProvider) ModelName() string {
	return p.config.Model
}

// doRequest executes a single HTTP request to Z.ai API.
func (p *ZAIProvider) doRequest(ctx context.Context, reqBody []byte) (*zaiResponse, error) {

	// Create HTTP request
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.config.APIKey))

	// Execute request
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.ErrorCtx(ctx, "Failed to execute request to Z.ai API", err)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	// Read response body
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.ErrorCtx(ctx, "Failed to read response body", err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Check HTTP status code
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.ErrorCtx(ctx, "Z.ai API returned error status", nil,
			logger.Field{Key: "status_code", Value: httpResp.StatusCode},
			logger.Field{Key: "response_body", Value: string(respBody)})

		return nil, &zaiHTTPError{
			StatusCode: httpResp.StatusCode,
			Body:       string(respBody),
		}
	}

	// Parse JSON response
	var zaiResp zaiResponse
	if err := json.Unmarshal(respBody, &zaiResp); err != nil {
		p.logger.ErrorCtx(ctx, "Failed to unmarshal Z.ai response", err,
			logger.Field{Key: "response_body", Value: string(respBody)})
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	// Check for API error in response
	if zaiResp.Error != nil {
		p.logger.ErrorCtx(ctx, "Z.ai API returned error", nil,
			logger.Field{Key: "error_type", Value: zaiResp.Error.Type},
			logger.Field{Key: "error_code", Value: zaiResp.Error.Code},
			logger.Field{Key: "error_message", Value: zaiResp.Error.Message})
		return nil, fmt.Errorf("API error: %s (code: %s): %s",
			zaiResp.Error.Type, zaiResp.Error.Code, zaiResp.Error.Message)
	}

	return &zaiResp, nil
}

// buildRequest maps the neutral request shape to Z.ai API format.
func (p *ZAIProvider) buildRequest(msgs []Message, tools []ToolDefinition, opts Options) zaiRequest {
	messages := make([]zaiMessage, 0, len(msgs))
	for _, msg := range msgs {
		m := zaiMessage{
			Content: msg.Content,
		}

		switch msg.Role {
		case RoleSystem:
			m.Role = "system"
		case RoleUser:
			m.Role = "user"
		case RoleAssistant:
			m.Role = "assistant"
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				call := zaiToolCall{
					ID:   tc.ID,
					Type: "function",
				}
				call.Function.Name = tc.Name
				call.Function.Arguments = string(args)
				m.ToolCalls = append(m.ToolCalls, call)
			}
		case RoleToolResult:
			m.Role = "tool"
			m.ToolCallID = msg.ToolCallID
		default:
			continue
		}

		messages = append(messages, m)
	}

	zaiReq := zaiRequest{
		Messages:    messages,
		Model:       p.config.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	// Map tools if provided
	if len(tools) > 0 {
		zaiReq.Tools = make([]zaiTool, len(tools))
		for i, tool := range tools {
			zaiReq.Tools[i] = zaiTool{
				Type: "function",
				Function: map[string]interface{}{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Parameters,
				},
			}
		}
		zaiReq.ToolChoice = "auto"
	}

	return zaiReq
}

// mapResponse maps a Z.ai API response to the neutral result shape.
func (p *ZAIProvider) mapResponse(ctx context.Context, zaiResp *zaiResponse) *GenerationResult {
	usage := Usage{
		PromptTokens:     zaiResp.Usage.PromptTokens,
		CompletionTokens: zaiResp.Usage.CompletionTokens,
		TotalTokens:      zaiResp.Usage.TotalTokens,
	}

	if len(zaiResp.Choices) == 0 {
		p.logger.WarnCtx(ctx, "Z.ai response has no choices",
			logger.Field{Key: "model", Value: zaiResp.Model})
		return &GenerationResult{
			FinishReason: FinishReasonError,
			Usage:        usage,
		}
	}

	choice := zaiResp.Choices[0]

	// Map tool calls if present
	toolCalls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				p.logger.WarnCtx(ctx, "Failed to decode tool call arguments",
					logger.Field{Key: "tool", Value: tc.Function.Name},
					logger.Field{Key: "error", Value: err.Error()})
				args = map[string]any{}
			}
		}
		toolCalls = append(toolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	// Use reasoning_content if content is empty (GLM-4.7+ feature)
	content := choice.Message.Content
	if content == "" && choice.Message.ReasoningContent != "" {
		content = choice.Message.ReasoningContent
	}

	p.logger.DebugCtx(ctx, "Z.ai response",
		logger.Field{Key: "model", Value: zaiResp.Model},
		logger.Field{Key: "finish_reason", Value: choice.FinishReason},
		logger.Field{Key: "tool_calls_count", Value: len(toolCalls)},
		logger.Field{Key: "content_length", Value: len(content)})

	return &GenerationResult{
		Text:         content,
		ToolCalls:    toolCalls,
		FinishReason: mapZAIFinishReason(choice.FinishReason, len(toolCalls) > 0),
		Usage:        usage,
	}
}

// mapZAIFinishReason maps API finish reasons to neutral finish reasons.
func mapZAIFinishReason(reason string, hasToolCalls bool) FinishReason {
	switch reason {
	case "tool_calls":
		return FinishReasonToolCalls
	case "length":
		return FinishReasonLength
	case "stop":
		if hasToolCalls {
			return FinishReasonToolCalls
		}
		return FinishReasonStop
	default:
		if hasToolCalls {
			return FinishReasonToolCalls
		}
		return FinishReasonStop
	}
}

// Generate implements the Provider interface.
func (p *ZAIProvider) Generate(ctx context.Context, msgs []Message, opts Options) (string, error) {
	res, err := p.GenerateWithTools(ctx, msgs, nil, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GenerateWithTools implements the Provider interface.
func (p *ZAIProvider) GenerateWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts Options) (*GenerationResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqBody := p.buildRequest(msgs, tools, opts)
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		p.logger.ErrorCtx(ctx, "Failed to marshal request", err)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	p.logger.DebugCtx(ctx, "Sending chat request to Z.ai API",
		logger.Field{Key: "model", Value: p.config.Model},
		logger.Field{Key: "messages_count", Value: len(reqBody.Messages)},
		logger.Field{Key: "tools_count", Value: len(reqBody.Tools)})

	zaiResp, err := retry.DoWithRetry(ctx, func() (*zaiResponse, error) {
		return p.doRequest(ctx, jsonBody)
	}, retry.Config{}, p.logger)
	if err != nil {
		return nil, err
	}

	return p.mapResponse(ctx, zaiResp), nil
}

// Embed implements the Provider interface.
// The Z.ai Coding API has no embedding endpoint.
func (p *ZAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}

// SupportsTools implements the Provider interface.
// GLM-4.7 supports tool calling.
func (p *ZAIProvider) SupportsTools() bool {
	return true
}

// SupportsVision implements the Provider interface.
// The coding endpoint is text-only.
func (p *ZAIProvider) SupportsVision() bool {
	return false
}

// IsAvailable implements the Provider interface.
func (p *ZAIProvider) IsAvailable(ctx context.Context) bool {
	return p.config.APIKey != ""
}
