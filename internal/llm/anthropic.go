package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/retry"
)

const (
	// AnthropicDefaultModel is used when no model is configured.
	AnthropicDefaultModel = "claude-3-haiku-20240307"
	// AnthropicDefaultMaxTokens bounds the completion when the request does not.
	AnthropicDefaultMaxTokens = 4096
	// anthropicRequestsPerMinute limits outgoing API calls.
	anthropicRequestsPerMinute = 30
)

// AnthropicConfig contains configuration for the Anthropic provider.
type AnthropicConfig struct {
	APIKey string `json:"api_key"` // API key for authentication
	Model  string `json:"model"`   // Model to use (optional, defaults to AnthropicDefaultModel)
}

// AnthropicProvider implements the Provider interface for the Anthropic
// Messages API using the official SDK.
type AnthropicProvider struct {
	client  anthropic.Client
	config  AnthropicConfig
	limiter *TokenBucketRateLimiter
	logger  *logger.Logger

	mu      sync.Mutex
	session Usage // Cumulative token usage for the process lifetime
}

// NewAnthropicProvider creates a new AnthropicProvider instance.
func NewAnthropicProvider(cfg AnthropicConfig, log *logger.Logger) *AnthropicProvider {
	if cfg.Model == "" {
		cfg.Model = AnthropicDefaultModel
	}

	return &AnthropicProvider{
		client:  anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		config:  cfg,
		limiter: NewTokenBucketRateLimiter(anthropicRequestsPerMinute, time.Minute/anthropicRequestsPerMinute, 1),
		logger:  log,
	}
}

// Name implements the Provider interface.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// ModelName implements the Provider interface.
func (p *AnthropicProvider) ModelName() string {
	return p.config.Model
}

// Generate implements the Provider interface.
func (p *AnthropicProvider) Generate(ctx context.Context, msgs []Message, opts Options) (string, error) {
	res, err := p.GenerateWithTools(ctx, msgs, nil, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GenerateWithTools implements the Provider interface.
func (p *AnthropicProvider) GenerateWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts Options) (*GenerationResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := p.buildParams(msgs, tools, opts)

	p.logger.DebugCtx(ctx, "Sending request to Anthropic API",
		logger.Field{Key: "model", Value: p.config.Model},
		logger.Field{Key: "messages_count", Value: len(params.Messages)},
		logger.Field{Key: "tools_count", Value: len(params.Tools)})

	msg, err := retry.DoWithRetry(ctx, func() (*anthropic.Message, error) {
		return p.client.Messages.New(ctx, params)
	}, retry.Config{}, p.logger)
	if err != nil {
		p.logger.ErrorCtx(ctx, "Anthropic request failed", err)
		return nil, fmt.Errorf("anthropic request: %w", err)
	}

	return p.mapResponse(ctx, msg), nil
}

// buildParams maps the neutral request shape to Anthropic API parameters.
func (p *AnthropicProvider) buildParams(msgs []Message, tools []ToolDefinition, opts Options) anthropic.MessageNewParams {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = AnthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(maxTokens),
		Messages:  p.buildMessages(msgs),
	}

	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	if system := systemText(msgs); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if len(tools) > 0 {
		params.Tools = buildAnthropicTools(tools)
	}

	return params
}

// buildMessages converts neutral messages to Anthropic format.
// Consecutive tool results are folded into a single user message because the
// API expects all results for one assistant turn in the next user turn.
func (p *AnthropicProvider) buildMessages(msgs []Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			result = append(result, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			// System messages are passed via params.System
			continue

		case RoleUser:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Image != nil {
				blocks = append(blocks, anthropic.NewImageBlockBase64(
					msg.Image.MIME,
					base64.StdEncoding.EncodeToString(msg.Image.Data),
				))
			}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			if len(blocks) == 0 {
				// Empty text blocks are rejected by the API
				continue
			}
			result = append(result, anthropic.NewUserMessage(blocks...))

		case RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: input,
					},
				})
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: blocks,
				})
			}

		case RoleToolResult:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(
				msg.ToolCallID,
				msg.Content,
				msg.IsError,
			))
		}
	}

	flushResults()

	return result
}

// buildAnthropicTools converts tool definitions to Anthropic format.
func buildAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, tool := range tools {
		toolParam := anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: tool.Parameters["properties"],
			},
		}

		if required, ok := tool.Parameters["required"].([]string); ok {
			toolParam.InputSchema.Required = required
		} else if required, ok := tool.Parameters["required"].([]interface{}); ok {
			reqStrings := make([]string, 0, len(required))
			for _, r := range required {
				if s, ok := r.(string); ok {
					reqStrings = append(reqStrings, s)
				}
			}
			toolParam.InputSchema.Required = reqStrings
		}

		result = append(result, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	return result
}

// mapResponse maps an Anthropic API response to the neutral result shape.
func (p *AnthropicProvider) mapResponse(ctx context.Context, msg *anthropic.Message) *GenerationResult {
	var text string
	var toolCalls []ToolCall

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += b.Text
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if len(b.Input) > 0 {
				if err := json.Unmarshal(b.Input, &args); err != nil {
					p.logger.WarnCtx(ctx, "Failed to decode tool call arguments",
						logger.Field{Key: "tool", Value: b.Name},
						logger.Field{Key: "error", Value: err.Error()})
					args = map[string]any{}
				}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}

	usage := Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}

	p.mu.Lock()
	p.session.Add(usage)
	p.mu.Unlock()

	p.logger.DebugCtx(ctx, "Anthropic response",
		logger.Field{Key: "stop_reason", Value: string(msg.StopReason)},
		logger.Field{Key: "tool_calls_count", Value: len(toolCalls)},
		logger.Field{Key: "content_length", Value: len(text)})

	return &GenerationResult{
		Text:         text,
		ToolCalls:    toolCalls,
		FinishReason: mapAnthropicStopReason(msg.StopReason, len(toolCalls) > 0),
		Usage:        usage,
	}
}

// mapAnthropicStopReason maps API stop reasons to neutral finish reasons.
func mapAnthropicStopReason(reason anthropic.StopReason, hasToolCalls bool) FinishReason {
	switch reason {
	case anthropic.StopReasonToolUse:
		return FinishReasonToolCalls
	case anthropic.StopReasonMaxTokens:
		return FinishReasonLength
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
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

// systemText concatenates system messages into a single instruction block.
func systemText(msgs []Message) string {
	var system string
	for _, msg := range msgs {
		if msg.Role != RoleSystem {
			continue
		}
		if system != "" {
			system += "\n\n"
		}
		system += msg.Content
	}
	return system
}

// Embed implements the Provider interface.
// The Anthropic API has no embedding endpoint.
func (p *AnthropicProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}

// SupportsTools implements the Provider interface.
func (p *AnthropicProvider) SupportsTools() bool {
	return true
}

// SupportsVision implements the Provider interface.
func (p *AnthropicProvider) SupportsVision() bool {
	return true
}

// IsAvailable implements the Provider interface.
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	return p.config.APIKey != ""
}

// SessionUsage returns cumulative token usage since process start.
func (p *AnthropicProvider) SessionUsage() Usage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}
