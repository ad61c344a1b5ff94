package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/aatumaykin/skillbot/internal/logger"
)

const (
	// GeminiDefaultModel is used when no model is configured.
	GeminiDefaultModel = "gemini-1.5-flash"
	// GeminiDefaultEmbedModel is the embedding model identifier.
	GeminiDefaultEmbedModel = "embedding-001"
)

// GeminiConfig contains configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey     string `json:"api_key"`     // API key for authentication
	Model      string `json:"model"`       // Generation model (optional, defaults to GeminiDefaultModel)
	EmbedModel string `json:"embed_model"` // Embedding model (optional, defaults to GeminiDefaultEmbedModel)
}

// GeminiProvider implements the Provider interface for Google Gemini
// using the official SDK.
type GeminiProvider struct {
	client *genai.Client
	config GeminiConfig
	logger *logger.Logger
}

// NewGeminiProvider creates a new GeminiProvider instance.
// The caller owns the provider and must call Close on shutdown.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, log *logger.Logger) (*GeminiProvider, error) {
	if cfg.Model == "" {
		cfg.Model = GeminiDefaultModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = GeminiDefaultEmbedModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: cfg,
		logger: log,
	}, nil
}

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// Name implements the Provider interface.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// ModelName implements the Provider interface.
func (p *GeminiProvider) ModelName() string {
	return p.config.Model
}

// Generate implements the Provider interface.
func (p *GeminiProvider) Generate(ctx context.Context, msgs []Message, opts Options) (string, error) {
	res, err := p.GenerateWithTools(ctx, msgs, nil, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GenerateWithTools implements the Provider interface.
func (p *GeminiProvider) GenerateWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts Options) (*GenerationResult, error) {
	model := p.client.GenerativeModel(p.config.Model)

	if opts.Temperature > 0 {
		model.SetTemperature(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	if system := systemText(msgs); system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	if len(tools) > 0 {
		model.Tools = []*genai.Tool{{
			FunctionDeclarations: buildGeminiDeclarations(tools),
		}}
	}

	contents := normalizeGeminiContents(buildGeminiContents(msgs))
	if len(contents) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	// The SDK sends the last turn separately from the accumulated history.
	last := contents[len(contents)-1]
	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]

	p.logger.DebugCtx(ctx, "Sending request to Gemini API",
		logger.Field{Key: "model", Value: p.config.Model},
		logger.Field{Key: "history_len", Value: len(cs.History)},
		logger.Field{Key: "tools_count", Value: len(tools)})

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		p.logger.ErrorCtx(ctx, "Gemini request failed", err)
		return nil, fmt.Errorf("gemini request: %w", err)
	}

	return p.mapResponse(ctx, resp), nil
}

// buildGeminiContents converts neutral messages to Gemini contents.
// Consecutive tool results are folded into one user content so each
// function-calling round stays a single turn.
func buildGeminiContents(msgs []Message) []*genai.Content {
	var contents []*genai.Content
	var pendingResults []genai.Part

	flushResults := func() {
		if len(pendingResults) > 0 {
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: pendingResults,
			})
			pendingResults = nil
		}
	}

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			// System messages are passed via SystemInstruction
			continue

		case RoleUser:
			flushResults()
			var parts []genai.Part
			if msg.Image != nil {
				parts = append(parts, genai.ImageData(
					strings.TrimPrefix(msg.Image.MIME, "image/"),
					msg.Image.Data,
				))
			}
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: parts})

		case RoleAssistant:
			flushResults()
			var parts []genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]any{}
				}
				parts = append(parts, genai.FunctionCall{
					Name: tc.Name,
					Args: args,
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})

		case RoleToolResult:
			response := map[string]any{"result": msg.Content}
			if msg.IsError {
				response = map[string]any{"error": msg.Content}
			}
			pendingResults = append(pendingResults, genai.FunctionResponse{
				Name:     msg.ToolName,
				Response: response,
			})
		}
	}

	flushResults()

	return contents
}

// normalizeGeminiContents enforces the alternating-turn requirements of the
// Gemini API: the conversation starts with a user turn, consecutive same-role
// turns are merged, and the final turn is a user turn.
func normalizeGeminiContents(contents []*genai.Content) []*genai.Content {
	if len(contents) == 0 {
		return contents
	}

	normalized := make([]*genai.Content, 0, len(contents))
	var lastRole string

	for _, c := range contents {
		if len(normalized) == 0 && c.Role != "user" {
			normalized = append(normalized, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text("Continue.")},
			})
			lastRole = "user"
		}

		if c.Role == lastRole && len(normalized) > 0 {
			last := normalized[len(normalized)-1]
			last.Parts = append(last.Parts, c.Parts...)
		} else {
			normalized = append(normalized, c)
			lastRole = c.Role
		}
	}

	if normalized[len(normalized)-1].Role != "user" {
		normalized = append(normalized, &genai.Content{
			Role:  "user",
			Parts: []genai.Part{genai.Text("Continue.")},
		})
	}

	return normalized
}

// buildGeminiDeclarations converts tool definitions to Gemini format.
func buildGeminiDeclarations(tools []ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  buildGeminiSchema(tool.Parameters),
		})
	}
	return decls
}

// buildGeminiSchema converts a JSON Schema object to the SDK schema type.
func buildGeminiSchema(params map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject}

	if props, ok := params["properties"].(map[string]interface{}); ok && len(props) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			prop, _ := raw.(map[string]interface{})
			schema.Properties[name] = buildGeminiProperty(prop)
		}
	}

	switch required := params["required"].(type) {
	case []string:
		schema.Required = required
	case []interface{}:
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	return schema
}

// buildGeminiProperty converts a single JSON Schema property.
func buildGeminiProperty(prop map[string]interface{}) *genai.Schema {
	s := &genai.Schema{Type: genai.TypeString}

	if t, ok := prop["type"].(string); ok {
		s.Type = mapGeminiType(t)
	}
	if d, ok := prop["description"].(string); ok {
		s.Description = d
	}
	if items, ok := prop["items"].(map[string]interface{}); ok {
		s.Items = buildGeminiProperty(items)
	}
	// The API rejects array schemas without an items declaration
	if s.Type == genai.TypeArray && s.Items == nil {
		s.Items = &genai.Schema{Type: genai.TypeString}
	}

	return s
}

// mapGeminiType maps JSON Schema type names to SDK types.
func mapGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// mapResponse maps a Gemini API response to the neutral result shape.
func (p *GeminiProvider) mapResponse(ctx context.Context, resp *genai.GenerateContentResponse) *GenerationResult {
	result := &GenerationResult{FinishReason: FinishReasonStop}

	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 {
		p.logger.WarnCtx(ctx, "Gemini response has no candidates")
		result.FinishReason = FinishReasonError
		return result
	}

	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				result.Text += string(v)
			case genai.FunctionCall:
				args := v.Args
				if args == nil {
					args = map[string]any{}
				}
				// Gemini has no call ids, the function name doubles as one
				result.ToolCalls = append(result.ToolCalls, ToolCall{
					ID:        v.Name,
					Name:      v.Name,
					Arguments: args,
				})
			}
		}
	}

	switch {
	case len(result.ToolCalls) > 0:
		result.FinishReason = FinishReasonToolCalls
	case candidate.FinishReason == genai.FinishReasonMaxTokens:
		result.FinishReason = FinishReasonLength
	}

	p.logger.DebugCtx(ctx, "Gemini response",
		logger.Field{Key: "finish_reason", Value: string(result.FinishReason)},
		logger.Field{Key: "tool_calls_count", Value: len(result.ToolCalls)},
		logger.Field{Key: "content_length", Value: len(result.Text)})

	return result
}

// Embed implements the Provider interface.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	em := p.client.EmbeddingModel(p.config.EmbedModel)

	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty embedding")
	}

	return res.Embedding.Values, nil
}

// SupportsTools implements the Provider interface.
func (p *GeminiProvider) SupportsTools() bool {
	return true
}

// SupportsVision implements the Provider interface.
func (p *GeminiProvider) SupportsVision() bool {
	return true
}

// IsAvailable implements the Provider interface.
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	return p.config.APIKey != ""
}
