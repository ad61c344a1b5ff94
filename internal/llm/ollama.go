package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/aatumaykin/skillbot/internal/logger"
)

const (
	// OllamaDefaultBaseURL points at a local Ollama server.
	OllamaDefaultBaseURL = "http://localhost:11434"
	// OllamaDefaultModel is used when no model is configured.
	OllamaDefaultModel = "llama3"
	// OllamaDefaultEmbedModel is the embedding model identifier.
	OllamaDefaultEmbedModel = "nomic-embed-text"
	// ollamaRequestTimeout allows for slow local inference.
	ollamaRequestTimeout = 5 * time.Minute
	// ollamaProbeTimeout bounds the availability check.
	ollamaProbeTimeout = 2 * time.Second
)

// visionModels are the model families that accept image input.
var visionModels = []string{"llava", "bakllava", "moondream"}

// OllamaConfig contains configuration for the Ollama provider.
type OllamaConfig struct {
	BaseURL    string `json:"base_url"`    // Server URL (optional, defaults to OllamaDefaultBaseURL)
	Model      string `json:"model"`       // Generation model (optional, defaults to OllamaDefaultModel)
	EmbedModel string `json:"embed_model"` // Embedding model (optional, defaults to OllamaDefaultEmbedModel)
}

// OllamaProvider implements the Provider interface for Ollama (local models)
// using the official SDK. Ollama runs fully local, so it is always registered
// and never needs credentials.
type OllamaProvider struct {
	client *api.Client
	config OllamaConfig
	logger *logger.Logger
}

// NewOllamaProvider creates a new OllamaProvider instance.
func NewOllamaProvider(cfg OllamaConfig, log *logger.Logger) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OllamaDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = OllamaDefaultModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = OllamaDefaultEmbedModel
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		parsedURL, _ = url.Parse(OllamaDefaultBaseURL)
	}

	httpClient := &http.Client{
		Timeout: ollamaRequestTimeout,
	}

	return &OllamaProvider{
		client: api.NewClient(parsedURL, httpClient),
		config: cfg,
		logger: log,
	}
}

// Name implements the Provider interface.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// ModelName implements the Provider interface.
func (p *OllamaProvider) ModelName() string {
	return p.config.Model
}

// Generate implements the Provider interface.
func (p *OllamaProvider) Generate(ctx context.Context, msgs []Message, opts Options) (string, error) {
	res, err := p.GenerateWithTools(ctx, msgs, nil, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GenerateWithTools implements the Provider interface.
// Ollama models in this setup have no native tool calling; the tool list is
// ignored and the result never carries tool calls.
func (p *OllamaProvider) GenerateWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts Options) (*GenerationResult, error) {
	if len(tools) > 0 {
		p.logger.DebugCtx(ctx, "Ollama provider ignores tool definitions",
			logger.Field{Key: "tools_count", Value: len(tools)})
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    p.config.Model,
		Messages: p.buildMessages(msgs),
		Stream:   &stream,
	}

	if opts.Temperature > 0 || opts.MaxTokens > 0 {
		chatReq.Options = make(map[string]any)
		if opts.Temperature > 0 {
			chatReq.Options["temperature"] = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			chatReq.Options["num_predict"] = opts.MaxTokens
		}
	}

	p.logger.DebugCtx(ctx, "Sending request to Ollama",
		logger.Field{Key: "model", Value: p.config.Model},
		logger.Field{Key: "messages_count", Value: len(chatReq.Messages)})

	var text string
	var promptTokens, completionTokens int

	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		text += resp.Message.Content
		if resp.Done {
			promptTokens = resp.PromptEvalCount
			completionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		p.logger.ErrorCtx(ctx, "Ollama request failed", err)
		return nil, fmt.Errorf("ollama request: %w", err)
	}

	return &GenerationResult{
		Text:         text,
		FinishReason: FinishReasonStop,
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// buildMessages converts neutral messages to Ollama format.
// Tool traffic left behind by other providers degrades to plain text so a
// replayed conversation still reads coherently.
func (p *OllamaProvider) buildMessages(msgs []Message) []api.Message {
	messages := make([]api.Message, 0, len(msgs))

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, api.Message{
				Role:    "system",
				Content: msg.Content,
			})

		case RoleUser:
			m := api.Message{
				Role:    "user",
				Content: msg.Content,
			}
			if msg.Image != nil {
				m.Images = []api.ImageData{api.ImageData(msg.Image.Data)}
			}
			messages = append(messages, m)

		case RoleAssistant:
			content := msg.Content
			if content == "" && len(msg.ToolCalls) > 0 {
				var lines []string
				for _, tc := range msg.ToolCalls {
					lines = append(lines, fmt.Sprintf("[Using tool: %s]", tc.Name))
				}
				content = strings.Join(lines, "\n")
			}
			if content == "" {
				continue
			}
			messages = append(messages, api.Message{
				Role:    "assistant",
				Content: content,
			})

		case RoleToolResult:
			messages = append(messages, api.Message{
				Role:    "tool",
				Content: msg.Content,
			})
		}
	}

	return messages
}

// Embed implements the Provider interface.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embed(ctx, &api.EmbedRequest{
		Model: p.config.EmbedModel,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding")
	}

	return resp.Embeddings[0], nil
}

// SupportsTools implements the Provider interface.
func (p *OllamaProvider) SupportsTools() bool {
	return false
}

// SupportsVision implements the Provider interface.
// Only specific local model families accept images.
func (p *OllamaProvider) SupportsVision() bool {
	return IsOllamaVisionModel(p.config.Model)
}

// IsOllamaVisionModel reports whether the model family accepts image input.
func IsOllamaVisionModel(model string) bool {
	lower := strings.ToLower(model)
	for _, name := range visionModels {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// IsAvailable implements the Provider interface.
// Probes the local server with a short deadline.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, ollamaProbeTimeout)
	defer cancel()

	_, err := p.client.List(probeCtx)
	return err == nil
}
