package llm

import (
	"context"
	"errors"
)

// ErrEmbeddingsUnsupported is returned by Embed when the provider has no
// embedding capability at all. Callers use it to pick a fallback provider;
// transient embedding failures return ordinary errors instead.
var ErrEmbeddingsUnsupported = errors.New("embeddings not supported by this provider")

// Provider defines the interface for LLM providers.
// Different providers (Anthropic, Gemini, Ollama, Z.ai) must implement this interface.
type Provider interface {
	// Name returns the stable provider identifier ("anthropic", "gemini", ...).
	// Used as the registration key and in user-facing provider lists.
	Name() string

	// ModelName returns the model identifier this provider instance talks to.
	ModelName() string

	// Generate produces a plain text completion for the conversation.
	Generate(ctx context.Context, msgs []Message, opts Options) (string, error)

	// GenerateWithTools produces a completion that may request tool calls.
	// Providers without native tool support ignore the tool list and never
	// return tool calls.
	GenerateWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts Options) (*GenerationResult, error)

	// Embed converts text into an embedding vector.
	// Returns ErrEmbeddingsUnsupported if the provider cannot embed at all.
	Embed(ctx context.Context, text string) ([]float32, error)

	// SupportsTools returns true if the provider supports native tool calling.
	SupportsTools() bool

	// SupportsVision returns true if the provider accepts image attachments.
	SupportsVision() bool

	// IsAvailable reports whether the provider is usable right now
	// (credentials present, local server reachable). Must be cheap.
	IsAvailable(ctx context.Context) bool
}

// Role represents the role of a message sender in the conversation.
type Role string

const (
	RoleSystem     Role = "system"      // System message provides context/instructions
	RoleUser       Role = "user"        // User message represents user input
	RoleAssistant  Role = "assistant"   // Assistant message represents model response
	RoleToolResult Role = "tool_result" // Tool-result message carries a tool execution outcome
)

// Message represents a single message in the chat conversation.
// It is the provider-neutral shape; each adapter maps it to its wire format.
type Message struct {
	Role    Role   `json:"role"`    // The role of the message sender
	Content string `json:"content"` // The text content of the message

	// Image is an optional attachment on user messages for vision-capable
	// providers. Providers without vision support ignore it.
	Image *ImageAttachment `json:"-"`

	// ToolCalls echoes the calls an assistant message requested. Set on
	// RoleAssistant messages when replaying history to the provider.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID identifies which tool call a RoleToolResult message answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName is the name of the tool a RoleToolResult message answers.
	// Some providers address results by name rather than by id.
	ToolName string `json:"tool_name,omitempty"`

	// IsError marks a RoleToolResult message as a failed execution.
	IsError bool `json:"is_error,omitempty"`
}

// ImageAttachment carries raw image bytes for vision requests.
type ImageAttachment struct {
	Data []byte // Raw image bytes
	MIME string // MIME type, e.g. "image/jpeg"
}

// FinishReason indicates why the model stopped generating tokens.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"       // Model reached a natural stopping point
	FinishReasonLength    FinishReason = "length"     // Model exceeded max tokens
	FinishReasonToolCalls FinishReason = "tool_calls" // Model requested tool calls
	FinishReasonError     FinishReason = "error"      // Generation stopped due to an error
)

// ToolCall represents a requested tool/function call by the model.
type ToolCall struct {
	ID   string `json:"id"`   // Unique identifier for this tool call
	Name string `json:"name"` // Name of the tool/function to call

	// Arguments holds the call arguments keyed by parameter name.
	Arguments map[string]any `json:"arguments"`
}

// Usage tracks token usage information for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`     // Number of tokens in the prompt
	CompletionTokens int `json:"completion_tokens"` // Number of tokens in the completion
	TotalTokens      int `json:"total_tokens"`      // Total number of tokens used
}

// Add accumulates another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Options holds per-request generation parameters.
type Options struct {
	MaxTokens   int     `json:"max_tokens"`  // Maximum tokens to generate (0 = provider default)
	Temperature float64 `json:"temperature"` // Sampling temperature (0.0-2.0)
}

// ToolDefinition defines a tool that the model can call.
type ToolDefinition struct {
	Name        string `json:"name"`        // Name of the tool
	Description string `json:"description"` // Description of what the tool does

	// Parameters is a JSON Schema object describing the tool's input parameters
	Parameters map[string]interface{} `json:"parameters"`
}

// GenerationResult represents a tool-aware completion from a provider.
type GenerationResult struct {
	Text         string       `json:"text"`          // The model's text response
	ToolCalls    []ToolCall   `json:"tool_calls"`    // Tool calls requested by the model
	FinishReason FinishReason `json:"finish_reason"` // Reason generation stopped
	Usage        Usage        `json:"usage"`         // Token usage information
}

// UsageReporter is implemented by providers that track cumulative token
// usage for the lifetime of the process.
type UsageReporter interface {
	SessionUsage() Usage
}
