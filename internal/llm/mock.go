package llm

import (
	"context"
	"fmt"
	"time"
)

// MockProvider is a mock implementation of the Provider interface for testing
// and graceful degradation scenarios.
type MockProvider struct {
	responses     []string           // Pre-defined text responses (rotates through them)
	responseIndex int                // Current index in responses
	results       []GenerationResult // Pre-defined tool-aware results (rotates through them)
	resultIndex   int                // Current index in results
	mode          MockMode           // Mode of operation (echo, fixed, fixtures)
	delay         int                // Simulated delay in milliseconds (for testing latency)
	errorAfter    int                // Number of successful calls before returning errors
	callCount     int                // Number of Generate/GenerateWithTools calls made
	embedFunc     func(string) ([]float32, error)
	supportsTools bool
	vision        bool
}

// MockMode defines the operation mode of the mock provider.
type MockMode int

const (
	// MockModeEcho returns the user's message (echo mode)
	MockModeEcho MockMode = iota

	// MockModeFixed returns a fixed response
	MockModeFixed

	// MockModeFixtures returns pre-defined responses in rotation
	MockModeFixtures

	// MockModeError always returns an error
	MockModeError
)

// MockConfig holds configuration for the mock provider.
type MockConfig struct {
	Mode       MockMode // Operation mode
	Responses  []string // Pre-defined responses (for Fixed/Fixtures modes)
	Delay      int      // Simulated delay in milliseconds
	ErrorAfter int      // Number of successful calls before returning errors
}

// NewMockProvider creates a new mock LLM provider.
func NewMockProvider(cfg MockConfig) *MockProvider {
	return &MockProvider{
		mode:          cfg.Mode,
		responses:     cfg.Responses,
		responseIndex: 0,
		delay:         cfg.Delay,
		errorAfter:    cfg.ErrorAfter,
		callCount:     0,
		supportsTools: true,
		vision:        false,
	}
}

// NewEchoProvider creates a mock provider that echoes user messages.
func NewEchoProvider() *MockProvider {
	return NewMockProvider(MockConfig{
		Mode: MockModeEcho,
	})
}

// NewFixedProvider creates a mock provider that always returns a fixed response.
func NewFixedProvider(response string) *MockProvider {
	return NewMockProvider(MockConfig{
		Mode:      MockModeFixed,
		Responses: []string{response},
	})
}

// NewFixturesProvider creates a mock provider that cycles through pre-defined responses.
func NewFixturesProvider(responses []string) *MockProvider {
	return NewMockProvider(MockConfig{
		Mode:      MockModeFixtures,
		Responses: responses,
	})
}

// NewErrorProvider creates a mock provider that always returns errors.
func NewErrorProvider() *MockProvider {
	return NewMockProvider(MockConfig{
		Mode: MockModeError,
	})
}

// Name implements the Provider interface.
func (m *MockProvider) Name() string {
	return "mock"
}

// ModelName implements the Provider interface.
func (m *MockProvider) ModelName() string {
	return "mock-model"
}

// Generate implements the Provider interface.
func (m *MockProvider) Generate(ctx context.Context, msgs []Message, opts Options) (string, error) {
	res, err := m.GenerateWithTools(ctx, msgs, nil, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GenerateWithTools implements the Provider interface.
// When scripted results are set via SetResults, they are returned in rotation
// regardless of the mode; otherwise the text response for the mode is wrapped
// in a result with no tool calls.
func (m *MockProvider) GenerateWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts Options) (*GenerationResult, error) {
	m.callCount++

	if m.delay > 0 {
		select {
		case <-time.After(time.Duration(m.delay) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// Check if we should return an error
	if m.errorAfter > 0 && m.callCount > m.errorAfter {
		return nil, fmt.Errorf("mock provider error after %d calls", m.errorAfter)
	}

	// Handle error mode
	if m.mode == MockModeError {
		return nil, fmt.Errorf("mock provider error")
	}

	// Scripted tool-aware results take precedence
	if len(m.results) > 0 {
		res := m.results[m.resultIndex]
		m.resultIndex = (m.resultIndex + 1) % len(m.results)
		if res.FinishReason == "" {
			if len(res.ToolCalls) > 0 {
				res.FinishReason = FinishReasonToolCalls
			} else {
				res.FinishReason = FinishReasonStop
			}
		}
		return &res, nil
	}

	// Get the user message (last message if available)
	var userMessage string
	if len(msgs) > 0 {
		lastMsg := msgs[len(msgs)-1]
		if lastMsg.Role == RoleUser {
			userMessage = lastMsg.Content
		}
	}

	// Determine response based on mode
	var response string
	switch m.mode {
	case MockModeEcho:
		if userMessage != "" {
			response = fmt.Sprintf("Echo: %s", userMessage)
		} else {
			response = "Echo: (no user message)"
		}
	case MockModeFixed:
		if len(m.responses) > 0 {
			response = m.responses[0]
		} else {
			response = "Fixed response: no responses configured"
		}
	case MockModeFixtures:
		if len(m.responses) > 0 {
			response = m.responses[m.responseIndex]
			m.responseIndex = (m.responseIndex + 1) % len(m.responses)
		} else {
			response = "Fixtures: no responses configured"
		}
	default:
		response = "Unknown mock mode"
	}

	return &GenerationResult{
		Text:         response,
		FinishReason: FinishReasonStop,
		Usage: Usage{
			PromptTokens:     len(userMessage),
			CompletionTokens: len(response),
			TotalTokens:      len(userMessage) + len(response),
		},
	}, nil
}

// Embed implements the Provider interface.
// The default embedding is deterministic: the same text always yields the
// same vector, so similarity tests are reproducible.
func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFunc != nil {
		return m.embedFunc(text)
	}

	vec := make([]float32, 8)
	for i, b := range []byte(text) {
		vec[i%8] += float32(b)
	}
	return vec, nil
}

// SupportsTools implements the Provider interface.
func (m *MockProvider) SupportsTools() bool {
	return m.supportsTools
}

// SupportsVision implements the Provider interface.
func (m *MockProvider) SupportsVision() bool {
	return m.vision
}

// IsAvailable implements the Provider interface.
func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return true
}

// GetCallCount returns the number of generation calls made to this provider.
// Useful for testing.
func (m *MockProvider) GetCallCount() int {
	return m.callCount
}

// ResetCallCount resets the call counter.
// Useful for testing.
func (m *MockProvider) ResetCallCount() {
	m.callCount = 0
}

// SetErrorAfter configures the provider to return errors after N calls.
func (m *MockProvider) SetErrorAfter(n int) {
	m.errorAfter = n
}

// GetResponses returns the current list of responses.
func (m *MockProvider) GetResponses() []string {
	return m.responses
}

// SetResponses sets the list of text responses.
func (m *MockProvider) SetResponses(responses []string) {
	m.responses = responses
	m.responseIndex = 0
}

// SetResults sets scripted tool-aware results returned in rotation.
func (m *MockProvider) SetResults(results []GenerationResult) {
	m.results = results
	m.resultIndex = 0
}

// SetEmbedFunc overrides the embedding function.
func (m *MockProvider) SetEmbedFunc(fn func(string) ([]float32, error)) {
	m.embedFunc = fn
}

// SetSupportsTools toggles native tool-calling support.
func (m *MockProvider) SetSupportsTools(v bool) {
	m.supportsTools = v
}

// SetSupportsVision toggles vision support.
func (m *MockProvider) SetSupportsVision(v bool) {
	m.vision = v
}
