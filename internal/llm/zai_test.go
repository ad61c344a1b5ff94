package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aatumaykin/skillbot/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(logger.Config{
		Level:  "error",
		Format: "text",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func TestZAIBuildRequest(t *testing.T) {
	p := NewZAIProvider(ZAIConfig{APIKey: "test"}, testLogger(t))

	msgs := []Message{
		{Role: RoleSystem, Content: "You are helpful"},
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAssistant, Content: "", ToolCalls: []ToolCall{
			{ID: "call_123", Name: "get_weather", Arguments: map[string]any{"city": "Tokyo"}},
		}},
		{Role: RoleToolResult, Content: "sunny", ToolCallID: "call_123", ToolName: "get_weather"},
	}

	zaiReq := p.buildRequest(msgs, nil, Options{Temperature: 0.7, MaxTokens: 500})

	if len(zaiReq.Messages) != 4 {
		t.Fatalf("Messages len = %d, want 4", len(zaiReq.Messages))
	}
	if zaiReq.Model != ZAIDefaultModel {
		t.Errorf("Model = %q, want %q", zaiReq.Model, ZAIDefaultModel)
	}
	if zaiReq.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", zaiReq.Temperature)
	}
	if zaiReq.MaxTokens != 500 {
		t.Errorf("MaxTokens = %d, want 500", zaiReq.MaxTokens)
	}

	if zaiReq.Messages[0].Role != "system" {
		t.Errorf("First message role = %q, want system", zaiReq.Messages[0].Role)
	}
	if zaiReq.Messages[2].Role != "assistant" {
		t.Errorf("Third message role = %q, want assistant", zaiReq.Messages[2].Role)
	}
	if len(zaiReq.Messages[2].ToolCalls) != 1 {
		t.Fatalf("Assistant tool calls len = %d, want 1", len(zaiReq.Messages[2].ToolCalls))
	}
	if zaiReq.Messages[2].ToolCalls[0].Function.Arguments != `{"city":"Tokyo"}` {
		t.Errorf("Tool call arguments = %q, want {\"city\":\"Tokyo\"}", zaiReq.Messages[2].ToolCalls[0].Function.Arguments)
	}
	if zaiReq.Messages[3].Role != "tool" {
		t.Errorf("Fourth message role = %q, want tool", zaiReq.Messages[3].Role)
	}
	if zaiReq.Messages[3].ToolCallID != "call_123" {
		t.Errorf("Tool message ToolCallID = %q, want call_123", zaiReq.Messages[3].ToolCallID)
	}
}

func TestZAIBuildRequest_WithTools(t *testing.T) {
	p := NewZAIProvider(ZAIConfig{APIKey: "test"}, testLogger(t))

	tools := []ToolDefinition{
		{
			Name:        "get_weather",
			Description: "Get weather",
			Parameters: map[string]interface{}{
				"type": "object",
			},
		},
	}

	zaiReq := p.buildRequest([]Message{{Role: RoleUser, Content: "Get weather"}}, tools, Options{})

	if len(zaiReq.Tools) != 1 {
		t.Fatalf("Tools len = %d, want 1", len(zaiReq.Tools))
	}
	if zaiReq.Tools[0].Type != "function" {
		t.Errorf("Tool type = %q, want function", zaiReq.Tools[0].Type)
	}
	if zaiReq.Tools[0].Function["name"] != "get_weather" {
		t.Errorf("Tool function name = %q, want get_weather", zaiReq.Tools[0].Function["name"])
	}
	if zaiReq.ToolChoice != "auto" {
		t.Errorf("ToolChoice = %q, want auto", zaiReq.ToolChoice)
	}
}

func TestZAIMapResponse(t *testing.T) {
	p := NewZAIProvider(ZAIConfig{APIKey: "test"}, testLogger(t))

	zaiResp := &zaiResponse{
		ID:    "resp-123",
		Model: "glm-4.7",
		Choices: []zaiChoice{
			{
				Index: 0,
				Message: zaiMessage{
					Role:    "assistant",
					Content: "Hello!",
					ToolCalls: []zaiToolCall{
						{
							ID:   "call_1",
							Type: "function",
							Function: struct {
								Name      string `json:"name"`
								Arguments string `json:"arguments"`
							}{
								Name:      "get_weather",
								Arguments: `{"city":"Tokyo"}`,
							},
						},
					},
				},
				FinishReason: "tool_calls",
			},
		},
		Usage: zaiUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
	}

	res := p.mapResponse(context.Background(), zaiResp)

	if res.Text != "Hello!" {
		t.Errorf("Text = %q, want Hello!", res.Text)
	}
	if res.FinishReason != FinishReasonToolCalls {
		t.Errorf("FinishReason = %q, want %q", res.FinishReason, FinishReasonToolCalls)
	}
	if len(res.ToolCalls) != 1 {
		t.Fatalf("ToolCalls len = %d, want 1", len(res.ToolCalls))
	}
	if res.ToolCalls[0].ID != "call_1" {
		t.Errorf("ToolCall ID = %q, want call_1", res.ToolCalls[0].ID)
	}
	if res.ToolCalls[0].Name != "get_weather" {
		t.Errorf("ToolCall Name = %q, want get_weather", res.ToolCalls[0].Name)
	}
	if city, ok := res.ToolCalls[0].Arguments["city"].(string); !ok || city != "Tokyo" {
		t.Errorf("ToolCall Arguments = %v, want city=Tokyo", res.ToolCalls[0].Arguments)
	}
	if res.Usage.TotalTokens != 30 {
		t.Errorf("Usage.TotalTokens = %d, want 30", res.Usage.TotalTokens)
	}
}

func TestZAIMapResponse_NoChoices(t *testing.T) {
	p := NewZAIProvider(ZAIConfig{APIKey: "test"}, testLogger(t))

	res := p.mapResponse(context.Background(), &zaiResponse{
		ID:    "resp-123",
		Model: "glm-4.7",
		Usage: zaiUsage{PromptTokens: 10, TotalTokens: 10},
	})

	if res.Text != "" {
		t.Errorf("Text should be empty, got %q", res.Text)
	}
	if res.FinishReason != FinishReasonError {
		t.Errorf("FinishReason = %q, want %q", res.FinishReason, FinishReasonError)
	}
	if len(res.ToolCalls) != 0 {
		t.Errorf("ToolCalls should be empty, got %d", len(res.ToolCalls))
	}
}

func TestZAIMapResponse_UseReasoningContent(t *testing.T) {
	p := NewZAIProvider(ZAIConfig{APIKey: "test"}, testLogger(t))

	res := p.mapResponse(context.Background(), &zaiResponse{
		Model: "glm-4.7",
		Choices: []zaiChoice{
			{
				Message: zaiMessage{
					Role:             "assistant",
					Content:          "",
					ReasoningContent: "This is the reasoning",
				},
				FinishReason: "stop",
			},
		},
	})

	if res.Text != "This is the reasoning" {
		t.Errorf("Text should use reasoning_content, got %q", res.Text)
	}
}

func TestZAIGenerateWithTools_EndToEnd(t *testing.T) {
	var gotAuth string
	var gotReq zaiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		resp := zaiResponse{
			ID:    "resp-1",
			Model: "glm-4.7",
			Choices: []zaiChoice{
				{
					Message:      zaiMessage{Role: "assistant", Content: "OK"},
					FinishReason: "stop",
				},
			},
			Usage: zaiUsage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewZAIProvider(ZAIConfig{APIKey: "secret-key"}, testLogger(t))
	p.apiURL = server.URL

	res, err := p.GenerateWithTools(context.Background(),
		[]Message{{Role: RoleUser, Content: "say OK"}}, nil, Options{MaxTokens: 100})
	if err != nil {
		t.Fatalf("GenerateWithTools failed: %v", err)
	}

	if res.Text != "OK" {
		t.Errorf("Text = %q, want OK", res.Text)
	}
	if res.FinishReason != FinishReasonStop {
		t.Errorf("FinishReason = %q, want %q", res.FinishReason, FinishReasonStop)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want Bearer secret-key", gotAuth)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "say OK" {
		t.Errorf("server received messages = %+v", gotReq.Messages)
	}
}

func TestZAIGenerateWithTools_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewZAIProvider(ZAIConfig{APIKey: "bad"}, testLogger(t))
	p.apiURL = server.URL

	_, err := p.GenerateWithTools(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, nil, Options{})
	if err == nil {
		t.Fatal("GenerateWithTools error = nil, want HTTP error")
	}
}

func TestZAICapabilities(t *testing.T) {
	p := NewZAIProvider(ZAIConfig{APIKey: "test"}, testLogger(t))

	if p.Name() != "zai" {
		t.Errorf("Name() = %q, want zai", p.Name())
	}
	if p.ModelName() != ZAIDefaultModel {
		t.Errorf("ModelName() = %q, want %q", p.ModelName(), ZAIDefaultModel)
	}
	if !p.SupportsTools() {
		t.Error("SupportsTools() = false, want true")
	}
	if p.SupportsVision() {
		t.Error("SupportsVision() = true, want false")
	}
	if !p.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = false, want true with key set")
	}

	if _, err := p.Embed(context.Background(), "text"); err != ErrEmbeddingsUnsupported {
		t.Errorf("Embed() error = %v, want ErrEmbeddingsUnsupported", err)
	}

	empty := NewZAIProvider(ZAIConfig{}, testLogger(t))
	if empty.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = true without key, want false")
	}
}
