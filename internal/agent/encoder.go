package agent

import (
	"fmt"
	"strings"

	"github.com/aatumaykin/skillbot/internal/llm"
)

// HistoryEncoder shapes a tool round for the active provider family.
// The loop's control logic never branches on provider names; it picks
// an encoder once per run and applies it uniformly.
type HistoryEncoder interface {
	// AssistantToolCalls encodes the assistant turn that requested
	// the calls.
	AssistantToolCalls(text string, calls []llm.ToolCall) llm.Message

	// ToolResult encodes one call's outcome for the next round.
	ToolResult(call llm.ToolCall, content string, isError bool) llm.Message
}

// encoderFor selects the encoding for a provider family. Anthropic
// and Gemini address tool results back to the requesting call id;
// everything else gets the flat role/content shape.
func encoderFor(p llm.Provider) HistoryEncoder {
	switch p.Name() {
	case "anthropic", "gemini":
		return contentBlockEncoder{}
	default:
		return plainRoleEncoder{}
	}
}

// contentBlockEncoder keeps structured tool calls on the assistant
// message and answers each one by id, matching the content-block
// conversation shape of the Anthropic and Gemini APIs.
type contentBlockEncoder struct{}

func (contentBlockEncoder) AssistantToolCalls(text string, calls []llm.ToolCall) llm.Message {
	return llm.Message{
		Role:      llm.RoleAssistant,
		Content:   text,
		ToolCalls: calls,
	}
}

func (contentBlockEncoder) ToolResult(call llm.ToolCall, content string, isError bool) llm.Message {
	return llm.Message{
		Role:       llm.RoleToolResult,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		IsError:    isError,
	}
}

// plainRoleEncoder flattens each round into plain role/content
// messages for providers without structured tool history.
type plainRoleEncoder struct{}

func (plainRoleEncoder) AssistantToolCalls(text string, calls []llm.ToolCall) llm.Message {
	var lines []string
	if text != "" {
		lines = append(lines, text)
	}
	for _, call := range calls {
		lines = append(lines, fmt.Sprintf("[Calling tool: %s]", call.Name))
	}

	return llm.Message{
		Role:    llm.RoleAssistant,
		Content: strings.Join(lines, "\n"),
	}
}

func (plainRoleEncoder) ToolResult(call llm.ToolCall, content string, isError bool) llm.Message {
	prefix := "Tool"
	if isError {
		prefix = "Tool error"
	}

	return llm.Message{
		Role:     llm.RoleToolResult,
		Content:  fmt.Sprintf("%s %s: %s", prefix, call.Name, content),
		ToolName: call.Name,
		IsError:  isError,
	}
}
