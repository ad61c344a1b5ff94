// Package agent drives the tool-calling conversation loop: it turns
// one user message into bounded rounds of LLM generation and skill
// execution, and keeps the durable conversation history.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/skillbot/internal/config"
	"github.com/aatumaykin/skillbot/internal/executor"
	"github.com/aatumaykin/skillbot/internal/index"
	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/messages"
	"github.com/aatumaykin/skillbot/internal/metrics"
	"github.com/aatumaykin/skillbot/internal/scheduler"
	"github.com/aatumaykin/skillbot/internal/skills"
	"github.com/aatumaykin/skillbot/internal/tools"
)

// errorLogLimit truncates execution errors for log records only; the
// model always receives the full text.
const errorLogLimit = 200

// ToolRunner executes one skill. Implemented by the executor.
type ToolRunner interface {
	Execute(ctx context.Context, skill *skills.Skill, args map[string]interface{}) *executor.Result
}

// SchedulerOps is the closed set of side-effects a tool result can
// request from the scheduler.
type SchedulerOps interface {
	Propose(task, cronExpr, description string) scheduler.PendingJob
	DeleteJob(id string) (scheduler.Job, bool)
	ToggleJob(id string) (bool, bool)
}

// Searcher shortlists skills by semantic similarity. Implemented by
// the index.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]index.Match, error)
}

// PromptSource supplies the system prompt.
type PromptSource interface {
	Build() string
}

// ProposalNotifier delivers the confirmation prompt for a proposed
// schedule to the chat. Best effort; runs inside the tool round.
type ProposalNotifier func(ctx context.Context, pending scheduler.PendingJob)

// Loop is the per-message tool-calling state machine.
type Loop struct {
	manager   *llm.Manager
	store     *skills.Store
	registry  *tools.Registry
	runner    ToolRunner
	sched     SchedulerOps
	onPropose ProposalNotifier
	searcher  Searcher
	prompt    PromptSource
	conv      *Conversation
	metrics   *metrics.Metrics
	logger    *logger.Logger

	maxRounds      int
	processTimeout time.Duration
	highConfidence float64
	opts           llm.Options
}

// Deps bundles the loop's collaborators. Scheduler, searcher, prompt
// and metrics are optional.
type Deps struct {
	Manager   *llm.Manager
	Store     *skills.Store
	Registry  *tools.Registry
	Runner    ToolRunner
	Scheduler SchedulerOps
	OnPropose ProposalNotifier
	Searcher  Searcher
	Prompt    PromptSource
	Conv      *Conversation
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

func NewLoop(deps Deps, cfg config.AgentConfig) (*Loop, error) {
	if deps.Manager == nil {
		return nil, fmt.Errorf("provider manager cannot be nil")
	}
	if deps.Store == nil || deps.Registry == nil {
		return nil, fmt.Errorf("skill store and registry cannot be nil")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("tool runner cannot be nil")
	}
	if deps.Conv == nil {
		return nil, fmt.Errorf("conversation cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Loop{
		manager:        deps.Manager,
		store:          deps.Store,
		registry:       deps.Registry,
		runner:         deps.Runner,
		sched:          deps.Scheduler,
		onPropose:      deps.OnPropose,
		searcher:       deps.Searcher,
		prompt:         deps.Prompt,
		conv:           deps.Conv,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		maxRounds:      cfg.MaxToolRounds,
		processTimeout: time.Duration(cfg.ProcessTimeoutSeconds) * time.Second,
		highConfidence: cfg.HighConfidence,
		opts: llm.Options{
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		},
	}, nil
}

// Conversation returns the loop's durable history.
func (l *Loop) Conversation() *Conversation {
	return l.conv
}

// Run processes one user message to a final answer. It never returns
// an error: every failure path yields a specific user-facing message.
// The whole run sits under the process deadline regardless of how
// many tool rounds complete.
func (l *Loop) Run(ctx context.Context, text string, image *llm.ImageAttachment) string {
	runCtx, cancel := context.WithTimeout(ctx, l.processTimeout)
	defer cancel()

	provider := l.manager.Active()
	if provider == nil {
		l.logger.Error("No active LLM provider", nil)
		return messages.GenericError
	}

	enc := encoderFor(provider)

	userMsg := llm.Message{Role: llm.RoleUser, Content: text, Image: image}

	scratch := make([]llm.Message, 0, MaxHistory+2)
	scratch = append(scratch, llm.Message{Role: llm.RoleSystem, Content: l.systemPrompt(runCtx, text)})
	scratch = append(scratch, l.conv.Messages()...)
	scratch = append(scratch, userMsg)

	var toolDefs []llm.ToolDefinition
	if provider.SupportsTools() {
		toolDefs = l.registry.Definitions()
	}

	for round := 0; round < l.maxRounds; round++ {
		start := time.Now()
		result, err := provider.GenerateWithTools(runCtx, scratch, toolDefs, l.opts)
		l.metrics.RecordLLMRequest(provider.Name(), time.Since(start), err)
		if err != nil {
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				l.logger.Warn("Run aborted by process deadline",
					logger.Field{Key: "round", Value: round})
				return messages.FormatProcessTimeout(int(l.processTimeout.Seconds()))
			}
			l.logger.Error("Generation failed", err,
				logger.Field{Key: "provider", Value: provider.Name()},
				logger.Field{Key: "round", Value: round})
			return messages.GenericError
		}

		if len(result.ToolCalls) == 0 {
			final := messages.CleanContent(result.Text)
			if final == "" {
				final = messages.GenericError
			}
			l.remember(userMsg, final)
			l.logger.Debug("Run finished",
				logger.Field{Key: "rounds", Value: round + 1})
			return final
		}

		l.logger.Debug("Model requested tool calls",
			logger.Field{Key: "count", Value: len(result.ToolCalls)},
			logger.Field{Key: "round", Value: round})

		scratch = append(scratch, enc.AssistantToolCalls(result.Text, result.ToolCalls))
		for _, call := range result.ToolCalls {
			outcome, isErr := l.executeCall(runCtx, call)
			scratch = append(scratch, enc.ToolResult(call, outcome, isErr))
		}

		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return messages.FormatProcessTimeout(int(l.processTimeout.Seconds()))
		}
	}

	l.logger.Warn("Reached maximum tool rounds",
		logger.Field{Key: "max_rounds", Value: l.maxRounds})
	return messages.MaxToolCalls
}

// executeCall resolves and runs one tool call, returning the result
// string fed back to the model and whether it is an error.
func (l *Loop) executeCall(ctx context.Context, call llm.ToolCall) (string, bool) {
	skill, ok := l.store.Get(call.Name)
	if !ok || !skill.Enabled {
		l.logger.Warn("Model called unknown or disabled skill",
			logger.Field{Key: "skill", Value: call.Name})
		l.metrics.RecordToolExecution("not_found")
		return messages.FormatSkillNotFound(call.Name), true
	}

	res := l.runner.Execute(ctx, skill, call.Arguments)
	if !res.Success {
		l.logger.Warn("Skill execution failed",
			logger.Field{Key: "skill", Value: call.Name},
			logger.Field{Key: "error", Value: truncate(res.Error, errorLogLimit)})
		l.metrics.RecordToolExecution("error")
		return "Error: " + res.Error, true
	}

	l.metrics.RecordToolExecution("success")
	return l.dispatch(ctx, res.Result), false
}

// dispatch performs a directive's side-effect and substitutes a short
// acknowledgement as the tool result; plain text passes through.
func (l *Loop) dispatch(ctx context.Context, output string) string {
	d := DecodeDirective(output)
	if d.Kind != DirectiveText && l.sched == nil {
		l.logger.Warn("Tool requested a scheduler side-effect but scheduling is disabled")
		return "Scheduling is not available."
	}

	switch d.Kind {
	case DirectiveProposeSchedule:
		pending := l.sched.Propose(d.Task, d.Cron, d.Description)
		if l.onPropose != nil {
			l.onPropose(ctx, pending)
		}
		return fmt.Sprintf("Asked the user to confirm the schedule (id %s).", pending.ID)

	case DirectiveDeleteJob:
		if _, ok := l.sched.DeleteJob(d.JobID); !ok {
			return messages.FormatJobNotFound(d.JobID)
		}
		return messages.FormatJobDeleted(d.JobID)

	case DirectiveToggleJob:
		enabled, ok := l.sched.ToggleJob(d.JobID)
		if !ok {
			return messages.FormatJobNotFound(d.JobID)
		}
		return messages.FormatJobToggled(d.JobID, enabled)

	default:
		return d.Text
	}
}

// systemPrompt assembles the system message, appending a hint when
// the semantic index surfaces a high-confidence skill match.
func (l *Loop) systemPrompt(ctx context.Context, query string) string {
	base := "You are a helpful personal assistant."
	if l.prompt != nil {
		if built := l.prompt.Build(); built != "" {
			base = built
		}
	}

	if l.searcher == nil {
		return base
	}

	matches, err := l.searcher.Search(ctx, query, 3)
	if err != nil {
		l.logger.Debug("Semantic search failed",
			logger.Field{Key: "error", Value: err.Error()})
		return base
	}
	if len(matches) == 0 || matches[0].Score < l.highConfidence {
		return base
	}

	skill, ok := l.store.Get(matches[0].ID)
	if !ok || !skill.Enabled {
		return base
	}

	l.logger.Debug("Semantic match above confidence threshold",
		logger.Field{Key: "skill", Value: skill.Name},
		logger.Field{Key: "score", Value: matches[0].Score})

	return fmt.Sprintf("%s\n\nThe skill '%s' looks highly relevant to the user's request. Prefer calling it.", base, skill.Name)
}

// remember appends the final user/assistant pair to durable history.
func (l *Loop) remember(userMsg llm.Message, final string) {
	err := l.conv.Append(
		llm.Message{Role: llm.RoleUser, Content: userMsg.Content},
		llm.Message{Role: llm.RoleAssistant, Content: final},
	)
	if err != nil {
		l.logger.Error("Failed to persist conversation history", err)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
