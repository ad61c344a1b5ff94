// Package commands implements the slash commands and the inline
// keyboard callbacks behind them. Everything here is synchronous and
// cheap; anything that talks to an LLM lives in the agent loop.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/aatumaykin/skillbot/internal/agent"
	"github.com/aatumaykin/skillbot/internal/channels"
	"github.com/aatumaykin/skillbot/internal/index"
	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/messages"
	"github.com/aatumaykin/skillbot/internal/prompt"
	"github.com/aatumaykin/skillbot/internal/scheduler"
	"github.com/aatumaykin/skillbot/internal/skills"
	"github.com/aatumaykin/skillbot/internal/tools"
)

// Reply is the outcome of a command or callback. Edit marks callback
// replies that should update the originating message in place.
type Reply struct {
	Text     string
	Keyboard [][]channels.Button
	Edit     bool
}

// Handler routes slash commands and callback data.
type Handler struct {
	manager  *llm.Manager
	store    *skills.Store
	registry *tools.Registry
	sched    *scheduler.Scheduler
	conv     *agent.Conversation
	index    *index.Index
	prompts  *prompt.Builder
	logger   *logger.Logger
}

func NewHandler(
	manager *llm.Manager,
	store *skills.Store,
	registry *tools.Registry,
	sched *scheduler.Scheduler,
	conv *agent.Conversation,
	idx *index.Index,
	prompts *prompt.Builder,
	log *logger.Logger,
) *Handler {
	return &Handler{
		manager:  manager,
		store:    store,
		registry: registry,
		sched:    sched,
		conv:     conv,
		index:    idx,
		prompts:  prompts,
		logger:   log,
	}
}

// IsCommand reports whether the text is a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// Handle executes a slash command. The second return value is false
// for commands this handler does not own (like /teach).
func (h *Handler) Handle(ctx context.Context, text string) (Reply, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Reply{}, false
	}

	// "/model@skillbot" style mentions get trimmed before routing.
	cmd := strings.ToLower(fields[0])
	if at := strings.Index(cmd, "@"); at != -1 {
		cmd = cmd[:at]
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		return Reply{Text: messages.Start}, true
	case "/help":
		return Reply{Text: messages.Help}, true
	case "/model":
		return h.handleModel(args), true
	case "/skills":
		return h.skillsReply(false), true
	case "/status":
		return h.handleStatus(), true
	case "/reload":
		return h.handleReload(), true
	case "/clear":
		return h.handleClear(), true
	case "/jobs":
		return h.jobsReply(false), true
	case "/teach":
		// Owned by the teaching flow in the message processor.
		return Reply{}, false
	default:
		return Reply{Text: "Unknown command. Type /help for the list."}, true
	}
}

func (h *Handler) handleModel(args []string) Reply {
	if len(args) > 0 {
		return h.switchModel(args[0])
	}

	active := h.manager.ActiveName()
	model := ""
	if p := h.manager.Active(); p != nil {
		model = p.ModelName()
	}

	var keyboard [][]channels.Button
	for _, name := range h.manager.Names() {
		label := name
		if name == active {
			label = "✓ " + name
		}
		keyboard = append(keyboard, []channels.Button{
			{Text: label, Data: "model:" + name},
		})
	}

	return Reply{
		Text:     fmt.Sprintf("Current provider: %s (%s). Pick another:", active, model),
		Keyboard: keyboard,
	}
}

func (h *Handler) switchModel(name string) Reply {
	if err := h.manager.Switch(name); err != nil {
		return Reply{Text: fmt.Sprintf("Cannot switch to %q: %s", name, err)}
	}

	model := ""
	if p := h.manager.Active(); p != nil {
		model = p.ModelName()
	}
	h.logger.Info("Provider switched",
		logger.Field{Key: "provider", Value: name},
		logger.Field{Key: "model", Value: model})

	return Reply{Text: fmt.Sprintf("Switched to %s (%s).", name, model)}
}

func (h *Handler) handleStatus() Reply {
	model := ""
	if p := h.manager.Active(); p != nil {
		model = p.ModelName()
	}

	var usagePtr *llm.Usage
	if usage, ok := h.manager.Usage(); ok {
		usagePtr = &usage
	}

	return Reply{Text: messages.FormatStatus(
		h.manager.ActiveName(),
		model,
		h.store.List(),
		h.sched.ListJobs(),
		h.conv.Len(),
		usagePtr,
	)}
}

func (h *Handler) handleReload() Reply {
	loaded, err := h.store.LoadAll()
	if err != nil {
		h.logger.Error("Skill reload failed", err)
		return Reply{Text: fmt.Sprintf("Reload failed: %s", err)}
	}

	if err := h.registry.Refresh(); err != nil {
		h.logger.Error("Tool registry refresh failed", err)
	}
	h.prompts.Reload()

	return Reply{Text: fmt.Sprintf("Reloaded %d skills from disk.", len(loaded))}
}

func (h *Handler) handleClear() Reply {
	if err := h.conv.Clear(); err != nil {
		h.logger.Error("Failed to clear history", err)
		return Reply{Text: fmt.Sprintf("Could not clear history: %s", err)}
	}
	return Reply{Text: messages.HistoryCleared}
}

// skillsReply builds the /skills overview with the toggle keyboard.
func (h *Handler) skillsReply(edit bool) Reply {
	list := h.store.List()

	var keyboard [][]channels.Button
	for _, skill := range list {
		mark := "⬜"
		if skill.Enabled {
			mark = "✅"
		}
		keyboard = append(keyboard, []channels.Button{
			{Text: fmt.Sprintf("%s %s", mark, skill.Name), Data: "skill:" + skill.Name},
		})
	}
	if len(list) > 0 {
		keyboard = append(keyboard, []channels.Button{
			{Text: "All on", Data: "skills_all:on"},
			{Text: "All off", Data: "skills_all:off"},
			{Text: "Reindex", Data: "skills_reindex"},
		})
	}

	return Reply{
		Text:     messages.FormatSkillsOverview(list),
		Keyboard: keyboard,
		Edit:     edit,
	}
}

// jobsReply builds the /jobs list with per-job controls.
func (h *Handler) jobsReply(edit bool) Reply {
	jobs := h.sched.ListJobs()

	var keyboard [][]channels.Button
	for _, job := range jobs {
		action := "Pause"
		if !job.Enabled {
			action = "Resume"
		}
		keyboard = append(keyboard, []channels.Button{
			{Text: fmt.Sprintf("%s %s", action, job.ID), Data: "job_toggle:" + job.ID},
			{Text: "Delete " + job.ID, Data: "job_delete:" + job.ID},
		})
	}

	return Reply{
		Text:     messages.FormatJobList(jobs),
		Keyboard: keyboard,
		Edit:     edit,
	}
}

// HandleCallback executes inline keyboard callback data.
func (h *Handler) HandleCallback(ctx context.Context, data string) Reply {
	action, arg := data, ""
	if idx := strings.Index(data, ":"); idx != -1 {
		action, arg = data[:idx], data[idx+1:]
	}

	switch action {
	case "model":
		return h.switchModel(arg)
	case "skill":
		return h.toggleSkill(arg)
	case "skills_all":
		return h.setAllSkills(arg == "on")
	case "skills_reindex":
		return h.reindexSkills(ctx)
	case "job_toggle":
		return h.toggleJob(arg)
	case "job_delete":
		return h.deleteJob(arg)
	case "confirm_job":
		return h.confirmJob(arg)
	case "cancel_job":
		return h.cancelPending(arg)
	default:
		h.logger.Warn("Unknown callback data", logger.Field{Key: "data", Value: data})
		return Reply{Text: "This button is no longer supported."}
	}
}

func (h *Handler) toggleSkill(name string) Reply {
	skill, ok := h.store.Get(name)
	if !ok {
		return Reply{Text: messages.FormatSkillNotFound(name)}
	}

	h.store.SetEnabled(name, !skill.Enabled)
	h.registry.ClearCache()

	return h.skillsReply(true)
}

func (h *Handler) setAllSkills(enabled bool) Reply {
	for _, skill := range h.store.List() {
		h.store.SetEnabled(skill.Name, enabled)
	}
	h.registry.ClearCache()

	return h.skillsReply(true)
}

func (h *Handler) reindexSkills(ctx context.Context) Reply {
	if h.index == nil {
		return Reply{Text: "Semantic index is not available.", Edit: false}
	}

	if err := h.index.Clear(ctx); err != nil {
		h.logger.Error("Failed to clear index", err)
		return Reply{Text: fmt.Sprintf("Reindex failed: %s", err)}
	}

	indexed := 0
	for _, skill := range h.store.List() {
		if err := h.index.Index(ctx, skill.Name, skill.IndexText()); err != nil {
			h.logger.Error("Failed to index skill", err,
				logger.Field{Key: "skill", Value: skill.Name})
			continue
		}
		indexed++
	}

	return Reply{Text: fmt.Sprintf("Reindexed %d skills.", indexed)}
}

func (h *Handler) toggleJob(id string) Reply {
	enabled, ok := h.sched.ToggleJob(id)
	if !ok {
		return Reply{Text: messages.FormatJobNotFound(id)}
	}

	h.logger.Info("Job toggled",
		logger.Field{Key: "job_id", Value: id},
		logger.Field{Key: "enabled", Value: enabled})

	return h.jobsReply(true)
}

func (h *Handler) deleteJob(id string) Reply {
	if _, ok := h.sched.DeleteJob(id); !ok {
		return Reply{Text: messages.FormatJobNotFound(id)}
	}

	h.logger.Info("Job deleted", logger.Field{Key: "job_id", Value: id})

	reply := h.jobsReply(true)
	reply.Text = messages.FormatJobDeleted(id) + "\n\n" + reply.Text
	return reply
}

func (h *Handler) confirmJob(id string) Reply {
	job, ok := h.sched.Confirm(id)
	if !ok {
		return Reply{Text: messages.NoPendingJob, Edit: true}
	}

	h.logger.Info("Scheduled job confirmed",
		logger.Field{Key: "job_id", Value: job.ID},
		logger.Field{Key: "cron", Value: job.Cron})

	return Reply{Text: messages.FormatScheduleConfirmed(job.Description, job.ID), Edit: true}
}

func (h *Handler) cancelPending(id string) Reply {
	if !h.sched.CancelPending(id) {
		return Reply{Text: messages.NoPendingJob, Edit: true}
	}
	return Reply{Text: messages.ScheduleCancelled, Edit: true}
}
