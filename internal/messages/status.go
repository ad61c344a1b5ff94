package messages

import (
	"fmt"
	"strings"

	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/scheduler"
	"github.com/aatumaykin/skillbot/internal/skills"
)

// Start is the /start greeting.
const Start = "Hi! I am your personal assistant. Send me a message and I will use my skills to help. Type /help for the command list."

// Help is the /help text.
const Help = `Commands:
/start — greeting
/help — this message
/model — switch the LLM provider
/skills — list skills, toggle them on and off
/status — provider, skill and job counters
/reload — reload skills from disk
/clear — clear conversation history
/jobs — scheduled jobs

Teach me a new skill with "/teach <what it should do>".`

// FormatStatus builds the /status report.
func FormatStatus(provider string, model string, skillList []*skills.Skill, jobs []scheduler.Job, historyLen int, usage *llm.Usage) string {
	enabled, disabled := skills.Counts(skillList)

	b := &strings.Builder{}
	fmt.Fprintf(b, "Provider: %s (%s)\n", provider, model)
	fmt.Fprintf(b, "Skills: %d enabled, %d disabled\n", enabled, disabled)
	fmt.Fprintf(b, "Jobs: %d\n", len(jobs))
	fmt.Fprintf(b, "History: %d messages\n", historyLen)
	if usage != nil {
		fmt.Fprintf(b, "Session tokens: %d in / %d out\n", usage.PromptTokens, usage.CompletionTokens)
	}
	return b.String()
}

// FormatSkillsOverview heads the /skills keyboard.
func FormatSkillsOverview(skillList []*skills.Skill) string {
	if len(skillList) == 0 {
		return "No skills loaded. Teach me one with /teach."
	}

	enabled, disabled := skills.Counts(skillList)
	return fmt.Sprintf("Skills: %d enabled, %d disabled. Tap to toggle.", enabled, disabled)
}

// FormatJobList renders /jobs.
func FormatJobList(jobs []scheduler.Job) string {
	if len(jobs) == 0 {
		return NoJobs
	}

	b := &strings.Builder{}
	b.WriteString("Scheduled jobs:\n")
	for _, job := range jobs {
		state := "⏸"
		if job.Enabled {
			state = "▶️"
		}
		fmt.Fprintf(b, "%s `%s` — %s (cron: %s)\n", state, job.ID, job.Description, job.Cron)
		if job.LastRun != "" {
			fmt.Fprintf(b, "   last run: %s\n", job.LastRun)
		}
	}
	return b.String()
}
