// Package messages centralizes every user-visible string the bot
// sends to the chat. Error paths pick their copy from here so a
// caught failure always ends in a concrete answer.
package messages

import "fmt"

// Fixed replies.
const (
	Unauthorized = "Sorry, you are not authorized to use this bot."

	GenericError = "Something went wrong while processing your message. Please try again."

	MaxToolCalls = "Reached maximum tool calls. Please try rephrasing your request."

	VisionUnsupported = "The current model cannot look at images. Switch to a vision-capable model with /model and resend the photo."

	HistoryCleared = "Conversation history cleared."

	TeachingStarted = "Okay, teach me! Describe what the skill should do, step by step. Say \"done\" when you are finished or \"cancel\" to stop."

	TeachingCancelled = "Teaching cancelled. Nothing was saved."

	TeachingNothing = "There is nothing to learn from yet. Describe the skill first or say \"cancel\"."

	TeachingAck = "Got it. Tell me more, or say \"done\" when I should write the skill."

	GenerationFailed = "I could not produce working code for that skill. You can try teaching me again with more detail."

	NoPendingJob = "That proposal is no longer pending. It may have been confirmed or cancelled already."

	ScheduleCancelled = "Schedule proposal cancelled."

	NoJobs = "No scheduled jobs."
)

// FormatProcessTimeout names the pipeline deadline that aborted a run.
func FormatProcessTimeout(seconds int) string {
	return fmt.Sprintf("Processing timed out after %d seconds. Please try a simpler request.", seconds)
}

// FormatSkillNotFound is fed back to the model when it calls an
// unknown tool.
func FormatSkillNotFound(name string) string {
	return fmt.Sprintf("Error: skill '%s' not found", name)
}

// FormatSkillLearned announces a freshly taught skill.
func FormatSkillLearned(name, title string) string {
	return fmt.Sprintf("I learned a new skill: *%s* (%s). You can use it right away.", title, name)
}

// FormatSkillTestFailed reports a generated skill that failed its
// smoke test and was not saved.
func FormatSkillTestFailed(errMsg string) string {
	return fmt.Sprintf("The new skill failed its test run: %s\nI did not save it. Teach me again with more detail or different steps.", errMsg)
}

// FormatScheduleProposal is the confirmation prompt for a proposed job.
func FormatScheduleProposal(description, cronExpr, id string) string {
	return fmt.Sprintf("Schedule this task?\n\n%s\nCron: `%s`\nID: %s", description, cronExpr, id)
}

// FormatScheduleConfirmed announces a job after the confirm button.
func FormatScheduleConfirmed(description, id string) string {
	return fmt.Sprintf("Scheduled: %s (id %s)", description, id)
}

// FormatScheduledTaskResult wraps the loop's answer for a fired job.
func FormatScheduledTaskResult(description, text string) string {
	return fmt.Sprintf("⏰ %s\n\n%s", description, text)
}

// FormatScheduledTaskFailed reports a job whose pipeline errored.
func FormatScheduledTaskFailed(description string) string {
	return fmt.Sprintf("⏰ %s\n\nThe scheduled task failed to run. Check the logs for details.", description)
}

// FormatJobToggled reports the new state after a toggle.
func FormatJobToggled(id string, enabled bool) string {
	state := "paused"
	if enabled {
		state = "active"
	}
	return fmt.Sprintf("Job %s is now %s.", id, state)
}

// FormatJobDeleted reports a removed job.
func FormatJobDeleted(id string) string {
	return fmt.Sprintf("Job %s deleted.", id)
}

// FormatJobNotFound reports an unknown job id.
func FormatJobNotFound(id string) string {
	return fmt.Sprintf("Job %s not found.", id)
}
