package agent

import "strings"

// DirectiveKind enumerates what a tool's output asks the loop to do.
type DirectiveKind int

const (
	// DirectiveText is an ordinary tool result, fed back verbatim.
	DirectiveText DirectiveKind = iota
	// DirectiveProposeSchedule asks for a new job pending confirmation.
	DirectiveProposeSchedule
	// DirectiveDeleteJob removes a scheduled job.
	DirectiveDeleteJob
	// DirectiveToggleJob pauses or resumes a scheduled job.
	DirectiveToggleJob
)

// Wire prefixes skills emit to request scheduler side-effects. They
// exist only here; the rest of the loop dispatches on Directive.Kind.
const (
	confirmSchedulePrefix = "CONFIRM_SCHEDULE:"
	schedulerDeletePrefix = "SCHEDULER_DELETE:"
	schedulerTogglePrefix = "SCHEDULER_TOGGLE:"
)

// Directive is the decoded form of one tool result.
type Directive struct {
	Kind DirectiveKind

	// Text carries the result for DirectiveText.
	Text string

	// Task, Cron and Description carry the DirectiveProposeSchedule
	// payload.
	Task        string
	Cron        string
	Description string

	// JobID carries the target for delete and toggle.
	JobID string
}

// DecodeDirective classifies a tool result. A malformed side-effect
// payload degrades to plain text so the model sees what the skill
// actually produced.
func DecodeDirective(output string) Directive {
	trimmed := strings.TrimSpace(output)

	if payload, ok := strings.CutPrefix(trimmed, confirmSchedulePrefix); ok {
		parts := strings.SplitN(payload, "|", 3)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return Directive{Kind: DirectiveText, Text: output}
		}

		d := Directive{
			Kind: DirectiveProposeSchedule,
			Task: strings.TrimSpace(parts[0]),
			Cron: strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			d.Description = strings.TrimSpace(parts[2])
		}
		if d.Description == "" {
			d.Description = d.Task
		}
		return d
	}

	if id, ok := strings.CutPrefix(trimmed, schedulerDeletePrefix); ok {
		if id = strings.TrimSpace(id); id != "" {
			return Directive{Kind: DirectiveDeleteJob, JobID: id}
		}
		return Directive{Kind: DirectiveText, Text: output}
	}

	if id, ok := strings.CutPrefix(trimmed, schedulerTogglePrefix); ok {
		if id = strings.TrimSpace(id); id != "" {
			return Directive{Kind: DirectiveToggleJob, JobID: id}
		}
		return Directive{Kind: DirectiveText, Text: output}
	}

	return Directive{Kind: DirectiveText, Text: output}
}
