package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeDirective(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Directive
	}{
		{
			name: "plain text",
			in:   "The weather is sunny.",
			want: Directive{Kind: DirectiveText, Text: "The weather is sunny."},
		},
		{
			name: "propose schedule with description",
			in:   "CONFIRM_SCHEDULE:send report|0 9 * * *|morning report",
			want: Directive{
				Kind:        DirectiveProposeSchedule,
				Task:        "send report",
				Cron:        "0 9 * * *",
				Description: "morning report",
			},
		},
		{
			name: "propose schedule without description falls back to task",
			in:   "CONFIRM_SCHEDULE:water plants|*/30 * * * *",
			want: Directive{
				Kind:        DirectiveProposeSchedule,
				Task:        "water plants",
				Cron:        "*/30 * * * *",
				Description: "water plants",
			},
		},
		{
			name: "propose schedule surrounded by whitespace",
			in:   "  CONFIRM_SCHEDULE: send report | 0 9 * * * | morning report \n",
			want: Directive{
				Kind:        DirectiveProposeSchedule,
				Task:        "send report",
				Cron:        "0 9 * * *",
				Description: "morning report",
			},
		},
		{
			name: "malformed proposal degrades to text",
			in:   "CONFIRM_SCHEDULE:only a task",
			want: Directive{Kind: DirectiveText, Text: "CONFIRM_SCHEDULE:only a task"},
		},
		{
			name: "delete job",
			in:   "SCHEDULER_DELETE:abc123",
			want: Directive{Kind: DirectiveDeleteJob, JobID: "abc123"},
		},
		{
			name: "delete without id degrades to text",
			in:   "SCHEDULER_DELETE:",
			want: Directive{Kind: DirectiveText, Text: "SCHEDULER_DELETE:"},
		},
		{
			name: "toggle job",
			in:   "SCHEDULER_TOGGLE:def456",
			want: Directive{Kind: DirectiveToggleJob, JobID: "def456"},
		},
		{
			name: "prefix mid-text is not a directive",
			in:   "note: CONFIRM_SCHEDULE:x|y is the wire format",
			want: Directive{Kind: DirectiveText, Text: "note: CONFIRM_SCHEDULE:x|y is the wire format"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeDirective(tt.in))
		})
	}
}
