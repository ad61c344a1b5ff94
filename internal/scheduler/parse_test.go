package scheduler

import (
	"testing"
	"time"
)

func TestIntervalPeriod(t *testing.T) {
	tests := []struct {
		expr   string
		period time.Duration
		ok     bool
	}{
		{"* * * * *", time.Minute, true},
		{"*/15 * * * *", 15 * time.Minute, true},
		{"*/1 * * * *", time.Minute, true},
		{"0 * * * *", time.Hour, true},
		{"30 * * * *", time.Hour, true},
		{"0 */6 * * *", 6 * time.Hour, true},
		{"15 */2 * * *", 2 * time.Hour, true},
		{"0 9 * * *", 0, false},
		{"*/0 * * * *", 0, false},
		{"*/x * * * *", 0, false},
		{"* * * *", 0, false},
		{"not a cron", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		period, ok := intervalPeriod(tt.expr)
		if ok != tt.ok {
			t.Errorf("intervalPeriod(%q) ok = %v, want %v", tt.expr, ok, tt.ok)
			continue
		}
		if ok && period != tt.period {
			t.Errorf("intervalPeriod(%q) = %v, want %v", tt.expr, period, tt.period)
		}
	}
}

func TestDailySpec(t *testing.T) {
	tests := []struct {
		expr   string
		hour   int
		minute int
		days   []int
		ok     bool
	}{
		{"0 9 * * *", 9, 0, nil, true},
		{"30 18 * * *", 18, 30, nil, true},
		{"0 9 * * 1-5", 9, 0, []int{0, 1, 2, 3, 4}, true},
		{"0 9 * * 0", 9, 0, []int{6}, true},
		{"0 9 * * 7", 9, 0, []int{6}, true},
		{"0 9 * * 1,3,5", 9, 0, []int{0, 2, 4}, true},
		{"0 25 * * *", 0, 0, nil, false},
		{"60 9 * * *", 0, 0, nil, false},
		{"x 9 * * *", 0, 0, nil, false},
		{"*/15 9 * * *", 0, 0, nil, false},
		{"0 9 * * x", 0, 0, nil, false},
		{"0 9 * *", 0, 0, nil, false},
	}

	for _, tt := range tests {
		hour, minute, days, ok := dailySpec(tt.expr)
		if ok != tt.ok {
			t.Errorf("dailySpec(%q) ok = %v, want %v", tt.expr, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if hour != tt.hour || minute != tt.minute {
			t.Errorf("dailySpec(%q) = %d:%d, want %d:%d", tt.expr, hour, minute, tt.hour, tt.minute)
		}
		if tt.days == nil {
			if days != nil {
				t.Errorf("dailySpec(%q) days = %v, want unrestricted", tt.expr, days)
			}
			continue
		}
		if len(days) != len(tt.days) {
			t.Errorf("dailySpec(%q) days = %v, want %v", tt.expr, days, tt.days)
			continue
		}
		for _, d := range tt.days {
			if !days[d] {
				t.Errorf("dailySpec(%q) missing day %d in %v", tt.expr, d, days)
			}
		}
	}
}

func TestMondayIndex(t *testing.T) {
	tests := []struct {
		cronDay int
		want    int
	}{
		{0, 6}, // Sunday
		{1, 0}, // Monday
		{5, 4}, // Friday
		{6, 5}, // Saturday
		{7, 6}, // Sunday again
	}

	for _, tt := range tests {
		if got := mondayIndex(tt.cronDay); got != tt.want {
			t.Errorf("mondayIndex(%d) = %d, want %d", tt.cronDay, got, tt.want)
		}
	}
}
