package scheduler

import (
	"strconv"
	"strings"
	"time"
)

// The supported cron subset covers two shapes. Interval form reduces
// to "every N minutes/hours" and is tried first, so "30 * * * *"
// means hourly, not daily at minute 30. Daily form needs literal
// minute and hour; day-of-month and month fields are accepted but
// not evaluated.

// intervalPeriod recognizes the interval form and returns its period.
func intervalPeriod(expr string) (time.Duration, bool) {
	parts := strings.Fields(strings.TrimSpace(expr))
	if len(parts) != 5 {
		return 0, false
	}
	minute, hour, day := parts[0], parts[1], parts[2]

	wildcard := true
	for _, p := range parts {
		if p != "*" {
			wildcard = false
			break
		}
	}
	if wildcard {
		return time.Minute, true
	}

	if strings.HasPrefix(minute, "*/") && hour == "*" && day == "*" {
		if n, err := strconv.Atoi(minute[2:]); err == nil && n > 0 {
			return time.Duration(n) * time.Minute, true
		}
	}

	if isDigits(minute) && hour == "*" && day == "*" {
		return time.Hour, true
	}

	if isDigits(minute) && strings.HasPrefix(hour, "*/") && day == "*" {
		if n, err := strconv.Atoi(hour[2:]); err == nil && n > 0 {
			return time.Duration(n) * time.Hour, true
		}
	}

	return 0, false
}

// dailySpec recognizes the daily-time form. The returned day set uses
// Monday-is-0 numbering translated from cron's Sunday-is-0; nil means
// no day restriction.
func dailySpec(expr string) (hour, minute int, days map[int]bool, ok bool) {
	parts := strings.Fields(strings.TrimSpace(expr))
	if len(parts) != 5 {
		return 0, 0, nil, false
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, nil, false
	}
	hour, err = strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, nil, false
	}

	dow := parts[4]
	if dow == "*" {
		return hour, minute, nil, true
	}

	days = make(map[int]bool)
	switch {
	case strings.Contains(dow, "-"):
		bounds := strings.SplitN(dow, "-", 2)
		start, err1 := strconv.Atoi(bounds[0])
		end, err2 := strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil {
			return 0, 0, nil, false
		}
		for d := start; d <= end; d++ {
			days[mondayIndex(d)] = true
		}
	case strings.Contains(dow, ","):
		for _, field := range strings.Split(dow, ",") {
			d, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return 0, 0, nil, false
			}
			days[mondayIndex(d)] = true
		}
	default:
		d, err := strconv.Atoi(dow)
		if err != nil {
			return 0, 0, nil, false
		}
		days[mondayIndex(d)] = true
	}

	return hour, minute, days, true
}

// mondayIndex maps cron day numbering (0=Sunday) to Monday-is-0.
func mondayIndex(cronDay int) int {
	return ((cronDay+6)%7 + 7) % 7
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
