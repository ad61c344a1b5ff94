package scheduler

import "time"

// Schedule implementations handed to robfig/cron. The library calls
// Next with the current time before the first activation and with the
// activation time after each run; a zero return parks the entry.

// intervalSchedule fires at first, then every period.
type intervalSchedule struct {
	period time.Duration
	first  time.Time
}

func (s *intervalSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return t.Add(s.period)
}

// dailySchedule fires at hour:minute local time on the allowed days.
// days uses Monday-is-0 numbering; nil means every day.
type dailySchedule struct {
	hour   int
	minute int
	days   map[int]bool
	loc    *time.Location
}

func (s *dailySchedule) Next(t time.Time) time.Time {
	t = t.In(s.loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}

	for i := 0; i < 7; i++ {
		if s.dayAllowed(next.Weekday()) {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}

	// Пустое множество дней: триггер зарегистрирован, но не срабатывает.
	return time.Time{}
}

func (s *dailySchedule) dayAllowed(wd time.Weekday) bool {
	if s.days == nil {
		return true
	}
	return s.days[mondayIndex(int(wd))]
}

// oneShotSchedule fires once at the given time.
type oneShotSchedule struct {
	at time.Time
}

func (s oneShotSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}
