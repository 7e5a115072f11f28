package market

import "time"

// Regular session for US equities, expressed in the exchange timezone.
var (
	openHour, openMinute   = 9, 30
	closeHour, closeMinute = 16, 0
)

// Status describes whether the exchange is currently in its regular session.
type Status struct {
	Open      bool      `json:"is_open"`
	Now       time.Time `json:"now"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// SessionStatus computes the session state at now in loc.
func SessionStatus(now time.Time, loc *time.Location) Status {
	now = now.In(loc)
	open := sessionBound(now, openHour, openMinute)
	clos := sessionBound(now, closeHour, closeMinute)

	isOpen := isTradingDay(now) && !now.Before(open) && now.Before(clos)

	status := Status{Open: isOpen, Now: now}
	if isOpen {
		status.NextClose = clos
		status.NextOpen = nextSession(now.AddDate(0, 0, 1))
	} else if isTradingDay(now) && now.Before(open) {
		status.NextOpen = open
		status.NextClose = clos
	} else {
		nextDay := nextSession(now.AddDate(0, 0, 1))
		status.NextOpen = nextDay
		status.NextClose = sessionBound(nextDay, closeHour, closeMinute)
	}
	return status
}

func isTradingDay(t time.Time) bool {
	return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
}

func sessionBound(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func nextSession(from time.Time) time.Time {
	for !isTradingDay(from) {
		from = from.AddDate(0, 0, 1)
	}
	return sessionBound(from, openHour, openMinute)
}
