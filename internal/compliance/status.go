package compliance

import "time"

// Status is the time-based compliance state of a single document.
type Status string

const (
	StatusMissing      Status = "missing"
	StatusOverdue      Status = "overdue"
	StatusExpiringSoon Status = "expiring_soon"
	StatusCompliant    Status = "compliant"
)

// DefaultWarningWindowDays is how many days before expiry a document becomes
// expiring_soon.
const DefaultWarningWindowDays = 30

// ComputeStatus derives the status of a document from its expiry date.
// Both dates are normalized to midnight so time of day never shifts the
// calendar-day difference. A nil expiry means the validity window was never
// established and the document is missing. Callers must pass the time of
// evaluation as today; the result is never cached.
func ComputeStatus(expiry *time.Time, today time.Time, warningDays int) Status {
	if expiry == nil {
		return StatusMissing
	}
	e := truncateToDay(*expiry)
	t := truncateToDay(today)
	daysRemaining := int(e.Sub(t).Hours() / 24)
	switch {
	case daysRemaining < 0:
		return StatusOverdue
	case daysRemaining <= warningDays:
		return StatusExpiringSoon
	default:
		return StatusCompliant
	}
}

// DaysRemaining returns the calendar-day difference between expiry and today.
// Negative when the document is already expired.
func DaysRemaining(expiry, today time.Time) int {
	e := truncateToDay(expiry)
	t := truncateToDay(today)
	return int(e.Sub(t).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
