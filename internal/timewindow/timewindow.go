// Package timewindow holds the pure time arithmetic behind cancellation
// eligibility and reminder scheduling. Nothing here touches a clock or the
// database; callers capture "now" once per operation and pass it in.
package timewindow

import "time"

const (
	// CancelLeadHours is the minimum time before a session's start at which
	// an enrollment may still be cancelled. The boundary is strict: exactly
	// 24.0 hours remaining is allowed, anything less is not.
	CancelLeadHours = 24

	// ReminderLeadHours is how far before a session's start reminders fire.
	ReminderLeadHours = 24

	// ReminderToleranceHours is the half-width of the reminder due window.
	// A scanner polling at most every 2*ReminderToleranceHours never skips
	// a session's window entirely.
	ReminderToleranceHours = 1
)

// IsUpcoming reports whether the session start is strictly in the future.
func IsUpcoming(start, now time.Time) bool {
	return start.After(now)
}

// HoursUntil returns the fractional hours from now until start. Negative once
// the start has passed.
func HoursUntil(start, now time.Time) float64 {
	return start.Sub(now).Hours()
}

// CanCancel reports whether a cancellation is still allowed: the session must
// be upcoming with at least CancelLeadHours remaining.
func CanCancel(start, now time.Time) bool {
	return IsUpcoming(start, now) && HoursUntil(start, now) >= CancelLeadHours
}

// IsDueForReminder reports whether now falls inside the reminder due window:
// within toleranceHours (inclusive) of leadHours before start.
func IsDueForReminder(start, now time.Time, leadHours, toleranceHours float64) bool {
	diff := HoursUntil(start, now) - leadHours
	if diff < 0 {
		diff = -diff
	}
	return diff <= toleranceHours
}
