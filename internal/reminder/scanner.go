// Package reminder implements the periodic reminder scan: find sessions
// whose start time falls in the due window and fan out a reminder to every
// live enrollment. Delivery is at-least-once; a participant reminded twice
// within one due window is acceptable, a skipped window is not, so the scan
// must run at least every 2x the tolerance.
package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/okulikov/session-enroll/internal/model"
	"github.com/okulikov/session-enroll/internal/notify"
	"github.com/okulikov/session-enroll/internal/timewindow"
)

// SessionSource lists sessions whose start time falls inside a window.
type SessionSource interface {
	ListDueForReminder(ctx context.Context, windowStart, windowEnd time.Time) ([]model.Session, error)
}

// EnrollmentSource lists the live enrollments of a session.
type EnrollmentSource interface {
	ListBySession(ctx context.Context, sessionID string) ([]model.Enrollment, error)
}

// Scanner performs one reminder sweep per invocation. It only reads state;
// it never races with the registration engine on capacity or enrollment rows.
type Scanner struct {
	sessions    SessionSource
	enrollments EnrollmentSource
	dispatcher  notify.Dispatcher
	log         *zap.SugaredLogger

	leadHours       float64
	toleranceHours  float64
	dispatchTimeout time.Duration
}

// NewScanner constructs a Scanner. Non-positive lead or tolerance fall back
// to the standard 24h / 1h window.
func NewScanner(
	sessions SessionSource,
	enrollments EnrollmentSource,
	dispatcher notify.Dispatcher,
	log *zap.SugaredLogger,
	leadHours, toleranceHours float64,
) *Scanner {
	if leadHours <= 0 {
		leadHours = timewindow.ReminderLeadHours
	}
	if toleranceHours <= 0 {
		toleranceHours = timewindow.ReminderToleranceHours
	}
	return &Scanner{
		sessions:        sessions,
		enrollments:     enrollments,
		dispatcher:      dispatcher,
		log:             log,
		leadHours:       leadHours,
		toleranceHours:  toleranceHours,
		dispatchTimeout: 10 * time.Second,
	}
}

// RunOnce scans for due sessions as of now and dispatches reminders to their
// participants, returning the number successfully sent. Individual dispatch
// failures are logged and skipped; only a storage failure aborts the scan.
func (s *Scanner) RunOnce(ctx context.Context, now time.Time) (int, error) {
	windowStart := now.Add(hoursToDuration(s.leadHours - s.toleranceHours))
	windowEnd := now.Add(hoursToDuration(s.leadHours + s.toleranceHours))

	sessions, err := s.sessions.ListDueForReminder(ctx, windowStart, windowEnd)
	if err != nil {
		return 0, fmt.Errorf("list due sessions: %w", err)
	}

	sent := 0
	for i := range sessions {
		sess := &sessions[i]
		if !timewindow.IsDueForReminder(sess.StartTime, now, s.leadHours, s.toleranceHours) {
			continue
		}

		enrollments, err := s.enrollments.ListBySession(ctx, sess.ID)
		if err != nil {
			return sent, fmt.Errorf("list enrollments for session %s: %w", sess.ID, err)
		}

		for _, enr := range enrollments {
			if s.dispatchReminder(sess, enr) {
				sent++
			}
		}
	}

	s.log.Infow("reminder scan complete", "sessions", len(sessions), "sent", sent)
	return sent, nil
}

func (s *Scanner) dispatchReminder(sess *model.Session, enr model.Enrollment) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
	defer cancel()

	extra := map[string]string{
		"starts_at": sess.StartTime.Format(time.RFC3339),
	}
	if err := s.dispatcher.Dispatch(ctx, notify.KindReminder, enr.ContactKey, enr.Name, sess, extra); err != nil {
		s.log.Warnw("reminder dispatch failed",
			"session", sess.ID, "contact", enr.ContactKey, "error", err)
		return false
	}
	return true
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
