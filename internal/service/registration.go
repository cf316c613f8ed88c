// Package service implements the registration lifecycle engine: validation,
// time-window checks, and orchestration of the transactional seat accounting
// in the repository layer, plus the best-effort notification side effects.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/okulikov/session-enroll/internal/apperr"
	"github.com/okulikov/session-enroll/internal/model"
	"github.com/okulikov/session-enroll/internal/notify"
	"github.com/okulikov/session-enroll/internal/repository"
	"github.com/okulikov/session-enroll/internal/timewindow"
)

// SessionReader supplies session records to the engine. The engine never
// writes session metadata; capacity accounting happens inside EnrollmentStore
// transactions.
type SessionReader interface {
	GetByID(ctx context.Context, id string) (*model.Session, error)
}

// EnrollmentStore is the transactional persistence port of the engine.
// Create must reserve a seat and insert atomically, returning
// repository.ErrSessionFull or repository.ErrDuplicate as business outcomes;
// Delete must remove the row and release the seat atomically.
type EnrollmentStore interface {
	Create(ctx context.Context, sessionID, name, contactKey, phone string) (*model.Enrollment, error)
	Delete(ctx context.Context, enrollmentID, sessionID string) error
	FindBySessionAndContact(ctx context.Context, sessionID, contactKey string) (*model.Enrollment, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Enrollment, error)
	ListByContact(ctx context.Context, contactKey string) ([]model.ContactEnrollment, error)
}

// RegistrationService orchestrates enrollment and cancellation.
type RegistrationService struct {
	sessions    SessionReader
	enrollments EnrollmentStore
	dispatcher  notify.Dispatcher
	log         *zap.SugaredLogger

	// now is captured once per operation so every time comparison within a
	// single call sees the same instant.
	now             func() time.Time
	dispatchTimeout time.Duration
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	sessions SessionReader,
	enrollments EnrollmentStore,
	dispatcher notify.Dispatcher,
	log *zap.SugaredLogger,
) *RegistrationService {
	return &RegistrationService{
		sessions:        sessions,
		enrollments:     enrollments,
		dispatcher:      dispatcher,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
		dispatchTimeout: 5 * time.Second,
	}
}

// Enroll registers a participant for a session.
//
// The duplicate pre-check here is a courtesy short-circuit so an obviously
// repeated request does not burn a seat reservation; the storage uniqueness
// constraint remains the authority when two requests race past it.
func (s *RegistrationService) Enroll(ctx context.Context, sessionID string, req model.EnrollRequest) (*model.Enrollment, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &apperr.ValidationError{Field: "name", Message: "name must not be empty"}
	}
	contact := NormalizeContact(req.Contact)
	if !IsValidContact(contact) {
		return nil, &apperr.ValidationError{Field: "contact", Message: "contact must be a valid address"}
	}
	if sessionID == "" {
		return nil, &apperr.ValidationError{Field: "session", Message: "session id is required"}
	}
	phone := strings.TrimSpace(req.Phone)

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !sess.Active || !timewindow.IsUpcoming(sess.StartTime, now) {
		return nil, &apperr.TimeConstraintError{
			Message: fmt.Sprintf("registration for %q is closed", sess.Title),
		}
	}

	existing, err := s.enrollments.FindBySessionAndContact(ctx, sessionID, contact)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, &apperr.DuplicateEnrollmentError{Contact: contact, Title: sess.Title}
	}

	enr, err := s.enrollments.Create(ctx, sessionID, name, contact, phone)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionFull):
			return nil, &apperr.CapacityExceededError{Title: sess.Title}
		case errors.Is(err, repository.ErrDuplicate):
			return nil, &apperr.DuplicateEnrollmentError{Contact: contact, Title: sess.Title}
		default:
			// Session deleted mid-operation surfaces as ErrNotFound here.
			return nil, err
		}
	}

	s.log.Infow("enrolled", "session", sessionID, "contact", contact)
	s.dispatchAsync(notify.KindConfirmation, contact, name, sess, nil)
	return enr, nil
}

// Cancel removes a participant's enrollment. It returns false when no live
// enrollment exists for (session, contact), which is an ordinary outcome, not
// an error. Cancellation requires at least timewindow.CancelLeadHours before
// the session starts; exactly on the boundary is still allowed.
func (s *RegistrationService) Cancel(ctx context.Context, sessionID, contact string) (bool, error) {
	contact = NormalizeContact(contact)
	if !IsValidContact(contact) {
		return false, &apperr.ValidationError{Field: "contact", Message: "contact must be a valid address"}
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}

	enr, err := s.enrollments.FindBySessionAndContact(ctx, sessionID, contact)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	now := s.now()
	if !timewindow.IsUpcoming(sess.StartTime, now) {
		return false, &apperr.TimeConstraintError{
			Message: fmt.Sprintf("cannot cancel enrollment in %q: the session has already occurred", sess.Title),
		}
	}
	if hours := timewindow.HoursUntil(sess.StartTime, now); hours < timewindow.CancelLeadHours {
		return false, &apperr.CancellationTooLateError{
			Title:          sess.Title,
			HoursRemaining: hours,
			RequiredHours:  timewindow.CancelLeadHours,
		}
	}

	if err := s.enrollments.Delete(ctx, enr.ID, sessionID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// A concurrent cancel or cascaded session delete got there first.
			return false, nil
		}
		return false, err
	}

	s.log.Infow("cancelled", "session", sessionID, "contact", contact)
	s.dispatchAsync(notify.KindCancellation, contact, enr.Name, sess, nil)
	return true, nil
}

// Roster returns a session's enrollments ordered by creation time.
func (s *RegistrationService) Roster(ctx context.Context, sessionID string) ([]model.Enrollment, error) {
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.enrollments.ListBySession(ctx, sessionID)
}

// EnrollmentsByContact returns everything a contact is enrolled in, joined
// with each session's visibility fields.
func (s *RegistrationService) EnrollmentsByContact(ctx context.Context, contact string) ([]model.ContactEnrollment, error) {
	contact = NormalizeContact(contact)
	if !IsValidContact(contact) {
		return nil, &apperr.ValidationError{Field: "contact", Message: "contact must be a valid address"}
	}
	return s.enrollments.ListByContact(ctx, contact)
}

// dispatchAsync fires a notification without blocking the caller. The
// transaction has already committed by the time this runs; failures are
// logged and nothing else.
func (s *RegistrationService) dispatchAsync(kind notify.Kind, contact, name string, sess *model.Session, extra map[string]string) {
	if s.dispatcher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()
		if err := s.dispatcher.Dispatch(ctx, kind, contact, name, sess, extra); err != nil {
			s.log.Warnw("notification dispatch failed",
				"kind", string(kind), "session", sess.ID, "contact", contact, "error", err)
		}
	}()
}

// NormalizeContact trims and lower-cases a contact key. All storage and
// comparison of contact keys goes through this.
func NormalizeContact(contact string) string {
	return strings.ToLower(strings.TrimSpace(contact))
}

// IsValidContact does a basic structural address check (no external deps).
func IsValidContact(contact string) bool {
	parts := strings.Split(contact, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
