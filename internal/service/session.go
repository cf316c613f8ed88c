package service

import (
	"context"
	"strings"
	"time"

	"github.com/okulikov/session-enroll/internal/apperr"
	"github.com/okulikov/session-enroll/internal/model"
)

// SessionStore is the persistence port for session management.
type SessionStore interface {
	SessionReader
	Create(ctx context.Context, req model.CreateSessionRequest) (*model.Session, error)
	List(ctx context.Context, upcomingOnly bool, now time.Time) ([]model.Session, error)
}

// SessionService covers the thin session-management surface: creating and
// reading session records. Capacity mutation is the registration engine's
// job, never done here.
type SessionService struct {
	sessions SessionStore
	now      func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions SessionStore) *SessionService {
	return &SessionService{
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the request and persists a new session.
func (s *SessionService) Create(ctx context.Context, req model.CreateSessionRequest) (*model.Session, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, &apperr.ValidationError{Field: "title", Message: "title must not be empty"}
	}
	if req.MaxCapacity <= 0 {
		return nil, &apperr.ValidationError{Field: "max_capacity", Message: "capacity must be a positive integer"}
	}
	if req.MaxCapacity > 100_000 {
		return nil, &apperr.ValidationError{Field: "max_capacity", Message: "capacity cannot exceed 100,000"}
	}
	if req.StartTime.IsZero() {
		return nil, &apperr.ValidationError{Field: "start_time", Message: "start time is required"}
	}
	if !req.StartTime.After(s.now()) {
		return nil, &apperr.ValidationError{Field: "start_time", Message: "start time must be in the future"}
	}
	return s.sessions.Create(ctx, req)
}

// List returns sessions, optionally restricted to active upcoming ones.
func (s *SessionService) List(ctx context.Context, upcomingOnly bool) ([]model.Session, error) {
	return s.sessions.List(ctx, upcomingOnly, s.now())
}

// Get returns a single session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, &apperr.ValidationError{Field: "session", Message: "session id is required"}
	}
	return s.sessions.GetByID(ctx, id)
}
