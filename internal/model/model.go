// Package model defines the core domain types for the session enrollment system.
package model

import "time"

// Session represents a scheduled, capacity-limited event instance.
// Session metadata is owned by the session-management side; the enrollment
// engine only ever mutates CurrentCount, and only through the repository's
// atomic reserve/release primitives.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartTime    time.Time `json:"start_time"`
	MaxCapacity  int       `json:"max_capacity"`
	CurrentCount int       `json:"current_count"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Remaining returns the number of available seats.
func (s *Session) Remaining() int {
	return s.MaxCapacity - s.CurrentCount
}

// IsFull returns true when no seats remain.
func (s *Session) IsFull() bool {
	return s.CurrentCount >= s.MaxCapacity
}

// Enrollment represents a participant's claim on one slot in a Session.
// ContactKey is always stored normalized (trimmed, lower-cased); the pair
// (SessionID, ContactKey) is unique among live enrollments.
type Enrollment struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Name       string    `json:"name"`
	ContactKey string    `json:"contact_key"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ContactEnrollment is an enrollment joined with the visibility fields of its
// session, used when listing everything one participant is enrolled in.
type ContactEnrollment struct {
	Enrollment
	SessionTitle  string    `json:"session_title"`
	SessionStart  time.Time `json:"session_start"`
	SessionActive bool      `json:"session_active"`
}

// CreateSessionRequest is the payload for creating a new session.
type CreateSessionRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	MaxCapacity int       `json:"max_capacity"`
}

// EnrollRequest is the payload for enrolling in a session.
type EnrollRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Phone   string `json:"phone,omitempty"`
}

// CancelRequest is the payload for cancelling an enrollment.
type CancelRequest struct {
	Contact string `json:"contact"`
}

// CancelResponse reports whether a live enrollment was found and removed.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
