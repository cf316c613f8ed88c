// Package repository implements all database access for the enrollment
// system. It uses pgx directly (no ORM); the capacity invariant lives in the
// conditional updates here, not in application code.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okulikov/session-enroll/internal/apperr"
	"github.com/okulikov/session-enroll/internal/model"
)

const sessionColumns = `id, title, description, start_time, max_capacity, current_count, active, created_at`

// SessionRepository handles persistence for sessions.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session and returns it with a generated UUID.
func (r *SessionRepository) Create(ctx context.Context, req model.CreateSessionRequest) (*model.Session, error) {
	sess := &model.Session{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime.UTC(),
		MaxCapacity: req.MaxCapacity,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, title, description, start_time, max_capacity, current_count, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.Title, sess.Description, sess.StartTime, sess.MaxCapacity, sess.CurrentCount, sess.Active, sess.CreatedAt,
	)
	if err != nil {
		return nil, wrapStorage("insert session", err)
	}
	return sess, nil
}

// GetByID returns a single session or apperr.ErrNotFound.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, wrapStorage("get session", err)
	}
	return sess, nil
}

// List returns sessions ordered by start time ascending. With upcomingOnly
// set, only active sessions starting after now are returned.
func (r *SessionRepository) List(ctx context.Context, upcomingOnly bool, now time.Time) ([]model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY start_time ASC`
	args := []any{}
	if upcomingOnly {
		query = `SELECT ` + sessionColumns + ` FROM sessions
		 WHERE active AND start_time > $1
		 ORDER BY start_time ASC`
		args = append(args, now.UTC())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage("list sessions", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListDueForReminder returns active sessions whose start time falls inside
// [windowStart, windowEnd]. The scanner applies the exact due-window check on
// top of this coarse selection.
func (r *SessionRepository) ListDueForReminder(ctx context.Context, windowStart, windowEnd time.Time) ([]model.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE active AND start_time >= $1 AND start_time <= $2
		 ORDER BY start_time ASC`,
		windowStart.UTC(), windowEnd.UTC(),
	)
	if err != nil {
		return nil, wrapStorage("list due sessions", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var s model.Session
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.StartTime, &s.MaxCapacity, &s.CurrentCount, &s.Active, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]model.Session, error) {
	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, wrapStorage("scan session", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage("iterate sessions", err)
	}
	return sessions, nil
}
