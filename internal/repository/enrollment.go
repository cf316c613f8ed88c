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

// EnrollmentRepository handles persistence for enrollments, including the
// capacity accounting bound to each insert and delete.
type EnrollmentRepository struct {
	db *pgxpool.Pool
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create reserves a seat and inserts the enrollment in one transaction.
//
// Overbooking under concurrency is prevented by a single conditional update:
//
//	UPDATE sessions SET current_count = current_count + 1
//	WHERE id = $1 AND current_count < max_capacity
//
// Two transactions racing for the last seat both run this statement, but the
// row lock taken by the first forces the second to re-evaluate the WHERE
// clause against the committed counter, so exactly one sees a row affected.
// No SELECT ... FOR UPDATE and no application-level lock is needed.
//
// The unique constraint on (session_id, contact_key) is the final authority
// on duplicates: if two requests for the same contact pass the service-level
// pre-check simultaneously, the second INSERT fails and the whole
// transaction, reservation included, rolls back.
func (r *EnrollmentRepository) Create(ctx context.Context, sessionID, name, contactKey, phone string) (*model.Enrollment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, wrapStorage("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET current_count = current_count + 1
		 WHERE id = $1 AND current_count < max_capacity`,
		sessionID,
	)
	if err != nil {
		return nil, wrapStorage("reserve seat", err)
	}
	if tag.RowsAffected() == 0 {
		// Zero rows means either no such session or no seat left; a re-read
		// inside the same transaction disambiguates.
		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID,
		).Scan(&exists)
		if err != nil {
			return nil, wrapStorage("check session", err)
		}
		if !exists {
			err = apperr.ErrNotFound
			return nil, err
		}
		err = ErrSessionFull
		return nil, err
	}

	enr := &model.Enrollment{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Name:       name,
		ContactKey: contactKey,
		Phone:      phone,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO enrollments (id, session_id, name, contact_key, phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		enr.ID, enr.SessionID, enr.Name, enr.ContactKey, nullable(enr.Phone), enr.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return nil, err
		}
		return nil, wrapStorage("insert enrollment", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, wrapStorage("commit transaction", err)
	}
	return enr, nil
}

// Delete removes the enrollment and releases its seat in one transaction.
// The counter is floored at zero. Returns apperr.ErrNotFound when the
// enrollment row is already gone (e.g. a concurrent cancellation or a
// cascaded session delete won the race).
func (r *EnrollmentRepository) Delete(ctx context.Context, enrollmentID, sessionID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return wrapStorage("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM enrollments WHERE id = $1`, enrollmentID)
	if err != nil {
		return wrapStorage("delete enrollment", err)
	}
	if tag.RowsAffected() == 0 {
		err = apperr.ErrNotFound
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE sessions SET current_count = GREATEST(current_count - 1, 0) WHERE id = $1`,
		sessionID,
	)
	if err != nil {
		return wrapStorage("release seat", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return wrapStorage("commit transaction", err)
	}
	return nil
}

// FindBySessionAndContact returns the live enrollment for (session, contact)
// or apperr.ErrNotFound. contactKey must already be normalized.
func (r *EnrollmentRepository) FindBySessionAndContact(ctx context.Context, sessionID, contactKey string) (*model.Enrollment, error) {
	var e model.Enrollment
	var phone *string
	err := r.db.QueryRow(ctx,
		`SELECT id, session_id, name, contact_key, phone, created_at
		 FROM enrollments WHERE session_id = $1 AND contact_key = $2`,
		sessionID, contactKey,
	).Scan(&e.ID, &e.SessionID, &e.Name, &e.ContactKey, &phone, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, wrapStorage("find enrollment", err)
	}
	if phone != nil {
		e.Phone = *phone
	}
	return &e, nil
}

// ListBySession returns all enrollments for a session, oldest first.
func (r *EnrollmentRepository) ListBySession(ctx context.Context, sessionID string) ([]model.Enrollment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, name, contact_key, phone, created_at
		 FROM enrollments
		 WHERE session_id = $1
		 ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, wrapStorage("list enrollments", err)
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		var e model.Enrollment
		var phone *string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Name, &e.ContactKey, &phone, &e.CreatedAt); err != nil {
			return nil, wrapStorage("scan enrollment", err)
		}
		if phone != nil {
			e.Phone = *phone
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage("iterate enrollments", err)
	}
	return enrollments, nil
}

// ListByContact returns a contact's enrollments across all sessions, joined
// with each session's visibility fields and ordered by session start.
func (r *EnrollmentRepository) ListByContact(ctx context.Context, contactKey string) ([]model.ContactEnrollment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT e.id, e.session_id, e.name, e.contact_key, e.phone, e.created_at,
		        s.title, s.start_time, s.active
		 FROM enrollments e
		 JOIN sessions s ON s.id = e.session_id
		 WHERE e.contact_key = $1
		 ORDER BY s.start_time ASC`,
		contactKey,
	)
	if err != nil {
		return nil, wrapStorage("list contact enrollments", err)
	}
	defer rows.Close()

	var enrollments []model.ContactEnrollment
	for rows.Next() {
		var ce model.ContactEnrollment
		var phone *string
		err := rows.Scan(&ce.ID, &ce.SessionID, &ce.Name, &ce.ContactKey, &phone, &ce.CreatedAt,
			&ce.SessionTitle, &ce.SessionStart, &ce.SessionActive)
		if err != nil {
			return nil, wrapStorage("scan contact enrollment", err)
		}
		if phone != nil {
			ce.Phone = *phone
		}
		enrollments = append(enrollments, ce)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage("iterate contact enrollments", err)
	}
	return enrollments, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
