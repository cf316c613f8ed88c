package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/okulikov/session-enroll/internal/apperr"
)

// ErrSessionFull is returned when a session has no remaining capacity.
var ErrSessionFull = errors.New("session is fully booked")

// ErrDuplicate is returned when the (session, contact) uniqueness constraint
// is violated.
var ErrDuplicate = errors.New("contact already enrolled for this session")

// uniqueViolation is the SQLSTATE raised on a unique constraint breach.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// wrapStorage classifies a low-level pgx failure into the service error
// taxonomy: connection-class failures become retryable StorageUnavailable,
// integrity and data-class failures (other than the unique violation handled
// by the caller) become StorageCorruption.
func wrapStorage(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "53", "57", "58": // connection, resources, intervention, system
			return &apperr.StorageUnavailableError{Err: wrapped}
		case "22", "23", "42": // data, integrity, malformed statement
			return &apperr.StorageCorruptionError{Err: wrapped}
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || errors.As(err, &netErr) {
		return &apperr.StorageUnavailableError{Err: wrapped}
	}

	// Unknown failures are presented as transient; retrying Enroll/Cancel is
	// safe either way.
	return &apperr.StorageUnavailableError{Err: wrapped}
}
