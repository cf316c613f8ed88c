package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `invalid name: name must not be empty`,
		(&ValidationError{Field: "name", Message: "name must not be empty"}).Error())

	assert.Equal(t, `session "Pottery Basics" is fully booked`,
		(&CapacityExceededError{Title: "Pottery Basics"}).Error())

	assert.Equal(t, `a@x.com is already enrolled in "Pottery Basics"`,
		(&DuplicateEnrollmentError{Contact: "a@x.com", Title: "Pottery Basics"}).Error())

	tooLate := &CancellationTooLateError{Title: "Pottery Basics", HoursRemaining: 14.31, RequiredHours: 24}
	assert.Equal(t, `cannot cancel enrollment in "Pottery Basics": 14.3 hours remain before start, 24 required`,
		tooLate.Error())
}

func TestStorageErrorsUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("enroll: %w", &StorageUnavailableError{Err: cause})

	var unavailable *StorageUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&StorageUnavailableError{Err: errors.New("timeout")}))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &StorageUnavailableError{Err: errors.New("x")})))

	assert.False(t, IsRetryable(&StorageCorruptionError{Err: errors.New("bad row")}))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(&CapacityExceededError{Title: "t"}))
	assert.False(t, IsRetryable(nil))
}
