package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okulikov/session-enroll/internal/apperr"
	"github.com/okulikov/session-enroll/internal/logger"
	"github.com/okulikov/session-enroll/internal/model"
	"github.com/okulikov/session-enroll/internal/notify"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(store *memStore, dispatcher notify.Dispatcher) *RegistrationService {
	svc := NewRegistrationService(store, store, dispatcher, logger.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestEnrollValidation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	_, err := svc.Enroll(context.Background(), "some-id", model.EnrollRequest{Name: "   ", Contact: "a@x.com"})
	var validation *apperr.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "name", validation.Field)

	for _, contact := range []string{"", "not-an-address", "a@b", "@x.com", "a@"} {
		_, err = svc.Enroll(context.Background(), "some-id", model.EnrollRequest{Name: "Anna", Contact: contact})
		require.ErrorAs(t, err, &validation, "contact %q should be rejected", contact)
		assert.Equal(t, "contact", validation.Field)
	}
}

func TestEnrollSessionNotFound(t *testing.T) {
	svc := newTestService(newMemStore(), nil)

	_, err := svc.Enroll(context.Background(), "missing", model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEnrollClosedSession(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	inactive := store.addSession("Inactive", testNow.Add(48*time.Hour), 10, false)
	past := store.addSession("Past", testNow.Add(-time.Hour), 10, true)
	startingNow := store.addSession("Starting", testNow, 10, true)

	var timing *apperr.TimeConstraintError
	for _, sess := range []*model.Session{inactive, past, startingNow} {
		_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
		require.ErrorAs(t, err, &timing, "session %s should be closed", sess.Title)
	}
}

func TestEnrollCapacity(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Pottery", testNow.Add(7*24*time.Hour), 2, true)

	_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "A", Contact: "a@x.com"})
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "B", Contact: "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.countFor(sess.ID))

	_, err = svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "C", Contact: "c@x.com"})
	var full *apperr.CapacityExceededError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, "Pottery", full.Title)
	assert.Equal(t, 2, store.countFor(sess.ID))
}

func TestEnrollSingleSeat(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Solo", testNow.Add(48*time.Hour), 1, true)

	_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "A", Contact: "a@x.com"})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "B", Contact: "b@x.com"})
	var full *apperr.CapacityExceededError
	assert.ErrorAs(t, err, &full)
}

func TestEnrollDuplicate(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Pottery", testNow.Add(48*time.Hour), 10, true)

	_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
	require.NoError(t, err)

	// Same contact differing only in case and whitespace is still a duplicate.
	_, err = svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "  A@X.com "})
	var dup *apperr.DuplicateEnrollmentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a@x.com", dup.Contact)
	assert.Equal(t, "Pottery", dup.Title)
	assert.Equal(t, 1, store.countFor(sess.ID))
	assert.Equal(t, 1, store.rowsFor(sess.ID))
}

func TestEnrollConcurrentNeverOverbooks(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Hot", testNow.Add(72*time.Hour), 5, true)

	const attempts = 40
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{
				Name:    fmt.Sprintf("P%d", i),
				Contact: fmt.Sprintf("p%d@x.com", i),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var full *apperr.CapacityExceededError
		require.ErrorAs(t, err, &full)
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, store.countFor(sess.ID))
	assert.Equal(t, 5, store.rowsFor(sess.ID), "count must equal persisted rows")
}

func TestEnrollConcurrentSameContact(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Hot", testNow.Add(72*time.Hour), 10, true)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "at most one enrollment per (session, contact)")
	assert.Equal(t, 1, store.countFor(sess.ID))
	assert.Equal(t, 1, store.rowsFor(sess.ID))
}

func TestCancelNotEnrolled(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Pottery", testNow.Add(48*time.Hour), 10, true)

	ok, err := svc.Cancel(context.Background(), sess.ID, "someone@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelSessionNotFound(t *testing.T) {
	svc := newTestService(newMemStore(), nil)

	_, err := svc.Cancel(context.Background(), "missing", "a@x.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancelTooLate(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Soon", testNow.Add(12*time.Hour), 10, true)

	_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), sess.ID, "a@x.com")
	var tooLate *apperr.CancellationTooLateError
	require.ErrorAs(t, err, &tooLate)
	assert.Equal(t, "Soon", tooLate.Title)
	assert.InDelta(t, 12.0, tooLate.HoursRemaining, 0.001)
	assert.Equal(t, 1, store.countFor(sess.ID), "failed cancel must not release the seat")
}

func TestCancelBoundary(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	// Exactly 24.0 hours before start still succeeds.
	exact := store.addSession("Exact", testNow.Add(24*time.Hour), 10, true)
	_, err := svc.Enroll(context.Background(), exact.ID, model.EnrollRequest{Name: "A", Contact: "a@x.com"})
	require.NoError(t, err)
	ok, err := svc.Cancel(context.Background(), exact.ID, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	// A second under the threshold fails.
	under := store.addSession("Under", testNow.Add(24*time.Hour-time.Second), 10, true)
	_, err = svc.Enroll(context.Background(), under.ID, model.EnrollRequest{Name: "B", Contact: "b@x.com"})
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), under.ID, "b@x.com")
	var tooLate *apperr.CancellationTooLateError
	assert.ErrorAs(t, err, &tooLate)
}

func TestCancelPastSession(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Done", testNow.Add(48*time.Hour), 10, true)

	_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
	require.NoError(t, err)

	// Move the clock past the start.
	svc.now = func() time.Time { return testNow.Add(49 * time.Hour) }

	var timing *apperr.TimeConstraintError
	_, err = svc.Cancel(context.Background(), sess.ID, "a@x.com")
	require.ErrorAs(t, err, &timing)
}

func TestEnrollAfterSessionElapsed(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Elapsed", testNow.Add(time.Hour), 10, true)

	_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "A", Contact: "a@x.com"})
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(2 * time.Hour) }

	var timing *apperr.TimeConstraintError
	_, err = svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "B", Contact: "b@x.com"})
	require.ErrorAs(t, err, &timing)
}

func TestEnrollCancelEnrollRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Pottery", testNow.Add(48*time.Hour), 10, true)

	_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
	require.NoError(t, err)

	ok, err := svc.Cancel(context.Background(), sess.ID, "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, store.countFor(sess.ID))
	assert.Equal(t, 0, store.rowsFor(sess.ID))

	// No residual uniqueness conflict after cancelling.
	_, err = svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.countFor(sess.ID))
	assert.Equal(t, 1, store.rowsFor(sess.ID))
}

func TestEnrollDispatchesConfirmation(t *testing.T) {
	store := newMemStore()
	dispatcher := &recordingDispatcher{}
	svc := newTestService(store, dispatcher)
	sess := store.addSession("Pottery", testNow.Add(48*time.Hour), 10, true)

	_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(dispatcher.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	call := dispatcher.snapshot()[0]
	assert.Equal(t, notify.KindConfirmation, call.Kind)
	assert.Equal(t, "a@x.com", call.Contact)
	assert.Equal(t, "Pottery", call.Title)
}

func TestCancelDispatchesCancellation(t *testing.T) {
	store := newMemStore()
	dispatcher := &recordingDispatcher{}
	svc := newTestService(store, dispatcher)
	sess := store.addSession("Pottery", testNow.Add(48*time.Hour), 10, true)

	_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
	require.NoError(t, err)
	ok, err := svc.Cancel(context.Background(), sess.ID, "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		calls := dispatcher.snapshot()
		return len(calls) == 2 && calls[len(calls)-1].Kind == notify.KindCancellation
	}, time.Second, 5*time.Millisecond)
}

func TestDispatchFailureDoesNotAffectOutcome(t *testing.T) {
	store := newMemStore()
	dispatcher := &recordingDispatcher{err: fmt.Errorf("smtp down")}
	svc := newTestService(store, dispatcher)
	sess := store.addSession("Pottery", testNow.Add(48*time.Hour), 10, true)

	enr, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
	require.NoError(t, err)
	require.NotNil(t, enr)
	assert.Equal(t, 1, store.countFor(sess.ID))

	require.Eventually(t, func() bool {
		return len(dispatcher.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRoster(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	sess := store.addSession("Pottery", testNow.Add(48*time.Hour), 10, true)

	for _, contact := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: contact, Contact: contact})
		require.NoError(t, err)
	}

	roster, err := svc.Roster(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, roster, 3)
	// Ordered by creation time ascending.
	assert.Equal(t, "a@x.com", roster[0].ContactKey)
	assert.Equal(t, "c@x.com", roster[2].ContactKey)

	_, err = svc.Roster(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEnrollmentsByContact(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	later := store.addSession("Later", testNow.Add(96*time.Hour), 10, true)
	sooner := store.addSession("Sooner", testNow.Add(48*time.Hour), 10, true)

	for _, sess := range []*model.Session{later, sooner} {
		_, err := svc.Enroll(context.Background(), sess.ID, model.EnrollRequest{Name: "Anna", Contact: "a@x.com"})
		require.NoError(t, err)
	}

	list, err := svc.EnrollmentsByContact(context.Background(), " A@X.com ")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Sooner", list[0].SessionTitle, "ordered by session start")
	assert.True(t, list[0].SessionActive)
}
