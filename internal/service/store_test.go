package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okulikov/session-enroll/internal/apperr"
	"github.com/okulikov/session-enroll/internal/model"
	"github.com/okulikov/session-enroll/internal/notify"
	"github.com/okulikov/session-enroll/internal/repository"
)

// memStore is an in-memory stand-in for the repositories. It enforces the
// capacity guard and the (session, contact) uniqueness constraint under a
// single mutex, so concurrent engine calls exercise the same at-most-one
// semantics the database provides.
type memStore struct {
	mu          sync.Mutex
	sessions    map[string]*model.Session
	enrollments map[string]model.Enrollment // enrollment ID -> row
	seq         int
}

func newMemStore() *memStore {
	return &memStore{
		sessions:    make(map[string]*model.Session),
		enrollments: make(map[string]model.Enrollment),
	}
}

func (m *memStore) addSession(title string, start time.Time, capacity int, active bool) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := &model.Session{
		ID:          uuid.New().String(),
		Title:       title,
		StartTime:   start,
		MaxCapacity: capacity,
		Active:      active,
		CreatedAt:   time.Now().UTC(),
	}
	m.sessions[sess.ID] = sess
	return sess
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

func (m *memStore) Create(_ context.Context, sessionID, name, contactKey, phone string) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if sess.CurrentCount >= sess.MaxCapacity {
		return nil, repository.ErrSessionFull
	}
	for _, e := range m.enrollments {
		if e.SessionID == sessionID && e.ContactKey == contactKey {
			return nil, repository.ErrDuplicate
		}
	}

	sess.CurrentCount++
	m.seq++
	enr := model.Enrollment{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Name:       name,
		ContactKey: contactKey,
		Phone:      phone,
		CreatedAt:  time.Now().UTC().Add(time.Duration(m.seq) * time.Microsecond),
	}
	m.enrollments[enr.ID] = enr
	copied := enr
	return &copied, nil
}

func (m *memStore) Delete(_ context.Context, enrollmentID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.enrollments[enrollmentID]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.enrollments, enrollmentID)
	if sess, ok := m.sessions[sessionID]; ok && sess.CurrentCount > 0 {
		sess.CurrentCount--
	}
	return nil
}

func (m *memStore) FindBySessionAndContact(_ context.Context, sessionID, contactKey string) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.SessionID == sessionID && e.ContactKey == contactKey {
			copied := e
			return &copied, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) ListBySession(_ context.Context, sessionID string) ([]model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Enrollment
	for _, e := range m.enrollments {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListByContact(_ context.Context, contactKey string) ([]model.ContactEnrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ContactEnrollment
	for _, e := range m.enrollments {
		if e.ContactKey != contactKey {
			continue
		}
		sess := m.sessions[e.SessionID]
		out = append(out, model.ContactEnrollment{
			Enrollment:    e,
			SessionTitle:  sess.Title,
			SessionStart:  sess.StartTime,
			SessionActive: sess.Active,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionStart.Before(out[j].SessionStart) })
	return out, nil
}

func (m *memStore) countFor(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID].CurrentCount
}

func (m *memStore) rowsFor(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.enrollments {
		if e.SessionID == sessionID {
			n++
		}
	}
	return n
}

type dispatchCall struct {
	Kind    notify.Kind
	Contact string
	Name    string
	Title   string
}

// recordingDispatcher captures dispatches for assertions; Err, when set, is
// returned from every Dispatch call.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, kind notify.Kind, contact, name string, sess *model.Session, _ map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{Kind: kind, Contact: contact, Name: name, Title: sess.Title})
	return d.err
}

func (d *recordingDispatcher) snapshot() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatchCall, len(d.calls))
	copy(out, d.calls)
	return out
}
