// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okulikov/session-enroll/internal/apperr"
	"github.com/okulikov/session-enroll/internal/model"
	"github.com/okulikov/session-enroll/internal/service"
)

// API holds all HTTP handlers for the enrollment service.
type API struct {
	sessions     *service.SessionService
	registration *service.RegistrationService
}

// NewAPI constructs the handler set.
func NewAPI(sessions *service.SessionService, registration *service.RegistrationService) *API {
	return &API{sessions: sessions, registration: registration}
}

// Routes mounts every endpoint on the given router.
func (a *API) Routes(r chi.Router) {
	r.Get("/health", HealthCheck)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.CreateSession)
		r.Get("/", a.ListSessions)
		r.Get("/{id}", a.GetSession)
		r.Post("/{id}/enroll", a.Enroll)
		r.Post("/{id}/cancel", a.Cancel)
		r.Get("/{id}/enrollments", a.ListRoster)
	})

	r.Get("/enrollments", a.ListByContact)
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps the service error taxonomy to HTTP statuses.
// Business-rule failures keep their specific messages; storage failures are
// replaced with generic text so internals never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		validation  *apperr.ValidationError
		capacity    *apperr.CapacityExceededError
		duplicate   *apperr.DuplicateEnrollmentError
		timing      *apperr.TimeConstraintError
		tooLate     *apperr.CancellationTooLateError
		unavailable *apperr.StorageUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &capacity):
		writeError(w, http.StatusConflict, capacity.Error())
	case errors.As(err, &duplicate):
		writeError(w, http.StatusConflict, duplicate.Error())
	case errors.As(err, &timing):
		writeError(w, http.StatusConflict, timing.Error())
	case errors.As(err, &tooLate):
		writeError(w, http.StatusConflict, tooLate.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, please try again later")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Session handlers ─────────────────────────────────────────────────────────

// CreateSession handles POST /sessions
func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sess, err := a.sessions.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// ListSessions handles GET /sessions with an optional ?upcoming=true filter.
func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	upcoming := r.URL.Query().Get("upcoming") == "true"

	sessions, err := a.sessions.List(r.Context(), upcoming)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// GetSession handles GET /sessions/{id}
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ─── Enrollment handlers ──────────────────────────────────────────────────────

// Enroll handles POST /sessions/{id}/enroll
func (a *API) Enroll(w http.ResponseWriter, r *http.Request) {
	var req model.EnrollRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	enr, err := a.registration.Enroll(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, enr)
}

// Cancel handles POST /sessions/{id}/cancel
func (a *API) Cancel(w http.ResponseWriter, r *http.Request) {
	var req model.CancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ok, err := a.registration.Cancel(r.Context(), chi.URLParam(r, "id"), req.Contact)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no enrollment found for this contact")
		return
	}
	writeJSON(w, http.StatusOK, model.CancelResponse{Cancelled: true})
}

// ListRoster handles GET /sessions/{id}/enrollments
func (a *API) ListRoster(w http.ResponseWriter, r *http.Request) {
	enrollments, err := a.registration.Roster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if enrollments == nil {
		enrollments = []model.Enrollment{}
	}
	writeJSON(w, http.StatusOK, enrollments)
}

// ListByContact handles GET /enrollments?contact=...
func (a *API) ListByContact(w http.ResponseWriter, r *http.Request) {
	enrollments, err := a.registration.EnrollmentsByContact(r.Context(), r.URL.Query().Get("contact"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if enrollments == nil {
		enrollments = []model.ContactEnrollment{}
	}
	writeJSON(w, http.StatusOK, enrollments)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
