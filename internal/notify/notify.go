// Package notify defines the outbound notification port of the enrollment
// engine. Delivery is best-effort: the engine invokes a Dispatcher only after
// its transaction has committed, and a dispatch failure never alters the
// outcome of the operation that triggered it.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/okulikov/session-enroll/internal/model"
)

// Kind identifies the notification template to render on the delivery side.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindCancellation Kind = "cancellation"
	KindReminder     Kind = "reminder"
	KindStatusUpdate Kind = "status-update"
)

// Dispatcher delivers one notification. Implementations must respect the
// context deadline; callers always pass a bounded context.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind Kind, contact, name string, sess *model.Session, extra map[string]string) error
}

// LogDispatcher records notifications in the log instead of delivering them.
// Used when no delivery endpoint is configured.
type LogDispatcher struct {
	Log *zap.SugaredLogger
}

// Dispatch implements Dispatcher.
func (d *LogDispatcher) Dispatch(_ context.Context, kind Kind, contact, _ string, sess *model.Session, _ map[string]string) error {
	d.Log.Infow("notification (delivery disabled)",
		"kind", string(kind), "contact", contact, "session", sess.Title)
	return nil
}
