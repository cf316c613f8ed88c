package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/okulikov/session-enroll/internal/config"
	"github.com/okulikov/session-enroll/internal/model"
)

// WebhookDispatcher posts notification payloads to the messaging service that
// owns templating and transport. One JSON POST per notification; a non-2xx
// response is an error.
type WebhookDispatcher struct {
	endpoint string
	from     string
	client   *http.Client
	log      *zap.SugaredLogger
}

// NewWebhookDispatcher builds a dispatcher from config. The HTTP client
// timeout bounds every delivery attempt so a slow messaging service can never
// hold up a caller.
func NewWebhookDispatcher(cfg config.Notify, log *zap.SugaredLogger) *WebhookDispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookDispatcher{
		endpoint: cfg.Endpoint,
		from:     cfg.From,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

type webhookPayload struct {
	Kind         string            `json:"kind"`
	From         string            `json:"from"`
	Contact      string            `json:"contact"`
	Name         string            `json:"name"`
	SessionID    string            `json:"session_id"`
	SessionTitle string            `json:"session_title"`
	SessionStart time.Time         `json:"session_start"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Dispatch implements Dispatcher.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, kind Kind, contact, name string, sess *model.Session, extra map[string]string) error {
	payload := webhookPayload{
		Kind:         string(kind),
		From:         d.from,
		Contact:      contact,
		Name:         name,
		SessionID:    sess.ID,
		SessionTitle: sess.Title,
		SessionStart: sess.StartTime,
		Extra:        extra,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
