package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/env"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/mail"
)

// ErrNoEndpoint is returned for a family with neither an endpoint nor a mail fallback.
var ErrNoEndpoint = errors.New("no delivery endpoint configured")

// MailFunc sends one email; mail.SendMail in production.
type MailFunc func(to, subject, body string) error

// Dispatcher performs the actual delivery of outbox messages.
type Dispatcher struct {
	Endpoints   map[string]string
	BearerToken string
	HTTPClient  *http.Client
	Mail        MailFunc
}

func NewDispatcherFromEnv() *Dispatcher {
	d := &Dispatcher{
		Endpoints: map[string]string{
			models.OUTBOX_FAMILY_NOTIFICATION: strings.TrimSpace(env.GetEnv("NOTIFY_WEBHOOK_URL", "")),
			models.OUTBOX_FAMILY_PAYMENT:      strings.TrimSpace(env.GetEnv("PAYMENT_NOTIFY_WEBHOOK_URL", "")),
			models.OUTBOX_FAMILY_INTAKE:       strings.TrimSpace(env.GetEnv("INTAKE_WEBHOOK_URL", "")),
		},
		BearerToken: strings.TrimSpace(env.GetEnv("WEBHOOK_BEARER_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	if mail.IsConfigured() {
		d.Mail = mail.SendMail
	}
	return d
}

// Deliver posts the message payload to its family endpoint. Any transport
// error or non-2xx status is returned so the caller can schedule a retry.
func (d *Dispatcher) Deliver(ctx context.Context, msg *models.OutboxMessage) error {
	url := d.Endpoints[msg.Family]
	if url == "" {
		return d.deliverByMail(msg)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", msg.EventType)
	req.Header.Set("X-Outbox-ID", fmt.Sprintf("%d", msg.ID))
	if d.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.BearerToken)
	}

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%s webhook returned status=%d body=%s", msg.Family, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (d *Dispatcher) deliverByMail(msg *models.OutboxMessage) error {
	if d.Mail == nil || msg.Family == models.OUTBOX_FAMILY_INTAKE {
		return fmt.Errorf("%w for family %s", ErrNoEndpoint, msg.Family)
	}
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if ev.UserEmail == "" {
		return fmt.Errorf("%w: event has no recipient email", ErrNoEndpoint)
	}
	body := fmt.Sprintf("<p>Hello %s,</p><p>%s</p>", html.EscapeString(ev.UserName), html.EscapeString(ev.Message))
	return d.Mail(ev.UserEmail, ev.Title, body)
}
