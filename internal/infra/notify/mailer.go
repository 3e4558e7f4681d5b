package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shortstay/internal/app/policies"
)

var ErrMailerNotConfigured = errors.New("notify: mailer endpoint not configured")

// Mailer delivers templated transactional mail through an HTTP mail service.
// Delivery is best effort; callers log failures and move on.
type Mailer struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Sender     string
}

func NewMailer(baseURL, apiKey, sender string) *Mailer {
	return &Mailer{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Sender:     sender,
	}
}

type sendRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Template string `json:"template"`
	Data     any    `json:"data,omitempty"`
}

func (m *Mailer) Send(ctx context.Context, to, template string, data any) error {
	if m.BaseURL == "" {
		return ErrMailerNotConfigured
	}
	payload, err := json.Marshal(sendRequest{From: m.Sender, To: to, Template: template, Data: data})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.APIKey)
	}
	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("notify: unexpected status %d: %s", resp.StatusCode, body)
	}
	return nil
}

var _ policies.Notifier = (*Mailer)(nil)
