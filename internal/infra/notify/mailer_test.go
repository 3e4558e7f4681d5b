package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortstay/internal/app/policies"
	"shortstay/internal/infra/notify"
)

func TestSendPostsTemplatedMessage(t *testing.T) {
	var got struct {
		From     string         `json:"from"`
		To       string         `json:"to"`
		Template string         `json:"template"`
		Data     map[string]any `json:"data"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	var mailer policies.Notifier = notify.NewMailer(server.URL, "key-123", "bookings@shortstay.app")
	err := mailer.Send(context.Background(), "guest@example.com", "booking_confirmed_guest", map[string]any{
		"booking_id": "bk-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "bookings@shortstay.app", got.From)
	assert.Equal(t, "guest@example.com", got.To)
	assert.Equal(t, "booking_confirmed_guest", got.Template)
	assert.Equal(t, "bk-1", got.Data["booking_id"])
}

func TestSendSurfacesNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mailbox unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	mailer := notify.NewMailer(server.URL, "", "bookings@shortstay.app")
	err := mailer.Send(context.Background(), "guest@example.com", "booking_declined", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSendRequiresEndpoint(t *testing.T) {
	mailer := notify.NewMailer("", "", "bookings@shortstay.app")
	err := mailer.Send(context.Background(), "guest@example.com", "booking_approved", nil)
	assert.ErrorIs(t, err, notify.ErrMailerNotConfigured)
}
