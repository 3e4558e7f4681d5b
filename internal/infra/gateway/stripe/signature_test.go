package stripe_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortstay/internal/infra/gateway/stripe"
)

const testSecret = "whsec_test_secret"

func TestVerifySignatureAcceptsSignedPayload(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()
	header := stripe.SignPayload(body, testSecret, now)

	err := stripe.VerifySignature(body, header, testSecret, 5*time.Minute, now)
	assert.NoError(t, err)
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"id":"evt_1","amount":100}`)
	now := time.Now()
	header := stripe.SignPayload(body, testSecret, now)

	tampered := []byte(`{"id":"evt_1","amount":999}`)
	err := stripe.VerifySignature(tampered, header, testSecret, 5*time.Minute, now)
	assert.ErrorIs(t, err, stripe.ErrSignatureMismatch)
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()
	header := stripe.SignPayload(body, "whsec_other", now)

	err := stripe.VerifySignature(body, header, testSecret, 5*time.Minute, now)
	assert.ErrorIs(t, err, stripe.ErrSignatureMismatch)
}

func TestVerifySignatureEnforcesTolerance(t *testing.T) {
	body := []byte(`{}`)
	signedAt := time.Now().Add(-10 * time.Minute)
	header := stripe.SignPayload(body, testSecret, signedAt)

	err := stripe.VerifySignature(body, header, testSecret, 5*time.Minute, time.Now())
	assert.ErrorIs(t, err, stripe.ErrTimestampTooOld)

	// Zero tolerance disables the replay window check.
	err = stripe.VerifySignature(body, header, testSecret, 0, time.Now())
	assert.NoError(t, err)
}

func TestVerifySignatureAcceptsAnyMatchingV1Entry(t *testing.T) {
	body := []byte(`{"ok":true}`)
	now := time.Now()
	valid := stripe.SignPayload(body, testSecret, now)
	parts := strings.SplitN(valid, ",", 2)
	require.Len(t, parts, 2)

	// Prepend a stale candidate from a rotated secret.
	header := fmt.Sprintf("%s,v1=%s,%s", parts[0], strings.Repeat("ab", 32), parts[1])
	assert.NoError(t, stripe.VerifySignature(body, header, testSecret, 5*time.Minute, now))
}

func TestVerifySignatureRejectsMalformedHeaders(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()
	for _, header := range []string{
		"",
		"v1=deadbeef",
		"t=123",
		"t=notanumber,v1=deadbeef",
	} {
		err := stripe.VerifySignature(body, header, testSecret, 5*time.Minute, now)
		assert.ErrorIs(t, err, stripe.ErrInvalidSignatureHeader, "header %q", header)
	}
}
