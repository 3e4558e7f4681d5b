package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shortstay/internal/app/policies"
)

var (
	ErrNotConfigured = errors.New("paystack: secret key not configured")
	ErrGatewayStatus = errors.New("paystack: gateway returned failure status")
)

// Client talks to the Paystack REST API. Amounts are passed in the currency's
// minor unit (kobo for NGN), which matches how the domain stores totals.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	SecretKey  string
}

func New(baseURL, secretKey string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    baseURL,
		SecretKey:  secretKey,
	}
}

// VerifySignature checks the x-paystack-signature header: HMAC-SHA512 of the
// raw body under the secret key, hex encoded. Constant-time compare.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c.SecretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type initializeRequest struct {
	Email     string `json:"email"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Reference string `json:"reference"`
}

type initializeResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"message"`
	Data   struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, reference, email string, amount int64, currency string) (policies.Checkout, error) {
	if c.SecretKey == "" {
		return policies.Checkout{}, ErrNotConfigured
	}
	payload, err := json.Marshal(initializeRequest{Email: email, Amount: amount, Currency: currency, Reference: reference})
	if err != nil {
		return policies.Checkout{}, err
	}
	var out initializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &out); err != nil {
		return policies.Checkout{}, err
	}
	if !out.Status {
		return policies.Checkout{}, fmt.Errorf("%w: %s", ErrGatewayStatus, out.Msg)
	}
	return policies.Checkout{Reference: out.Data.Reference, CheckoutURL: out.Data.AuthorizationURL}, nil
}

type verifyResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"message"`
	Data   struct {
		Status        string `json:"status"`
		Amount        int64  `json:"amount"`
		Currency      string `json:"currency"`
		PaidAt        string `json:"paid_at"`
		Customer      struct {
			Email string `json:"email"`
		} `json:"customer"`
		Authorization struct {
			AuthorizationCode string `json:"authorization_code"`
		} `json:"authorization"`
	} `json:"data"`
}

// Verify asks Paystack for the authoritative state of a transaction
// reference. The reconciler never trusts the webhook body alone.
func (c *Client) Verify(ctx context.Context, reference string) (policies.Verification, error) {
	if c.SecretKey == "" {
		return policies.Verification{}, ErrNotConfigured
	}
	var out verifyResponse
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out); err != nil {
		return policies.Verification{}, err
	}
	if !out.Status {
		return policies.Verification{}, fmt.Errorf("%w: %s", ErrGatewayStatus, out.Msg)
	}
	v := policies.Verification{
		Paid:          out.Data.Status == "success",
		Status:        out.Data.Status,
		Amount:        out.Data.Amount,
		Currency:      out.Data.Currency,
		Authorization: out.Data.Authorization.AuthorizationCode,
		CustomerEmail: out.Data.Customer.Email,
	}
	if out.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, out.Data.PaidAt); err == nil {
			v.PaidAt = t
		}
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("paystack: unexpected status %d: %s", resp.StatusCode, data)
	}
	return json.Unmarshal(data, out)
}

var _ policies.PaymentGateway = (*Client)(nil)
