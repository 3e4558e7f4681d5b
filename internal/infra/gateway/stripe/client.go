package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shortstay/internal/app/policies"
)

var (
	ErrNotConfigured = errors.New("stripe: secret key not configured")
)

// Client talks to the Stripe REST API using checkout sessions. Amounts are
// in the currency's minor unit throughout.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

func New(baseURL, secretKey string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    baseURL,
		SecretKey:  secretKey,
		SuccessURL: "https://shortstay.app/bookings/success",
		CancelURL:  "https://shortstay.app/bookings/cancelled",
	}
}

type sessionResponse struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	PaymentStatus     string `json:"payment_status"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

// Initialize creates a checkout session. The returned session id is the
// reference the webhook and verification flow key on.
func (c *Client) Initialize(ctx context.Context, reference, email string, amount int64, currency string) (policies.Checkout, error) {
	if c.SecretKey == "" {
		return policies.Checkout{}, ErrNotConfigured
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	form.Set("client_reference_id", reference)
	if email != "" {
		form.Set("customer_email", email)
	}
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(currency))
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", amount))
	form.Set("line_items[0][price_data][product_data][name]", "Shortlet stay")

	var out sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &out); err != nil {
		return policies.Checkout{}, err
	}
	return policies.Checkout{Reference: out.ID, CheckoutURL: out.URL}, nil
}

// Verify retrieves the checkout session and reports whether Stripe considers
// it paid.
func (c *Client) Verify(ctx context.Context, reference string) (policies.Verification, error) {
	if c.SecretKey == "" {
		return policies.Verification{}, ErrNotConfigured
	}
	var out sessionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+reference, nil, &out); err != nil {
		return policies.Verification{}, err
	}
	return policies.Verification{
		Paid:          out.PaymentStatus == "paid",
		Status:        out.PaymentStatus,
		Amount:        out.AmountTotal,
		Currency:      strings.ToUpper(out.Currency),
		CustomerEmail: out.CustomerDetails.Email,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("stripe: unexpected status %d: %s", resp.StatusCode, data)
	}
	return json.Unmarshal(data, out)
}

var _ policies.PaymentGateway = (*Client)(nil)
