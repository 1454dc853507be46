package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tillpoint/tillpoint/internal/pkg/env"
)

const defaultBaseURL = "https://api.paystack.co"

// Settlement can lag behind the checkout redirect, so verification polls a
// bounded number of times before treating the last answer as authoritative.
const (
	verifyMaxAttempts = 3
	verifyRetryDelay  = 2 * time.Second
)

var (
	// ErrNotConfigured means no secret key is present; a deployment problem,
	// not a per-request one.
	ErrNotConfigured = errors.New("paystack secret key is not configured")
	// ErrGatewayUnavailable covers transport failures and non-success envelopes.
	ErrGatewayUnavailable = errors.New("paystack gateway unavailable")
)

type Client struct {
	SecretKey string
	BaseURL   string

	HTTPClient *http.Client

	// sleep is swapped out in tests to avoid real delays.
	sleep func(time.Duration)
}

// InitializeRequest is the input for creating a checkout session with Paystack.
// Amount is in the minor currency unit (kobo, cents).
type InitializeRequest struct {
	Email       string
	Amount      int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyResult is the provider-side settlement outcome for one reference.
type VerifyResult struct {
	Status        string
	Reference     string
	Amount        int64
	Currency      string
	TransactionID string
	PaidAt        *time.Time
}

// Success reports whether the gateway settled the charge.
func (v *VerifyResult) Success() bool {
	return v != nil && strings.EqualFold(v.Status, "success")
}

// NewClientFromEnv builds a client from PAYSTACK_* environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		SecretKey: strings.TrimSpace(env.GetEnv("PAYSTACK_SECRET_KEY", "")),
		BaseURL:   strings.TrimRight(env.GetEnv("PAYSTACK_BASE_URL", defaultBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		sleep: time.Sleep,
	}
}

// envelope is the strict response wrapper Paystack puts around every payload.
// Anything that does not parse into it is treated as a gateway failure rather
// than accessed optimistically.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}

// InitializeTransaction creates a hosted checkout session and returns the
// authorization URL the customer must be redirected to.
func (c *Client) InitializeTransaction(ctx context.Context, in InitializeRequest) (*InitializeResult, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, errors.New("email is required")
	}
	if in.Amount <= 0 {
		return nil, errors.New("amount must be a positive minor-unit integer")
	}

	payload := map[string]any{
		"email":  in.Email,
		"amount": in.Amount,
	}
	if in.Currency != "" {
		payload["currency"] = in.Currency
	}
	if in.Reference != "" {
		payload["reference"] = in.Reference
	}
	if in.CallbackURL != "" {
		payload["callback_url"] = in.CallbackURL
	}
	if len(in.Metadata) > 0 {
		payload["metadata"] = in.Metadata
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	respEnv, err := c.doRequest(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var data initializeData
	if err := json.Unmarshal(respEnv.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: malformed initialize response: %v", ErrGatewayUnavailable, err)
	}
	if strings.TrimSpace(data.AuthorizationURL) == "" {
		return nil, fmt.Errorf("%w: initialize response missing authorization_url", ErrGatewayUnavailable)
	}

	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// VerifyTransaction fetches the settlement outcome for a reference. While the
// gateway still reports the charge as in flight it re-polls up to
// verifyMaxAttempts with a fixed delay, then returns the last response. A
// definitive non-success stops polling immediately and is authoritative.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, ErrNotConfigured
	}
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, errors.New("reference is required")
	}

	var last *VerifyResult
	for attempt := 1; attempt <= verifyMaxAttempts; attempt++ {
		result, err := c.verifyOnce(ctx, ref)
		if err != nil {
			return nil, err
		}
		last = result
		if !isInFlightStatus(result.Status) {
			return result, nil
		}
		if attempt < verifyMaxAttempts {
			c.sleep(verifyRetryDelay)
		}
	}
	return last, nil
}

func (c *Client) verifyOnce(ctx context.Context, reference string) (*VerifyResult, error) {
	respEnv, err := c.doRequest(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var data verifyData
	if err := json.Unmarshal(respEnv.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: malformed verify response: %v", ErrGatewayUnavailable, err)
	}
	if strings.TrimSpace(data.Status) == "" {
		return nil, fmt.Errorf("%w: verify response missing status", ErrGatewayUnavailable)
	}

	result := &VerifyResult{
		Status:    strings.ToLower(strings.TrimSpace(data.Status)),
		Reference: data.Reference,
		Amount:    data.Amount,
		Currency:  data.Currency,
	}
	if data.ID != 0 {
		result.TransactionID = fmt.Sprintf("%d", data.ID)
	}
	if paidAt := strings.TrimSpace(data.PaidAt); paidAt != "" {
		if t, err := time.Parse(time.RFC3339, paidAt); err == nil {
			result.PaidAt = &t
		}
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*envelope, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrGatewayUnavailable, resp.StatusCode, string(raw))
	}

	var respEnv envelope
	if err := json.Unmarshal(raw, &respEnv); err != nil {
		return nil, fmt.Errorf("%w: malformed response envelope: %v", ErrGatewayUnavailable, err)
	}
	if !respEnv.Status {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, respEnv.Message)
	}
	return &respEnv, nil
}

func isInFlightStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pending", "ongoing", "processing", "queued", "send_otp", "pay_offline":
		return true
	default:
		return false
	}
}
