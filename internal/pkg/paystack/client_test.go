package paystack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sleeps := 0
	return &Client{
		SecretKey:  "sk_test_secret",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		sleep: func(d time.Duration) {
			sleeps++
		},
	}, &sleeps
}

func TestInitializeTransaction(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc123","access_code":"abc123","reference":"R1"}}`)
	})

	out, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Email:     "ops@acme.test",
		Amount:    500000,
		Currency:  "NGN",
		Reference: "R1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc123", out.AuthorizationURL)
	assert.Equal(t, "R1", out.Reference)
}

func TestInitializeTransaction_NotConfigured(t *testing.T) {
	client := &Client{SecretKey: ""}
	_, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Email:  "ops@acme.test",
		Amount: 1000,
	})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestInitializeTransaction_RejectsNonPositiveAmount(t *testing.T) {
	client := &Client{SecretKey: "sk_test_secret"}
	_, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Email:  "ops@acme.test",
		Amount: 0,
	})
	require.Error(t, err)
}

func TestInitializeTransaction_FailureEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":false,"message":"Invalid key"}`)
	})

	_, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Email:  "ops@acme.test",
		Amount: 1000,
	})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestVerifyTransaction_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/transaction/verify/R1", r.URL.Path)
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{"id":4099260516,"status":"success","reference":"R1","amount":500000,"currency":"NGN","paid_at":"2025-06-01T10:00:00Z"}}`)
	})

	out, err := client.VerifyTransaction(context.Background(), "R1")
	require.NoError(t, err)
	assert.True(t, out.Success())
	assert.Equal(t, int64(500000), out.Amount)
	assert.Equal(t, "4099260516", out.TransactionID)
	require.NotNil(t, out.PaidAt)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, *sleeps)
}

func TestVerifyTransaction_RetriesWhilePending(t *testing.T) {
	calls := 0
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{"status":"pending","reference":"R1","amount":500000}}`)
			return
		}
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{"id":99,"status":"success","reference":"R1","amount":500000}}`)
	})

	out, err := client.VerifyTransaction(context.Background(), "R1")
	require.NoError(t, err)
	assert.True(t, out.Success())
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, *sleeps)
}

func TestVerifyTransaction_StopsOnDefinitiveFailure(t *testing.T) {
	calls := 0
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{"status":"failed","reference":"R1","amount":500000}}`)
	})

	out, err := client.VerifyTransaction(context.Background(), "R1")
	require.NoError(t, err)
	assert.False(t, out.Success())
	assert.Equal(t, "failed", out.Status)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, *sleeps)
}

func TestVerifyTransaction_ExhaustsAttemptsWhileInFlight(t *testing.T) {
	calls := 0
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{"status":"pending","reference":"R1","amount":500000}}`)
	})

	out, err := client.VerifyTransaction(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "pending", out.Status)
	assert.Equal(t, verifyMaxAttempts, calls)
	assert.Equal(t, verifyMaxAttempts-1, *sleeps)
}

func TestVerifyTransaction_GatewayDown(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.VerifyTransaction(context.Background(), "R1")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}
