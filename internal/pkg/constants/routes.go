package constants

// Static route constants
const (
	APIRoute                = "/api"
	APIPaymentWebhookRoute  = "/api/v1/payments/webhook"
	APIPaymentVerifyPattern = "/api/v1/payments/verify/:reference"
)
