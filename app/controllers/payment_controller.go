package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tillpoint/tillpoint/app/models"
	"github.com/tillpoint/tillpoint/internal/pkg/database"
	"github.com/tillpoint/tillpoint/internal/pkg/env"
	"github.com/tillpoint/tillpoint/internal/pkg/orgcontext"
	"github.com/tillpoint/tillpoint/internal/pkg/payments"
	"github.com/tillpoint/tillpoint/internal/pkg/paystack"
)

var validate = validator.New()

// newPaymentsService is replaced in tests to avoid a live database.
var newPaymentsService = func() *payments.Service {
	return payments.NewServiceFromDB(database.GetDB())
}

// InitializePaymentRequest is the body for POST /payments/initialize.
type InitializePaymentRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
	Reference    string `json:"reference"`
	PlanID       string `json:"plan_id" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"omitempty,oneof=monthly yearly"`
	CallbackURL  string `json:"callback_url" validate:"omitempty,url"`
}

// HandleInitializePayment starts a checkout session for the authenticated
// organization and returns the hosted payment page URL.
func HandleInitializePayment(c *fiber.Ctx) error {
	orgCtx := orgcontext.GetOrgContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing organization credential"})
	}

	var req InitializePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	svc := newPaymentsService()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	session, err := svc.InitializeCheckout(ctx, payments.CheckoutInput{
		OrganizationID: orgCtx.OrganizationID,
		Email:          req.Email,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Reference:      req.Reference,
		PlanID:         req.PlanID,
		BillingCycle:   req.BillingCycle,
		CallbackURL:    req.CallbackURL,
	})
	if err != nil {
		if errors.Is(err, paystack.ErrNotConfigured) {
			log.Printf("payment initialize: gateway not configured: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "not_configured", "message": "Payment gateway is not configured"})
		}
		if errors.Is(err, paystack.ErrGatewayUnavailable) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway_unavailable", "message": "Payment gateway unavailable"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":           true,
		"authorization_url": session.AuthorizationURL,
		"reference":         session.Reference,
	})
}

// HandleVerifyPayment is the synchronous confirmation path. It is the redirect
// target after hosted checkout, so it carries no caller credential.
func HandleVerifyPayment(c *fiber.Ctx) error {
	reference := strings.TrimSpace(c.Params("reference"))
	if reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing payment reference"})
	}

	svc := newPaymentsService()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := svc.ConfirmByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, payments.ErrPaymentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "payment_not_found", "message": "No payment record for reference"})
		}
		if errors.Is(err, paystack.ErrNotConfigured) {
			log.Printf("payment verify: gateway not configured: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "not_configured", "message": "Payment gateway is not configured"})
		}
		if errors.Is(err, paystack.ErrGatewayUnavailable) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "gateway_unavailable", "message": "Payment could not be verified"})
		}
		log.Printf("payment verify failed for %s: %v", reference, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Verification failed"})
	}

	payment := result.Payment
	resp := fiber.Map{
		"success":   payment.Status == models.PaymentStatusCompleted,
		"status":    payment.Status,
		"reference": payment.Reference,
		"amount":    payment.Amount,
	}
	if payment.VerifiedAt != nil {
		resp["paid_at"] = payment.VerifiedAt.UTC().Format(time.RFC3339)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// HandlePaystackWebhook is the asynchronous confirmation path. Paystack
// expects a 200 acknowledgment for every delivery it should not retry, so
// ignored event types and unknown references are acknowledged, not errored.
func HandlePaystackWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("x-paystack-signature"))
	secret := env.GetEnv("PAYSTACK_SECRET_KEY", "")

	svc := newPaymentsService()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	signatureValid := paystack.VerifyWebhookSignature(rawBody, signature, secret)

	event, parseErr := payments.ParseChargeEvent(rawBody)
	eventID := ""
	eventType := ""
	if event != nil {
		eventID = event.EventID
		eventType = event.Event
	}

	created, stored, err := svc.RecordWebhookEvent(models.PaymentProviderPaystack, eventID, eventType, rawBody, signatureValid)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	// A redelivery is acknowledged without reprocessing only after a prior
	// attempt completed cleanly. Failed or rejected attempts leave the retry
	// channel open: the terminal transition and the projection are both safe
	// to repeat.
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = svc.MarkWebhookProcessed(stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if parseErr != nil {
		_ = svc.MarkWebhookProcessed(stored.ID, parseErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if event.Event != payments.EventChargeSuccess {
		_ = svc.MarkWebhookProcessed(stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	result, confirmErr := svc.ConfirmFromWebhook(ctx, event)
	_ = svc.MarkWebhookProcessed(stored.ID, confirmErr)
	if confirmErr != nil {
		if errors.Is(confirmErr, payments.ErrPaymentNotFound) {
			// No local intent for this reference; acknowledge so the provider
			// stops redelivering, the audit row keeps the evidence.
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "confirmation_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "applied": result.Applied})
}
