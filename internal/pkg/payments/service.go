package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tillpoint/tillpoint/app/models"
	"github.com/tillpoint/tillpoint/internal/pkg/paystack"
	"gorm.io/gorm"
)

// Gateway is the provider surface the reconciler depends on.
type Gateway interface {
	InitializeTransaction(ctx context.Context, in paystack.InitializeRequest) (*paystack.InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

// Service reconciles gateway confirmations with subscription state. Both the
// synchronous verify path and the webhook path run through the same terminal
// transition and idempotent projection, which is what keeps interleaved or
// duplicated deliveries from double-extending a billing period.
type Service struct {
	repo    Repository
	gateway Gateway

	// now is the clock used for subscription period computation.
	now func() time.Time
	// dispatch runs the best-effort organization sync; defaults to a
	// fire-and-forget goroutine, replaced with an inline call in tests.
	dispatch func(func())
}

// NewService creates a payments service from injected collaborators.
func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		now:      time.Now,
		dispatch: func(f func()) { go f() },
	}
}

// NewServiceFromDB creates a payments service from a GORM DB handle and the
// environment-configured Paystack client.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), paystack.NewClientFromEnv())
}

// InitializeCheckout records a pending ledger entry and opens a hosted
// checkout session with the gateway.
func (s *Service) InitializeCheckout(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	if in.OrganizationID == 0 {
		return nil, errors.New("organization_id is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, errors.New("email is required")
	}
	if in.Amount <= 0 {
		return nil, errors.New("amount must be a positive minor-unit integer")
	}

	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		reference = uuid.NewString()
	}

	cycle := strings.ToLower(strings.TrimSpace(in.BillingCycle))
	if cycle != models.BillingCycleMonthly && cycle != models.BillingCycleYearly {
		cycle = models.BillingCycleMonthly
	}

	payment := &models.Payment{
		Reference:      reference,
		Provider:       models.PaymentProviderPaystack,
		OrganizationID: in.OrganizationID,
		PlanID:         strings.TrimSpace(in.PlanID),
		BillingCycle:   cycle,
		Amount:         in.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(in.Currency)),
		Email:          strings.TrimSpace(in.Email),
		Status:         models.PaymentStatusPending,
	}
	if err := s.repo.CreatePayment(payment); err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}

	result, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       payment.Email,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Reference:   payment.Reference,
		CallbackURL: strings.TrimSpace(in.CallbackURL),
		Metadata: map[string]string{
			"organization_id": fmt.Sprintf("%d", payment.OrganizationID),
			"plan_id":         payment.PlanID,
			"billing_cycle":   payment.BillingCycle,
		},
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		Reference:        payment.Reference,
		AuthorizationURL: result.AuthorizationURL,
	}, nil
}

// ConfirmByReference is the synchronous confirmation path: the caller returns
// from the hosted checkout with a reference and we ask the gateway for the
// settlement outcome. The ledger entry is loaded before any gateway call so a
// missing record aborts without side effects no matter what the provider says.
func (s *Service) ConfirmByReference(ctx context.Context, reference string) (*ConfirmationResult, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, errors.New("reference is required")
	}

	payment, err := s.repo.GetPaymentByReference(ref)
	if err != nil {
		return nil, err
	}

	// Already reconciled: hand back the stored outcome without touching the
	// gateway again.
	if payment.IsTerminal() {
		return s.resultForTerminal(payment)
	}

	verification, err := s.gateway.VerifyTransaction(ctx, ref)
	if err != nil {
		if errors.Is(err, paystack.ErrGatewayUnavailable) {
			// The reference must not stay pending forever; record the failure
			// before surfacing the gateway error.
			if _, _, terr := s.repo.TransitionPaymentTerminal(ref, models.PaymentStatusFailed, "", nil); terr != nil {
				log.Printf("payments: failed to record gateway failure for %s: %v", ref, terr)
			}
		}
		return nil, err
	}

	newStatus := models.PaymentStatusFailed
	if verification.Success() {
		newStatus = models.PaymentStatusCompleted
	}
	if verification.Amount != 0 && verification.Amount != payment.Amount {
		log.Printf("payments: amount mismatch for %s: ledger=%d provider=%d", ref, payment.Amount, verification.Amount)
	}

	return s.commitConfirmation(ref, newStatus, verification.TransactionID, verification.PaidAt)
}

// ConfirmFromWebhook is the asynchronous confirmation path. The signed event
// payload carries the authoritative outcome, so no verify call is made.
func (s *Service) ConfirmFromWebhook(ctx context.Context, event *ChargeEvent) (*ConfirmationResult, error) {
	_ = ctx
	if event == nil || event.Reference == "" {
		return nil, errors.New("charge event with reference is required")
	}

	if _, err := s.repo.GetPaymentByReference(event.Reference); err != nil {
		return nil, err
	}

	newStatus := models.PaymentStatusFailed
	if event.Succeeded() {
		newStatus = models.PaymentStatusCompleted
	}
	return s.commitConfirmation(event.Reference, newStatus, event.TransactionID, event.PaidAt)
}

// commitConfirmation is the single transition function both channels converge
// on: conditional terminal transition, idempotent subscription projection,
// then best-effort organization sync off the request path.
func (s *Service) commitConfirmation(reference, newStatus, transactionID string, paidAt *time.Time) (*ConfirmationResult, error) {
	stored, applied, err := s.repo.TransitionPaymentTerminal(reference, newStatus, transactionID, paidAt)
	if err != nil {
		return nil, err
	}

	result := &ConfirmationResult{Payment: stored, Applied: applied}
	if stored.Status != models.PaymentStatusCompleted {
		return result, nil
	}

	sub, created, err := s.projectSubscription(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to project subscription for %s: %w", reference, err)
	}
	result.Subscription = sub

	if created {
		s.dispatch(func() { s.syncOrganization(stored, sub) })
	}
	return result, nil
}

func (s *Service) resultForTerminal(payment *models.Payment) (*ConfirmationResult, error) {
	result := &ConfirmationResult{Payment: payment, Applied: false}
	if payment.Status != models.PaymentStatusCompleted {
		return result, nil
	}
	sub, _, err := s.projectSubscription(payment)
	if err != nil {
		return nil, err
	}
	result.Subscription = sub
	return result, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(provider, providerEventID, eventType string, payload []byte, signatureValid bool) (bool, *models.WebhookEvent, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(providerEventID)
	if eventID == "" {
		sum := sha256.Sum256(payload)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        p,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(eventType),
		PayloadJSON:     string(payload),
		SignatureValid:  signatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
