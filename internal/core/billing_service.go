package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mystronium-backend-go/internal/db"
	"mystronium-backend-go/internal/models"
)

// DefaultCreditBonus is granted once per paid billing period unless overridden.
const DefaultCreditBonus int64 = 10

// errNoChange aborts a billing transaction that has nothing to write.
var errNoChange = errors.New("no billing change")

// BillingOption configures a billing service.
type BillingOption func(*billingService)

// WithCreditBonus sets the credits granted per paid billing period.
func WithCreditBonus(bonus int64) BillingOption {
	return func(s *billingService) {
		if bonus > 0 {
			s.creditBonus = bonus
		}
	}
}

// WithEventDeduper skips events whose IDs were already processed successfully.
func WithEventDeduper(d EventDeduper) BillingOption {
	return func(s *billingService) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithNotifier publishes plan changes, credit grants and payment failures.
func WithNotifier(n Notifier) BillingOption {
	return func(s *billingService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) BillingOption {
	return func(s *billingService) {
		if now != nil {
			s.now = now
		}
	}
}

type billingService struct {
	provider    PaymentProvider
	userRepo    db.UserRepository
	audit       AuditService
	deduper     EventDeduper
	notifier    Notifier
	creditBonus int64
	logger      *zap.Logger
	now         func() time.Time
}

// NewBillingService wires the reconciler. Provider, repository and logger are required.
func NewBillingService(provider PaymentProvider, userRepo db.UserRepository, audit AuditService, logger *zap.Logger, opts ...BillingOption) BillingService {
	if provider == nil {
		panic("core: PaymentProvider is required")
	}
	if userRepo == nil {
		panic("core: UserRepository is required")
	}
	if logger == nil {
		panic("core: logger is required")
	}
	s := &billingService{
		provider:    provider,
		userRepo:    userRepo,
		audit:       audit,
		deduper:     nopDeduper{},
		notifier:    nopNotifier{},
		creditBonus: DefaultCreditBonus,
		logger:      logger,
		now:         time.Now,
	}
	if s.audit == nil {
		s.audit = nopAudit{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleWebhook verifies a provider event and applies it.
// A nil return means the provider should consider the event delivered.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	event, err := s.provider.VerifyEvent(payload, signature)
	if err != nil {
		s.logger.Warn("Stripe webhook rejected", zap.Error(err))
		if errors.Is(err, ErrInvalidPayload) {
			return err
		}
		if errors.Is(err, ErrInvalidSignature) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	log := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	if done, err := s.deduper.AlreadyProcessed(ctx, event.ID); err != nil {
		log.Warn("Event dedupe lookup failed; processing anyway", zap.Error(err))
	} else if done {
		log.Info("Stripe webhook already processed; skipping")
		return nil
	}

	if err := s.dispatch(ctx, event, log); err != nil {
		log.Error("Stripe webhook processing failed", zap.Error(err))
		return err
	}

	if _, unhandled := event.Payload.(models.UnhandledPayload); !unhandled {
		if err := s.deduper.MarkProcessed(ctx, event.ID); err != nil {
			log.Warn("Failed to mark event processed", zap.Error(err))
		}
	}
	return nil
}

func (s *billingService) dispatch(ctx context.Context, event *models.WebhookEvent, log *zap.Logger) error {
	switch p := event.Payload.(type) {
	case models.InvoicePayload:
		return s.handleInvoice(ctx, event, p, log)
	case models.SubscriptionPayload:
		return s.handleSubscription(ctx, event, p, log)
	case models.CheckoutSessionPayload:
		return s.handleCheckoutSessionCompleted(ctx, event, p, log)
	case models.PaymentIntentPayload:
		log.Info("Payment intent event recorded",
			zap.String("payment_intent_id", p.PaymentIntentID),
			zap.String("customer_id", p.CustomerID),
			zap.Int64("amount", p.Amount),
			zap.String("currency", p.Currency),
		)
		s.record(ctx, log, models.BillingEvent{
			ID: event.ID, Type: event.Type, CustomerID: p.CustomerID, Outcome: models.OutcomeRecorded,
		})
		if event.Type == models.EventPaymentIntentFailed {
			s.notify(ctx, log, models.BillingNotification{EventID: event.ID, EventType: event.Type, CustomerID: p.CustomerID})
		}
		return nil
	case models.UnhandledPayload:
		log.Info("Stripe webhook ignored (unhandled type)")
		return nil
	default:
		log.Warn("Stripe webhook ignored (no payload)")
		return nil
	}
}

func (s *billingService) handleInvoice(ctx context.Context, event *models.WebhookEvent, inv models.InvoicePayload, log *zap.Logger) error {
	log = log.With(zap.String("customer_id", inv.CustomerID), zap.String("invoice_id", inv.InvoiceID))

	if event.Type == models.EventInvoicePaymentFailed {
		// Access is not suspended on the first failed payment; the subscription
		// status events drive the plan tier.
		log.Warn("Invoice payment failed", zap.String("subscription_id", inv.SubscriptionID))
		s.record(ctx, log, models.BillingEvent{
			ID: event.ID, Type: event.Type, CustomerID: inv.CustomerID, SubscriptionID: inv.SubscriptionID, Outcome: models.OutcomeRecorded,
		})
		s.notify(ctx, log, models.BillingNotification{EventID: event.ID, EventType: event.Type, CustomerID: inv.CustomerID})
		return nil
	}

	if inv.SubscriptionID == "" {
		log.Info("Invoice has no subscription; nothing to apply")
		s.record(ctx, log, models.BillingEvent{
			ID: event.ID, Type: event.Type, CustomerID: inv.CustomerID, Outcome: models.OutcomeNoSubscription,
		})
		return nil
	}

	sub, err := s.fetchSubscription(ctx, inv.SubscriptionID)
	if err != nil {
		return err
	}
	return s.applySubscriptionState(ctx, event, inv.CustomerID, *sub, log)
}

func (s *billingService) handleSubscription(ctx context.Context, event *models.WebhookEvent, p models.SubscriptionPayload, log *zap.Logger) error {
	return s.applySubscriptionState(ctx, event, p.Subscription.CustomerID, p.Subscription, log)
}

func (s *billingService) handleCheckoutSessionCompleted(ctx context.Context, event *models.WebhookEvent, session models.CheckoutSessionPayload, log *zap.Logger) error {
	log = log.With(
		zap.String("session_id", session.SessionID),
		zap.String("customer_id", session.CustomerID),
		zap.String("user_id", session.UserID),
	)

	// Linking runs first so the subscription lookup below can find the user.
	if session.UserID != "" && session.CustomerID != "" {
		if err := s.linkCustomer(ctx, event, session, log); err != nil {
			return err
		}
	}

	if session.SubscriptionID == "" {
		log.Info("Checkout session has no subscription; nothing to apply")
		return nil
	}
	sub, err := s.fetchSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return err
	}
	return s.applySubscriptionState(ctx, event, session.CustomerID, *sub, log)
}

func (s *billingService) linkCustomer(ctx context.Context, event *models.WebhookEvent, session models.CheckoutSessionPayload, log *zap.Logger) error {
	var existing string
	_, err := s.userRepo.UpdateBilling(ctx, session.UserID, func(u *models.User) error {
		existing = u.StripeCustomerID
		if err := LinkCustomer(u, session.CustomerID); err != nil {
			return err
		}
		if existing == session.CustomerID {
			return errNoChange
		}
		return nil
	})
	switch {
	case err == nil:
		log.Info("Stripe customer linked to user")
		return nil
	case errors.Is(err, errNoChange):
		return nil
	case errors.Is(err, db.ErrNotFound):
		log.Warn("Checkout session references unknown user; not linking")
		return nil
	case errors.Is(err, ErrCustomerMismatch):
		// The existing link is never overwritten.
		log.Error("Refusing to overwrite linked Stripe customer",
			zap.String("linked_customer_id", existing),
		)
		s.record(ctx, log, models.BillingEvent{
			ID: event.ID, Type: event.Type, CustomerID: session.CustomerID, UserID: session.UserID, Outcome: models.OutcomeCustomerMismatch,
		})
		return nil
	default:
		return fmt.Errorf("%w: link customer %s to user %s: %v", ErrPersistence, session.CustomerID, session.UserID, err)
	}
}

func (s *billingService) fetchSubscription(ctx context.Context, subscriptionID string) (*models.ProviderSubscription, error) {
	sub, err := s.provider.FetchSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return sub, nil
}

// applySubscriptionState looks up the user by customer ID and applies the
// subscription inside a single transactional update.
func (s *billingService) applySubscriptionState(ctx context.Context, event *models.WebhookEvent, customerID string, sub models.ProviderSubscription, log *zap.Logger) error {
	if customerID == "" {
		customerID = sub.CustomerID
	}
	log = log.With(
		zap.String("customer_id", customerID),
		zap.String("subscription_id", sub.ID),
		zap.String("status", sub.Status),
	)
	entry := models.BillingEvent{
		ID: event.ID, Type: event.Type, CustomerID: customerID, SubscriptionID: sub.ID, Status: sub.Status,
	}

	user, err := s.userRepo.FindByStripeCustomerID(ctx, customerID)
	if errors.Is(err, db.ErrNotFound) {
		log.Warn("No user linked to Stripe customer; skipping")
		entry.Outcome = models.OutcomeUserNotFound
		s.record(ctx, log, entry)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: find user by customer %s: %v", ErrPersistence, customerID, err)
	}
	entry.UserID = user.ID

	deleted := event.Type == models.EventCustomerSubscriptionDeleted
	var granted int64
	updated, err := s.userRepo.UpdateBilling(ctx, user.ID, func(u *models.User) error {
		// Firestore may rerun this function; reset per attempt.
		granted = 0
		if deleted {
			if !RetireSubscription(u, customerID, sub) {
				return errNoChange
			}
			return nil
		}
		if IsStaleSubscription(u, sub) {
			return errNoChange
		}
		granted = ApplySubscriptionState(u, customerID, sub, s.creditBonus)
		return nil
	})
	switch {
	case errors.Is(err, errNoChange):
		log.Info("Subscription event does not concern the user's current subscription; skipping")
		entry.Outcome = models.OutcomeRecorded
		s.record(ctx, log, entry)
		return nil
	case errors.Is(err, db.ErrNotFound):
		log.Warn("User disappeared before update; skipping", zap.String("user_id", user.ID))
		entry.Outcome = models.OutcomeUserNotFound
		s.record(ctx, log, entry)
		return nil
	case err != nil:
		return fmt.Errorf("%w: update user %s: %v", ErrPersistence, user.ID, err)
	}

	log.Info("Subscription state applied",
		zap.String("user_id", updated.ID),
		zap.String("plan", string(updated.PlanTier)),
		zap.Int64("credits_granted", granted),
		zap.Int64("credit_balance", updated.CreditBalance),
	)
	entry.CreditsGranted = granted
	entry.Outcome = models.OutcomeApplied
	s.record(ctx, log, entry)
	s.notify(ctx, log, models.BillingNotification{
		EventID:        event.ID,
		EventType:      event.Type,
		UserID:         updated.ID,
		CustomerID:     customerID,
		PlanTier:       updated.PlanTier,
		Status:         updated.SubscriptionStatus,
		CreditsGranted: granted,
	})
	return nil
}

// CreateCheckoutSession creates a subscription checkout for the user.
func (s *billingService) CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (string, error) {
	if req.PriceID == "" || req.UserID == "" || req.SuccessURL == "" || req.CancelURL == "" {
		return "", fmt.Errorf("%w: priceId, userId, successUrl and cancelUrl are required", ErrInvalidRequest)
	}
	sessionID, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.String("user_id", req.UserID), zap.String("price_id", req.PriceID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	s.logger.Info("Checkout session created", zap.String("user_id", req.UserID), zap.String("session_id", sessionID))
	return sessionID, nil
}

// CreatePortalSession creates a billing portal session for an existing customer.
func (s *billingService) CreatePortalSession(ctx context.Context, req models.PortalSessionRequest) (string, error) {
	if req.CustomerID == "" || req.ReturnURL == "" {
		return "", fmt.Errorf("%w: customerId and returnUrl are required", ErrInvalidRequest)
	}
	url, err := s.provider.CreatePortalSession(ctx, req)
	if err != nil {
		s.logger.Error("Failed to create portal session", zap.String("customer_id", req.CustomerID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return url, nil
}

func (s *billingService) record(ctx context.Context, log *zap.Logger, entry models.BillingEvent) {
	if err := s.audit.RecordBillingEvent(ctx, entry); err != nil {
		log.Warn("Failed to record billing event", zap.Error(err))
	}
}

func (s *billingService) notify(ctx context.Context, log *zap.Logger, n models.BillingNotification) {
	n.OccurredAt = s.now().UTC()
	if err := s.notifier.Notify(ctx, n); err != nil {
		log.Warn("Failed to publish billing notification", zap.Error(err))
	}
}

type nopDeduper struct{}

func (nopDeduper) AlreadyProcessed(context.Context, string) (bool, error) { return false, nil }
func (nopDeduper) MarkProcessed(context.Context, string) error            { return nil }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.BillingNotification) error { return nil }

type nopAudit struct{}

func (nopAudit) RecordBillingEvent(context.Context, models.BillingEvent) error { return nil }
