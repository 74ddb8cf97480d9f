package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"gorm.io/gorm"

	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/models"
	"github.com/rubriq/rubriq-api/internal/repository"
)

// ErrNoSubscription indicates the user has no subscription to operate on.
var ErrNoSubscription = errors.New("no subscription found")

// ErrInvalidWebhookSignature indicates a webhook payload failed verification.
var ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

// StripeGateway is the slice of the Stripe API the billing service consumes.
type StripeGateway interface {
	CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CancelAtPeriodEnd(subscriptionID string) (*stripe.Subscription, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type stripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway wraps the Stripe SDK client.
func NewStripeGateway(apiKey, webhookSecret string) StripeGateway {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &stripeGateway{api: api, webhookSecret: webhookSecret}
}

func (g *stripeGateway) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return g.api.CheckoutSessions.New(params)
}

func (g *stripeGateway) CancelAtPeriodEnd(subscriptionID string) (*stripe.Subscription, error) {
	return g.api.Subscriptions.Update(subscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
}

func (g *stripeGateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, g.webhookSecret)
}

// BillingConfig carries billing behavior knobs.
type BillingConfig struct {
	// Enforced gates grading behind an active subscription. Off by default
	// so self-hosted deployments work without Stripe.
	Enforced bool
	// FreeAccessEmails always have access regardless of subscription state.
	FreeAccessEmails []string
	PriceMonthly     string
	PriceYearly      string
	PriceExtraClass  string
}

// BillingService exposes subscription and payment use cases.
type BillingService interface {
	Checkout(ctx context.Context, userID uint, payload dto.CheckoutRequest) (dto.CheckoutResponse, error)
	Cancel(ctx context.Context, userID uint) error
	Subscription(ctx context.Context, userID uint) (dto.SubscriptionResponse, error)
	Payments(ctx context.Context, userID uint) ([]dto.PaymentResponse, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	HasAccess(ctx context.Context, userID uint) (bool, error)
}

type billingService struct {
	users      repository.UserRepository
	subs       repository.SubscriptionRepository
	stripe     StripeGateway
	cfg        BillingConfig
	freeAccess map[string]bool
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewBillingService builds a new billing service.
func NewBillingService(users repository.UserRepository, subs repository.SubscriptionRepository, gateway StripeGateway, cfg BillingConfig, validate *validator.Validate, logger zerolog.Logger) BillingService {
	freeAccess := make(map[string]bool, len(cfg.FreeAccessEmails))
	for _, email := range cfg.FreeAccessEmails {
		freeAccess[strings.ToLower(strings.TrimSpace(email))] = true
	}

	return &billingService{
		users:      users,
		subs:       subs,
		stripe:     gateway,
		cfg:        cfg,
		freeAccess: freeAccess,
		validator:  validate,
		logger:     logger.With().Str("component", "billing_service").Logger(),
		now:        time.Now,
	}
}

// planForPrice maps a Stripe price to our plan identifier. Legacy prices
// containing "extra" buy additional classes on a yearly plan.
func (s *billingService) planForPrice(priceID string) string {
	switch {
	case priceID == s.cfg.PriceYearly || strings.Contains(priceID, "yearly"):
		return models.PlanYearly
	case priceID == s.cfg.PriceExtraClass || strings.Contains(priceID, "extra"):
		return "extra_class"
	default:
		return models.PlanMonthly
	}
}

func (s *billingService) Checkout(ctx context.Context, userID uint, payload dto.CheckoutRequest) (dto.CheckoutResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CheckoutResponse{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CheckoutResponse{}, ErrUserNotFound
		}
		return dto.CheckoutResponse{}, err
	}

	quantity := payload.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	plan := s.planForPrice(payload.PriceID)

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(user.Email),
		SuccessURL:    stripe.String(payload.SuccessURL),
		CancelURL:     stripe.String(payload.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(payload.PriceID),
			Quantity: stripe.Int64(quantity),
		}},
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(user.ID), 10))
	params.AddMetadata("plan_type", plan)

	checkoutSession, err := s.stripe.CreateCheckoutSession(params)
	if err != nil {
		return dto.CheckoutResponse{}, fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info().Uint("user_id", user.ID).Str("plan", plan).Msg("checkout session created")

	return dto.CheckoutResponse{SessionID: checkoutSession.ID, CheckoutURL: checkoutSession.URL}, nil
}

func (s *billingService) Cancel(ctx context.Context, userID uint) error {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoSubscription
		}
		return err
	}

	if sub.StripeSubscriptionID != "" {
		if _, err := s.stripe.CancelAtPeriodEnd(sub.StripeSubscriptionID); err != nil {
			return fmt.Errorf("cancel stripe subscription: %w", err)
		}
	}

	if err := s.subs.Update(ctx, userID, map[string]interface{}{"cancel_at_period_end": true}); err != nil {
		return err
	}

	s.logger.Info().Uint("user_id", userID).Msg("subscription set to cancel at period end")
	return nil
}

func (s *billingService) Subscription(ctx context.Context, userID uint) (dto.SubscriptionResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubscriptionResponse{}, ErrUserNotFound
		}
		return dto.SubscriptionResponse{}, err
	}

	if s.freeAccess[strings.ToLower(user.Email)] {
		free := models.Subscription{Plan: models.PlanFree, Status: models.SubscriptionStatusActive}
		return dto.NewSubscriptionResponse(free, s.now()), nil
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NoSubscriptionResponse(), nil
		}
		return dto.SubscriptionResponse{}, err
	}

	return dto.NewSubscriptionResponse(sub, s.now()), nil
}

func (s *billingService) Payments(ctx context.Context, userID uint) ([]dto.PaymentResponse, error) {
	records, err := s.subs.Payments(ctx, userID)
	if err != nil {
		return nil, err
	}

	return dto.NewPaymentResponseSlice(records), nil
}

// HasAccess reports whether the user may start grading jobs. With enforcement
// off everyone has access; free-access users always do.
func (s *billingService) HasAccess(ctx context.Context, userID uint) (bool, error) {
	if !s.cfg.Enforced {
		return true, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if s.freeAccess[strings.ToLower(user.Email)] {
		return true, nil
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	return sub.HasAccess(s.now()), nil
}

func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.stripe.ConstructEvent(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidWebhookSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("ignoring webhook event")
		return nil
	}
}

func (s *billingService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var checkoutSession stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkoutSession); err != nil {
		return fmt.Errorf("parse checkout session: %w", err)
	}

	userID, err := userIDFromMetadata(checkoutSession.Metadata)
	if err != nil {
		return err
	}

	plan := checkoutSession.Metadata["plan_type"]
	switch plan {
	case "single":
		plan = models.PlanMonthly
	case "bundle":
		plan = models.PlanYearly
	}

	customerID := ""
	if checkoutSession.Customer != nil {
		customerID = checkoutSession.Customer.ID
	}
	subscriptionID := ""
	if checkoutSession.Subscription != nil {
		subscriptionID = checkoutSession.Subscription.ID
	}

	if plan == "extra_class" {
		// Adding classes to an existing yearly plan, not a new subscription.
		existing, err := s.subs.GetByUserID(ctx, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		extra := existing.ExtraClasses + 1
		if err := s.subs.Upsert(ctx, &models.Subscription{
			UserID:               userID,
			StripeCustomerID:     customerID,
			StripeSubscriptionID: existing.StripeSubscriptionID,
			Plan:                 models.PlanYearly,
			Status:               models.SubscriptionStatusActive,
			ExtraClasses:         extra,
			CurrentPeriodEnd:     existing.CurrentPeriodEnd,
		}); err != nil {
			return err
		}

		return s.subs.RecordPayment(ctx, &models.PaymentRecord{
			UserID:          userID,
			Type:            models.PaymentEventExtraClassesAdded,
			Plan:            models.PlanYearly,
			AmountCents:     checkoutSession.AmountTotal,
			Currency:        string(checkoutSession.Currency),
			StripeSessionID: checkoutSession.ID,
		})
	}

	periodEnd := periodEndForPlan(plan, s.now())
	if err := s.subs.Upsert(ctx, &models.Subscription{
		UserID:               userID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: subscriptionID,
		Plan:                 plan,
		Status:               models.SubscriptionStatusActive,
		CurrentPeriodEnd:     &periodEnd,
	}); err != nil {
		return err
	}

	s.logger.Info().Uint("user_id", userID).Str("plan", plan).Msg("subscription activated")

	return s.subs.RecordPayment(ctx, &models.PaymentRecord{
		UserID:          userID,
		Type:            models.PaymentEventSubscriptionCreated,
		Plan:            plan,
		AmountCents:     checkoutSession.AmountTotal,
		Currency:        string(checkoutSession.Currency),
		StripeSessionID: checkoutSession.ID,
	})
}

func (s *billingService) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return fmt.Errorf("parse subscription: %w", err)
	}
	if stripeSub.Customer == nil {
		return nil
	}

	sub, err := s.subs.GetByStripeCustomerID(ctx, stripeSub.Customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Webhook for a customer we never recorded; nothing to update.
			return nil
		}
		return err
	}

	periodEnd := time.Unix(stripeSub.CurrentPeriodEnd, 0)
	return s.subs.Update(ctx, sub.UserID, map[string]interface{}{
		"status":               normalizeStripeStatus(stripeSub.Status),
		"current_period_end":   &periodEnd,
		"cancel_at_period_end": stripeSub.CancelAtPeriodEnd,
	})
}

func (s *billingService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return fmt.Errorf("parse subscription: %w", err)
	}
	if stripeSub.Customer == nil {
		return nil
	}

	sub, err := s.subs.GetByStripeCustomerID(ctx, stripeSub.Customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	s.logger.Info().Uint("user_id", sub.UserID).Msg("subscription expired")

	if err := s.subs.Update(ctx, sub.UserID, map[string]interface{}{
		"status": models.SubscriptionStatusExpired,
	}); err != nil {
		return err
	}

	return s.subs.RecordPayment(ctx, &models.PaymentRecord{
		UserID: sub.UserID,
		Type:   models.PaymentEventCancelled,
		Plan:   sub.Plan,
	})
}

func userIDFromMetadata(metadata map[string]string) (uint, error) {
	raw, ok := metadata["user_id"]
	if !ok {
		return 0, errors.New("checkout session missing user_id metadata")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user_id metadata %q", raw)
	}
	return uint(id), nil
}

func normalizeStripeStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusCanceled:
		return models.SubscriptionStatusCancelled
	default:
		return models.SubscriptionStatusExpired
	}
}

func periodEndForPlan(plan string, now time.Time) time.Time {
	if plan == models.PlanYearly {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}
