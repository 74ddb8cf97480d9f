package dto

import (
	"time"

	"github.com/rubriq/rubriq-api/internal/models"
)

// CheckoutRequest starts a Stripe checkout session.
type CheckoutRequest struct {
	PriceID    string `json:"price_id" validate:"required"`
	Quantity   int64  `json:"quantity" validate:"omitempty,min=1"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// CheckoutResponse carries the hosted checkout URL.
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// SubscriptionResponse is the instructor-facing subscription summary.
type SubscriptionResponse struct {
	Status            string     `json:"status"`
	Plan              string     `json:"plan,omitempty"`
	PlanName          string     `json:"plan_name"`
	ClassesIncluded   int        `json:"classes_included"`
	ExtraClasses      int        `json:"extra_classes"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	HasAccess         bool       `json:"has_access"`
}

// NewSubscriptionResponse converts a subscription model into a DTO.
func NewSubscriptionResponse(sub models.Subscription, now time.Time) SubscriptionResponse {
	return SubscriptionResponse{
		Status:            sub.Status,
		Plan:              sub.Plan,
		PlanName:          sub.PlanName(),
		ClassesIncluded:   sub.ClassesIncluded(),
		ExtraClasses:      sub.ExtraClasses,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		HasAccess:         sub.HasAccess(now),
	}
}

// NoSubscriptionResponse is returned when the user never subscribed.
func NoSubscriptionResponse() SubscriptionResponse {
	return SubscriptionResponse{Status: "none", PlanName: "No subscription"}
}

// PaymentResponse is one billing audit entry.
type PaymentResponse struct {
	Type        string    `json:"type"`
	Plan        string    `json:"plan"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewPaymentResponseSlice converts payment records into DTOs.
func NewPaymentResponseSlice(records []models.PaymentRecord) []PaymentResponse {
	responses := make([]PaymentResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, PaymentResponse{
			Type:        record.Type,
			Plan:        record.Plan,
			AmountCents: record.AmountCents,
			Currency:    record.Currency,
			CreatedAt:   record.CreatedAt,
		})
	}

	return responses
}
