package models

import "time"

// Payment event types written from Stripe webhooks.
const (
	PaymentEventSubscriptionCreated = "subscription_created"
	PaymentEventExtraClassesAdded   = "extra_classes_added"
	PaymentEventCancelled           = "subscription_cancelled"
)

// PaymentRecord is an append-only audit entry for billing events.
type PaymentRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	Type            string    `gorm:"size:64;not null" json:"type"`
	Plan            string    `gorm:"size:32" json:"plan"`
	AmountCents     int64     `gorm:"not null;default:0" json:"amount_cents"`
	Currency        string    `gorm:"size:8" json:"currency"`
	StripeSessionID string    `gorm:"size:255" json:"stripe_session_id"`
	CreatedAt       time.Time `json:"created_at"`
	User            User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
