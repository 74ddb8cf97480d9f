package models

import "time"

// Subscription plan identifiers. Legacy "single"/"bundle" values from early
// checkout sessions are normalized to these at webhook time.
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
	PlanFree    = "free"
)

// Subscription statuses mirror the Stripe subscription lifecycle.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusTrialing  = "trialing"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// gracePeriod is how long grading access outlives an expired subscription.
const gracePeriod = 7 * 24 * time.Hour

// Subscription tracks one instructor's Stripe subscription state. Yearly
// plans include three classes; ExtraClasses counts purchased add-ons.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	StripeCustomerID     string     `gorm:"size:255;index" json:"stripe_customer_id"`
	StripeSubscriptionID string     `gorm:"size:255;index" json:"stripe_subscription_id"`
	Plan                 string     `gorm:"size:32;not null" json:"plan"`
	Status               string     `gorm:"size:32;not null" json:"status"`
	ExtraClasses         int        `gorm:"not null;default:0" json:"extra_classes"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd    bool       `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	User                 User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// PlanName returns the human-readable plan label.
func (s Subscription) PlanName() string {
	switch s.Plan {
	case PlanMonthly:
		return "Monthly Plan"
	case PlanYearly:
		return "Yearly Plan"
	case PlanFree:
		return "Free Access"
	default:
		return "Unknown Plan"
	}
}

// ClassesIncluded returns how many classes the subscription covers.
func (s Subscription) ClassesIncluded() int {
	if s.Plan == PlanYearly {
		return 3 + s.ExtraClasses
	}
	return 1
}

// HasAccess reports whether the subscription currently grants grading access.
// Expired subscriptions keep access for a seven-day grace period.
func (s Subscription) HasAccess(now time.Time) bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusTrialing:
		return true
	}
	if s.CurrentPeriodEnd != nil && now.Before(s.CurrentPeriodEnd.Add(gracePeriod)) {
		return true
	}
	return false
}
