package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rubriq/rubriq-api/internal/models"
)

// SubscriptionRepository provides access to Stripe subscription state.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID uint) (models.Subscription, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, userID uint, updates map[string]interface{}) error
	CountActive(ctx context.Context) (int64, error)
	RecordPayment(ctx context.Context, record *models.PaymentRecord) error
	Payments(ctx context.Context, userID uint) ([]models.PaymentRecord, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository constructs a subscription repository.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID uint) (models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return models.Subscription{}, err
	}

	return sub, nil
}

func (r *subscriptionRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&sub).Error; err != nil {
		return models.Subscription{}, err
	}

	return sub, nil
}

// Upsert creates the subscription row or replaces the existing one for the
// same user. Webhooks may arrive more than once for the same event.
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Subscription
		err := tx.Where("user_id = ?", sub.UserID).First(&existing).Error
		switch {
		case err == nil:
			sub.ID = existing.ID
			sub.CreatedAt = existing.CreatedAt
			return tx.Save(sub).Error
		case err == gorm.ErrRecordNotFound:
			return tx.Create(sub).Error
		default:
			return err
		}
	})
}

func (r *subscriptionRepository) Update(ctx context.Context, userID uint, updates map[string]interface{}) error {
	tx := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *subscriptionRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status IN ?", []string{models.SubscriptionStatusActive, models.SubscriptionStatusTrialing}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *subscriptionRepository) RecordPayment(ctx context.Context, record *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *subscriptionRepository) Payments(ctx context.Context, userID uint) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}
