package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/repository"
)

// AdminService exposes operator endpoints.
type AdminService interface {
	Stats(ctx context.Context) (dto.AdminStatsResponse, error)
	Users(ctx context.Context, page, pageSize int) (dto.AdminUserListResponse, error)
	GetUser(ctx context.Context, userID uint) (dto.AdminUserResponse, error)
	DeleteUser(ctx context.Context, userID uint) error
}

type adminService struct {
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	history repository.GradingHistoryRepository
	logger  zerolog.Logger
}

// NewAdminService builds a new admin service.
func NewAdminService(users repository.UserRepository, subs repository.SubscriptionRepository, history repository.GradingHistoryRepository, logger zerolog.Logger) AdminService {
	return &adminService{
		users:   users,
		subs:    subs,
		history: history,
		logger:  logger.With().Str("component", "admin_service").Logger(),
	}
}

func (s *adminService) Stats(ctx context.Context) (dto.AdminStatsResponse, error) {
	_, totalUsers, err := s.users.List(ctx, 1, 1)
	if err != nil {
		return dto.AdminStatsResponse{}, err
	}

	connected, err := s.users.CountCanvasConnected(ctx)
	if err != nil {
		return dto.AdminStatsResponse{}, err
	}

	activeSubs, err := s.subs.CountActive(ctx)
	if err != nil {
		return dto.AdminStatsResponse{}, err
	}

	totalJobs, err := s.history.CountJobs(ctx)
	if err != nil {
		return dto.AdminStatsResponse{}, err
	}

	return dto.AdminStatsResponse{
		TotalUsers:          totalUsers,
		CanvasConnected:     connected,
		ActiveSubscriptions: activeSubs,
		TotalGradingJobs:    totalJobs,
	}, nil
}

func (s *adminService) GetUser(ctx context.Context, userID uint) (dto.AdminUserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminUserResponse{}, ErrUserNotFound
		}
		return dto.AdminUserResponse{}, err
	}

	return dto.NewAdminUserResponse(user), nil
}

func (s *adminService) Users(ctx context.Context, page, pageSize int) (dto.AdminUserListResponse, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}

	users, total, err := s.users.List(ctx, page, pageSize)
	if err != nil {
		return dto.AdminUserListResponse{}, err
	}

	return dto.NewAdminUserListResponse(users, total, page), nil
}

func (s *adminService) DeleteUser(ctx context.Context, userID uint) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.Info().Uint("user_id", userID).Msg("user deleted by admin")
	return nil
}
