package dto

import (
	"time"

	"github.com/rubriq/rubriq-api/internal/models"
)

// AdminStatsResponse is the operator dashboard summary.
type AdminStatsResponse struct {
	TotalUsers          int64 `json:"total_users"`
	CanvasConnected     int64 `json:"canvas_connected"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	TotalGradingJobs    int64 `json:"total_grading_jobs"`
}

// AdminUserResponse is one instructor row in the admin user list.
type AdminUserResponse struct {
	ID              uint      `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	CanvasConnected bool      `json:"canvas_connected"`
	CreatedAt       time.Time `json:"created_at"`
}

// AdminUserListResponse is a paginated instructor listing.
type AdminUserListResponse struct {
	Users []AdminUserResponse `json:"users"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
}

// NewAdminUserResponse converts one user model into the admin row.
func NewAdminUserResponse(user models.User) AdminUserResponse {
	return AdminUserResponse{
		ID:              user.ID,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		CanvasConnected: user.HasCanvasCredentials(),
		CreatedAt:       user.CreatedAt,
	}
}

// NewAdminUserListResponse converts models into the admin listing.
func NewAdminUserListResponse(users []models.User, total int64, page int) AdminUserListResponse {
	rows := make([]AdminUserResponse, 0, len(users))
	for _, user := range users {
		rows = append(rows, NewAdminUserResponse(user))
	}

	return AdminUserListResponse{Users: rows, Total: total, Page: page}
}
