package dto

import (
	"time"

	"github.com/rubriq/rubriq-api/internal/models"
)

// CanvasCredentialsRequest stores or replaces a user's Canvas connection.
type CanvasCredentialsRequest struct {
	CanvasURL   string `json:"canvas_url" validate:"required,url"`
	CanvasToken string `json:"canvas_token" validate:"required,min=16"`
}

// CourseSelectRequest pins the active course for grading.
type CourseSelectRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// CourseAddRequest saves a course to the instructor's collection. The Canvas
// URL defaults to the stored connection when omitted.
type CourseAddRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	CanvasURL string `json:"canvas_url" validate:"omitempty,url"`
}

// ProfileUpdateRequest updates mutable profile fields.
type ProfileUpdateRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=255"`
}

// UserResponse is the serialized instructor profile. The Canvas token never
// leaves the server.
type UserResponse struct {
	ID              uint                  `json:"id"`
	Email           string                `json:"email"`
	DisplayName     string                `json:"display_name"`
	CanvasURL       string                `json:"canvas_url"`
	CanvasConnected bool                  `json:"canvas_connected"`
	CourseID        string                `json:"course_id"`
	Courses         []SavedCourseResponse `json:"courses,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(model models.User) UserResponse {
	return UserResponse{
		ID:              model.ID,
		Email:           model.Email,
		DisplayName:     model.DisplayName,
		CanvasURL:       model.CanvasURL,
		CanvasConnected: model.HasCanvasCredentials(),
		CourseID:        model.CourseID,
		CreatedAt:       model.CreatedAt,
	}
}

// CourseResponse is one Canvas course the instructor teaches.
type CourseResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// SavedCourseResponse is one course in the instructor's saved collection.
type SavedCourseResponse struct {
	CourseID  string    `json:"course_id"`
	CanvasURL string    `json:"canvas_url"`
	AddedAt   time.Time `json:"added_at"`
}

// NewSavedCourseResponseSlice converts saved course models into DTOs.
func NewSavedCourseResponseSlice(courses []models.UserCourse) []SavedCourseResponse {
	responses := make([]SavedCourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, SavedCourseResponse{
			CourseID:  course.CourseID,
			CanvasURL: course.CanvasURL,
			AddedAt:   course.CreatedAt,
		})
	}

	return responses
}
