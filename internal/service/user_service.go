package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/models"
	"github.com/rubriq/rubriq-api/internal/repository"
)

// ErrInvalidCanvasCredentials indicates the supplied Canvas URL or token was
// rejected by Canvas itself.
var ErrInvalidCanvasCredentials = errors.New("canvas rejected the supplied credentials")

// UserService exposes instructor profile and Canvas connection use cases.
type UserService interface {
	Profile(ctx context.Context, userID uint) (dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID uint, payload dto.ProfileUpdateRequest) (dto.UserResponse, error)
	ConnectCanvas(ctx context.Context, userID uint, payload dto.CanvasCredentialsRequest) (dto.UserResponse, error)
	Courses(ctx context.Context, userID uint) ([]dto.CourseResponse, error)
	AddCourse(ctx context.Context, userID uint, payload dto.CourseAddRequest) (dto.SavedCourseResponse, error)
	SelectCourse(ctx context.Context, userID uint, payload dto.CourseSelectRequest) (dto.UserResponse, error)
	EnsureUser(ctx context.Context, email string) (models.User, error)
}

type userService struct {
	users     repository.UserRepository
	canvas    CanvasFactory
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService builds a new user service.
func NewUserService(users repository.UserRepository, factory CanvasFactory, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		canvas:    factory,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Profile(ctx context.Context, userID uint) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	resp := dto.NewUserResponse(user)

	courses, err := s.users.ListCourses(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	resp.Courses = dto.NewSavedCourseResponseSlice(courses)

	return resp, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uint, payload dto.ProfileUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	updates := map[string]interface{}{}
	if payload.DisplayName != nil {
		updates["display_name"] = *payload.DisplayName
	}
	if len(updates) == 0 {
		return s.Profile(ctx, userID)
	}

	user, err := s.users.Update(ctx, userID, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(user), nil
}

// ConnectCanvas validates the credentials against Canvas before storing them.
// Bad credentials are rejected here, not discovered mid-grading.
func (s *userService) ConnectCanvas(ctx context.Context, userID uint, payload dto.CanvasCredentialsRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	client := s.canvas(payload.CanvasURL, payload.CanvasToken, "")
	if err := client.ValidateCredentials(ctx); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("canvas credential validation failed")
		return dto.UserResponse{}, fmt.Errorf("%w: %v", ErrInvalidCanvasCredentials, err)
	}

	user, err := s.users.Update(ctx, userID, map[string]interface{}{
		"canvas_url":   payload.CanvasURL,
		"canvas_token": payload.CanvasToken,
		"course_id":    "",
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", userID).Msg("canvas account connected")

	return dto.NewUserResponse(user), nil
}

func (s *userService) Courses(ctx context.Context, userID uint) ([]dto.CourseResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.HasCanvasCredentials() {
		return nil, ErrCanvasNotConnected
	}

	client := s.canvas(user.CanvasURL, user.CanvasToken, "")
	courses, err := client.ListCourses(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, dto.CourseResponse{ID: course.ID, Name: course.Name, Code: course.Code})
	}
	return responses, nil
}

func (s *userService) AddCourse(ctx context.Context, userID uint, payload dto.CourseAddRequest) (dto.SavedCourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SavedCourseResponse{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SavedCourseResponse{}, ErrUserNotFound
		}
		return dto.SavedCourseResponse{}, err
	}

	canvasURL := payload.CanvasURL
	if canvasURL == "" {
		canvasURL = user.CanvasURL
	}

	course := models.UserCourse{UserID: userID, CourseID: payload.CourseID, CanvasURL: canvasURL}
	if err := s.users.AddCourse(ctx, &course); err != nil {
		return dto.SavedCourseResponse{}, err
	}

	s.logger.Info().Uint("user_id", userID).Str("course_id", course.CourseID).Msg("course saved")

	return dto.SavedCourseResponse{CourseID: course.CourseID, CanvasURL: course.CanvasURL, AddedAt: course.CreatedAt}, nil
}

func (s *userService) SelectCourse(ctx context.Context, userID uint, payload dto.CourseSelectRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.Update(ctx, userID, map[string]interface{}{"course_id": payload.CourseID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(user), nil
}

// EnsureUser returns the account for an authenticated email, creating it on
// first sign-in.
func (s *userService) EnsureUser(ctx context.Context, email string) (models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, err
	}

	user = models.User{Email: email}
	if err := s.users.Create(ctx, &user); err != nil {
		return models.User{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("user account created")
	return user, nil
}
