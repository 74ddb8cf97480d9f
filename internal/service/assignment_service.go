package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/repository"
)

// ErrUserNotFound indicates the requested instructor does not exist.
var ErrUserNotFound = errors.New("user not found")

// AssignmentService exposes the Canvas assignment use cases for the active
// course of one instructor.
type AssignmentService interface {
	List(ctx context.Context, userID uint) ([]dto.AssignmentSummaryResponse, error)
	Get(ctx context.Context, userID uint, assignmentID string) (dto.AssignmentSummaryResponse, error)
	Submissions(ctx context.Context, userID uint, assignmentID string, filter canvas.Filter) ([]dto.SubmissionResponse, error)
	SubmissionStats(ctx context.Context, userID uint, assignmentID string) (dto.SubmissionStatsResponse, error)
	CourseSummary(ctx context.Context, userID uint) (dto.CourseSummaryResponse, error)
}

type assignmentService struct {
	users  repository.UserRepository
	canvas CanvasFactory
	logger zerolog.Logger
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(users repository.UserRepository, factory CanvasFactory, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		users:  users,
		canvas: factory,
		logger: logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) client(ctx context.Context, userID uint) (CanvasAPI, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return canvasForUser(s.canvas, user)
}

func (s *assignmentService) List(ctx context.Context, userID uint) ([]dto.AssignmentSummaryResponse, error) {
	client, err := s.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	assignments, err := client.ListAssignmentsWithRubrics(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentSummaryResponseSlice(assignments), nil
}

func (s *assignmentService) Get(ctx context.Context, userID uint, assignmentID string) (dto.AssignmentSummaryResponse, error) {
	client, err := s.client(ctx, userID)
	if err != nil {
		return dto.AssignmentSummaryResponse{}, err
	}

	assignment, err := client.GetAssignment(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentSummaryResponse{}, err
	}

	return dto.NewAssignmentSummaryResponse(assignment), nil
}

func (s *assignmentService) Submissions(ctx context.Context, userID uint, assignmentID string, filter canvas.Filter) ([]dto.SubmissionResponse, error) {
	client, err := s.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	submissions, err := client.ListSubmissions(ctx, assignmentID, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *assignmentService) SubmissionStats(ctx context.Context, userID uint, assignmentID string) (dto.SubmissionStatsResponse, error) {
	client, err := s.client(ctx, userID)
	if err != nil {
		return dto.SubmissionStatsResponse{}, err
	}

	stats, err := client.SubmissionStats(ctx, assignmentID)
	if err != nil {
		return dto.SubmissionStatsResponse{}, err
	}

	return dto.NewSubmissionStatsResponse(stats), nil
}

func (s *assignmentService) CourseSummary(ctx context.Context, userID uint) (dto.CourseSummaryResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseSummaryResponse{}, ErrUserNotFound
		}
		return dto.CourseSummaryResponse{}, err
	}

	client, err := canvasForUser(s.canvas, user)
	if err != nil {
		return dto.CourseSummaryResponse{}, err
	}

	name, err := client.CourseName(ctx)
	if err != nil {
		return dto.CourseSummaryResponse{}, err
	}

	assignments, err := client.ListAssignmentsWithRubrics(ctx)
	if err != nil {
		return dto.CourseSummaryResponse{}, err
	}

	return dto.CourseSummaryResponse{
		ID:          user.CourseID,
		Name:        name,
		Assignments: len(assignments),
	}, nil
}
