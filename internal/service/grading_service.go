package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/grading"
	"github.com/rubriq/rubriq-api/internal/models"
	"github.com/rubriq/rubriq-api/internal/repository"
)

// ErrPaymentRequired indicates grading is gated behind a subscription the
// user does not have.
var ErrPaymentRequired = errors.New("an active subscription is required to grade")

// ErrJobNotCompleted indicates an operation needed a completed job.
var ErrJobNotCompleted = errors.New("grading job has not completed")

// GradingService exposes the grading job use cases.
type GradingService interface {
	Start(ctx context.Context, userID uint, payload dto.GradingStartRequest) (dto.GradingStartResponse, error)
	Status(ctx context.Context, jobID string) (dto.GradingStatusResponse, error)
	Await(ctx context.Context, jobID string, onProgress func(grading.Progress)) (dto.GradingStatusResponse, error)
	PostGrades(ctx context.Context, userID uint, payload dto.PostGradesRequest) (dto.PostGradesResponse, error)
	History(ctx context.Context, userID uint, limit int) ([]dto.GradingHistoryResponse, error)
}

type gradingService struct {
	users     repository.UserRepository
	history   repository.GradingHistoryRepository
	runner    *grading.Runner
	store     grading.Store
	poller    *grading.Poller
	billing   BillingService
	canvas    CanvasFactory
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradingService builds a new grading service.
func NewGradingService(
	users repository.UserRepository,
	history repository.GradingHistoryRepository,
	runner *grading.Runner,
	store grading.Store,
	poller *grading.Poller,
	billing BillingService,
	factory CanvasFactory,
	validate *validator.Validate,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		users:     users,
		history:   history,
		runner:    runner,
		store:     store,
		poller:    poller,
		billing:   billing,
		canvas:    factory,
		validator: validate,
		logger:    logger.With().Str("component", "grading_service").Logger(),
	}
}

func (s *gradingService) Start(ctx context.Context, userID uint, payload dto.GradingStartRequest) (dto.GradingStartResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradingStartResponse{}, err
	}

	allowed, err := s.billing.HasAccess(ctx, userID)
	if err != nil {
		return dto.GradingStartResponse{}, err
	}
	if !allowed {
		return dto.GradingStartResponse{}, ErrPaymentRequired
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradingStartResponse{}, ErrUserNotFound
		}
		return dto.GradingStartResponse{}, err
	}

	client, err := canvasForUser(s.canvas, user)
	if err != nil {
		return dto.GradingStartResponse{}, err
	}

	jobID, err := s.runner.Start(ctx, client, payload.AssignmentID, payload.Filter())
	if err != nil {
		return dto.GradingStartResponse{}, err
	}

	go s.recordHistory(user, jobID, payload.AssignmentID)

	return dto.GradingStartResponse{JobID: jobID}, nil
}

// recordHistory waits for the job to finish and persists a history entry so
// the run stays visible after the job record expires from Redis.
func (s *gradingService) recordHistory(user models.User, jobID, assignmentID string) {
	result, err := s.poller.Await(context.Background(), jobID, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("job did not complete; no history recorded")
		return
	}

	sum := 0.0
	for _, grade := range result.Grades {
		sum += grade.Total
	}
	average := 0.0
	if len(result.Grades) > 0 {
		average = sum / float64(len(result.Grades))
	}

	entry := models.GradingHistory{
		UserID:          user.ID,
		JobID:           jobID,
		CourseID:        user.CourseID,
		AssignmentID:    assignmentID,
		AssignmentName:  result.Assignment.Name,
		SubmissionCount: len(result.Submissions),
		GradedCount:     len(result.Grades),
		AverageScore:    average,
	}
	if err := s.history.Create(context.Background(), &entry); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to record grading history")
	}
}

func (s *gradingService) Status(ctx context.Context, jobID string) (dto.GradingStatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return dto.GradingStatusResponse{}, err
	}

	return dto.NewGradingStatusResponse(job), nil
}

// Await blocks until the job is terminal, forwarding progress along the way.
func (s *gradingService) Await(ctx context.Context, jobID string, onProgress func(grading.Progress)) (dto.GradingStatusResponse, error) {
	result, err := s.poller.Await(ctx, jobID, onProgress)
	if err != nil {
		var failed *grading.JobFailedError
		if errors.As(err, &failed) {
			return dto.GradingStatusResponse{
				JobID:  jobID,
				Status: grading.StatusFailed,
				Error:  failed.Message,
			}, nil
		}
		return dto.GradingStatusResponse{}, err
	}

	return dto.GradingStatusResponse{
		JobID:  jobID,
		Status: grading.StatusCompleted,
		Result: result,
	}, nil
}

func (s *gradingService) PostGrades(ctx context.Context, userID uint, payload dto.PostGradesRequest) (dto.PostGradesResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PostGradesResponse{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PostGradesResponse{}, ErrUserNotFound
		}
		return dto.PostGradesResponse{}, err
	}

	client, err := canvasForUser(s.canvas, user)
	if err != nil {
		return dto.PostGradesResponse{}, err
	}

	job, err := s.store.Get(ctx, payload.JobID)
	if err != nil {
		return dto.PostGradesResponse{}, err
	}
	if job.Status != grading.StatusCompleted || job.Result == nil {
		return dto.PostGradesResponse{}, ErrJobNotCompleted
	}

	result := job.Result
	resp := dto.PostGradesResponse{}
	for _, submission := range result.Submissions {
		grade, ok := result.Grades[submission.ID]
		if !ok {
			continue
		}

		if err := client.PostGrade(ctx, result.Assignment.ID, submission.ID, grade.Total, grade.GeneralFeedback, rubricScoresFor(grade)); err != nil {
			s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("failed to post grade")
			resp.Failed = append(resp.Failed, submission.AnonymousID)
			continue
		}
		resp.Posted++
	}

	if resp.Posted > 0 {
		if err := s.history.MarkPosted(ctx, userID, payload.JobID, resp.Posted); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Str("job_id", payload.JobID).Msg("failed to update posted count")
		}
	}

	s.logger.Info().Str("job_id", payload.JobID).Int("posted", resp.Posted).Int("failed", len(resp.Failed)).Msg("grades posted to canvas")

	return resp, nil
}

func (s *gradingService) History(ctx context.Context, userID uint, limit int) ([]dto.GradingHistoryResponse, error) {
	entries, err := s.history.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	return dto.NewGradingHistoryResponseSlice(entries), nil
}

func rubricScoresFor(grade grading.Grade) map[string]canvas.RubricScore {
	scores := make(map[string]canvas.RubricScore, len(grade.Criteria))
	for criterionID, entry := range grade.Criteria {
		scores[criterionID] = canvas.RubricScore{Points: entry.Score, Comments: entry.Feedback}
	}
	return scores
}
