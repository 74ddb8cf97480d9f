package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/grading"
	"github.com/rubriq/rubriq-api/internal/session"
)

// ReviewService exposes the per-user grade review workflow: loading a
// completed job, stepping through submissions, editing grades and exporting
// the result as CSV.
type ReviewService interface {
	Load(ctx context.Context, userID uint, payload dto.ReviewLoadRequest) (dto.ReviewStateResponse, error)
	Current(ctx context.Context, userID uint) (dto.ReviewStateResponse, error)
	Select(ctx context.Context, userID uint, payload dto.ReviewSelectRequest) (dto.ReviewStateResponse, error)
	Next(ctx context.Context, userID uint) (dto.ReviewStateResponse, error)
	Previous(ctx context.Context, userID uint) (dto.ReviewStateResponse, error)
	UpdateScore(ctx context.Context, userID uint, payload dto.ReviewScoreRequest) (dto.ReviewStateResponse, error)
	UpdateFeedback(ctx context.Context, userID uint, payload dto.ReviewFeedbackRequest) (dto.ReviewStateResponse, error)
	Stats(ctx context.Context, userID uint) (dto.ReviewStatsResponse, error)
	ExportCSV(ctx context.Context, userID uint) (filename string, csv string, err error)
	Reset(ctx context.Context, userID uint)
}

type reviewService struct {
	sessions  *session.Store
	store     grading.Store
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReviewService builds a new review service.
func NewReviewService(sessions *session.Store, store grading.Store, validate *validator.Validate, logger zerolog.Logger) ReviewService {
	return &reviewService{
		sessions:  sessions,
		store:     store,
		validator: validate,
		logger:    logger.With().Str("component", "review_service").Logger(),
	}
}

func (s *reviewService) state(sess *session.ReviewSession) (dto.ReviewStateResponse, error) {
	submission, ok := sess.CurrentSubmission()
	if !ok {
		return dto.ReviewStateResponse{}, session.ErrNothingLoaded
	}

	resp := dto.ReviewStateResponse{
		Index: sess.CurrentIndex(),
		Total: len(sess.Submissions()),
		Submission: dto.ReviewStudent{
			SubmissionID: submission.ID,
			AnonymousID:  submission.AnonymousID,
			Status:       string(submission.Status),
		},
	}
	if grade, ok := sess.GradeFor(submission.ID); ok {
		resp.Grade = &grade
	}
	return resp, nil
}

func (s *reviewService) Load(ctx context.Context, userID uint, payload dto.ReviewLoadRequest) (dto.ReviewStateResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReviewStateResponse{}, err
	}

	job, err := s.store.Get(ctx, payload.JobID)
	if err != nil {
		return dto.ReviewStateResponse{}, err
	}
	if job.Status != grading.StatusCompleted || job.Result == nil {
		return dto.ReviewStateResponse{}, ErrJobNotCompleted
	}

	sess := s.sessions.Get(userID)
	sess.LoadResult(*job.Result)

	s.logger.Info().Uint("user_id", userID).Str("job_id", payload.JobID).Int("submissions", len(job.Result.Submissions)).Msg("review session loaded")

	return s.state(sess)
}

func (s *reviewService) Current(ctx context.Context, userID uint) (dto.ReviewStateResponse, error) {
	return s.state(s.sessions.Get(userID))
}

func (s *reviewService) Select(ctx context.Context, userID uint, payload dto.ReviewSelectRequest) (dto.ReviewStateResponse, error) {
	sess := s.sessions.Get(userID)
	sess.SelectSubmission(payload.Index)
	return s.state(sess)
}

func (s *reviewService) Next(ctx context.Context, userID uint) (dto.ReviewStateResponse, error) {
	sess := s.sessions.Get(userID)
	sess.Next()
	return s.state(sess)
}

func (s *reviewService) Previous(ctx context.Context, userID uint) (dto.ReviewStateResponse, error) {
	sess := s.sessions.Get(userID)
	sess.Previous()
	return s.state(sess)
}

func (s *reviewService) UpdateScore(ctx context.Context, userID uint, payload dto.ReviewScoreRequest) (dto.ReviewStateResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReviewStateResponse{}, err
	}

	sess := s.sessions.Get(userID)
	if _, err := sess.UpdateCriterionScore(payload.CriterionID, payload.Score); err != nil {
		return dto.ReviewStateResponse{}, err
	}
	return s.state(sess)
}

func (s *reviewService) UpdateFeedback(ctx context.Context, userID uint, payload dto.ReviewFeedbackRequest) (dto.ReviewStateResponse, error) {
	sess := s.sessions.Get(userID)

	var err error
	if payload.CriterionID != "" {
		_, err = sess.UpdateCriterionFeedback(payload.CriterionID, payload.Feedback)
	} else {
		_, err = sess.UpdateGeneralFeedback(payload.Feedback)
	}
	if err != nil {
		return dto.ReviewStateResponse{}, err
	}
	return s.state(sess)
}

func (s *reviewService) Stats(ctx context.Context, userID uint) (dto.ReviewStatsResponse, error) {
	sess := s.sessions.Get(userID)
	stats := sess.SummaryStats()
	if stats.Count == 0 {
		return dto.ReviewStatsResponse{}, session.ErrNoGrades
	}
	return dto.NewReviewStatsResponse(stats), nil
}

func (s *reviewService) ExportCSV(ctx context.Context, userID uint) (string, string, error) {
	sess := s.sessions.Get(userID)
	csv, err := sess.ExportCSV()
	if err != nil {
		return "", "", err
	}
	return sess.ExportFilename() + ".csv", csv, nil
}

func (s *reviewService) Reset(ctx context.Context, userID uint) {
	s.sessions.Get(userID).Reset()
}

// IsSessionError reports whether the error is a review-session state error
// rather than an infrastructure failure.
func IsSessionError(err error) bool {
	return errors.Is(err, session.ErrNothingLoaded) ||
		errors.Is(err, session.ErrNoGrades) ||
		errors.Is(err, session.ErrNoSelection)
}
