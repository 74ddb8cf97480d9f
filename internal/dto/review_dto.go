package dto

import (
	"github.com/rubriq/rubriq-api/internal/grading"
	"github.com/rubriq/rubriq-api/internal/session"
)

// ReviewLoadRequest loads a finished job into the review session.
type ReviewLoadRequest struct {
	JobID string `json:"job_id" validate:"required"`
}

// ReviewSelectRequest moves the review cursor to a submission index.
type ReviewSelectRequest struct {
	Index int `json:"index" validate:"min=0"`
}

// ReviewScoreRequest updates a criterion score. Score is free text; anything
// unparseable is treated as zero.
type ReviewScoreRequest struct {
	CriterionID string `json:"criterion_id" validate:"required"`
	Score       string `json:"score"`
}

// ReviewFeedbackRequest updates criterion or general feedback.
type ReviewFeedbackRequest struct {
	CriterionID string `json:"criterion_id" validate:"omitempty"`
	Feedback    string `json:"feedback"`
}

// ReviewStateResponse is the current review position and grade.
type ReviewStateResponse struct {
	Index      int            `json:"index"`
	Submission ReviewStudent  `json:"submission"`
	Grade      *grading.Grade `json:"grade,omitempty"`
	Total      int            `json:"total"`
}

// ReviewStudent identifies the submission under review without exposing the
// real Canvas user.
type ReviewStudent struct {
	SubmissionID string `json:"submission_id"`
	AnonymousID  string `json:"anonymous_id"`
	Status       string `json:"status"`
}

// ReviewStatsResponse summarizes reviewed grades.
type ReviewStatsResponse struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
}

// NewReviewStatsResponse converts session stats into a DTO.
func NewReviewStatsResponse(stats session.Stats) ReviewStatsResponse {
	return ReviewStatsResponse{
		Count:   stats.Count,
		Average: stats.Average,
		Highest: stats.Highest,
		Lowest:  stats.Lowest,
	}
}
