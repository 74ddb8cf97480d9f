package dto

import (
	"time"

	"github.com/rubriq/rubriq-api/internal/canvas"
)

// AssignmentSummaryResponse is one gradable assignment with its rubric.
type AssignmentSummaryResponse struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	DueAt          *time.Time         `json:"due_at,omitempty"`
	PointsPossible float64            `json:"points_possible"`
	Rubric         []canvas.Criterion `json:"rubric"`
}

// NewAssignmentSummaryResponse converts one Canvas assignment into a DTO.
func NewAssignmentSummaryResponse(assignment canvas.Assignment) AssignmentSummaryResponse {
	return AssignmentSummaryResponse{
		ID:             assignment.ID,
		Name:           assignment.Name,
		DueAt:          assignment.DueAt,
		PointsPossible: assignment.PointsPossible,
		Rubric:         assignment.Rubric,
	}
}

// NewAssignmentSummaryResponseSlice converts Canvas assignments into DTOs.
func NewAssignmentSummaryResponseSlice(assignments []canvas.Assignment) []AssignmentSummaryResponse {
	responses := make([]AssignmentSummaryResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentSummaryResponse(assignment))
	}

	return responses
}

// SubmissionResponse is one anonymized submission row.
type SubmissionResponse struct {
	ID          string     `json:"id"`
	AnonymousID string     `json:"anonymous_id"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	Attempt     int        `json:"attempt"`
	Attachments int        `json:"attachments"`
}

// NewSubmissionResponseSlice converts Canvas submissions into DTOs.
func NewSubmissionResponseSlice(submissions []canvas.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, SubmissionResponse{
			ID:          submission.ID,
			AnonymousID: submission.AnonymousID,
			Status:      string(submission.Status),
			SubmittedAt: submission.SubmittedAt,
			Score:       submission.Score,
			Attempt:     submission.Attempt,
			Attachments: len(submission.Attachments),
		})
	}

	return responses
}

// SubmissionStatsResponse aggregates submission counts for one assignment.
type SubmissionStatsResponse struct {
	Total   int `json:"total"`
	Graded  int `json:"graded"`
	Pending int `json:"pending"`
	Late    int `json:"late"`
	Missing int `json:"missing"`
}

// NewSubmissionStatsResponse converts Canvas stats into a DTO.
func NewSubmissionStatsResponse(stats canvas.SubmissionStats) SubmissionStatsResponse {
	return SubmissionStatsResponse{
		Total:   stats.Total,
		Graded:  stats.Graded,
		Pending: stats.Pending,
		Late:    stats.Late,
		Missing: stats.Missing,
	}
}

// CourseSummaryResponse describes the active course.
type CourseSummaryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Assignments int    `json:"assignments"`
}
