package dto

import (
	"time"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/grading"
	"github.com/rubriq/rubriq-api/internal/models"
)

// GradingStartRequest describes the payload for starting a grading job.
type GradingStartRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	OnTime       *bool  `json:"on_time" validate:"omitempty"`
	Late         *bool  `json:"late" validate:"omitempty"`
	Resubmitted  *bool  `json:"resubmitted" validate:"omitempty"`
	Missing      *bool  `json:"missing" validate:"omitempty"`
}

// Filter builds the submission filter. An omitted flag leaves that status
// included; only an explicit false excludes it.
func (r GradingStartRequest) Filter() canvas.Filter {
	filter := canvas.DefaultFilter()
	if r.OnTime != nil {
		filter.OnTime = *r.OnTime
	}
	if r.Late != nil {
		filter.Late = *r.Late
	}
	if r.Resubmitted != nil {
		filter.Resubmitted = *r.Resubmitted
	}
	if r.Missing != nil {
		filter.Missing = *r.Missing
	}
	return filter
}

// GradingStartResponse returns the identifier of the accepted job.
type GradingStartResponse struct {
	JobID string `json:"job_id"`
}

// GradingStatusResponse is the polled job snapshot.
type GradingStatusResponse struct {
	JobID    string            `json:"job_id"`
	Status   grading.JobStatus `json:"status"`
	Progress *grading.Progress `json:"progress,omitempty"`
	Result   *grading.Result   `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// NewGradingStatusResponse converts a job into its API snapshot.
func NewGradingStatusResponse(job grading.Job) GradingStatusResponse {
	resp := GradingStatusResponse{
		JobID:  job.ID,
		Status: job.Status,
		Result: job.Result,
		Error:  job.Error,
	}
	if job.Progress.Total > 0 {
		progress := job.Progress
		resp.Progress = &progress
	}
	return resp
}

// PostGradesRequest describes which job's grades to publish back to Canvas.
type PostGradesRequest struct {
	JobID string `json:"job_id" validate:"required"`
}

// PostGradesResponse reports how many grades were written.
type PostGradesResponse struct {
	Posted int      `json:"posted"`
	Failed []string `json:"failed,omitempty"`
}

// GradingHistoryResponse is one past grading run.
type GradingHistoryResponse struct {
	JobID           string    `json:"job_id"`
	AssignmentID    string    `json:"assignment_id"`
	AssignmentName  string    `json:"assignment_name"`
	SubmissionCount int       `json:"submission_count"`
	GradedCount     int       `json:"graded_count"`
	PostedCount     int       `json:"posted_count"`
	AverageScore    float64   `json:"average_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewGradingHistoryResponseSlice converts history models into DTOs.
func NewGradingHistoryResponseSlice(entries []models.GradingHistory) []GradingHistoryResponse {
	responses := make([]GradingHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, GradingHistoryResponse{
			JobID:           entry.JobID,
			AssignmentID:    entry.AssignmentID,
			AssignmentName:  entry.AssignmentName,
			SubmissionCount: entry.SubmissionCount,
			GradedCount:     entry.GradedCount,
			PostedCount:     entry.PostedCount,
			AverageScore:    entry.AverageScore,
			CreatedAt:       entry.CreatedAt,
		})
	}

	return responses
}
