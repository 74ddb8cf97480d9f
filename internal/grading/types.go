package grading

import (
	"time"

	"github.com/rubriq/rubriq-api/internal/canvas"
)

// JobStatus is the lifecycle state of a grading job.
type JobStatus string

const (
	// StatusRunning indicates the job is still grading submissions.
	StatusRunning JobStatus = "running"
	// StatusCompleted indicates the job finished and carries a result.
	StatusCompleted JobStatus = "completed"
	// StatusFailed indicates the job aborted and carries an error message.
	StatusFailed JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CriterionGrade is the grader's assessment of one rubric criterion.
type CriterionGrade struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Grade is the full scoring record for one submission.
type Grade struct {
	Criteria        map[string]CriterionGrade `json:"criteria"`
	Total           float64                   `json:"total"`
	GeneralFeedback string                    `json:"general_feedback"`
	FairnessFlag    bool                      `json:"fairness_flag"`
	FairnessMessage string                    `json:"fairness_message,omitempty"`
	// Failed marks a placeholder grade recorded after the grader errored
	// for this submission.
	Failed bool `json:"failed,omitempty"`
}

// Progress tracks how far a running job has advanced. It is forwarded
// verbatim to observers on every poll tick.
type Progress struct {
	Current        int    `json:"current"`
	Total          int    `json:"total"`
	CurrentStudent string `json:"currentStudent,omitempty"`
}

// Result is the payload of a completed job: the refreshed assignment with
// its rubric, the graded submission list and a grade per submission id.
type Result struct {
	Assignment  canvas.Assignment   `json:"assignment"`
	Submissions []canvas.Submission `json:"submissions"`
	Grades      map[string]Grade    `json:"grades"`
}

// Job is the stored state of one grading job.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Progress  Progress  `json:"progress"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}
