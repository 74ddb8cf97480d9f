package canvas

import "time"

// SubmissionStatus classifies a submission relative to the assignment deadline.
type SubmissionStatus string

const (
	// StatusOnTime indicates the submission arrived before the due date.
	StatusOnTime SubmissionStatus = "on_time"
	// StatusLate indicates the submission arrived after the due date.
	StatusLate SubmissionStatus = "late"
	// StatusResubmitted indicates the student submitted more than once.
	StatusResubmitted SubmissionStatus = "resubmitted"
	// StatusMissing indicates no submission was made.
	StatusMissing SubmissionStatus = "missing"
)

// Course summarizes a Canvas course the instructor teaches.
type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Rating is one level of a rubric criterion.
type Rating struct {
	Description string  `json:"description"`
	Points      float64 `json:"points"`
}

// Criterion is one gradable dimension of a rubric.
type Criterion struct {
	ID              string   `json:"id"`
	Description     string   `json:"description"`
	LongDescription string   `json:"long_description,omitempty"`
	Points          float64  `json:"points"`
	Ratings         []Rating `json:"ratings,omitempty"`
}

// Assignment is a Canvas assignment together with its rubric.
type Assignment struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	DueAt           *time.Time  `json:"due_at"`
	PointsPossible  float64     `json:"points_possible"`
	SubmissionTypes []string    `json:"submission_types"`
	Rubric          []Criterion `json:"rubric,omitempty"`
	SubmissionCount int         `json:"submission_count,omitempty"`
}

// Attachment is a file attached to a submission.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// Submission is a student submission for an assignment. The student identity
// is replaced by an anonymized identifier before it leaves this package.
type Submission struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	AnonymousID string           `json:"anonymous_id"`
	Status      SubmissionStatus `json:"status"`
	SubmittedAt *time.Time       `json:"submitted_at"`
	Score       *float64         `json:"score"`
	Grade       string           `json:"grade,omitempty"`
	Attempt     int              `json:"attempt"`
	Attachments []Attachment     `json:"attachments"`
}

// SubmissionStats aggregates submission counts for one assignment.
type SubmissionStats struct {
	Total   int `json:"total"`
	Graded  int `json:"graded"`
	Pending int `json:"pending"`
	Late    int `json:"late"`
	Missing int `json:"missing"`
}

// Filter selects which submission statuses to include when listing. A zero
// Filter excludes everything; use DefaultFilter for the common case.
type Filter struct {
	OnTime      bool `json:"ontime"`
	Late        bool `json:"late"`
	Resubmitted bool `json:"resubmitted"`
	Missing     bool `json:"missing"`
}

// DefaultFilter admits every status. Filtering is opt-out: a status is only
// excluded when the instructor switches it off explicitly.
func DefaultFilter() Filter {
	return Filter{OnTime: true, Late: true, Resubmitted: true, Missing: true}
}

// Allows reports whether the filter admits a submission with the given status.
func (f Filter) Allows(status SubmissionStatus) bool {
	switch status {
	case StatusLate:
		return f.Late
	case StatusResubmitted:
		return f.Resubmitted
	case StatusMissing:
		return f.Missing
	default:
		return f.OnTime
	}
}

// RubricScore is one criterion entry of a rubric assessment posted to Canvas.
type RubricScore struct {
	Points   float64 `json:"points"`
	Comments string  `json:"comments"`
}

// ClassifyStatus derives the submission status from Canvas submission fields.
func ClassifyStatus(workflowState string, submittedAt, dueAt *time.Time, attempt int) SubmissionStatus {
	if workflowState == "unsubmitted" || submittedAt == nil {
		return StatusMissing
	}
	if attempt > 1 {
		return StatusResubmitted
	}
	if dueAt != nil && submittedAt.After(*dueAt) {
		return StatusLate
	}
	return StatusOnTime
}
