package ai

import "context"

// Rating is one level of a rubric criterion.
type Rating struct {
	Description string
	Points      float64
}

// Criterion is one gradable dimension of the rubric passed to the model.
type Criterion struct {
	ID              string
	Description     string
	LongDescription string
	Points          float64
	Ratings         []Rating
}

// GradingInput contains the artefacts needed to grade one submission.
type GradingInput struct {
	AssignmentName string
	Rubric         []Criterion
	SubmissionText string
}

// CriterionScore is the model's assessment of a single criterion.
type CriterionScore struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// GradeResult is the structured grade returned by the grader. Failed marks
// results synthesized because the submission could not be graded at all.
type GradeResult struct {
	Criteria        map[string]CriterionScore `json:"criteria"`
	Total           float64                   `json:"total"`
	GeneralFeedback string                    `json:"general_feedback"`
	Failed          bool                      `json:"-"`
}

// Adjustment is a reviewer-suggested score correction for one criterion.
type Adjustment struct {
	CurrentScore   float64 `json:"current_score"`
	SuggestedScore float64 `json:"suggested_score"`
	Reason         string  `json:"reason"`
}

// ReviewResult is the fairness reviewer's verdict on a grade.
type ReviewResult struct {
	Flagged              bool                  `json:"flagged"`
	Confidence           float64               `json:"confidence"`
	Issues               []string              `json:"issues"`
	SuggestedAdjustments map[string]Adjustment `json:"suggested_adjustments"`
	Message              string                `json:"message"`
}

// Grader drafts a rubric-based grade for a submission.
type Grader interface {
	Grade(ctx context.Context, input GradingInput) (GradeResult, error)
}

// Reviewer checks a drafted grade for fairness with a second model.
type Reviewer interface {
	Review(ctx context.Context, input GradingInput, grade GradeResult) (ReviewResult, error)
}
