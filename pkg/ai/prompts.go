package ai

import (
	"fmt"
	"strings"
)

const gradingSystemPrompt = `You are an expert educational grader assisting a teacher in evaluating student submissions.
Your role is to provide fair, consistent, and constructive grading based on the provided rubric.

GRADING PRINCIPLES:
1. Evidence-Based: Only award points for clearly demonstrated work in the submission
2. Consistency: Apply the same standards to all submissions
3. Constructive: Provide specific, actionable feedback
4. Fair: Grade based on content, not presentation style or personal preferences
5. Binary Approach: For each criterion, award full points or zero - no partial credit unless explicitly allowed

RESPONSE FORMAT:
You must respond with valid JSON only. No markdown, no explanations outside the JSON.
{
  "criteria": {
    "<criterion_id>": {
      "score": <number>,
      "feedback": "<specific feedback explaining the score>"
    }
  },
  "total": <sum of all scores>,
  "general_feedback": "<overall feedback for the student>"
}`

const fairnessSystemPrompt = `You are a fairness reviewer for AI-generated grades.
Your role is to check if the grading is fair and consistent with the rubric.

Review the original submission and the assigned grade. Check for:
1. Grading errors: Points deducted for work that was completed correctly
2. Missed credit: Work that was completed but not given credit
3. Inconsistent application of rubric standards
4. Bias in feedback language

RESPONSE FORMAT:
You must respond with valid JSON only.
{
  "flagged": <true/false>,
  "confidence": <0.0 to 1.0>,
  "issues": ["<issue 1>", "<issue 2>"],
  "suggested_adjustments": {
    "<criterion_id>": {
      "current_score": <number>,
      "suggested_score": <number>,
      "reason": "<explanation>"
    }
  },
  "message": "<summary for the teacher if flagged>"
}`

func formatRubric(rubric []Criterion) string {
	var builder strings.Builder
	for _, criterion := range rubric {
		fmt.Fprintf(&builder, "- %s (%g points)\n", criterion.Description, criterion.Points)
		if criterion.LongDescription != "" {
			fmt.Fprintf(&builder, "  Details: %s\n", criterion.LongDescription)
		}
		for _, rating := range criterion.Ratings {
			fmt.Fprintf(&builder, "  * %s: %g pts\n", rating.Description, rating.Points)
		}
	}
	return strings.TrimRight(builder.String(), "\n")
}

func buildGradingPrompt(input GradingInput) string {
	name := input.AssignmentName
	if name == "" {
		name = "Unknown Assignment"
	}

	var builder strings.Builder
	builder.WriteString("Grade the following student submission based on the rubric.\n\n")
	fmt.Fprintf(&builder, "ASSIGNMENT: %s\n\n", name)
	builder.WriteString("RUBRIC CRITERIA:\n")
	builder.WriteString(formatRubric(input.Rubric))
	builder.WriteString("\n\nSTUDENT SUBMISSION:\n")
	builder.WriteString(input.SubmissionText)
	builder.WriteString("\n\nGrade each criterion and provide specific feedback. Respond with JSON only.")
	return builder.String()
}

func formatGradeForReview(grade GradeResult, rubric []Criterion) string {
	var builder strings.Builder
	for _, criterion := range rubric {
		entry, ok := grade.Criteria[criterion.ID]
		feedback := entry.Feedback
		if !ok || feedback == "" {
			feedback = "No feedback"
		}
		fmt.Fprintf(&builder, "Criterion: %s\n", criterion.Description)
		fmt.Fprintf(&builder, "  Score: %g/%g\n", entry.Score, criterion.Points)
		fmt.Fprintf(&builder, "  Feedback: %s\n\n", feedback)
	}
	fmt.Fprintf(&builder, "Total: %g\n", grade.Total)
	fmt.Fprintf(&builder, "General Feedback: %s", grade.GeneralFeedback)
	return builder.String()
}

func buildReviewPrompt(input GradingInput, grade GradeResult) string {
	var builder strings.Builder
	builder.WriteString("RUBRIC:\n")
	builder.WriteString(formatRubric(input.Rubric))
	builder.WriteString("\n\nSUBMISSION:\n")
	builder.WriteString(input.SubmissionText)
	builder.WriteString("\n\nASSIGNED GRADES:\n")
	builder.WriteString(formatGradeForReview(grade, input.Rubric))
	builder.WriteString("\n\nReview this grading for fairness and respond with JSON only.")
	return builder.String()
}
