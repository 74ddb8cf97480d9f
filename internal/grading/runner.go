package grading

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/pkg/ai"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rubriq",
		Subsystem: "grading",
		Name:      "jobs_started_total",
		Help:      "Number of grading jobs started",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rubriq",
		Subsystem: "grading",
		Name:      "jobs_finished_total",
		Help:      "Number of grading jobs reaching a terminal state",
	}, []string{"status"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rubriq",
		Subsystem: "grading",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of grading jobs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

// SubmissionSource is the slice of the Canvas client the runner consumes;
// narrowed so tests can substitute a fake course.
type SubmissionSource interface {
	GetAssignment(ctx context.Context, assignmentID string) (canvas.Assignment, error)
	ListSubmissions(ctx context.Context, assignmentID string, filter canvas.Filter) ([]canvas.Submission, error)
	DownloadAttachment(ctx context.Context, attachment canvas.Attachment) ([]byte, error)
}

// Runner executes grading jobs in the background: it fetches the assignment,
// rubric and filtered submissions, grades each submission with the AI grader,
// fairness-checks the draft and records progress after every submission.
type Runner struct {
	store    Store
	grader   ai.Grader
	reviewer ai.Reviewer
	deadline time.Duration
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewRunner constructs a runner. reviewer may be nil to skip fairness review.
func NewRunner(store Store, grader ai.Grader, reviewer ai.Reviewer, deadline time.Duration, logger zerolog.Logger) *Runner {
	if deadline <= 0 {
		deadline = defaultPollTimeout
	}
	return &Runner{
		store:    store,
		grader:   grader,
		reviewer: reviewer,
		deadline: deadline,
		tracer:   otel.Tracer("github.com/rubriq/rubriq-api/internal/grading"),
		logger:   logger.With().Str("component", "grading_runner").Logger(),
	}
}

// Start registers a new running job and launches its background execution.
// Failure to persist the initial record fails the start outright; nothing is
// ever polled for a job that did not start.
func (r *Runner) Start(ctx context.Context, source SubmissionSource, assignmentID string, filter canvas.Filter) (string, error) {
	job := Job{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.Save(ctx, job); err != nil {
		return "", fmt.Errorf("start grading job: %w", err)
	}

	jobsStarted.Inc()
	r.logger.Info().Str("job_id", job.ID).Str("assignment_id", assignmentID).Msg("grading job started")

	// The job outlives the HTTP request that started it.
	jobCtx, cancel := context.WithTimeout(context.Background(), r.deadline)
	go func() {
		defer cancel()
		r.run(jobCtx, job, source, assignmentID, filter)
	}()

	return job.ID, nil
}

func (r *Runner) run(ctx context.Context, job Job, source SubmissionSource, assignmentID string, filter canvas.Filter) {
	ctx, span := r.tracer.Start(ctx, "grading.run", trace.WithAttributes(
		attribute.String("grading.job_id", job.ID),
		attribute.String("grading.assignment_id", assignmentID),
	))
	defer span.End()

	start := time.Now()
	result, err := r.grade(ctx, &job, source, assignmentID, filter)
	jobDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job_failed")
		jobsFinished.WithLabelValues(string(StatusFailed)).Inc()

		job.Status = StatusFailed
		job.Error = err.Error()
		job.Result = nil
		if saveErr := r.store.Save(ctx, job); saveErr != nil {
			r.logger.Error().Err(saveErr).Str("job_id", job.ID).Msg("failed to record job failure")
		}
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("grading job failed")
		return
	}

	jobsFinished.WithLabelValues(string(StatusCompleted)).Inc()
	job.Status = StatusCompleted
	job.Result = result
	if saveErr := r.store.Save(ctx, job); saveErr != nil {
		r.logger.Error().Err(saveErr).Str("job_id", job.ID).Msg("failed to record job completion")
		return
	}
	r.logger.Info().Str("job_id", job.ID).Int("submissions", len(result.Submissions)).Msg("grading job completed")
}

func (r *Runner) grade(ctx context.Context, job *Job, source SubmissionSource, assignmentID string, filter canvas.Filter) (*Result, error) {
	assignment, err := source.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("fetch assignment: %w", err)
	}

	submissions, err := source.ListSubmissions(ctx, assignmentID, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", err)
	}

	rubric := rubricForAI(assignment.Rubric)

	job.Progress = Progress{Total: len(submissions)}
	if err := r.store.Save(ctx, *job); err != nil {
		return nil, err
	}

	grades := make(map[string]Grade, len(submissions))
	for i, submission := range submissions {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		job.Progress.Current = i + 1
		job.Progress.CurrentStudent = submission.AnonymousID
		if err := r.store.Save(ctx, *job); err != nil {
			return nil, err
		}

		input := ai.GradingInput{
			AssignmentName: assignment.Name,
			Rubric:         rubric,
			SubmissionText: r.submissionText(ctx, source, submission),
		}

		draft, err := r.grader.Grade(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// One bad submission must not sink the batch: record a zero
			// grade for it and keep going.
			r.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("grading submission failed")
			grades[submission.ID] = emptyGrade(assignment.Rubric, fmt.Sprintf("Grading failed: %v", err))
			continue
		}

		grade := Grade{
			Criteria:        make(map[string]CriterionGrade, len(draft.Criteria)),
			Total:           draft.Total,
			GeneralFeedback: draft.GeneralFeedback,
		}
		for id, entry := range draft.Criteria {
			grade.Criteria[id] = CriterionGrade{Score: entry.Score, Feedback: entry.Feedback}
		}

		if r.reviewer != nil {
			review, err := r.reviewer.Review(ctx, input, draft)
			if err != nil {
				r.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("fairness review errored")
			} else {
				grade.FairnessFlag = review.Flagged
				grade.FairnessMessage = review.Message
			}
		}

		grades[submission.ID] = grade
	}

	return &Result{Assignment: assignment, Submissions: submissions, Grades: grades}, nil
}

// emptyGrade is the placeholder recorded when a submission could not be
// graded: zero on every criterion, the failure in the general feedback.
func emptyGrade(criteria []canvas.Criterion, message string) Grade {
	grade := Grade{
		Criteria:        make(map[string]CriterionGrade, len(criteria)),
		GeneralFeedback: message,
		Failed:          true,
	}
	for _, criterion := range criteria {
		grade.Criteria[criterion.ID] = CriterionGrade{Feedback: "Unable to grade"}
	}
	return grade
}

// submissionText concatenates the readable text of every attachment.
// Unreadable files become placeholders so the model knows what was skipped.
func (r *Runner) submissionText(ctx context.Context, source SubmissionSource, submission canvas.Submission) string {
	text := ""
	for _, attachment := range submission.Attachments {
		body, err := source.DownloadAttachment(ctx, attachment)
		if err != nil {
			r.logger.Warn().Err(err).Str("filename", attachment.Filename).Msg("attachment download failed")
			text += fmt.Sprintf("[Error reading %s]\n\n", attachment.Filename)
			continue
		}

		if !utf8.Valid(body) {
			text += fmt.Sprintf("[Unable to read file: %s]\n\n", attachment.Filename)
			continue
		}

		text += fmt.Sprintf("--- File: %s ---\n%s\n\n", attachment.Filename, string(body))
	}
	return text
}

func rubricForAI(criteria []canvas.Criterion) []ai.Criterion {
	rubric := make([]ai.Criterion, 0, len(criteria))
	for _, criterion := range criteria {
		mapped := ai.Criterion{
			ID:              criterion.ID,
			Description:     criterion.Description,
			LongDescription: criterion.LongDescription,
			Points:          criterion.Points,
		}
		for _, rating := range criterion.Ratings {
			mapped.Ratings = append(mapped.Ratings, ai.Rating{Description: rating.Description, Points: rating.Points})
		}
		rubric = append(rubric, mapped)
	}
	return rubric
}
