package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/rs/zerolog"
)

// maxReviewChars bounds how much submission text the reviewer re-reads.
const maxReviewChars = 10000

// AnthropicConfig defines configuration options for the fairness reviewer.
type AnthropicConfig struct {
	APIKey string
	Model  string
	Logger zerolog.Logger
}

// AnthropicReviewer implements Reviewer with a second, independent model so
// the fairness check does not share the grader's blind spots.
type AnthropicReviewer struct {
	client *anthropic.Client
	model  string
	logger zerolog.Logger
}

// NewAnthropicReviewer builds a reviewer using the provided configuration.
func NewAnthropicReviewer(cfg AnthropicConfig) (*AnthropicReviewer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	return &AnthropicReviewer{
		client: &client,
		model:  cfg.Model,
		logger: cfg.Logger.With().Str("component", "anthropic_reviewer").Logger(),
	}, nil
}

// Review asks the model to double-check a drafted grade. A reviewer failure
// is downgraded to an unflagged "review skipped" result; it never fails the
// grading job.
func (r *AnthropicReviewer) Review(ctx context.Context, input GradingInput, grade GradeResult) (ReviewResult, error) {
	if grade.Failed {
		return ReviewResult{Message: "Skipped - grading error"}, nil
	}

	if len(input.SubmissionText) > maxReviewChars {
		input.SubmissionText = input.SubmissionText[:maxReviewChars] + "\n[Truncated...]"
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(r.model),
		MaxTokens:   2048,
		Temperature: param.NewOpt(0.2),
		System: []anthropic.TextBlockParam{
			{Text: fairnessSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildReviewPrompt(input, grade))),
		},
	}

	message, err := r.callWithRetry(ctx, params)
	if err != nil {
		r.logger.Warn().Err(err).Msg("fairness review failed")
		return ReviewResult{Message: fmt.Sprintf("Review skipped: %v", err)}, nil
	}

	var content string
	for _, block := range message.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}
	if content == "" {
		return ReviewResult{Message: "Review skipped: no text content in response"}, nil
	}

	result, err := parseReviewResponse(content)
	if err != nil {
		r.logger.Warn().Err(err).Msg("fairness review response unparseable")
		return ReviewResult{Message: fmt.Sprintf("Review skipped: %v", err)}, nil
	}

	return result, nil
}

func (r *AnthropicReviewer) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt)) * time.Second):
			}
		}

		message, err := r.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("anthropic request failed after retries: %w", lastErr)
}

// ApplyAdjustments folds reviewer-suggested score corrections back into a
// grade and recomputes the total from scratch.
func ApplyAdjustments(grade GradeResult, adjustments map[string]Adjustment) GradeResult {
	updated := GradeResult{
		Criteria:        make(map[string]CriterionScore, len(grade.Criteria)),
		GeneralFeedback: grade.GeneralFeedback,
	}

	for id, entry := range grade.Criteria {
		if adjustment, ok := adjustments[id]; ok {
			entry.Score = adjustment.SuggestedScore
			entry.Feedback += fmt.Sprintf("\n[Adjusted: %s]", adjustment.Reason)
		}
		updated.Criteria[id] = entry
		updated.Total += entry.Score
	}

	return updated
}
