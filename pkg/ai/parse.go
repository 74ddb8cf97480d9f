package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// extractJSON pulls a JSON document out of a model response, tolerating
// markdown code fences and surrounding prose.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) > 1 {
			if strings.TrimSpace(lines[len(lines)-1]) == "```" {
				lines = lines[1 : len(lines)-1]
			} else {
				lines = lines[1:]
			}
			text = strings.Join(lines, "\n")
		}
	}

	if json.Valid([]byte(text)) {
		return text, nil
	}

	if match := jsonObjectPattern.FindString(text); match != "" && json.Valid([]byte(match)) {
		return match, nil
	}

	return "", fmt.Errorf("could not parse JSON response from model")
}

func parseGradeResponse(content string) (GradeResult, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return GradeResult{}, err
	}

	var result GradeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return GradeResult{}, fmt.Errorf("parse grade json: %w", err)
	}
	return result, nil
}

func parseReviewResponse(content string) (ReviewResult, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return ReviewResult{}, err
	}

	var result ReviewResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return ReviewResult{}, fmt.Errorf("parse review json: %w", err)
	}
	return result, nil
}

// validateGradeResult clamps every score into [0, criterion max], zero-fills
// criteria the model skipped and recomputes the total from scratch.
func validateGradeResult(result GradeResult, rubric []Criterion) GradeResult {
	validated := GradeResult{
		Criteria:        make(map[string]CriterionScore, len(rubric)),
		GeneralFeedback: result.GeneralFeedback,
	}

	for _, criterion := range rubric {
		entry, ok := result.Criteria[criterion.ID]
		if !ok {
			validated.Criteria[criterion.ID] = CriterionScore{Feedback: "No assessment provided"}
			continue
		}

		score := entry.Score
		if score < 0 {
			score = 0
		}
		if score > criterion.Points {
			score = criterion.Points
		}

		validated.Criteria[criterion.ID] = CriterionScore{Score: score, Feedback: entry.Feedback}
		validated.Total += score
	}

	return validated
}

// emptyGrade builds the zero-scored grade used when a submission cannot be
// graded at all.
func emptyGrade(rubric []Criterion, message string) GradeResult {
	result := GradeResult{
		Criteria:        make(map[string]CriterionScore, len(rubric)),
		GeneralFeedback: message,
		Failed:          true,
	}
	for _, criterion := range rubric {
		result.Criteria[criterion.ID] = CriterionScore{Feedback: "Unable to grade"}
	}
	return result
}
