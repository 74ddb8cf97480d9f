package session

import (
	"regexp"
	"strconv"
	"strings"
)

var filenamePattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// ExportFilename derives the download file name from the assignment name,
// replacing anything non-alphanumeric with underscores. Without a loaded
// assignment it falls back to "export".
func (s *ReviewSession) ExportFilename() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assignment == nil || strings.TrimSpace(s.assignment.Name) == "" {
		return "export"
	}
	name := filenamePattern.ReplaceAllString(s.assignment.Name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "export"
	}
	return name
}

// quoteField wraps a field in quotes, doubling embedded quote characters.
// Feedback columns are always quoted regardless of content; numeric and
// status columns are never quoted.
func quoteField(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func formatScore(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// ExportRows renders the session as CSV lines: one header row, then one row
// per submission in list order. Missing grade data exports as 0 / empty.
// Every row carries the full column set of the header, so an ungraded
// submission still ends with a trailing quoted-empty feedback field.
// Feedback columns are always quoted; numeric and status columns never are.
func (s *ReviewSession) ExportRows() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assignment == nil || len(s.submissions) == 0 {
		return nil, ErrNothingLoaded
	}

	header := []string{"Student ID", "Status", "Total Score"}
	for _, criterion := range s.assignment.Rubric {
		header = append(header, criterion.Description+" (Score)", criterion.Description+" (Feedback)")
	}
	header = append(header, "General Feedback")

	rows := []string{strings.Join(header, ",")}
	for _, submission := range s.submissions {
		grade := s.grades[submission.ID]

		fields := []string{
			submission.AnonymousID,
			string(submission.Status),
			formatScore(grade.Total),
		}
		for _, criterion := range s.assignment.Rubric {
			entry := grade.Criteria[criterion.ID]
			fields = append(fields, formatScore(entry.Score), quoteField(entry.Feedback))
		}
		fields = append(fields, quoteField(grade.GeneralFeedback))

		rows = append(rows, strings.Join(fields, ","))
	}

	return rows, nil
}

// ExportCSV renders the full CSV document.
func (s *ReviewSession) ExportCSV() (string, error) {
	rows, err := s.ExportRows()
	if err != nil {
		return "", err
	}
	return strings.Join(rows, "\n") + "\n", nil
}
