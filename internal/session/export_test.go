package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/grading"
)

func TestExportRowsMatchesCSVFormat(t *testing.T) {
	s := New()
	s.LoadResult(grading.Result{
		Assignment: canvas.Assignment{
			ID:     "a1",
			Name:   "Essay 1",
			Rubric: []canvas.Criterion{{ID: "clarity", Description: "Clarity", Points: 10}},
		},
		Submissions: []canvas.Submission{
			{ID: "1", AnonymousID: "A1", Status: canvas.StatusOnTime},
		},
		Grades: map[string]grading.Grade{
			"1": {
				Criteria: map[string]grading.CriterionGrade{
					"clarity": {Score: 8, Feedback: `Good, clear "work"`},
				},
				Total: 8,
			},
		},
	})

	rows, err := s.ExportRows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Student ID,Status,Total Score,Clarity (Score),Clarity (Feedback),General Feedback", rows[0])
	require.Equal(t, `A1,on_time,8,8,"Good, clear ""work""",""`, rows[1])
}

func TestExportSubstitutesMissingGradeData(t *testing.T) {
	s := New()
	s.LoadAssignment(canvas.Assignment{
		ID:     "a1",
		Name:   "Essay 1",
		Rubric: []canvas.Criterion{{ID: "clarity", Description: "Clarity", Points: 10}},
	})
	s.LoadSubmissions([]canvas.Submission{
		{ID: "1", AnonymousID: "A1", Status: canvas.StatusLate},
	})

	rows, err := s.ExportRows()
	require.NoError(t, err)
	require.Equal(t, `A1,late,0,0,"",""`, rows[1])
}

func TestExportRowsInSubmissionOrder(t *testing.T) {
	s := loadedSession(3)
	s.SelectSubmission(2)
	_, err := s.UpdateCriterionScore("clarity", "5")
	require.NoError(t, err)

	rows, err := s.ExportRows()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Contains(t, rows[1], "user0001,")
	require.Contains(t, rows[2], "user0002,")
	require.Contains(t, rows[3], "user0003,")
}

func TestExportValidation(t *testing.T) {
	s := New()
	_, err := s.ExportRows()
	require.ErrorIs(t, err, ErrNothingLoaded)

	s.LoadAssignment(canvas.Assignment{ID: "a1", Name: "Essay 1"})
	_, err = s.ExportRows()
	require.ErrorIs(t, err, ErrNothingLoaded, "an assignment without submissions must not export")
}

func TestExportCSVEndsWithNewline(t *testing.T) {
	s := loadedSession(1)
	body, err := s.ExportCSV()
	require.NoError(t, err)
	require.Equal(t, byte('\n'), body[len(body)-1])
}

func TestExportFilename(t *testing.T) {
	s := New()
	require.Equal(t, "export", s.ExportFilename())

	s.LoadAssignment(canvas.Assignment{Name: "Essay #1: Final Draft"})
	require.Equal(t, "Essay_1_Final_Draft", s.ExportFilename())

	s.LoadAssignment(canvas.Assignment{Name: "???"})
	require.Equal(t, "export", s.ExportFilename())
}
