// Package session holds the in-memory review state for one grading session:
// the loaded assignment, its submissions, the per-submission grade edits and
// the current selection. All mutation goes through ReviewSession methods;
// nothing else may touch the state.
package session

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/grading"
)

// ErrNothingLoaded indicates an operation that needs a loaded assignment and
// submissions was called on an empty session.
var ErrNothingLoaded = errors.New("no assignment or submissions loaded")

// ErrNoGrades indicates no grade has been recorded yet.
var ErrNoGrades = errors.New("no grades recorded")

// ErrNoSelection indicates a grade edit was attempted with no submission
// selected.
var ErrNoSelection = errors.New("no submission selected")

// Stats summarizes the recorded grade totals. Submissions without a grade
// entry are excluded, not counted as zero.
type Stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
}

// ReviewSession owns the mutable state of one instructor's review pass.
type ReviewSession struct {
	mu           sync.Mutex
	assignment   *canvas.Assignment
	submissions  []canvas.Submission
	grades       map[string]grading.Grade
	currentIndex int
}

// New returns an empty session with nothing selected.
func New() *ReviewSession {
	return &ReviewSession{
		grades:       map[string]grading.Grade{},
		currentIndex: -1,
	}
}

// LoadAssignment replaces the current assignment wholesale.
func (s *ReviewSession) LoadAssignment(assignment canvas.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignment = &assignment
}

// LoadSubmissions replaces the submission list wholesale and clears the
// selection.
func (s *ReviewSession) LoadSubmissions(submissions []canvas.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = submissions
	s.currentIndex = -1
}

// LoadResult populates the session from a completed grading job.
func (s *ReviewSession) LoadResult(result grading.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignment := result.Assignment
	s.assignment = &assignment
	s.submissions = result.Submissions
	s.currentIndex = -1
	s.grades = map[string]grading.Grade{}
	for id, grade := range result.Grades {
		s.grades[id] = cloneGrade(grade)
	}
	if len(s.submissions) > 0 {
		s.currentIndex = 0
	}
}

// Assignment returns the loaded assignment, if any.
func (s *ReviewSession) Assignment() (canvas.Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assignment == nil {
		return canvas.Assignment{}, false
	}
	return *s.assignment, true
}

// Submissions returns a copy of the submission list.
func (s *ReviewSession) Submissions() []canvas.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]canvas.Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// CurrentIndex returns the selection index, -1 when nothing is selected.
func (s *ReviewSession) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// SelectSubmission moves the selection to index and returns the selected
// submission. An out-of-range index is a no-op that leaves the selection
// unchanged.
func (s *ReviewSession) SelectSubmission(index int) (canvas.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.submissions) {
		return s.currentLocked()
	}
	s.currentIndex = index
	return s.submissions[index], true
}

// Next advances the selection by one; it does not wrap around.
func (s *ReviewSession) Next() (canvas.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentIndex+1 < len(s.submissions) {
		s.currentIndex++
	}
	return s.currentLocked()
}

// Previous moves the selection back by one; it does not wrap around.
func (s *ReviewSession) Previous() (canvas.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentIndex > 0 {
		s.currentIndex--
	}
	return s.currentLocked()
}

// CurrentSubmission returns the selected submission, if any.
func (s *ReviewSession) CurrentSubmission() (canvas.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *ReviewSession) currentLocked() (canvas.Submission, bool) {
	if s.currentIndex < 0 || s.currentIndex >= len(s.submissions) {
		return canvas.Submission{}, false
	}
	return s.submissions[s.currentIndex], true
}

// coerceScore parses a raw score input. Anything unparseable becomes 0 so a
// grader can clear a field mid-edit without tripping validation.
func coerceScore(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return value
}

// UpdateCriterionScore records a score for a criterion of the selected
// submission, creating the grade entry on demand, and recomputes the total
// as a fresh sum over all criterion scores.
func (s *ReviewSession) UpdateCriterionScore(criterionID, raw string) (grading.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	submission, ok := s.currentLocked()
	if !ok {
		return grading.Grade{}, ErrNoSelection
	}

	grade := s.gradeLocked(submission.ID)
	entry := grade.Criteria[criterionID]
	entry.Score = coerceScore(raw)
	grade.Criteria[criterionID] = entry
	grade.Total = recomputeTotal(grade)
	s.grades[submission.ID] = grade
	return cloneGrade(grade), nil
}

// UpdateCriterionFeedback records feedback for a criterion of the selected
// submission, creating entries on demand.
func (s *ReviewSession) UpdateCriterionFeedback(criterionID, feedback string) (grading.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	submission, ok := s.currentLocked()
	if !ok {
		return grading.Grade{}, ErrNoSelection
	}

	grade := s.gradeLocked(submission.ID)
	entry := grade.Criteria[criterionID]
	entry.Feedback = feedback
	grade.Criteria[criterionID] = entry
	s.grades[submission.ID] = grade
	return cloneGrade(grade), nil
}

// UpdateGeneralFeedback records overall feedback for the selected submission.
func (s *ReviewSession) UpdateGeneralFeedback(feedback string) (grading.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	submission, ok := s.currentLocked()
	if !ok {
		return grading.Grade{}, ErrNoSelection
	}

	grade := s.gradeLocked(submission.ID)
	grade.GeneralFeedback = feedback
	s.grades[submission.ID] = grade
	return cloneGrade(grade), nil
}

// gradeLocked returns the grade entry for a submission, creating it lazily
// on first edit. Absence of an entry means "ungraded", not "graded zero".
func (s *ReviewSession) gradeLocked(submissionID string) grading.Grade {
	grade, ok := s.grades[submissionID]
	if !ok {
		grade = grading.Grade{Criteria: map[string]grading.CriterionGrade{}}
	}
	if grade.Criteria == nil {
		grade.Criteria = map[string]grading.CriterionGrade{}
	}
	return grade
}

func recomputeTotal(grade grading.Grade) float64 {
	total := 0.0
	for _, entry := range grade.Criteria {
		total += entry.Score
	}
	return total
}

// GradeFor returns the recorded grade for a submission, if any.
func (s *ReviewSession) GradeFor(submissionID string) (grading.Grade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grade, ok := s.grades[submissionID]
	if !ok {
		return grading.Grade{}, false
	}
	return cloneGrade(grade), true
}

// Grades returns a copy of all recorded grades keyed by submission id.
func (s *ReviewSession) Grades() map[string]grading.Grade {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]grading.Grade, len(s.grades))
	for id, grade := range s.grades {
		out[id] = cloneGrade(grade)
	}
	return out
}

// SummaryStats aggregates the recorded grade totals. The average is rounded
// to one decimal place.
func (s *ReviewSession) SummaryStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.grades) == 0 {
		return Stats{}
	}

	stats := Stats{Count: len(s.grades), Highest: math.Inf(-1), Lowest: math.Inf(1)}
	sum := 0.0
	for _, grade := range s.grades {
		sum += grade.Total
		if grade.Total > stats.Highest {
			stats.Highest = grade.Total
		}
		if grade.Total < stats.Lowest {
			stats.Lowest = grade.Total
		}
	}
	stats.Average = math.Round(sum/float64(stats.Count)*10) / 10
	return stats
}

// Reset clears assignment, submissions, grades and selection in one step.
func (s *ReviewSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignment = nil
	s.submissions = nil
	s.grades = map[string]grading.Grade{}
	s.currentIndex = -1
}

func cloneGrade(grade grading.Grade) grading.Grade {
	out := grade
	out.Criteria = make(map[string]grading.CriterionGrade, len(grade.Criteria))
	for id, entry := range grade.Criteria {
		out.Criteria[id] = entry
	}
	return out
}
