package service

import (
	"context"
	"errors"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/models"
)

// ErrCanvasNotConnected indicates the user has not stored Canvas credentials.
var ErrCanvasNotConnected = errors.New("canvas account is not connected")

// ErrNoCourseSelected indicates the user has not picked an active course.
var ErrNoCourseSelected = errors.New("no course selected")

// CanvasAPI is the slice of the Canvas client the services consume; narrowed
// so tests can substitute a fake instance.
type CanvasAPI interface {
	ValidateCredentials(ctx context.Context) error
	ListCourses(ctx context.Context) ([]canvas.Course, error)
	CourseName(ctx context.Context) (string, error)
	ListAssignmentsWithRubrics(ctx context.Context) ([]canvas.Assignment, error)
	GetAssignment(ctx context.Context, assignmentID string) (canvas.Assignment, error)
	ListSubmissions(ctx context.Context, assignmentID string, filter canvas.Filter) ([]canvas.Submission, error)
	SubmissionStats(ctx context.Context, assignmentID string) (canvas.SubmissionStats, error)
	DownloadAttachment(ctx context.Context, attachment canvas.Attachment) ([]byte, error)
	PostGrade(ctx context.Context, assignmentID, submissionID string, score float64, comment string, rubricScores map[string]canvas.RubricScore) error
}

// CanvasFactory builds a Canvas client bound to one instructor's credentials.
type CanvasFactory func(baseURL, token, courseID string) CanvasAPI

// canvasForUser builds a course-bound client for the user, or reports what is
// missing.
func canvasForUser(factory CanvasFactory, user models.User) (CanvasAPI, error) {
	if !user.HasCanvasCredentials() {
		return nil, ErrCanvasNotConnected
	}
	if user.CourseID == "" {
		return nil, ErrNoCourseSelected
	}
	return factory(user.CanvasURL, user.CanvasToken, user.CourseID), nil
}
