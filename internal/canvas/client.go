package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrUnauthenticated indicates no Canvas token is available. The client
// refuses to issue any network call in that state.
var ErrUnauthenticated = errors.New("canvas token is not configured")

// ErrNoCourse indicates an operation requiring a course was called on a
// client constructed without one.
var ErrNoCourse = errors.New("no course selected")

// APIError is the normalized error for any non-2xx Canvas response. The
// message is taken from the Canvas error body when parseable.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to the Canvas LMS REST API on behalf of one instructor.
type Client struct {
	http     *resty.Client
	baseURL  string
	token    string
	courseID string
	logger   zerolog.Logger
}

// New builds a Canvas client for the given instance URL and API token.
// courseID may be empty for course-independent calls such as ListCourses.
func New(baseURL, token, courseID string, logger zerolog.Logger) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		http:     http,
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		courseID: courseID,
		logger:   logger.With().Str("component", "canvas_client").Logger(),
	}
}

// CourseID returns the course the client is bound to.
func (c *Client) CourseID() string {
	return c.courseID
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if c.token == "" {
		return nil, ErrUnauthenticated
	}
	return c.http.R().SetContext(ctx).SetAuthToken(c.token), nil
}

// normalizeError maps a non-2xx response to an APIError, preferring the
// Canvas error body message over a synthesized one.
func normalizeError(resp *resty.Response) error {
	if resp == nil {
		return &APIError{StatusCode: 0, Message: "request failed"}
	}

	message := fmt.Sprintf("request failed with status %d", resp.StatusCode())

	var body struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		if len(body.Errors) > 0 && body.Errors[0].Message != "" {
			message = body.Errors[0].Message
		} else if body.Error != "" {
			message = body.Error
		}
	}

	return &APIError{StatusCode: resp.StatusCode(), Message: message}
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	if query != nil {
		req.SetQueryParams(query)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Get(path)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("canvas request failed: %v", err)}
	}
	if resp.IsError() {
		return normalizeError(resp)
	}
	return nil
}

// put issues a write. Writes are never retried by this client; retry policy
// belongs to the caller.
func (c *Client) put(ctx context.Context, path string, body interface{}) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.SetHeader("Content-Type", "application/json").SetBody(body).Put(path)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("canvas request failed: %v", err)}
	}
	if resp.IsError() {
		return normalizeError(resp)
	}
	return nil
}

// ValidateCredentials checks the token by fetching the current user.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	return c.get(ctx, "/api/v1/users/self", nil, nil)
}

type wireCourse struct {
	ID         json.Number `json:"id"`
	Name       string      `json:"name"`
	CourseCode string      `json:"course_code"`
}

// ListCourses returns the courses the token owner teaches.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	var wire []wireCourse
	if err := c.get(ctx, "/api/v1/courses", map[string]string{"enrollment_type": "teacher"}, &wire); err != nil {
		return nil, err
	}

	courses := make([]Course, 0, len(wire))
	for _, w := range wire {
		courses = append(courses, Course{ID: w.ID.String(), Name: w.Name, Code: w.CourseCode})
	}
	return courses, nil
}

// CourseName fetches the display name of the bound course.
func (c *Client) CourseName(ctx context.Context) (string, error) {
	if c.courseID == "" {
		return "", ErrNoCourse
	}

	var wire wireCourse
	if err := c.get(ctx, fmt.Sprintf("/api/v1/courses/%s", c.courseID), nil, &wire); err != nil {
		return "", err
	}
	return wire.Name, nil
}

type wireAssignment struct {
	ID              json.Number     `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	DueAt           *time.Time      `json:"due_at"`
	PointsPossible  float64         `json:"points_possible"`
	SubmissionTypes []string        `json:"submission_types"`
	Rubric          []wireCriterion `json:"rubric"`
}

type wireCriterion struct {
	ID              string  `json:"id"`
	Description     string  `json:"description"`
	LongDescription string  `json:"long_description"`
	Points          float64 `json:"points"`
	Ratings         []struct {
		Description string  `json:"description"`
		Points      float64 `json:"points"`
	} `json:"ratings"`
}

func (w wireAssignment) toAssignment() Assignment {
	assignment := Assignment{
		ID:              w.ID.String(),
		Name:            w.Name,
		Description:     w.Description,
		DueAt:           w.DueAt,
		PointsPossible:  w.PointsPossible,
		SubmissionTypes: w.SubmissionTypes,
	}
	for _, criterion := range w.Rubric {
		mapped := Criterion{
			ID:              criterion.ID,
			Description:     criterion.Description,
			LongDescription: criterion.LongDescription,
			Points:          criterion.Points,
		}
		for _, rating := range criterion.Ratings {
			mapped.Ratings = append(mapped.Ratings, Rating{Description: rating.Description, Points: rating.Points})
		}
		assignment.Rubric = append(assignment.Rubric, mapped)
	}
	return assignment
}

// ListAssignmentsWithRubrics returns the course assignments that carry a
// rubric, most recent due date first.
func (c *Client) ListAssignmentsWithRubrics(ctx context.Context) ([]Assignment, error) {
	if c.courseID == "" {
		return nil, ErrNoCourse
	}

	var wire []wireAssignment
	path := fmt.Sprintf("/api/v1/courses/%s/assignments", c.courseID)
	if err := c.get(ctx, path, map[string]string{"include[]": "rubric"}, &wire); err != nil {
		return nil, err
	}

	assignments := make([]Assignment, 0, len(wire))
	for _, w := range wire {
		if len(w.Rubric) == 0 {
			continue
		}
		assignments = append(assignments, w.toAssignment())
	}

	sort.SliceStable(assignments, func(i, j int) bool {
		left, right := assignments[i].DueAt, assignments[j].DueAt
		switch {
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return left.After(*right)
		}
	})

	return assignments, nil
}

// GetAssignment fetches one assignment with its rubric.
func (c *Client) GetAssignment(ctx context.Context, assignmentID string) (Assignment, error) {
	if c.courseID == "" {
		return Assignment{}, ErrNoCourse
	}

	var wire wireAssignment
	path := fmt.Sprintf("/api/v1/courses/%s/assignments/%s", c.courseID, assignmentID)
	if err := c.get(ctx, path, map[string]string{"include[]": "rubric"}, &wire); err != nil {
		return Assignment{}, err
	}
	return wire.toAssignment(), nil
}

// GetRubric fetches the rubric criteria for an assignment. An assignment
// without a rubric yields an empty slice, not an error.
func (c *Client) GetRubric(ctx context.Context, assignmentID string) ([]Criterion, error) {
	assignment, err := c.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return assignment.Rubric, nil
}

type wireSubmission struct {
	ID            json.Number `json:"id"`
	UserID        json.Number `json:"user_id"`
	WorkflowState string      `json:"workflow_state"`
	SubmittedAt   *time.Time  `json:"submitted_at"`
	Score         *float64    `json:"score"`
	Grade         string      `json:"grade"`
	Attempt       int         `json:"attempt"`
	Attachments   []struct {
		ID          json.Number `json:"id"`
		Filename    string      `json:"filename"`
		URL         string      `json:"url"`
		ContentType string      `json:"content-type"`
	} `json:"attachments"`
}

// AnonymizeUserID derives the bias-reducing student identifier shown to
// graders: "user" plus the last four digits of the Canvas user id.
func AnonymizeUserID(userID string) string {
	tail := userID
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	for len(tail) < 4 {
		tail = "0" + tail
	}
	return "user" + tail
}

// ListSubmissions fetches submissions for an assignment, classifies each one
// and drops those the filter excludes.
func (c *Client) ListSubmissions(ctx context.Context, assignmentID string, filter Filter) ([]Submission, error) {
	if c.courseID == "" {
		return nil, ErrNoCourse
	}

	assignment, err := c.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	var wire []wireSubmission
	path := fmt.Sprintf("/api/v1/courses/%s/assignments/%s/submissions", c.courseID, assignmentID)
	if err := c.get(ctx, path, map[string]string{"include[]": "user"}, &wire); err != nil {
		return nil, err
	}

	submissions := make([]Submission, 0, len(wire))
	for _, w := range wire {
		status := ClassifyStatus(w.WorkflowState, w.SubmittedAt, assignment.DueAt, w.Attempt)
		if !filter.Allows(status) {
			continue
		}

		submission := Submission{
			ID:          w.ID.String(),
			UserID:      w.UserID.String(),
			AnonymousID: AnonymizeUserID(w.UserID.String()),
			Status:      status,
			SubmittedAt: w.SubmittedAt,
			Score:       w.Score,
			Grade:       w.Grade,
			Attempt:     w.Attempt,
		}
		for _, attachment := range w.Attachments {
			submission.Attachments = append(submission.Attachments, Attachment{
				ID:          attachment.ID.String(),
				Filename:    attachment.Filename,
				URL:         attachment.URL,
				ContentType: attachment.ContentType,
			})
		}
		submissions = append(submissions, submission)
	}

	return submissions, nil
}

// SubmissionStats aggregates counts across every submission of an assignment,
// ignoring any filter.
func (c *Client) SubmissionStats(ctx context.Context, assignmentID string) (SubmissionStats, error) {
	submissions, err := c.ListSubmissions(ctx, assignmentID, Filter{OnTime: true, Late: true, Resubmitted: true, Missing: true})
	if err != nil {
		return SubmissionStats{}, err
	}

	stats := SubmissionStats{Total: len(submissions)}
	for _, submission := range submissions {
		if submission.Score != nil {
			stats.Graded++
		} else {
			stats.Pending++
		}
		switch submission.Status {
		case StatusLate:
			stats.Late++
		case StatusMissing:
			stats.Missing++
		}
	}
	return stats, nil
}

// DownloadAttachment fetches the raw bytes of a submission attachment.
func (c *Client) DownloadAttachment(ctx context.Context, attachment Attachment) ([]byte, error) {
	if c.token == "" {
		return nil, ErrUnauthenticated
	}

	resp, err := resty.New().R().
		SetContext(ctx).
		SetAuthToken(c.token).
		Get(attachment.URL)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("download %s failed: %v", attachment.Filename, err)}
	}
	if resp.IsError() {
		return nil, normalizeError(resp)
	}
	return resp.Body(), nil
}

const aiDisclosure = "This grade was generated with AI assistance and reviewed by the instructor."

// PostGrade writes a score, rubric assessment and comment back to Canvas.
func (c *Client) PostGrade(ctx context.Context, assignmentID, submissionID string, score float64, comment string, rubricScores map[string]RubricScore) error {
	if c.courseID == "" {
		return ErrNoCourse
	}

	payload := map[string]interface{}{
		"submission": map[string]interface{}{
			"posted_grade": fmt.Sprintf("%g", score),
		},
	}
	if len(rubricScores) > 0 {
		assessment := make(map[string]interface{}, len(rubricScores))
		for criterionID, entry := range rubricScores {
			assessment[criterionID] = map[string]interface{}{
				"points":   entry.Points,
				"comments": entry.Comments,
			}
		}
		payload["rubric_assessment"] = assessment
	}

	path := fmt.Sprintf("/api/v1/courses/%s/assignments/%s/submissions/%s", c.courseID, assignmentID, submissionID)
	if err := c.put(ctx, path, payload); err != nil {
		return err
	}

	if comment != "" {
		full := comment + "\n\n---\n" + aiDisclosure
		commentPayload := map[string]interface{}{
			"comment": map[string]interface{}{"text_comment": full},
		}
		if err := c.put(ctx, path, commentPayload); err != nil {
			c.logger.Warn().Err(err).Str("submission_id", submissionID).Msg("failed to add submission comment")
		}
	}

	return nil
}
