package grading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/pkg/ai"
)

type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]Job
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: map[string]Job{}}
}

func (m *memoryStore) Save(ctx context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *memoryStore) Get(ctx context.Context, jobID string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

type fakeSource struct {
	assignment  canvas.Assignment
	submissions []canvas.Submission
	listErr     error
}

func (f *fakeSource) GetAssignment(ctx context.Context, assignmentID string) (canvas.Assignment, error) {
	return f.assignment, nil
}

func (f *fakeSource) ListSubmissions(ctx context.Context, assignmentID string, filter canvas.Filter) ([]canvas.Submission, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.submissions, nil
}

func (f *fakeSource) DownloadAttachment(ctx context.Context, attachment canvas.Attachment) ([]byte, error) {
	return []byte("essay text for " + attachment.Filename), nil
}

type fakeGrader struct {
	scores map[string]float64
}

func (f *fakeGrader) Grade(ctx context.Context, input ai.GradingInput) (ai.GradeResult, error) {
	result := ai.GradeResult{Criteria: map[string]ai.CriterionScore{}, GeneralFeedback: "well done"}
	for _, criterion := range input.Rubric {
		score := f.scores[criterion.ID]
		result.Criteria[criterion.ID] = ai.CriterionScore{Score: score, Feedback: "graded"}
		result.Total += score
	}
	return result, nil
}

// flakyGrader errors on its first call and grades normally afterwards.
type flakyGrader struct {
	inner fakeGrader
	mu    sync.Mutex
	calls int
}

func (f *flakyGrader) Grade(ctx context.Context, input ai.GradingInput) (ai.GradeResult, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	if first {
		return ai.GradeResult{}, errors.New("openai: rate limited")
	}
	return f.inner.Grade(ctx, input)
}

type fakeReviewer struct {
	flagged bool
}

func (f *fakeReviewer) Review(ctx context.Context, input ai.GradingInput, grade ai.GradeResult) (ai.ReviewResult, error) {
	return ai.ReviewResult{Flagged: f.flagged, Message: "looks consistent"}, nil
}

func awaitJob(t *testing.T, store Store, jobID string) Job {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("job did not reach a terminal state in time")
		case <-time.After(5 * time.Millisecond):
		}

		job, err := store.Get(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
	}
}

func testAssignment() canvas.Assignment {
	return canvas.Assignment{
		ID:   "a1",
		Name: "Essay 1",
		Rubric: []canvas.Criterion{
			{ID: "clarity", Description: "Clarity", Points: 10},
			{ID: "depth", Description: "Depth", Points: 5},
		},
	}
}

func TestRunnerGradesAllSubmissions(t *testing.T) {
	store := newMemoryStore()
	source := &fakeSource{
		assignment: testAssignment(),
		submissions: []canvas.Submission{
			{ID: "s1", AnonymousID: "user0001", Status: canvas.StatusOnTime, Attachments: []canvas.Attachment{{Filename: "one.txt"}}},
			{ID: "s2", AnonymousID: "user0002", Status: canvas.StatusLate, Attachments: []canvas.Attachment{{Filename: "two.txt"}}},
		},
	}
	grader := &fakeGrader{scores: map[string]float64{"clarity": 8, "depth": 4}}

	runner := NewRunner(store, grader, &fakeReviewer{}, time.Minute, testLogger())
	jobID, err := runner.Start(context.Background(), source, "a1", canvas.DefaultFilter())
	require.NoError(t, err)

	job := awaitJob(t, store, jobID)
	require.Equal(t, StatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	require.Len(t, job.Result.Grades, 2)
	require.Equal(t, 12.0, job.Result.Grades["s1"].Total)
	require.Equal(t, "well done", job.Result.Grades["s1"].GeneralFeedback)
	require.Equal(t, "Essay 1", job.Result.Assignment.Name)
	require.Equal(t, Progress{Current: 2, Total: 2, CurrentStudent: "user0002"}, job.Progress)
}

func TestRunnerRecordsFairnessReview(t *testing.T) {
	store := newMemoryStore()
	source := &fakeSource{
		assignment:  testAssignment(),
		submissions: []canvas.Submission{{ID: "s1", AnonymousID: "user0001"}},
	}

	runner := NewRunner(store, &fakeGrader{scores: map[string]float64{"clarity": 10}}, &fakeReviewer{flagged: true}, time.Minute, testLogger())
	jobID, err := runner.Start(context.Background(), source, "a1", canvas.DefaultFilter())
	require.NoError(t, err)

	job := awaitJob(t, store, jobID)
	require.Equal(t, StatusCompleted, job.Status)
	require.True(t, job.Result.Grades["s1"].FairnessFlag)
	require.Equal(t, "looks consistent", job.Result.Grades["s1"].FairnessMessage)
}

func TestRunnerRecordsEmptyGradeWhenGraderErrors(t *testing.T) {
	store := newMemoryStore()
	source := &fakeSource{
		assignment: testAssignment(),
		submissions: []canvas.Submission{
			{ID: "s1", AnonymousID: "user0001"},
			{ID: "s2", AnonymousID: "user0002"},
		},
	}
	grader := &flakyGrader{inner: fakeGrader{scores: map[string]float64{"clarity": 8, "depth": 4}}}

	runner := NewRunner(store, grader, nil, time.Minute, testLogger())
	jobID, err := runner.Start(context.Background(), source, "a1", canvas.DefaultFilter())
	require.NoError(t, err)

	job := awaitJob(t, store, jobID)
	require.Equal(t, StatusCompleted, job.Status, "one bad submission must not fail the batch")
	require.Len(t, job.Result.Grades, 2)

	failed := job.Result.Grades["s1"]
	require.True(t, failed.Failed)
	require.Zero(t, failed.Total)
	require.Contains(t, failed.GeneralFeedback, "Grading failed")
	require.Contains(t, failed.GeneralFeedback, "rate limited")
	require.Equal(t, "Unable to grade", failed.Criteria["clarity"].Feedback)

	require.Equal(t, 12.0, job.Result.Grades["s2"].Total)
}

func TestRunnerFailsJobOnFetchError(t *testing.T) {
	store := newMemoryStore()
	source := &fakeSource{
		assignment: testAssignment(),
		listErr:    errors.New("canvas is down"),
	}

	runner := NewRunner(store, &fakeGrader{}, nil, time.Minute, testLogger())
	jobID, err := runner.Start(context.Background(), source, "a1", canvas.DefaultFilter())
	require.NoError(t, err)

	job := awaitJob(t, store, jobID)
	require.Equal(t, StatusFailed, job.Status)
	require.Contains(t, job.Error, "canvas is down")
	require.Nil(t, job.Result)
}

func TestRunnerEndToEndWithPoller(t *testing.T) {
	store := newMemoryStore()
	submissions := make([]canvas.Submission, 3)
	for i := range submissions {
		submissions[i] = canvas.Submission{
			ID:          fmt.Sprintf("s%d", i+1),
			AnonymousID: fmt.Sprintf("user%04d", i+1),
		}
	}
	source := &fakeSource{assignment: testAssignment(), submissions: submissions}

	runner := NewRunner(store, &fakeGrader{scores: map[string]float64{"clarity": 5}}, nil, time.Minute, testLogger())
	jobID, err := runner.Start(context.Background(), source, "a1", canvas.DefaultFilter())
	require.NoError(t, err)

	poller := NewPoller(store.Get, 5*time.Millisecond, time.Second, testLogger())
	result, err := poller.Await(context.Background(), jobID, nil)
	require.NoError(t, err)
	require.Len(t, result.Grades, 3)
}
