package canvas

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestClassifyStatus(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := due.Add(-time.Hour)
	after := due.Add(time.Hour)

	tests := []struct {
		name          string
		workflowState string
		submittedAt   *time.Time
		dueAt         *time.Time
		attempt       int
		want          SubmissionStatus
	}{
		{"unsubmitted", "unsubmitted", nil, &due, 0, StatusMissing},
		{"no timestamp", "submitted", nil, &due, 1, StatusMissing},
		{"resubmitted", "submitted", &before, &due, 2, StatusResubmitted},
		{"late", "submitted", &after, &due, 1, StatusLate},
		{"on time", "submitted", &before, &due, 1, StatusOnTime},
		{"no due date", "submitted", &before, nil, 1, StatusOnTime},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyStatus(tc.workflowState, tc.submittedAt, tc.dueAt, tc.attempt))
		})
	}
}

func TestFilterAllows(t *testing.T) {
	filter := DefaultFilter()
	require.True(t, filter.Allows(StatusOnTime))
	require.True(t, filter.Allows(StatusLate))
	require.True(t, filter.Allows(StatusResubmitted), "defaults must not exclude resubmitted work")
	require.True(t, filter.Allows(StatusMissing), "defaults must not exclude missing work")

	graded := Filter{OnTime: true, Late: true}
	require.True(t, graded.Allows(StatusLate))
	require.False(t, graded.Allows(StatusMissing))

	require.False(t, Filter{}.Allows(StatusOnTime))
}

func TestAnonymizeUserID(t *testing.T) {
	require.Equal(t, "user4321", AnonymizeUserID("987654321"))
	require.Equal(t, "user0042", AnonymizeUserID("42"))
}

func TestRequestsRequireToken(t *testing.T) {
	client := New("https://canvas.test", "", "1", testLogger())

	err := client.ValidateCredentials(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = client.ListCourses(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCourseScopedCallsRequireCourse(t *testing.T) {
	client := New("https://canvas.test", "token", "", testLogger())

	_, err := client.ListAssignmentsWithRubrics(context.Background())
	require.ErrorIs(t, err, ErrNoCourse)

	_, err = client.ListSubmissions(context.Background(), "a1", DefaultFilter())
	require.ErrorIs(t, err, ErrNoCourse)
}

func TestListCourses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/courses", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		require.Equal(t, "teacher", r.URL.Query().Get("enrollment_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 101, "name": "Biology", "course_code": "BIO-101"}]`))
	}))
	defer server.Close()

	client := New(server.URL, "token-1", "", testLogger())
	courses, err := client.ListCourses(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Course{{ID: "101", Name: "Biology", Code: "BIO-101"}}, courses)
}

func TestErrorNormalizationFromBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Invalid access token."}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "bad-token", "", testLogger())
	err := client.ValidateCredentials(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Invalid access token.", apiErr.Message)
}

func TestErrorNormalizationFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	}))
	defer server.Close()

	client := New(server.URL, "token", "", testLogger())
	err := client.ValidateCredentials(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "request failed with status 502", apiErr.Message)
}

func TestListAssignmentsWithRubricsFiltersAndSorts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/courses/7/assignments", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "name": "No Rubric", "due_at": "2026-03-05T12:00:00Z"},
			{"id": 2, "name": "Older", "due_at": "2026-02-01T12:00:00Z",
				"rubric": [{"id": "c1", "description": "Clarity", "points": 10}]},
			{"id": 3, "name": "Newer", "due_at": "2026-03-01T12:00:00Z",
				"rubric": [{"id": "c1", "description": "Clarity", "points": 10}]}
		]`))
	}))
	defer server.Close()

	client := New(server.URL, "token", "7", testLogger())
	assignments, err := client.ListAssignmentsWithRubrics(context.Background())
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	require.Equal(t, "Newer", assignments[0].Name)
	require.Equal(t, "Older", assignments[1].Name)
	require.Equal(t, 10.0, assignments[0].Rubric[0].Points)
}

func submissionFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/courses/7/assignments/9":
			_, _ = w.Write([]byte(`{"id": 9, "name": "Essay", "due_at": "2026-03-01T12:00:00Z",
				"rubric": [{"id": "c1", "description": "Clarity", "points": 10}]}`))
		case "/api/v1/courses/7/assignments/9/submissions":
			_, _ = w.Write([]byte(`[
				{"id": 11, "user_id": 987654321, "workflow_state": "submitted",
					"submitted_at": "2026-03-01T10:00:00Z", "attempt": 1,
					"attachments": [{"id": 1, "filename": "essay.txt", "url": "https://files.test/essay.txt", "content-type": "text/plain"}]},
				{"id": 12, "user_id": 42, "workflow_state": "submitted",
					"submitted_at": "2026-03-02T10:00:00Z", "attempt": 1},
				{"id": 13, "user_id": 7, "workflow_state": "unsubmitted", "attempt": 0}
			]`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestListSubmissionsClassifiesAndFilters(t *testing.T) {
	server := submissionFixtureServer(t)
	defer server.Close()

	client := New(server.URL, "token", "7", testLogger())

	all, err := client.ListSubmissions(context.Background(), "9", DefaultFilter())
	require.NoError(t, err)
	require.Len(t, all, 3, "the default filter excludes nothing")
	require.Equal(t, StatusOnTime, all[0].Status)
	require.Equal(t, "user4321", all[0].AnonymousID)
	require.Equal(t, StatusLate, all[1].Status)
	require.Equal(t, "user0042", all[1].AnonymousID)
	require.Equal(t, StatusMissing, all[2].Status)

	graded, err := client.ListSubmissions(context.Background(), "9", Filter{OnTime: true, Late: true})
	require.NoError(t, err)
	require.Len(t, graded, 2, "an explicit filter drops the unselected statuses")
}

func TestSubmissionStats(t *testing.T) {
	server := submissionFixtureServer(t)
	defer server.Close()

	client := New(server.URL, "token", "7", testLogger())
	stats, err := client.SubmissionStats(context.Background(), "9")
	require.NoError(t, err)
	require.Equal(t, SubmissionStats{Total: 3, Pending: 3, Late: 1, Missing: 1}, stats)
}

func TestPostGradeSendsRubricAssessmentAndComment(t *testing.T) {
	var bodies []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/v1/courses/7/assignments/9/submissions/11", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, "token", "7", testLogger())
	err := client.PostGrade(context.Background(), "9", "11", 8, "Solid work", map[string]RubricScore{
		"c1": {Points: 8, Comments: "clear"},
	})
	require.NoError(t, err)
	require.Len(t, bodies, 2, "grade write plus comment write")

	submission := bodies[0]["submission"].(map[string]interface{})
	require.Equal(t, "8", submission["posted_grade"])
	assessment := bodies[0]["rubric_assessment"].(map[string]interface{})
	entry := assessment["c1"].(map[string]interface{})
	require.Equal(t, 8.0, entry["points"])
	require.Equal(t, "clear", entry["comments"])

	comment := bodies[1]["comment"].(map[string]interface{})
	text := comment["text_comment"].(string)
	require.Contains(t, text, "Solid work")
	require.Contains(t, text, "generated with AI assistance")
}
