package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/models"
)

func TestUserServiceEnsureUserCreatesOnce(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewUserService(repo, fixedCanvasFactory(&fakeCanvas{}), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	first, err := svc.EnsureUser(context.Background(), "teacher@school.edu")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := svc.EnsureUser(context.Background(), "teacher@school.edu")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestUserServiceConnectCanvasValidatesFirst(t *testing.T) {
	repo := newMemoryUserRepo()
	user := models.User{Email: "teacher@school.edu"}
	require.NoError(t, repo.Create(context.Background(), &user))

	fake := &fakeCanvas{validateErr: &canvas.APIError{StatusCode: 401, Message: "Invalid access token."}}
	svc := NewUserService(repo, fixedCanvasFactory(fake), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	payload := dto.CanvasCredentialsRequest{
		CanvasURL:   "https://canvas.school.edu",
		CanvasToken: "a-token-long-enough",
	}
	_, err := svc.ConnectCanvas(context.Background(), user.ID, payload)
	require.ErrorIs(t, err, ErrInvalidCanvasCredentials)

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, stored.HasCanvasCredentials(), "rejected credentials must not be stored")

	fake.validateErr = nil
	resp, err := svc.ConnectCanvas(context.Background(), user.ID, payload)
	require.NoError(t, err)
	require.True(t, resp.CanvasConnected)
	require.Empty(t, resp.CourseID, "connecting clears any previous course selection")
}

func TestUserServiceCoursesRequiresConnection(t *testing.T) {
	repo := newMemoryUserRepo()
	user := models.User{Email: "teacher@school.edu"}
	require.NoError(t, repo.Create(context.Background(), &user))

	fake := &fakeCanvas{courses: []canvas.Course{{ID: "7", Name: "Biology", Code: "BIO"}}}
	svc := NewUserService(repo, fixedCanvasFactory(fake), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, err := svc.Courses(context.Background(), user.ID)
	require.ErrorIs(t, err, ErrCanvasNotConnected)

	_, err = repo.Update(context.Background(), user.ID, map[string]interface{}{
		"canvas_url":   "https://canvas.school.edu",
		"canvas_token": "tok",
	})
	require.NoError(t, err)

	courses, err := svc.Courses(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "Biology", courses[0].Name)
}

func TestUserServiceAddCourse(t *testing.T) {
	repo := newMemoryUserRepo()
	user := models.User{Email: "teacher@school.edu", CanvasURL: "https://canvas.school.edu", CanvasToken: "tok"}
	require.NoError(t, repo.Create(context.Background(), &user))

	svc := NewUserService(repo, fixedCanvasFactory(&fakeCanvas{}), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	saved, err := svc.AddCourse(context.Background(), user.ID, dto.CourseAddRequest{CourseID: "7"})
	require.NoError(t, err)
	require.Equal(t, "7", saved.CourseID)
	require.Equal(t, "https://canvas.school.edu", saved.CanvasURL, "omitted canvas url falls back to the stored connection")

	other, err := svc.AddCourse(context.Background(), user.ID, dto.CourseAddRequest{CourseID: "8", CanvasURL: "https://other.canvas.edu"})
	require.NoError(t, err)
	require.Equal(t, "https://other.canvas.edu", other.CanvasURL)

	// Saving the same course again must not grow the collection.
	_, err = svc.AddCourse(context.Background(), user.ID, dto.CourseAddRequest{CourseID: "7"})
	require.NoError(t, err)

	profile, err := svc.Profile(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, profile.Courses, 2)
	require.Equal(t, "7", profile.Courses[0].CourseID)

	_, err = svc.AddCourse(context.Background(), 999, dto.CourseAddRequest{CourseID: "7"})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceSelectCourse(t *testing.T) {
	repo := newMemoryUserRepo()
	user := models.User{Email: "teacher@school.edu"}
	require.NoError(t, repo.Create(context.Background(), &user))

	svc := NewUserService(repo, fixedCanvasFactory(&fakeCanvas{}), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	resp, err := svc.SelectCourse(context.Background(), user.ID, dto.CourseSelectRequest{CourseID: "7"})
	require.NoError(t, err)
	require.Equal(t, "7", resp.CourseID)

	_, err = svc.SelectCourse(context.Background(), 999, dto.CourseSelectRequest{CourseID: "7"})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceProfileHidesToken(t *testing.T) {
	repo := newMemoryUserRepo()
	user := models.User{Email: "teacher@school.edu", CanvasURL: "https://canvas.school.edu", CanvasToken: "secret"}
	require.NoError(t, repo.Create(context.Background(), &user))

	svc := NewUserService(repo, fixedCanvasFactory(&fakeCanvas{}), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	profile, err := svc.Profile(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, profile.CanvasConnected)
	require.Equal(t, "teacher@school.edu", profile.Email)
}
