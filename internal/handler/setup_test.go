package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/config"
	"github.com/rubriq/rubriq-api/internal/grading"
	"github.com/rubriq/rubriq-api/internal/handler"
	"github.com/rubriq/rubriq-api/internal/models"
	"github.com/rubriq/rubriq-api/internal/repository"
	"github.com/rubriq/rubriq-api/internal/router"
	"github.com/rubriq/rubriq-api/internal/service"
	"github.com/rubriq/rubriq-api/internal/session"
	"github.com/rubriq/rubriq-api/pkg/ai"
)

const testUserEmail = "teacher@school.edu"

type fakeCanvas struct {
	courses     []canvas.Course
	courseName  string
	assignments []canvas.Assignment
	submissions map[string][]canvas.Submission
	stats       canvas.SubmissionStats
	postedIDs   []string
	validateErr error
}

func (f *fakeCanvas) ValidateCredentials(context.Context) error { return f.validateErr }

func (f *fakeCanvas) ListCourses(context.Context) ([]canvas.Course, error) {
	return f.courses, nil
}

func (f *fakeCanvas) CourseName(context.Context) (string, error) { return f.courseName, nil }

func (f *fakeCanvas) ListAssignmentsWithRubrics(context.Context) ([]canvas.Assignment, error) {
	return f.assignments, nil
}

func (f *fakeCanvas) GetAssignment(_ context.Context, assignmentID string) (canvas.Assignment, error) {
	for _, assignment := range f.assignments {
		if assignment.ID == assignmentID {
			return assignment, nil
		}
	}
	return canvas.Assignment{}, &canvas.APIError{StatusCode: 404, Message: "assignment not found"}
}

func (f *fakeCanvas) ListSubmissions(_ context.Context, assignmentID string, filter canvas.Filter) ([]canvas.Submission, error) {
	out := make([]canvas.Submission, 0)
	for _, submission := range f.submissions[assignmentID] {
		if filter.Allows(submission.Status) {
			out = append(out, submission)
		}
	}
	return out, nil
}

func (f *fakeCanvas) SubmissionStats(context.Context, string) (canvas.SubmissionStats, error) {
	return f.stats, nil
}

func (f *fakeCanvas) DownloadAttachment(context.Context, canvas.Attachment) ([]byte, error) {
	return []byte("submission text"), nil
}

func (f *fakeCanvas) PostGrade(_ context.Context, _, submissionID string, _ float64, _ string, _ map[string]canvas.RubricScore) error {
	f.postedIDs = append(f.postedIDs, submissionID)
	return nil
}

type stubGrader struct{}

func (stubGrader) Grade(context.Context, ai.GradingInput) (ai.GradeResult, error) {
	return ai.GradeResult{
		Criteria:        map[string]ai.CriterionScore{"c1": {Score: 8, Feedback: "Good"}},
		Total:           8,
		GeneralFeedback: "Solid work",
	}, nil
}

type stubReviewer struct{}

func (stubReviewer) Review(context.Context, ai.GradingInput, ai.GradeResult) (ai.ReviewResult, error) {
	return ai.ReviewResult{Flagged: false}, nil
}

type fakeStripe struct {
	event    stripe.Event
	eventErr error
}

func (f *fakeStripe) CreateCheckoutSession(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.test/cs_test"}, nil
}

func (f *fakeStripe) CancelAtPeriodEnd(subscriptionID string) (*stripe.Subscription, error) {
	return &stripe.Subscription{ID: subscriptionID, CancelAtPeriodEnd: true}, nil
}

func (f *fakeStripe) ConstructEvent([]byte, string) (stripe.Event, error) {
	return f.event, f.eventErr
}

type testApp struct {
	app    *fiber.App
	db     *gorm.DB
	canvas *fakeCanvas
	stripe *fakeStripe
	store  grading.Store
}

func defaultFakeCanvas() *fakeCanvas {
	submitted := time.Now().Add(-2 * time.Hour)
	return &fakeCanvas{
		courses:    []canvas.Course{{ID: "c100", Name: "Intro to Writing"}},
		courseName: "Intro to Writing",
		assignments: []canvas.Assignment{{
			ID:             "a1",
			Name:           "Essay Draft",
			PointsPossible: 10,
			Rubric:         []canvas.Criterion{{ID: "c1", Description: "Clarity", Points: 10}},
		}},
		submissions: map[string][]canvas.Submission{
			"a1": {
				{ID: "s1", AnonymousID: "user0001", Status: canvas.StatusOnTime, SubmittedAt: &submitted},
				{ID: "s2", AnonymousID: "user0002", Status: canvas.StatusLate, SubmittedAt: &submitted},
			},
		},
		stats: canvas.SubmissionStats{Total: 2, Pending: 2},
	}
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.UserCourse{}, &models.Subscription{}, &models.PaymentRecord{}, &models.GradingHistory{}))

	user := models.User{
		Email:       testUserEmail,
		DisplayName: "Test Teacher",
		CanvasURL:   "https://canvas.school.edu",
		CanvasToken: "token-0123456789abcdef",
		CourseID:    "c100",
	}
	require.NoError(t, db.Create(&user).Error)

	mini := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	fake := defaultFakeCanvas()
	factory := service.CanvasFactory(func(_, _, _ string) service.CanvasAPI { return fake })

	jobStore := grading.NewRedisStore(redisClient, time.Hour)
	runner := grading.NewRunner(jobStore, stubGrader{}, stubReviewer{}, 30*time.Second, logger)
	poller := grading.NewPoller(jobStore.Get, 5*time.Millisecond, 10*time.Second, logger)

	userRepo := repository.NewUserRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	historyRepo := repository.NewGradingHistoryRepository(db)

	gateway := &fakeStripe{}
	billingService := service.NewBillingService(userRepo, subscriptionRepo, gateway, service.BillingConfig{
		PriceMonthly:    "price_monthly_999",
		PriceYearly:     "price_yearly_199",
		PriceExtraClass: "price_extra_class_49",
	}, validate, logger)

	userService := service.NewUserService(userRepo, factory, validate, logger)
	assignmentService := service.NewAssignmentService(userRepo, factory, logger)
	gradingService := service.NewGradingService(userRepo, historyRepo, runner, jobStore, poller, billingService, factory, validate, logger)
	reviewService := service.NewReviewService(session.NewStore(), jobStore, validate, logger)
	adminService := service.NewAdminService(userRepo, subscriptionRepo, historyRepo, logger)

	app := fiber.New()
	cfg := config.Config{AppName: "Test", JWTSecret: "secret", AdminEmails: []string{testUserEmail}}
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		GradingHandler:    handler.NewGradingHandler(gradingService, logger),
		ReviewHandler:     handler.NewReviewHandler(reviewService, logger),
		UserHandler:       handler.NewUserHandler(userService, logger),
		BillingHandler:    handler.NewBillingHandler(billingService, logger),
		AdminHandler:      handler.NewAdminHandler(adminService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			c.Locals("user_email", testUserEmail)
			return c.Next()
		},
	})

	return &testApp{app: app, db: db, canvas: fake, stripe: gateway, store: jobStore}
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
