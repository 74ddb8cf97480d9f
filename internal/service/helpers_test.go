package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/gorm"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/grading"
	"github.com/rubriq/rubriq-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type memoryUserRepo struct {
	mu      sync.Mutex
	users   map[uint]models.User
	courses []models.UserCourse
	nextID  uint
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[uint]models.User{}, nextID: 1}
}

func (m *memoryUserRepo) GetByID(_ context.Context, id uint) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (m *memoryUserRepo) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.users[user.ID] = *user
	m.nextID++
	return nil
}

func (m *memoryUserRepo) Update(_ context.Context, id uint, updates map[string]interface{}) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	for field, value := range updates {
		raw, _ := value.(string)
		switch field {
		case "display_name":
			user.DisplayName = raw
		case "canvas_url":
			user.CanvasURL = raw
		case "canvas_token":
			user.CanvasToken = raw
		case "course_id":
			user.CourseID = raw
		}
	}
	m.users[id] = user
	return user, nil
}

func (m *memoryUserRepo) List(_ context.Context, page, pageSize int) ([]models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, user := range m.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memoryUserRepo) CountCanvasConnected(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, user := range m.users {
		if user.CanvasURL != "" && user.CanvasToken != "" {
			count++
		}
	}
	return count, nil
}

func (m *memoryUserRepo) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryUserRepo) AddCourse(_ context.Context, course *models.UserCourse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.courses {
		if existing.UserID == course.UserID && existing.CourseID == course.CourseID {
			*course = existing
			return nil
		}
	}
	course.ID = uint(len(m.courses) + 1)
	course.CreatedAt = time.Now()
	m.courses = append(m.courses, *course)
	return nil
}

func (m *memoryUserRepo) ListCourses(_ context.Context, userID uint) ([]models.UserCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserCourse{}
	for _, course := range m.courses {
		if course.UserID == userID {
			out = append(out, course)
		}
	}
	return out, nil
}

type memorySubscriptionRepo struct {
	mu       sync.Mutex
	subs     map[uint]models.Subscription
	payments []models.PaymentRecord
	nextID   uint
}

func newMemorySubscriptionRepo() *memorySubscriptionRepo {
	return &memorySubscriptionRepo{subs: map[uint]models.Subscription{}, nextID: 1}
}

func (m *memorySubscriptionRepo) GetByUserID(_ context.Context, userID uint) (models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[userID]
	if !ok {
		return models.Subscription{}, gorm.ErrRecordNotFound
	}
	return sub, nil
}

func (m *memorySubscriptionRepo) GetByStripeCustomerID(_ context.Context, customerID string) (models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.StripeCustomerID == customerID {
			return sub, nil
		}
	}
	return models.Subscription{}, gorm.ErrRecordNotFound
}

func (m *memorySubscriptionRepo) Upsert(_ context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.subs[sub.UserID]; ok {
		sub.ID = existing.ID
	} else {
		sub.ID = m.nextID
		m.nextID++
	}
	m.subs[sub.UserID] = *sub
	return nil
}

func (m *memorySubscriptionRepo) Update(_ context.Context, userID uint, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for field, value := range updates {
		switch field {
		case "status":
			sub.Status = value.(string)
		case "cancel_at_period_end":
			sub.CancelAtPeriodEnd = value.(bool)
		case "current_period_end":
			sub.CurrentPeriodEnd = value.(*time.Time)
		}
	}
	m.subs[userID] = sub
	return nil
}

func (m *memorySubscriptionRepo) CountActive(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, sub := range m.subs {
		if sub.Status == models.SubscriptionStatusActive || sub.Status == models.SubscriptionStatusTrialing {
			count++
		}
	}
	return count, nil
}

func (m *memorySubscriptionRepo) RecordPayment(_ context.Context, record *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.CreatedAt = time.Now()
	m.payments = append(m.payments, *record)
	return nil
}

func (m *memorySubscriptionRepo) Payments(_ context.Context, userID uint) ([]models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PaymentRecord{}
	for _, record := range m.payments {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

type memoryHistoryRepo struct {
	mu      sync.Mutex
	entries []models.GradingHistory
}

func (m *memoryHistoryRepo) Create(_ context.Context, entry *models.GradingHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryHistoryRepo) ListByUser(_ context.Context, userID uint, limit int) ([]models.GradingHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.GradingHistory{}
	for _, entry := range m.entries {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryHistoryRepo) MarkPosted(_ context.Context, userID uint, jobID string, postedCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, entry := range m.entries {
		if entry.UserID == userID && entry.JobID == jobID {
			m.entries[i].PostedCount = postedCount
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memoryHistoryRepo) CountJobs(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

// fakeCanvas is a canned Canvas API for service tests.
type fakeCanvas struct {
	validateErr error
	courses     []canvas.Course
	courseName  string
	assignments []canvas.Assignment
	submissions []canvas.Submission
	stats       canvas.SubmissionStats
	attachments map[string][]byte

	mu           sync.Mutex
	postedIDs    []string
	postGradeErr error
}

func (f *fakeCanvas) ValidateCredentials(context.Context) error { return f.validateErr }

func (f *fakeCanvas) ListCourses(context.Context) ([]canvas.Course, error) { return f.courses, nil }

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

func (f *fakeCanvas) ListSubmissions(_ context.Context, _ string, filter canvas.Filter) ([]canvas.Submission, error) {
	out := []canvas.Submission{}
	for _, submission := range f.submissions {
		if filter.Allows(submission.Status) {
			out = append(out, submission)
		}
	}
	return out, nil
}

func (f *fakeCanvas) SubmissionStats(context.Context, string) (canvas.SubmissionStats, error) {
	return f.stats, nil
}

func (f *fakeCanvas) DownloadAttachment(_ context.Context, attachment canvas.Attachment) ([]byte, error) {
	return f.attachments[attachment.ID], nil
}

func (f *fakeCanvas) PostGrade(_ context.Context, _, submissionID string, _ float64, _ string, _ map[string]canvas.RubricScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postGradeErr != nil {
		return f.postGradeErr
	}
	f.postedIDs = append(f.postedIDs, submissionID)
	return nil
}

func fixedCanvasFactory(fake *fakeCanvas) CanvasFactory {
	return func(string, string, string) CanvasAPI { return fake }
}

// memoryJobStore is an in-memory grading.Store.
type memoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]grading.Job
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{jobs: map[string]grading.Job{}}
}

func (m *memoryJobStore) Save(_ context.Context, job grading.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *memoryJobStore) Get(_ context.Context, jobID string) (grading.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return grading.Job{}, grading.ErrJobNotFound
	}
	return job, nil
}

// fakeStripe records calls instead of talking to Stripe.
type fakeStripe struct {
	checkoutURL string
	cancelled   []string
	event       stripe.Event
	eventErr    error
}

func (f *fakeStripe) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: f.checkoutURL}, nil
}

func (f *fakeStripe) CancelAtPeriodEnd(subscriptionID string) (*stripe.Subscription, error) {
	f.cancelled = append(f.cancelled, subscriptionID)
	return &stripe.Subscription{ID: subscriptionID, CancelAtPeriodEnd: true}, nil
}

func (f *fakeStripe) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if f.eventErr != nil {
		return stripe.Event{}, f.eventErr
	}
	return f.event, nil
}
