package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/payments/byl"
	"github.com/onlinecourse/backend/internal/payments/qpay"
	"github.com/onlinecourse/backend/internal/storage"
)

func notFound(what string) error {
	return fmt.Errorf("%s not found: %w", what, models.ErrNotFound)
}

// mockUserRepository is a mock implementation of every user repository interface
type mockUserRepository struct {
	user   *models.User
	getErr error

	emailExists       bool
	existingUsernames map[string]bool
	existsErr         error

	created   *models.User
	createErr error

	oauthUser  *models.User
	emailUser  *models.User
	linkedID   int
	linkedSub  string
	linkErr    error
	updated    *models.User
	updateErr  error
	password   string
	roleSet    models.Role
	roleErr    error
	deletedID  int
	deleteErr  error
	listItems  []models.UserListItem
	listTotal  int
	listFilter models.UserFilter
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == 0 {
		user.ID = 42
	}
	m.created = user
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.user == nil || m.user.ID != id {
		return nil, notFound("user")
	}
	u := *m.user
	return &u, nil
}

func (m *mockUserRepository) GetByEmailOrUsername(ctx context.Context, login string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.user == nil || (m.user.Email != login && m.user.Username != login) {
		return nil, notFound("user")
	}
	u := *m.user
	return &u, nil
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.emailUser == nil || m.emailUser.Email != email {
		return nil, notFound("user")
	}
	u := *m.emailUser
	return &u, nil
}

func (m *mockUserRepository) GetByOAuth(ctx context.Context, provider, subject string) (*models.User, error) {
	if m.oauthUser == nil || m.oauthUser.OAuthSubject != subject {
		return nil, notFound("user")
	}
	u := *m.oauthUser
	return &u, nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.emailExists, m.existsErr
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return m.existingUsernames[username], m.existsErr
}

func (m *mockUserRepository) LinkOAuth(ctx context.Context, id int, provider, subject string) error {
	if m.linkErr != nil {
		return m.linkErr
	}
	m.linkedID = id
	m.linkedSub = subject
	return nil
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = user
	return nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	m.password = passwordHash
	return nil
}

func (m *mockUserRepository) UpdateRole(ctx context.Context, id int, role models.Role) error {
	if m.roleErr != nil {
		return m.roleErr
	}
	m.roleSet = role
	return nil
}

func (m *mockUserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.UserListItem, int, error) {
	m.listFilter = filter
	return m.listItems, m.listTotal, nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id int) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedID = id
	return nil
}

// mockUserTokenRepository keeps refresh tokens in memory
type mockUserTokenRepository struct {
	tokens    map[string]int
	createErr error
	updateErr error
	deleted   []string
	cutoff    time.Time
	purged    int64
}

func newMockUserTokenRepository() *mockUserTokenRepository {
	return &mockUserTokenRepository{tokens: map[string]int{}}
}

func (m *mockUserTokenRepository) Create(ctx context.Context, userToken *models.UserToken) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.tokens[userToken.Token] = userToken.UserID
	return nil
}

func (m *mockUserTokenRepository) GetByToken(ctx context.Context, token string) (*models.UserToken, error) {
	userID, ok := m.tokens[token]
	if !ok {
		return nil, notFound("token")
	}
	return &models.UserToken{UserID: userID, Token: token}, nil
}

func (m *mockUserTokenRepository) UpdateToken(ctx context.Context, oldToken, newToken string, userID int) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.tokens[oldToken]; !ok {
		return notFound("token")
	}
	delete(m.tokens, oldToken)
	m.tokens[newToken] = userID
	return nil
}

func (m *mockUserTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	m.deleted = append(m.deleted, token)
	delete(m.tokens, token)
	return nil
}

func (m *mockUserTokenRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	return m.purged, nil
}

// mockNotifier records scheduled emails
type mockNotifier struct {
	welcome    []int
	enrollment []int
	err        error
}

func (m *mockNotifier) EnqueueWelcomeEmail(ctx context.Context, userID int) error {
	m.welcome = append(m.welcome, userID)
	return m.err
}

func (m *mockNotifier) EnqueueEnrollmentEmail(ctx context.Context, paymentID int) error {
	m.enrollment = append(m.enrollment, paymentID)
	return m.err
}

// mockPaymentRepository holds a single payment and completes it like the real repository
type mockPaymentRepository struct {
	payment *models.Payment
	getErr  error

	created     *models.Payment
	createErr   error
	invoiceID   string
	checkoutURL string

	completeErr   error
	completeCalls int

	cancelled int
	cancelErr error

	listItems  []models.PaymentListItem
	listTotal  int
	listFilter models.PaymentFilter

	expired       int64
	expireErr     error
	expireNow     time.Time
	expireWindows models.ExpiryWindows
}

func (m *mockPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	payment.ID = 7
	m.created = payment
	return nil
}

func (m *mockPaymentRepository) SetInvoice(ctx context.Context, id int, invoiceID, checkoutURL string) error {
	m.invoiceID = invoiceID
	m.checkoutURL = checkoutURL
	return nil
}

func (m *mockPaymentRepository) GetByID(ctx context.Context, id int) (*models.Payment, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.payment == nil || m.payment.ID != id {
		return nil, notFound("payment")
	}
	p := *m.payment
	return &p, nil
}

func (m *mockPaymentRepository) GetByInvoice(ctx context.Context, provider models.PaymentProvider, invoiceID string) (*models.Payment, error) {
	if m.payment == nil || m.payment.Provider != provider || m.payment.InvoiceID != invoiceID {
		return nil, notFound("payment")
	}
	p := *m.payment
	return &p, nil
}

func (m *mockPaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentListItem, int, error) {
	m.listFilter = filter
	return m.listItems, m.listTotal, nil
}

func (m *mockPaymentRepository) Cancel(ctx context.Context, id int) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = id
	return nil
}

func (m *mockPaymentRepository) Complete(ctx context.Context, id int, now time.Time, windows models.ExpiryWindows) (*models.CompletionResult, error) {
	m.completeCalls++
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	if m.payment == nil || m.payment.ID != id {
		return nil, notFound("payment")
	}

	switch m.payment.Status {
	case models.PaymentStatusCompleted:
		p := *m.payment
		return &models.CompletionResult{Payment: &p, AlreadyCompleted: true}, nil
	case models.PaymentStatusPending:
		if m.payment.IsExpired(now, windows.For(m.payment.Provider)) {
			m.payment.Status = models.PaymentStatusFailed
			return nil, models.ErrPaymentExpired
		}
		m.payment.Status = models.PaymentStatusCompleted
		m.payment.CompletedAt = &now
		p := *m.payment
		return &models.CompletionResult{Payment: &p}, nil
	default:
		return nil, models.ErrPaymentNotPending
	}
}

func (m *mockPaymentRepository) ExpireStale(ctx context.Context, now time.Time, windows models.ExpiryWindows) (int64, error) {
	m.expireNow = now
	m.expireWindows = windows
	return m.expired, m.expireErr
}

// mockCourseRepository is a mock implementation of every course repository interface
type mockCourseRepository struct {
	course    *models.Course
	getErr    error
	slugs     map[string]bool
	created   *models.Course
	createErr error
	updated   *models.Course
	updateErr error
	deletedID int

	listItems  []models.CourseListItem
	listTotal  int
	listFilter models.CourseFilter
	listErr    error
}

func (m *mockCourseRepository) Create(ctx context.Context, course *models.Course) error {
	if m.createErr != nil {
		return m.createErr
	}
	course.ID = 3
	m.created = course
	return nil
}

func (m *mockCourseRepository) GetByID(ctx context.Context, id int) (*models.Course, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.course == nil || m.course.ID != id {
		return nil, notFound("course")
	}
	c := *m.course
	return &c, nil
}

func (m *mockCourseRepository) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	if m.course == nil || m.course.Slug != slug {
		return nil, notFound("course")
	}
	c := *m.course
	return &c, nil
}

func (m *mockCourseRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	return m.slugs[slug], nil
}

func (m *mockCourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseListItem, int, error) {
	m.listFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listItems, m.listTotal, nil
}

func (m *mockCourseRepository) Update(ctx context.Context, course *models.Course) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = course
	return nil
}

func (m *mockCourseRepository) Delete(ctx context.Context, id int) error {
	m.deletedID = id
	return nil
}

// mockEnrollmentRepository is a mock implementation of every enrollment repository interface
type mockEnrollmentRepository struct {
	enrollment *models.Enrollment
	getErr     error
	exists     bool
	existsErr  error

	granted  [][2]int
	grantErr error
	revoked  [][2]int

	byUser    []models.EnrollmentListItem
	courseIDs []int
	completed []int

	progress       int
	setCompleted   []int
	setCompleteErr error

	listItems  []models.AdminEnrollmentItem
	listTotal  int
	listFilter models.EnrollmentFilter
}

func (m *mockEnrollmentRepository) Get(ctx context.Context, userID, courseID int) (*models.Enrollment, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.enrollment == nil {
		return nil, notFound("enrollment")
	}
	e := *m.enrollment
	return &e, nil
}

func (m *mockEnrollmentRepository) Exists(ctx context.Context, userID, courseID int) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockEnrollmentRepository) Grant(ctx context.Context, userID, courseID int) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	m.granted = append(m.granted, [2]int{userID, courseID})
	return nil
}

func (m *mockEnrollmentRepository) Revoke(ctx context.Context, userID, courseID int) error {
	m.revoked = append(m.revoked, [2]int{userID, courseID})
	return nil
}

func (m *mockEnrollmentRepository) ListByUser(ctx context.Context, userID int) ([]models.EnrollmentListItem, error) {
	return m.byUser, nil
}

func (m *mockEnrollmentRepository) CourseIDsByUser(ctx context.Context, userID int) ([]int, error) {
	return m.courseIDs, nil
}

func (m *mockEnrollmentRepository) CompletedLessons(ctx context.Context, userID, courseID int) ([]int, error) {
	return m.completed, nil
}

func (m *mockEnrollmentRepository) SetLessonCompleted(ctx context.Context, userID, courseID, lessonID int, completed bool) (int, []int, error) {
	if m.setCompleteErr != nil {
		return 0, nil, m.setCompleteErr
	}
	return m.progress, m.setCompleted, nil
}

func (m *mockEnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.AdminEnrollmentItem, int, error) {
	m.listFilter = filter
	return m.listItems, m.listTotal, nil
}

// mockSubCourseRepository is a mock implementation of SubCourseRepository
type mockSubCourseRepository struct {
	subCourse *models.SubCourse
	items     []models.SubCourse
	created   *models.SubCourse
	updated   *models.SubCourse
	deletedID int
}

func (m *mockSubCourseRepository) Create(ctx context.Context, subCourse *models.SubCourse) error {
	subCourse.ID = 11
	m.created = subCourse
	return nil
}

func (m *mockSubCourseRepository) GetByID(ctx context.Context, id int) (*models.SubCourse, error) {
	if m.subCourse == nil || m.subCourse.ID != id {
		return nil, notFound("sub-course")
	}
	sc := *m.subCourse
	return &sc, nil
}

func (m *mockSubCourseRepository) ListByCourse(ctx context.Context, courseID int) ([]models.SubCourse, error) {
	return m.items, nil
}

func (m *mockSubCourseRepository) Update(ctx context.Context, subCourse *models.SubCourse) error {
	m.updated = subCourse
	return nil
}

func (m *mockSubCourseRepository) Delete(ctx context.Context, id int) error {
	m.deletedID = id
	return nil
}

// mockLessonRepository is a mock implementation of LessonRepository
type mockLessonRepository struct {
	lesson    *models.Lesson
	items     []models.Lesson
	created   *models.Lesson
	updated   *models.Lesson
	videoID   string
	videoURL  string
	deletedID int
}

func (m *mockLessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	lesson.ID = 21
	m.created = lesson
	return nil
}

func (m *mockLessonRepository) GetByID(ctx context.Context, id int) (*models.Lesson, error) {
	if m.lesson == nil || m.lesson.ID != id {
		return nil, notFound("lesson")
	}
	l := *m.lesson
	return &l, nil
}

func (m *mockLessonRepository) ListByCourse(ctx context.Context, courseID int) ([]models.Lesson, error) {
	return m.items, nil
}

func (m *mockLessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	m.updated = lesson
	return nil
}

func (m *mockLessonRepository) UpdateVideo(ctx context.Context, id int, videoID, videoURL string) error {
	m.videoID = videoID
	m.videoURL = videoURL
	return nil
}

func (m *mockLessonRepository) Delete(ctx context.Context, id int) error {
	m.deletedID = id
	return nil
}

// mockMediaRepository is a mock implementation of MediaRepository
type mockMediaRepository struct {
	item      *models.MediaItem
	items     []models.MediaItem
	created   *models.MediaItem
	createErr error
	updated   *models.MediaItem
	deletedID int
}

func (m *mockMediaRepository) Create(ctx context.Context, item *models.MediaItem) error {
	if m.createErr != nil {
		return m.createErr
	}
	item.ID = 5
	m.created = item
	return nil
}

func (m *mockMediaRepository) GetByID(ctx context.Context, id int) (*models.MediaItem, error) {
	if m.item == nil || m.item.ID != id {
		return nil, notFound("media item")
	}
	i := *m.item
	return &i, nil
}

func (m *mockMediaRepository) List(ctx context.Context) ([]models.MediaItem, error) {
	return m.items, nil
}

func (m *mockMediaRepository) Update(ctx context.Context, item *models.MediaItem) error {
	m.updated = item
	return nil
}

func (m *mockMediaRepository) Delete(ctx context.Context, id int) error {
	m.deletedID = id
	return nil
}

// mockSettingsRepository keeps settings in memory
type mockSettingsRepository struct {
	values   map[string]string
	upserted map[string]string
	err      error
}

func (m *mockSettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]string{}
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *mockSettingsRepository) Upsert(ctx context.Context, settings map[string]string) error {
	if m.err != nil {
		return m.err
	}
	m.upserted = settings
	if m.values == nil {
		m.values = map[string]string{}
	}
	for k, v := range settings {
		m.values[k] = v
	}
	return nil
}

// mockStatsRepository returns fixed statistics
type mockStatsRepository struct {
	stats *models.DashboardStats
	err   error
}

func (m *mockStatsRepository) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	return m.stats, m.err
}

// mockImageUploader records uploads and deletions
type mockImageUploader struct {
	enabled   bool
	folders   []string
	uploadErr error
	deleted   []string
}

func (m *mockImageUploader) Enabled() bool { return m.enabled }

func (m *mockImageUploader) Upload(folder, extension, contentType string, data io.Reader) (string, string, error) {
	if m.uploadErr != nil {
		return "", "", m.uploadErr
	}
	m.folders = append(m.folders, folder)
	path := folder + "/file" + extension
	return path, "https://cdn.example.com/" + path, nil
}

func (m *mockImageUploader) Delete(path string) error {
	m.deleted = append(m.deleted, path)
	return nil
}

// mockVideoHost is a mock implementation of VideoHost
type mockVideoHost struct {
	enabled   bool
	videoID   string
	createErr error
	titles    []string
}

func (m *mockVideoHost) Enabled() bool { return m.enabled }

func (m *mockVideoHost) CreateVideo(ctx context.Context, title string) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.titles = append(m.titles, title)
	return m.videoID, nil
}

func (m *mockVideoHost) NewUploadTicket(videoID string) *storage.UploadTicket {
	return &storage.UploadTicket{
		VideoID:   videoID,
		LibraryID: "lib",
		ExpiresAt: 1700003600,
		Signature: "sig",
		Endpoint:  "https://video.bunnycdn.com/tusupload",
		EmbedURL:  m.EmbedURL(videoID),
	}
}

func (m *mockVideoHost) EmbedURL(videoID string) string {
	return "https://iframe.mediadelivery.net/embed/lib/" + videoID
}

// mockQPayClient is a mock implementation of QPayClient
type mockQPayClient struct {
	enabled   bool
	invoice   *qpay.Invoice
	createErr error
	request   qpay.InvoiceRequest
	check     *qpay.CheckResult
	checkErr  error
}

func (m *mockQPayClient) Enabled() bool { return m.enabled }

func (m *mockQPayClient) CreateInvoice(ctx context.Context, req qpay.InvoiceRequest) (*qpay.Invoice, error) {
	m.request = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.invoice, nil
}

func (m *mockQPayClient) CheckPayment(ctx context.Context, invoiceID string) (*qpay.CheckResult, error) {
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	if m.check == nil {
		return &qpay.CheckResult{}, nil
	}
	return m.check, nil
}

// mockBylClient is a mock implementation of BylClient
type mockBylClient struct {
	enabled        bool
	checkout       *byl.Checkout
	request        byl.CheckoutRequest
	status         *byl.Checkout
	validSignature bool
}

func (m *mockBylClient) Enabled() bool { return m.enabled }

func (m *mockBylClient) CreateCheckout(ctx context.Context, req byl.CheckoutRequest) (*byl.Checkout, error) {
	m.request = req
	return m.checkout, nil
}

func (m *mockBylClient) GetCheckout(ctx context.Context, checkoutID string) (*byl.Checkout, error) {
	if m.status == nil {
		return &byl.Checkout{Status: "open"}, nil
	}
	return m.status, nil
}

func (m *mockBylClient) VerifySignature(body []byte, signature string) bool {
	return m.validSignature
}

// mockStateStore keeps OAuth states in memory
type mockStateStore struct {
	states map[string]string
}

func (m *mockStateStore) Save(ctx context.Context, state, value string) error {
	if m.states == nil {
		m.states = map[string]string{}
	}
	m.states[state] = value
	return nil
}

func (m *mockStateStore) Consume(ctx context.Context, state string) (string, error) {
	value, ok := m.states[state]
	if !ok {
		return "", storage.ErrStateNotFound
	}
	delete(m.states, state)
	return value, nil
}

// paidCheck returns a QPay check result with one paid row
func paidCheck() *qpay.CheckResult {
	var result qpay.CheckResult
	_ = json.Unmarshal([]byte(`{"count":1,"paid_amount":50000,"rows":[{"payment_id":"1","payment_status":"PAID","payment_amount":"50000"}]}`), &result)
	return &result
}
