package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/payments/byl"
	"github.com/onlinecourse/backend/internal/payments/qpay"
)

// PaymentRepository is the interface that wraps methods for payments table data access
type PaymentRepository interface {
	// Method Create inserts a new payment.
	//
	// "payment" parameter is filled with the generated ID on success.
	Create(ctx context.Context, payment *models.Payment) error
	// Method SetInvoice stores the provider reference of a payment.
	SetInvoice(ctx context.Context, id int, invoiceID, checkoutURL string) error
	// Method GetByID retrieves a payment by ID.
	//
	// If the payment does not exist, models.ErrNotFound is returned.
	GetByID(ctx context.Context, id int) (*models.Payment, error)
	// Method GetByInvoice retrieves a payment by its provider reference.
	GetByInvoice(ctx context.Context, provider models.PaymentProvider, invoiceID string) (*models.Payment, error)
	// Method List returns a page of payments and the total number of matches.
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentListItem, int, error)
	// Method Cancel moves a pending payment to cancelled.
	//
	// If the payment is not pending, models.ErrPaymentNotPending is returned.
	Cancel(ctx context.Context, id int) error
	// Method Complete completes a payment and grants the enrollment in one transaction.
	//
	// Completing an already completed payment only makes sure the enrollment exists.
	// A pending payment past its expiry window is failed and models.ErrPaymentExpired is returned.
	Complete(ctx context.Context, id int, now time.Time, windows models.ExpiryWindows) (*models.CompletionResult, error)
	// Method ExpireStale fails pending payments older than their window and returns how many changed.
	ExpireStale(ctx context.Context, now time.Time, windows models.ExpiryWindows) (int64, error)
}

// CourseReader retrieves courses by ID
type CourseReader interface {
	GetByID(ctx context.Context, id int) (*models.Course, error)
}

// UserReader retrieves users by ID
type UserReader interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// EnrollmentChecker reports whether a user owns a course
type EnrollmentChecker interface {
	Exists(ctx context.Context, userID, courseID int) (bool, error)
}

// SettingsReader returns all site settings
type SettingsReader interface {
	GetAll(ctx context.Context) (map[string]string, error)
}

// QPayClient is the subset of the QPay API used for payments
type QPayClient interface {
	Enabled() bool
	CreateInvoice(ctx context.Context, req qpay.InvoiceRequest) (*qpay.Invoice, error)
	CheckPayment(ctx context.Context, invoiceID string) (*qpay.CheckResult, error)
}

// BylClient is the subset of the Byl API used for payments
type BylClient interface {
	Enabled() bool
	CreateCheckout(ctx context.Context, req byl.CheckoutRequest) (*byl.Checkout, error)
	GetCheckout(ctx context.Context, checkoutID string) (*byl.Checkout, error)
	VerifySignature(body []byte, signature string) bool
}

// EnrollmentNotifier schedules the enrollment confirmation email
type EnrollmentNotifier interface {
	EnqueueEnrollmentEmail(ctx context.Context, paymentID int) error
}

// PaymentConfig holds the settings of paymentService
type PaymentConfig struct {
	PublicBaseURL        string
	FrontendURL          string
	Windows              models.ExpiryWindows
	SkipWebhookSignature bool
}

// paymentService moves users from "intends to pay" to "enrolled".
// Every trigger (webhook, client poll, admin confirmation) ends in complete.
type paymentService struct {
	paymentRepo    PaymentRepository
	courseRepo     CourseReader
	userRepo       UserReader
	enrollmentRepo EnrollmentChecker
	settingsRepo   SettingsReader
	qpay           QPayClient
	byl            BylClient
	notifier       EnrollmentNotifier
	cfg            PaymentConfig
	logger         *zap.Logger
	now            func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	paymentRepo PaymentRepository,
	courseRepo CourseReader,
	userRepo UserReader,
	enrollmentRepo EnrollmentChecker,
	settingsRepo SettingsReader,
	qpayClient QPayClient,
	bylClient BylClient,
	notifier EnrollmentNotifier,
	cfg PaymentConfig,
	logger *zap.Logger,
) *paymentService {
	return &paymentService{
		paymentRepo:    paymentRepo,
		courseRepo:     courseRepo,
		userRepo:       userRepo,
		enrollmentRepo: enrollmentRepo,
		settingsRepo:   settingsRepo,
		qpay:           qpayClient,
		byl:            bylClient,
		notifier:       notifier,
		cfg:            cfg,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateQPayInvoice starts a QPay purchase of a course
func (s *paymentService) CreateQPayInvoice(ctx context.Context, userID, courseID int) (*models.QPayInvoiceResponse, error) {
	if !s.qpay.Enabled() {
		return nil, models.ErrProviderNotEnabled
	}

	payment, course, err := s.createPending(ctx, userID, courseID, models.PaymentProviderQPay)
	if err != nil {
		return nil, err
	}

	invoice, err := s.qpay.CreateInvoice(ctx, qpay.InvoiceRequest{
		SenderInvoiceNo: fmt.Sprintf("LMS-%d", payment.ID),
		ReceiverCode:    strconv.Itoa(userID),
		Description:     course.Title,
		Amount:          payment.Amount,
		CallbackURL:     fmt.Sprintf("%s/api/v1/webhooks/qpay?payment_id=%d", s.cfg.PublicBaseURL, payment.ID),
	})
	if err != nil {
		s.logger.Error("failed to create qpay invoice", zap.Int("payment_id", payment.ID), zap.Error(err))
		return nil, err
	}

	if err := s.paymentRepo.SetInvoice(ctx, payment.ID, invoice.InvoiceID, invoice.ShortURL); err != nil {
		return nil, err
	}

	urls := make([]models.BankURL, 0, len(invoice.URLs))
	for _, u := range invoice.URLs {
		urls = append(urls, models.BankURL{
			Name:        u.Name,
			Description: u.Description,
			Logo:        u.Logo,
			Link:        u.Link,
		})
	}

	return &models.QPayInvoiceResponse{
		PaymentID: payment.ID,
		InvoiceID: invoice.InvoiceID,
		Amount:    payment.Amount,
		QRText:    invoice.QRText,
		QRImage:   invoice.QRImage,
		ShortURL:  invoice.ShortURL,
		URLs:      urls,
	}, nil
}

// CreateBylCheckout starts a Byl purchase of a course
func (s *paymentService) CreateBylCheckout(ctx context.Context, userID, courseID int) (*models.BylCheckoutResponse, error) {
	if !s.byl.Enabled() {
		return nil, models.ErrProviderNotEnabled
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	payment, course, err := s.createPending(ctx, userID, courseID, models.PaymentProviderByl)
	if err != nil {
		return nil, err
	}

	returnURL := fmt.Sprintf("%s/payments/%d", strings.TrimRight(s.cfg.FrontendURL, "/"), payment.ID)
	checkout, err := s.byl.CreateCheckout(ctx, byl.CheckoutRequest{
		ClientReferenceID: strconv.Itoa(payment.ID),
		CustomerEmail:     user.Email,
		ItemName:          course.Title,
		Amount:            payment.Amount,
		SuccessURL:        returnURL + "?status=success",
		CancelURL:         returnURL + "?status=cancel",
	})
	if err != nil {
		s.logger.Error("failed to create byl checkout", zap.Int("payment_id", payment.ID), zap.Error(err))
		return nil, err
	}

	checkoutID := strconv.FormatInt(checkout.ID, 10)
	if err := s.paymentRepo.SetInvoice(ctx, payment.ID, checkoutID, checkout.URL); err != nil {
		return nil, err
	}

	return &models.BylCheckoutResponse{
		PaymentID:   payment.ID,
		CheckoutID:  checkoutID,
		CheckoutURL: checkout.URL,
		Amount:      payment.Amount,
	}, nil
}

// CreateBankTransfer starts a bank transfer purchase. The payer quotes the returned reference
// and an admin confirms the payment once the money arrives.
func (s *paymentService) CreateBankTransfer(ctx context.Context, userID, courseID int) (*models.BankTransferResponse, error) {
	payment, _, err := s.createPending(ctx, userID, courseID, models.PaymentProviderBankTransfer)
	if err != nil {
		return nil, err
	}

	reference := newBankReference()
	if err := s.paymentRepo.SetInvoice(ctx, payment.ID, reference, ""); err != nil {
		return nil, err
	}

	settings, err := s.settingsRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	return &models.BankTransferResponse{
		PaymentID:     payment.ID,
		Reference:     reference,
		Amount:        payment.Amount,
		BankName:      settings[models.SettingBankName],
		AccountNumber: settings[models.SettingBankAccountNumber],
		AccountName:   settings[models.SettingBankAccountName],
	}, nil
}

// GetPayment returns a payment of the user
func (s *paymentService) GetPayment(ctx context.Context, userID, paymentID int) (*models.Payment, error) {
	return s.ownedPayment(ctx, userID, paymentID)
}

// ListPayments returns the payments of the user, newest first
func (s *paymentService) ListPayments(ctx context.Context, userID, page, count int) (*models.ListResponse[models.PaymentListItem], error) {
	items, total, err := s.paymentRepo.List(ctx, models.PaymentFilter{UserID: userID, Page: page, Count: count})
	if err != nil {
		return nil, err
	}
	return newListResponse(items, total, page, count), nil
}

// CheckPayment is the client poll: it asks the provider about a pending payment and completes it when paid
func (s *paymentService) CheckPayment(ctx context.Context, userID, paymentID int) (*models.PaymentStatusResponse, error) {
	payment, err := s.ownedPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != models.PaymentStatusPending {
		return s.statusResponse(payment), nil
	}

	paid, err := s.providerReportsPaid(ctx, payment)
	if err != nil {
		return nil, err
	}
	if !paid {
		// The sweep may not have run yet
		if payment.IsExpired(s.now(), s.cfg.Windows.For(payment.Provider)) {
			payment.Status = models.PaymentStatusFailed
		}
		return s.statusResponse(payment), nil
	}

	result, err := s.complete(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, models.ErrPaymentExpired) {
			payment.Status = models.PaymentStatusFailed
			return s.statusResponse(payment), nil
		}
		if errors.Is(err, models.ErrPaymentNotPending) {
			return s.reload(ctx, payment.ID)
		}
		return nil, err
	}

	return s.statusResponse(result.Payment), nil
}

// HandleQPayWebhook processes a QPay callback. Callbacks are unsigned, so the payment is
// re-verified through the QPay API before it is completed.
func (s *paymentService) HandleQPayWebhook(ctx context.Context, paymentID int) error {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Provider != models.PaymentProviderQPay {
		return models.ErrNotFound
	}
	if payment.Status == models.PaymentStatusCompleted {
		s.logger.Debug("duplicate qpay callback", zap.Int("payment_id", payment.ID))
		return nil
	}
	if payment.Status != models.PaymentStatusPending {
		return models.ErrPaymentNotPending
	}

	paid, err := s.providerReportsPaid(ctx, payment)
	if err != nil {
		return err
	}
	if !paid {
		s.logger.Warn("qpay callback for unpaid invoice", zap.Int("payment_id", payment.ID))
		return nil
	}

	_, err = s.complete(ctx, payment.ID)
	return err
}

// HandleBylWebhook processes a signed Byl event
func (s *paymentService) HandleBylWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.cfg.SkipWebhookSignature && !s.byl.VerifySignature(body, signature) {
		return models.ErrInvalidSignature
	}

	event, err := byl.ParseEvent(body)
	if err != nil {
		return err
	}
	if event.Type != byl.EventCheckoutCompleted {
		s.logger.Debug("ignoring byl event", zap.String("type", event.Type))
		return nil
	}

	checkoutID := strconv.FormatInt(event.Data.Object.ID, 10)
	payment, err := s.paymentRepo.GetByInvoice(ctx, models.PaymentProviderByl, checkoutID)
	if err != nil {
		return err
	}
	if payment.Status == models.PaymentStatusCompleted {
		s.logger.Debug("duplicate byl event", zap.Int("payment_id", payment.ID), zap.Int64("event_id", event.ID))
		return nil
	}

	_, err = s.complete(ctx, payment.ID)
	return err
}

// ConfirmBankTransfer lets an admin complete a bank transfer once the money arrived
func (s *paymentService) ConfirmBankTransfer(ctx context.Context, paymentID int) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Provider != models.PaymentProviderBankTransfer {
		return nil, models.ErrUnsupported
	}

	result, err := s.complete(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	return result.Payment, nil
}

// CancelPayment cancels a pending payment. Students may only cancel their own payments.
func (s *paymentService) CancelPayment(ctx context.Context, userID int, isAdmin bool, paymentID int) error {
	if !isAdmin {
		if _, err := s.ownedPayment(ctx, userID, paymentID); err != nil {
			return err
		}
	}
	if err := s.paymentRepo.Cancel(ctx, paymentID); err != nil {
		return err
	}

	s.logger.Info("Payment cancelled", zap.Int("payment_id", paymentID), zap.Int("by_user", userID))
	return nil
}

// ListAllPayments returns payments for the admin console
func (s *paymentService) ListAllPayments(ctx context.Context, filter models.PaymentFilter) (*models.ListResponse[models.PaymentListItem], error) {
	items, total, err := s.paymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newListResponse(items, total, filter.Page, filter.Count), nil
}

// ExpireStale fails pending payments that outlived their expiry window
func (s *paymentService) ExpireStale(ctx context.Context) (int64, error) {
	expired, err := s.paymentRepo.ExpireStale(ctx, s.now(), s.cfg.Windows)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("Expired stale payments", zap.Int64("count", expired))
	}
	return expired, nil
}

// complete is the single completion path. The confirmation email is only scheduled
// for the call that actually moved the payment to completed.
func (s *paymentService) complete(ctx context.Context, paymentID int) (*models.CompletionResult, error) {
	result, err := s.paymentRepo.Complete(ctx, paymentID, s.now(), s.cfg.Windows)
	if err != nil {
		if errors.Is(err, models.ErrPaymentExpired) {
			s.logger.Warn("late completion of expired payment", zap.Int("payment_id", paymentID))
		}
		return nil, err
	}

	if result.AlreadyCompleted {
		s.logger.Debug("payment already completed", zap.Int("payment_id", paymentID))
		return result, nil
	}

	s.logger.Info("Payment completed",
		zap.Int("payment_id", paymentID),
		zap.Int("user_id", result.Payment.UserID),
		zap.Int("course_id", result.Payment.CourseID),
		zap.String("provider", string(result.Payment.Provider)),
	)

	if err := s.notifier.EnqueueEnrollmentEmail(ctx, paymentID); err != nil {
		s.logger.Warn("failed to enqueue enrollment email", zap.Int("payment_id", paymentID), zap.Error(err))
	}

	return result, nil
}

// createPending validates a purchase and inserts the pending payment
func (s *paymentService) createPending(ctx context.Context, userID, courseID int, provider models.PaymentProvider) (*models.Payment, *models.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	if !course.IsPublished {
		return nil, nil, models.ErrNotFound
	}
	if course.Price <= 0 {
		return nil, nil, models.ErrCourseFree
	}

	enrolled, err := s.enrollmentRepo.Exists(ctx, userID, courseID)
	if err != nil {
		return nil, nil, err
	}
	if enrolled {
		return nil, nil, models.ErrAlreadyEnrolled
	}

	payment := &models.Payment{
		UserID:    userID,
		CourseID:  courseID,
		Amount:    course.Price,
		Currency:  models.CurrencyMNT,
		Status:    models.PaymentStatusPending,
		Provider:  provider,
		CreatedAt: s.now(),
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, nil, err
	}

	s.logger.Info("Payment created",
		zap.Int("payment_id", payment.ID),
		zap.Int("user_id", userID),
		zap.Int("course_id", courseID),
		zap.String("provider", string(provider)),
	)
	return payment, course, nil
}

// providerReportsPaid asks the provider whether a payment was paid.
// Bank transfers are only confirmed by an admin.
func (s *paymentService) providerReportsPaid(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment.InvoiceID == "" {
		return false, nil
	}

	switch payment.Provider {
	case models.PaymentProviderQPay:
		result, err := s.qpay.CheckPayment(ctx, payment.InvoiceID)
		if err != nil {
			s.logger.Error("failed to check qpay payment", zap.Int("payment_id", payment.ID), zap.Error(err))
			return false, err
		}
		return result.Paid(), nil
	case models.PaymentProviderByl:
		checkout, err := s.byl.GetCheckout(ctx, payment.InvoiceID)
		if err != nil {
			s.logger.Error("failed to get byl checkout", zap.Int("payment_id", payment.ID), zap.Error(err))
			return false, err
		}
		return checkout.Completed(), nil
	default:
		return false, nil
	}
}

func (s *paymentService) ownedPayment(ctx context.Context, userID, paymentID int) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, models.ErrNotFound
	}
	return payment, nil
}

func (s *paymentService) reload(ctx context.Context, paymentID int) (*models.PaymentStatusResponse, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.statusResponse(payment), nil
}

func (s *paymentService) statusResponse(payment *models.Payment) *models.PaymentStatusResponse {
	return &models.PaymentStatusResponse{
		PaymentID: payment.ID,
		Status:    payment.Status,
		Enrolled:  payment.Status == models.PaymentStatusCompleted,
	}
}

// newBankReference returns a short code such as BT-1A2B3C4D
func newBankReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BT-" + strings.ToUpper(id[:8])
}

func newListResponse[T any](items []T, total, page, count int) *models.ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = defaultPageSize
	} else if count > maxPageSize {
		count = maxPageSize
	}
	return &models.ListResponse[T]{
		Items: items,
		Total: total,
		Page:  page,
		Count: count,
	}
}
