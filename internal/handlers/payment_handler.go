package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/middlewares"
	"github.com/onlinecourse/backend/internal/models"
)

// BylSignatureHeader carries the hex HMAC-SHA256 of a Byl webhook body
const BylSignatureHeader = "Byl-Signature"

// maxWebhookBody bounds the webhook payload read into memory
const maxWebhookBody = 1 << 20

// PaymentService is the interface that wraps methods for course purchases.
type PaymentService interface {
	// Method CreateQPayInvoice starts a QPay payment for a published course and returns the invoice with QR data.
	//
	// If the course is missing or unpublished, ErrNotFound will be returned. If the user already owns it, ErrAlreadyEnrolled will be returned.
	CreateQPayInvoice(ctx context.Context, userID, courseID int) (*models.QPayInvoiceResponse, error)
	// Method CreateBylCheckout starts a Byl checkout and returns the hosted checkout URL.
	//
	// Guards are the same as for CreateQPayInvoice.
	CreateBylCheckout(ctx context.Context, userID, courseID int) (*models.BylCheckoutResponse, error)
	// Method CreateBankTransfer records a bank transfer intent and returns the reference code with the bank account to pay to.
	CreateBankTransfer(ctx context.Context, userID, courseID int) (*models.BankTransferResponse, error)
	// Method GetPayment returns a payment owned by the user. Payments of other users are reported as ErrNotFound.
	GetPayment(ctx context.Context, userID, paymentID int) (*models.Payment, error)
	// Method ListPayments returns a page of the user's payments, newest first.
	ListPayments(ctx context.Context, userID, page, count int) (*models.ListResponse[models.PaymentListItem], error)
	// Method CheckPayment polls the provider for a pending payment and completes it when paid.
	CheckPayment(ctx context.Context, userID, paymentID int) (*models.PaymentStatusResponse, error)
	// Method HandleQPayWebhook re-verifies an unsigned QPay callback with the provider and completes the payment.
	HandleQPayWebhook(ctx context.Context, paymentID int) error
	// Method HandleBylWebhook verifies the signature of a Byl event and completes the matching payment.
	//
	// If the signature does not match, ErrInvalidSignature will be returned.
	HandleBylWebhook(ctx context.Context, body []byte, signature string) error
	// Method ConfirmBankTransfer completes a bank transfer payment once an admin saw the money arrive.
	ConfirmBankTransfer(ctx context.Context, paymentID int) (*models.Payment, error)
	// Method CancelPayment moves a pending payment to cancelled. Students may cancel only their own payments.
	CancelPayment(ctx context.Context, userID int, isAdmin bool, paymentID int) error
	// Method ListAllPayments returns a filtered page of every payment for the admin console.
	ListAllPayments(ctx context.Context, filter models.PaymentFilter) (*models.ListResponse[models.PaymentListItem], error)
}

// PaymentHandler handles payment and webhook HTTP requests
type PaymentHandler struct {
	BaseHandler
	paymentService PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    BaseHandler{Logger: logger},
		paymentService: paymentService,
	}
}

// RegisterRoutes registers student payment routes and provider webhooks
// Note: This assumes the router is already scoped to /api/v1
func (h *PaymentHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/payments", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListPayments)
		r.Post("/qpay", h.CreateQPayInvoice)
		r.Post("/byl", h.CreateBylCheckout)
		r.Post("/bank-transfer", h.CreateBankTransfer)
		r.Get("/{id}", h.GetPayment)
		r.Post("/{id}/check", h.CheckPayment)
		r.Post("/{id}/cancel", h.CancelPayment)
	})
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/qpay", h.QPayWebhook)
		r.Post("/byl", h.BylWebhook)
	})
}

// RegisterAdminRoutes registers payment management routes
// Note: This assumes the router is already scoped to /api/v1/admin and guarded by the admin role
func (h *PaymentHandler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.ListAllPayments)
		r.Post("/{id}/confirm", h.ConfirmBankTransfer)
		r.Post("/{id}/cancel", h.CancelPayment)
	})
}

// CreateQPayInvoice handles POST /payments/qpay
// @Summary Create QPay invoice
// @Tags payments
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreatePaymentRequest true "Course to buy"
// @Success 201 {object} models.QPayInvoiceResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 404 {object} map[string]string "Course not found"
// @Failure 409 {object} map[string]string "Already enrolled"
// @Failure 503 {object} map[string]string "Provider not configured"
// @Router /payments/qpay [post]
func (h *PaymentHandler) CreateQPayInvoice(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := h.purchaseRequest(w, r)
	if !ok {
		return
	}

	invoice, err := h.paymentService.CreateQPayInvoice(r.Context(), userID, courseID)
	if err != nil {
		h.HandleServiceError(w, r, err, "create qpay invoice")
		return
	}

	h.RespondJSON(w, http.StatusCreated, invoice)
}

// CreateBylCheckout handles POST /payments/byl
// @Summary Create Byl checkout
// @Tags payments
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreatePaymentRequest true "Course to buy"
// @Success 201 {object} models.BylCheckoutResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 404 {object} map[string]string "Course not found"
// @Failure 409 {object} map[string]string "Already enrolled"
// @Failure 503 {object} map[string]string "Provider not configured"
// @Router /payments/byl [post]
func (h *PaymentHandler) CreateBylCheckout(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := h.purchaseRequest(w, r)
	if !ok {
		return
	}

	checkout, err := h.paymentService.CreateBylCheckout(r.Context(), userID, courseID)
	if err != nil {
		h.HandleServiceError(w, r, err, "create byl checkout")
		return
	}

	h.RespondJSON(w, http.StatusCreated, checkout)
}

// CreateBankTransfer handles POST /payments/bank-transfer
// @Summary Start bank transfer
// @Description Returns a reference code to put in the transfer description and the bank account to pay to
// @Tags payments
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreatePaymentRequest true "Course to buy"
// @Success 201 {object} models.BankTransferResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 404 {object} map[string]string "Course not found"
// @Failure 409 {object} map[string]string "Already enrolled"
// @Router /payments/bank-transfer [post]
func (h *PaymentHandler) CreateBankTransfer(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := h.purchaseRequest(w, r)
	if !ok {
		return
	}

	transfer, err := h.paymentService.CreateBankTransfer(r.Context(), userID, courseID)
	if err != nil {
		h.HandleServiceError(w, r, err, "create bank transfer")
		return
	}

	h.RespondJSON(w, http.StatusCreated, transfer)
}

func (h *PaymentHandler) purchaseRequest(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	userID, _ := middleware.GetUserID(r.Context())

	var req models.CreatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "create payment")
		return 0, 0, false
	}
	return userID, req.CourseID, true
}

// ListPayments handles GET /payments
// @Summary My payments
// @Tags payments
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number" default(1)
// @Param count query int false "Items per page" default(20)
// @Success 200 {object} models.ListResponse[models.PaymentListItem]
// @Router /payments [get]
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	page, count := parsePagination(r)

	resp, err := h.paymentService.ListPayments(r.Context(), userID, page, count)
	if err != nil {
		h.HandleServiceError(w, r, err, "list payments")
		return
	}

	h.RespondJSON(w, http.StatusOK, resp)
}

// GetPayment handles GET /payments/{id}
// @Summary Get payment
// @Tags payments
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} models.Payment
// @Failure 404 {object} map[string]string "Payment not found"
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.paymentService.GetPayment(r.Context(), userID, id)
	if err != nil {
		h.HandleServiceError(w, r, err, "get payment")
		return
	}

	h.RespondJSON(w, http.StatusOK, payment)
}

// CheckPayment handles POST /payments/{id}/check
// @Summary Poll payment
// @Description Ask the provider whether a pending payment was paid and enroll the user when it was
// @Tags payments
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} models.PaymentStatusResponse
// @Failure 404 {object} map[string]string "Payment not found"
// @Router /payments/{id}/check [post]
func (h *PaymentHandler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.paymentService.CheckPayment(r.Context(), userID, id)
	if err != nil {
		h.HandleServiceError(w, r, err, "check payment")
		return
	}

	h.RespondJSON(w, http.StatusOK, status)
}

// CancelPayment handles POST /payments/{id}/cancel and POST /admin/payments/{id}/cancel
// @Summary Cancel payment
// @Tags payments
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} map[string]string "Payment cancelled"
// @Failure 404 {object} map[string]string "Payment not found"
// @Failure 409 {object} map[string]string "Payment is not pending"
// @Router /payments/{id}/cancel [post]
func (h *PaymentHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	role, _ := middleware.GetRole(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.paymentService.CancelPayment(r.Context(), userID, role >= int(models.RoleAdmin), id); err != nil {
		h.HandleServiceError(w, r, err, "cancel payment")
		return
	}

	h.RespondJSON(w, http.StatusOK, map[string]string{"message": "payment cancelled"})
}

// QPayWebhook handles POST /webhooks/qpay
// @Summary QPay callback
// @Description Unsigned provider callback. The payment is verified with QPay before completion.
// @Tags webhooks
// @Produce json
// @Param payment_id query int true "Payment ID"
// @Success 200 {object} map[string]string "Acknowledged"
// @Failure 400 {object} map[string]string "Missing payment id"
// @Failure 404 {object} map[string]string "Payment not found"
// @Router /webhooks/qpay [post]
func (h *PaymentHandler) QPayWebhook(w http.ResponseWriter, r *http.Request) {
	paymentID, err := strconv.Atoi(r.URL.Query().Get("payment_id"))
	if err != nil || paymentID <= 0 {
		h.RespondError(w, http.StatusBadRequest, "invalid payment_id")
		return
	}

	err = h.paymentService.HandleQPayWebhook(r.Context(), paymentID)
	h.acknowledgeWebhook(w, r, err, "qpay", paymentID)
}

// BylWebhook handles POST /webhooks/byl
// @Summary Byl webhook
// @Description Signed provider event. The Byl-Signature header must hold the hex HMAC-SHA256 of the body.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Byl-Signature header string true "HMAC signature"
// @Success 200 {object} map[string]string "Acknowledged"
// @Failure 401 {object} map[string]string "Invalid signature"
// @Router /webhooks/byl [post]
func (h *PaymentHandler) BylWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	err = h.paymentService.HandleBylWebhook(r.Context(), body, r.Header.Get(BylSignatureHeader))
	h.acknowledgeWebhook(w, r, err, "byl", 0)
}

// acknowledgeWebhook answers a provider. Payments that can no longer change are acknowledged
// so the provider stops retrying.
func (h *PaymentHandler) acknowledgeWebhook(w http.ResponseWriter, r *http.Request, err error, provider string, paymentID int) {
	switch {
	case err == nil:
		h.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, models.ErrPaymentExpired), errors.Is(err, models.ErrPaymentNotPending):
		h.Logger.Warn("webhook for closed payment",
			middlewares.RequestIDField(r.Context()),
			zap.String("provider", provider),
			zap.Int("payment_id", paymentID),
			zap.Error(err),
		)
		h.RespondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	default:
		h.HandleServiceError(w, r, err, "handle "+provider+" webhook")
	}
}

// ListAllPayments handles GET /admin/payments
// @Summary List payments
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Status" Enums(pending, completed, failed, cancelled)
// @Param provider query string false "Provider" Enums(qpay, byl, bank_transfer)
// @Param userId query int false "User ID"
// @Param page query int false "Page number" default(1)
// @Param count query int false "Items per page" default(20)
// @Success 200 {object} models.ListResponse[models.PaymentListItem]
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Router /admin/payments [get]
func (h *PaymentHandler) ListAllPayments(w http.ResponseWriter, r *http.Request) {
	page, count := parsePagination(r)
	q := r.URL.Query()

	resp, err := h.paymentService.ListAllPayments(r.Context(), models.PaymentFilter{
		UserID:   queryInt(r, "userId"),
		Status:   models.PaymentStatus(q.Get("status")),
		Provider: models.PaymentProvider(q.Get("provider")),
		Page:     page,
		Count:    count,
	})
	if err != nil {
		h.HandleServiceError(w, r, err, "list all payments")
		return
	}

	h.RespondJSON(w, http.StatusOK, resp)
}

// ConfirmBankTransfer handles POST /admin/payments/{id}/confirm
// @Summary Confirm bank transfer
// @Description Complete a bank transfer payment and enroll the buyer
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} models.Payment
// @Failure 400 {object} map[string]string "Not a bank transfer"
// @Failure 404 {object} map[string]string "Payment not found"
// @Failure 409 {object} map[string]string "Payment is not pending or expired"
// @Router /admin/payments/{id}/confirm [post]
func (h *PaymentHandler) ConfirmBankTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.paymentService.ConfirmBankTransfer(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err, "confirm bank transfer")
		return
	}

	h.RespondJSON(w, http.StatusOK, payment)
}
