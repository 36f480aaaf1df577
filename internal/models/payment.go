package models

import "time"

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// PaymentProvider identifies how a payment is collected
type PaymentProvider string

const (
	PaymentProviderQPay         PaymentProvider = "qpay"
	PaymentProviderByl          PaymentProvider = "byl"
	PaymentProviderBankTransfer PaymentProvider = "bank_transfer"
)

// CurrencyMNT is the only supported currency
const CurrencyMNT = "MNT"

// Payment represents one purchase attempt of a course
type Payment struct {
	ID          int             `json:"id"`
	UserID      int             `json:"userId"`
	CourseID    int             `json:"courseId"`
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Status      PaymentStatus   `json:"status"`
	Provider    PaymentProvider `json:"provider"`
	InvoiceID   string          `json:"invoiceId,omitempty"`
	CheckoutURL string          `json:"checkoutUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// IsExpired reports whether a pending payment has outlived the expiry window
func (p *Payment) IsExpired(now time.Time, window time.Duration) bool {
	return p.Status == PaymentStatusPending && now.Sub(p.CreatedAt) > window
}

// ExpiryWindows bounds how long a payment may stay pending. Gateway payments settle within
// minutes while bank transfers wait for an admin to see the money arrive.
type ExpiryWindows struct {
	Gateway      time.Duration
	BankTransfer time.Duration
}

// For returns the window that applies to provider
func (w ExpiryWindows) For(provider PaymentProvider) time.Duration {
	if provider == PaymentProviderBankTransfer {
		return w.BankTransfer
	}
	return w.Gateway
}

// PaymentListItem is a payment with display names for the admin console
type PaymentListItem struct {
	Payment
	UserEmail   string `json:"userEmail"`
	CourseTitle string `json:"courseTitle"`
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	UserID   int
	Status   PaymentStatus
	Provider PaymentProvider
	Page     int
	Count    int
}

// CompletionResult is the outcome of completing a payment
type CompletionResult struct {
	Payment          *Payment
	AlreadyCompleted bool
}

// CreatePaymentRequest starts a purchase of a course
type CreatePaymentRequest struct {
	CourseID int `json:"courseId" validate:"required,gt=0"`
}

// BankURL is a deeplink into a banking app for a QPay invoice
type BankURL struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
	Link        string `json:"link"`
}

// QPayInvoiceResponse is returned to the client after creating a QPay invoice
type QPayInvoiceResponse struct {
	PaymentID int       `json:"paymentId"`
	InvoiceID string    `json:"invoiceId"`
	Amount    int64     `json:"amount"`
	QRText    string    `json:"qrText"`
	QRImage   string    `json:"qrImage"`
	ShortURL  string    `json:"shortUrl,omitempty"`
	URLs      []BankURL `json:"urls"`
}

// BylCheckoutResponse is returned to the client after creating a Byl checkout
type BylCheckoutResponse struct {
	PaymentID   int    `json:"paymentId"`
	CheckoutID  string `json:"checkoutId"`
	CheckoutURL string `json:"checkoutUrl"`
	Amount      int64  `json:"amount"`
}

// BankTransferResponse carries the reference the payer must quote and where to send money
type BankTransferResponse struct {
	PaymentID     int    `json:"paymentId"`
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
}

// PaymentStatusResponse is the result of polling a payment
type PaymentStatusResponse struct {
	PaymentID int           `json:"paymentId"`
	Status    PaymentStatus `json:"status"`
	Enrolled  bool          `json:"enrolled"`
}
