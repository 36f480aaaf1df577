// Package qpay is a client for the QPay v2 merchant API
package qpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	invoiceTimeout = 15 * time.Second
	// tokens are refreshed this long before QPay expires them
	tokenLeeway = 30 * time.Second

	statusPaid = "PAID"
)

var errUnauthorized = errors.New("qpay: unauthorized")

// Config holds the merchant credentials
type Config struct {
	BaseURL     string
	Username    string
	Password    string
	InvoiceCode string
}

// Client talks to QPay. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewClient creates a QPay client
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Enabled reports whether merchant credentials are configured
func (c *Client) Enabled() bool {
	return c.cfg.Username != "" && c.cfg.Password != "" && c.cfg.InvoiceCode != ""
}

// InvoiceRequest describes an invoice to create
type InvoiceRequest struct {
	SenderInvoiceNo string
	ReceiverCode    string
	Description     string
	Amount          int64
	CallbackURL     string
}

// URL is a bank app deeplink
type URL struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
	Link        string `json:"link"`
}

// Invoice is a created QPay invoice
type Invoice struct {
	InvoiceID string `json:"invoice_id"`
	QRText    string `json:"qr_text"`
	QRImage   string `json:"qr_image"`
	ShortURL  string `json:"qPay_shortUrl"`
	URLs      []URL  `json:"urls"`
}

// CheckResult is the payment state of an invoice
type CheckResult struct {
	Count      int     `json:"count"`
	PaidAmount float64 `json:"paid_amount"`
	Rows       []struct {
		PaymentID     string `json:"payment_id"`
		PaymentStatus string `json:"payment_status"`
		PaymentAmount string `json:"payment_amount"`
	} `json:"rows"`
}

// Paid reports whether any payment against the invoice succeeded
func (r *CheckResult) Paid() bool {
	for _, row := range r.Rows {
		if row.PaymentStatus == statusPaid {
			return true
		}
	}
	return false
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CreateInvoice creates a simple invoice. The call is bounded by its own 15 second timeout.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, invoiceTimeout)
	defer cancel()

	body := map[string]any{
		"invoice_code":          c.cfg.InvoiceCode,
		"sender_invoice_no":     req.SenderInvoiceNo,
		"invoice_receiver_code": req.ReceiverCode,
		"invoice_description":   req.Description,
		"amount":                req.Amount,
		"callback_url":          req.CallbackURL,
	}

	var invoice Invoice
	if err := c.authorizedPost(ctx, "/v2/invoice", body, &invoice); err != nil {
		return nil, fmt.Errorf("failed to create qpay invoice: %w", err)
	}
	if invoice.InvoiceID == "" {
		return nil, fmt.Errorf("failed to create qpay invoice: empty invoice id")
	}

	return &invoice, nil
}

// CheckPayment asks QPay whether an invoice has been paid
func (c *Client) CheckPayment(ctx context.Context, invoiceID string) (*CheckResult, error) {
	body := map[string]any{
		"object_type": "INVOICE",
		"object_id":   invoiceID,
		"offset": map[string]int{
			"page_number": 1,
			"page_limit":  100,
		},
	}

	var result CheckResult
	if err := c.authorizedPost(ctx, "/v2/payment/check", body, &result); err != nil {
		return nil, fmt.Errorf("failed to check qpay payment: %w", err)
	}
	return &result, nil
}

// authorizedPost sends a bearer-authenticated request, refreshing the token once on 401
func (c *Client) authorizedPost(ctx context.Context, path string, body, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}

		err = c.post(ctx, path, body, out, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
		if errors.Is(err, errUnauthorized) {
			c.invalidateToken()
			continue
		}
		return err
	}
	return errUnauthorized
}

// token returns a cached access token, fetching a new one when it is missing or about to expire
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(tokenLeeway).Before(c.expiresAt) {
		return c.accessToken, nil
	}

	var resp tokenResponse
	err := c.post(ctx, "/v2/auth/token", nil, &resp, func(r *http.Request) {
		r.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	})
	if err != nil {
		return "", fmt.Errorf("failed to get qpay token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("failed to get qpay token: empty access token")
	}

	c.accessToken = resp.AccessToken
	c.expiresAt = tokenExpiry(resp.ExpiresIn, time.Now())
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.expiresAt = time.Time{}
}

// tokenExpiry interprets expires_in, which QPay sends as a unix timestamp.
// Small values are treated as a lifetime in seconds.
func tokenExpiry(expiresIn int64, now time.Time) time.Time {
	if expiresIn > 1_000_000_000 {
		return time.Unix(expiresIn, 0)
	}
	if expiresIn <= 0 {
		return now
	}
	return now.Add(time.Duration(expiresIn) * time.Second)
}

func (c *Client) post(ctx context.Context, path string, body, out any, authorize func(*http.Request)) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("qpay request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return fmt.Errorf("qpay returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
