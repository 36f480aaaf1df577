// Package byl is a client for the Byl checkout API
package byl

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the webhook body
	SignatureHeader = "Byl-Signature"

	// EventCheckoutCompleted is sent once a checkout is paid
	EventCheckoutCompleted = "checkout.completed"

	checkoutComplete = "complete"
	requestTimeout   = 15 * time.Second
)

// Config holds Byl project credentials
type Config struct {
	BaseURL    string
	ProjectID  string
	Token      string
	HookSecret string
}

// Client talks to Byl
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Byl client
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

// Enabled reports whether project credentials are configured
func (c *Client) Enabled() bool {
	return c.cfg.ProjectID != "" && c.cfg.Token != ""
}

// CheckoutRequest describes a checkout session for a single item
type CheckoutRequest struct {
	ClientReferenceID string
	CustomerEmail     string
	ItemName          string
	Amount            int64
	SuccessURL        string
	CancelURL         string
}

// Checkout is a Byl checkout session
type Checkout struct {
	ID                int64  `json:"id"`
	URL               string `json:"url"`
	Status            string `json:"status"`
	ClientReferenceID string `json:"client_reference_id"`
}

// Completed reports whether the checkout was paid
func (c *Checkout) Completed() bool {
	return c.Status == checkoutComplete
}

// Event is a webhook notification
type Event struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object Checkout `json:"object"`
	} `json:"data"`
}

type checkoutEnvelope struct {
	Data Checkout `json:"data"`
}

// CreateCheckout creates a checkout session
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body := map[string]any{
		"success_url":         req.SuccessURL,
		"cancel_url":          req.CancelURL,
		"client_reference_id": req.ClientReferenceID,
		"customer_email":      req.CustomerEmail,
		"items": []map[string]any{
			{
				"price_data": map[string]any{
					"unit_amount": req.Amount,
					"product_data": map[string]string{
						"name": req.ItemName,
					},
				},
				"quantity": 1,
			},
		},
	}

	var envelope checkoutEnvelope
	if err := c.do(ctx, http.MethodPost, c.checkoutsPath(), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to create byl checkout: %w", err)
	}
	if envelope.Data.ID == 0 || envelope.Data.URL == "" {
		return nil, fmt.Errorf("failed to create byl checkout: incomplete response")
	}

	return &envelope.Data, nil
}

// GetCheckout fetches a checkout session by id
func (c *Client) GetCheckout(ctx context.Context, checkoutID string) (*Checkout, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var envelope checkoutEnvelope
	if err := c.do(ctx, http.MethodGet, c.checkoutsPath()+"/"+checkoutID, nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to get byl checkout: %w", err)
	}
	return &envelope.Data, nil
}

// VerifySignature checks the webhook signature against the hook secret
func (c *Client) VerifySignature(body []byte, signature string) bool {
	return VerifySignature(body, signature, c.cfg.HookSecret)
}

// VerifySignature reports whether signature is the hex HMAC-SHA256 of body under secret
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, Sign(body, secret))
}

// Sign computes the raw HMAC-SHA256 of body
func Sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// ParseEvent decodes a webhook body
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode byl event: %w", err)
	}
	return &event, nil
}

func (c *Client) checkoutsPath() string {
	return fmt.Sprintf("/api/v1/projects/%s/checkouts", c.cfg.ProjectID)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("byl request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return fmt.Errorf("byl returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
