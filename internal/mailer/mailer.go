// Package mailer sends transactional email through SendGrid, or SMTP when no API key is set
package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// Message is a single email
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers email
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures the transport
type Config struct {
	SendGridKey  string
	FromName     string
	FromAddress  string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// New returns a SendGrid sender when an API key is configured and an SMTP sender otherwise
func New(cfg Config, logger *zap.Logger) Sender {
	if cfg.SendGridKey != "" {
		logger.Info("Using SendGrid mailer")
		return NewSendGridSender(cfg.SendGridKey, cfg.FromName, cfg.FromAddress, logger)
	}
	logger.Info("Using SMTP mailer", zap.String("host", cfg.SMTPHost))
	return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromAddress)
}

// SendGridSender sends mail through the SendGrid v3 API
type SendGridSender struct {
	key    string
	host   string
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendGridSender creates a SendGridSender
func NewSendGridSender(key, fromName, fromAddress string, logger *zap.Logger) *SendGridSender {
	return &SendGridSender{
		key:    key,
		host:   sendGridHost,
		from:   sgmail.NewEmail(fromName, fromAddress),
		logger: logger,
	}
}

// Send delivers msg
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail("", msg.To))
	p.Subject = msg.Subject

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))

	req := sendgrid.GetRequest(s.key, sendGridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		s.logger.Warn("sendgrid rejected email",
			zap.Int("status", resp.StatusCode),
			zap.String("body", resp.Body),
		)
		return fmt.Errorf("failed to send email: sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

// SMTPSender sends mail through an SMTP relay
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPSender creates an SMTPSender
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers msg
func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	d := mail.NewDialer(s.host, s.port, s.username, s.password)
	if err := d.DialAndSend(s.build(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}
	return m
}
