package utils

import (
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"

	"github.com/cppla/photoshare/config"
)

// Mailer delivers account emails over SMTP.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	baseURL  string
	logger   *zap.Logger
}

// NewMailer builds a Mailer from configuration.
func NewMailer(cfg config.AppConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		fromName: cfg.SMTPFromName,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:   logger,
	}
}

// Configured reports whether SMTP delivery is possible.
func (m *Mailer) Configured() bool {
	return m.host != "" && m.from != ""
}

// SendConfirmation mails the email confirmation link in the background.
// Delivery failures are logged and never reach the caller.
func (m *Mailer) SendConfirmation(email, username, token string) {
	link := ConfirmationLink(m.baseURL, token)
	if !m.Configured() {
		m.logger.Info("smtp not configured, confirmation link not mailed",
			zap.String("email", email), zap.String("link", link))
		return
	}
	go func() {
		body := fmt.Sprintf(
			`<p>Hi %s,</p><p>Please confirm your email by following <a href="%s">this link</a>.</p>`,
			html.EscapeString(username), link)
		if err := m.Send(email, "Confirm your email", body); err != nil {
			m.logger.Error("confirmation email failed", zap.String("email", email), zap.Error(err))
		}
	}()
}

// Send sends an HTML email using gopkg.in/mail.v2.
func (m *Mailer) Send(to, subject, body string) error {
	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	d := mail.NewDialer(m.host, m.port, m.username, m.password)
	if m.port == 465 {
		d.SSL = true
	}
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// ConfirmationLink builds the public URL that confirms an email token.
func ConfirmationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/auth/confirmed_email/" + token
}
