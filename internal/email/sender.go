package email

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"krishilink/api/internal/config"
)

// KindHeader tags a message with the notification it carries. Mock senders
// use it to key stored messages.
const KindHeader = "X-Notification-Kind"

// Sender defines the interface for sending emails.
// The rawMessage parameter should contain the full email message, including headers and body, properly formatted.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// Message is a plain-text notification email.
type Message struct {
	From    string
	To      string
	Subject string
	Kind    string
	Body    string
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue folds line breaks so a value can never start a new header.
func headerValue(v string) string {
	return headerBreaks.Replace(v)
}

// Bytes renders m with the headers an SMTP relay expects. The subject is
// RFC 2047 encoded when it is not plain ASCII.
func (m Message) Bytes(at time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\r\n", headerValue(m.To))
	fmt.Fprintf(&sb, "From: %s\r\n", headerValue(m.From))
	fmt.Fprintf(&sb, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(m.Subject)))
	sb.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	if m.Kind != "" {
		fmt.Fprintf(&sb, "%s: %s\r\n", KindHeader, headerValue(m.Kind))
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(m.Body)
	if !strings.HasSuffix(m.Body, "\r\n") {
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}

// KindOf returns the notification kind header of a raw message, or "unknown".
func KindOf(rawMessage []byte) string {
	headers := string(rawMessage)
	if i := strings.Index(headers, "\r\n\r\n"); i >= 0 {
		headers = headers[:i]
	}
	prefix := KindHeader + ": "
	for _, line := range strings.Split(headers, "\r\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return "unknown"
}

// SMTPSender implements the Sender interface using Go's net/smtp package.
type SMTPSender struct {
	cfg    *config.Config
	auth   smtp.Auth
	addr   string
	logger *zap.Logger
}

// NewSMTPSender creates a new SMTPSender, or a LoggingSender when no SMTP
// host is configured.
func NewSMTPSender(cfg *config.Config, logger *zap.Logger) Sender {
	if cfg.SmtpHost == "" {
		logger.Info("SMTP host not configured, using logging email sender")
		return &LoggingSender{cfg: cfg, logger: logger}
	}

	auth := smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	return &SMTPSender{
		cfg:    cfg,
		auth:   auth,
		addr:   fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
		logger: logger,
	}
}

// Send sends an email using SMTP.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := smtp.SendMail(s.addr, s.auth, s.cfg.SmtpFromAddress, to, rawMessage); err != nil {
		s.logger.Error("Failed to send email via SMTP", zap.Strings("to", to), zap.Error(err))
		return fmt.Errorf("smtp error: %w", err)
	}
	s.logger.Info("Email sent via SMTP", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

// LoggingSender only logs email details. Useful for development or when SMTP
// isn't configured.
type LoggingSender struct {
	cfg    *config.Config
	logger *zap.Logger
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.logger.Info("Email (logged, not sent)",
		zap.Strings("to", to),
		zap.String("from", s.cfg.SmtpFromAddress),
		zap.String("subject", subject),
		zap.String("kind", KindOf(rawMessage)),
		zap.ByteString("raw", rawMessage),
	)
	return nil
}
