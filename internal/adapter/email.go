package adapter

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"net"
	"net/textproto"
	"strconv"

	"gopkg.in/mail.v2"
)

// EmailOption configures an EmailAdapter beyond its required fields.
type EmailOption func(*EmailAdapter)

// WithEmailPriorityHeader sets the X-Priority header sent with every
// message (1=urgent .. 5=low, per common MUA convention).
func WithEmailPriorityHeader(value string) EmailOption {
	return func(a *EmailAdapter) { a.priorityHeader = value }
}

// EmailAdapter sends mail through one SMTP dialer. Every Send opens its own
// SMTP connection; connections are not pooled or reused between sends.
type EmailAdapter struct {
	smtpHost       string
	smtpPort       int
	username       string
	password       string
	from           string
	priorityHeader string
	dialer         *mail.Dialer
}

// NewEmailAdapter builds an EmailAdapter. Missing host/username/password is
// not an error here: it is surfaced as Misconfigured on the first Send, so
// construction never fails at startup.
func NewEmailAdapter(smtpHost string, smtpPort int, username, password, from string, opts ...EmailOption) *EmailAdapter {
	a := &EmailAdapter{
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		username: username,
		password: password,
		from:     from,
	}

	if smtpHost != "" && username != "" {
		d := mail.NewDialer(smtpHost, smtpPort, username, password)
		d.TLSConfig = &tls.Config{ServerName: smtpHost} // #nosec G402 -- host pinned, not InsecureSkipVerify
		a.dialer = d
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Send delivers one email with an HTML body and a plain-text fallback.
// content is treated as the plain-text body; meta["html"] supplies the HTML
// alternative when present. meta["cc"], meta["bcc"] and meta["reply_to"]
// accept comma-separated address lists; meta["attachments"] accepts a
// []string of file paths.
func (a *EmailAdapter) Send(ctx context.Context, recipient, subject, content string, meta Metadata) (SendResult, error) {
	if a.dialer == nil {
		return SendResult{}, Misconfigured("email adapter has no SMTP credentials", nil)
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", a.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	if a.priorityHeader != "" {
		msg.SetHeader("X-Priority", a.priorityHeader)
	}
	if cc, ok := meta["cc"].(string); ok && cc != "" {
		msg.SetHeader("Cc", cc)
	}
	if bcc, ok := meta["bcc"].(string); ok && bcc != "" {
		msg.SetHeader("Bcc", bcc)
	}
	if replyTo, ok := meta["reply_to"].(string); ok && replyTo != "" {
		msg.SetHeader("Reply-To", replyTo)
	}

	msg.SetBody("text/plain", content)
	if html, ok := meta["html"].(string); ok && html != "" {
		msg.AddAlternative("text/html", html)
	}
	if attachments, ok := meta["attachments"].([]string); ok {
		for _, path := range attachments {
			msg.Attach(path)
		}
	}

	messageID := generateMessageID(a.smtpHost)
	msg.SetHeader("Message-Id", messageID)

	if err := a.dialer.DialAndSend(msg); err != nil {
		return SendResult{}, classifySMTPError(err)
	}

	return SendResult{MessageID: messageID, ProviderResponse: "250 OK"}, nil
}

func (a *EmailAdapter) Verify(ctx context.Context) error {
	if a.dialer == nil {
		return Misconfigured("email adapter has no SMTP credentials", nil)
	}

	closer, err := a.dialer.Dial()
	if err != nil {
		return classifySMTPError(err)
	}
	return closer.Close()
}

func (a *EmailAdapter) Status() Status {
	return Status{
		Configured: a.dialer != nil,
		Channel:    "email",
		Extra: map[string]string{
			"smtp_host": a.smtpHost,
			"smtp_port": strconv.Itoa(a.smtpPort),
		},
	}
}

// classifySMTPError maps dialer/transport errors onto the mandatory
// classification. SMTP permanent errors (5xx reply codes) are Permanent;
// everything else (DNS failures, connection refused, 4xx, timeouts) is
// Transient since the mailbox/recipient was never conclusively rejected.
func classifySMTPError(err error) error {
	var textErr *textproto.Error
	if errors.As(err, &textErr) {
		if textErr.Code >= 500 && textErr.Code < 600 {
			return Permanent("smtp permanent rejection", err)
		}
		return Transient("smtp transient error", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient("smtp network error", err)
	}

	return Transient("smtp send failed", err)
}

func generateMessageID(host string) string {
	if host == "" {
		host = "localhost"
	}
	return "<" + randomToken() + "@" + host + ">"
}

func randomToken() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "notifyhub"
	}
	return hex.EncodeToString(buf)
}
