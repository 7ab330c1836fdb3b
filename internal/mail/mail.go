package mail

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/velmora/storefront/internal/config"
)

// Sender delivers transactional mail. Handlers depend on this interface so
// tests can substitute a recorder.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.SMTP_HOST, cfg.SMTP_PORT, cfg.SMTP_USER, cfg.SMTP_PASSWORD),
		from:   cfg.MAIL_FROM,
	}
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

func OTPBody(code string) string {
	return fmt.Sprintf(`<p>Your verification code is <b>%s</b>. It expires in 10 minutes.</p>`, code)
}

func VerificationBody(link string) string {
	return fmt.Sprintf(`<p>Confirm your email address by following <a href=%q>this link</a>.</p>`, link)
}
