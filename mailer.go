package migrasi

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"text/template"
	"time"

	"github.com/jordan-wright/email"
)

// Mailer delivers outbound email. Sending is advisory: a lost email never
// fails the operation that queued it. The invitation goes to addresses with
// no account yet, so it carries the inviting author's name, not the
// recipient's.
type Mailer interface {
	SendEmailConfirmation(name, address, token string)
	SendProjectInvitation(authorName, address, projectName string)
}

type noopMailer struct{}

func (noopMailer) SendEmailConfirmation(name, address, token string)             {}
func (noopMailer) SendProjectInvitation(authorName, address, projectName string) {}

// SMTPConfig carries the SMTP endpoint and credentials for the mailer.
type SMTPConfig struct {
	Addr        string `env:"SMTP_ADDR"`
	Username    string `env:"SMTP_USERNAME"`
	Password    string `env:"SMTP_PASSWORD"`
	FromAddress string `env:"SMTP_FROM"`
	UseTLS      bool   `env:"SMTP_TLS" envDefault:"true"`
}

// SMTPMailer sends through a single SMTP endpoint. Deliveries run on their own
// goroutine with three attempts and a doubling backoff; a delivery that still
// fails is logged and dropped.
type SMTPMailer struct {
	cfg     SMTPConfig
	baseURL string
	logger  Logger

	// send is swapped in tests
	send func(e *email.Email) error
	// spawn is the goroutine launcher, synchronous in tests
	spawn func(f func())
}

// SendAttempts is how many times a delivery is tried before giving up.
var SendAttempts = 3

// SendBackoff is the delay before the second attempt; it doubles after that.
var SendBackoff = 500 * time.Millisecond

func NewSMTPMailer(cfg SMTPConfig, baseURL string, logger Logger) *SMTPMailer {
	if logger == nil {
		logger = defLogger{}
	}
	m := &SMTPMailer{
		cfg:     cfg,
		baseURL: baseURL,
		logger:  logger,
		spawn:   func(f func()) { go f() },
	}
	m.send = m.smtpSend
	return m
}

var _ Mailer = (*SMTPMailer)(nil)

// SendEmailConfirmation mails the account confirmation link.
func (m *SMTPMailer) SendEmailConfirmation(name, address, token string) {
	confirmURL := m.baseURL + "/auth/confirm?token=" + token

	e := &email.Email{
		To:      []string{address},
		From:    fmt.Sprintf("migrasi <%s>", m.cfg.FromAddress),
		Subject: "Confirm your email",
		Text:    []byte("Use this link to confirm your email: " + confirmURL),
		HTML: renderEmailBody(confirmationBodyTemplate, map[string]any{
			"Name": name,
			"URL":  confirmURL,
		}),
	}

	m.deliver(e)
}

// SendProjectInvitation mails an address with no account yet: the author
// wants them on a project, so they are invited to join the platform.
func (m *SMTPMailer) SendProjectInvitation(authorName, address, projectName string) {
	e := &email.Email{
		To:      []string{address},
		From:    fmt.Sprintf("migrasi <%s>", m.cfg.FromAddress),
		Subject: fmt.Sprintf("You are invited to join %s on migrasi", projectName),
		Text:    []byte(fmt.Sprintf("%s invited you to collaborate on %q. Sign up at %s to join your team.", authorName, projectName, m.baseURL)),
		HTML: renderEmailBody(invitationBodyTemplate, map[string]any{
			"Author":  authorName,
			"Project": projectName,
			"URL":     m.baseURL,
		}),
	}

	m.deliver(e)
}

func (m *SMTPMailer) deliver(e *email.Email) {
	m.spawn(func() {
		backoff := SendBackoff
		var err error
		for attempt := 1; attempt <= SendAttempts; attempt++ {
			if err = m.send(e); err == nil {
				return
			}
			m.logger.Warn("email delivery attempt failed", "attempt", attempt, "error", err)
			if attempt < SendAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		m.logger.Error("email delivery gave up", "to", e.To, "error", err)
	})
}

func (m *SMTPMailer) smtpSend(e *email.Email) error {
	host, _, err := net.SplitHostPort(m.cfg.Addr)
	if err != nil {
		return err
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)

	if m.cfg.UseTLS {
		return e.SendWithTLS(m.cfg.Addr, auth, &tls.Config{
			ServerName: host,
		})
	}
	return e.Send(m.cfg.Addr, auth)
}

// Email clients allow very little formatting, keep the bodies simple.
var confirmationBodyTemplate = template.Must(template.New("confirm").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>confirm your email</title>
</head>
<body>
<p>Hi {{ .Name }},</p>
<p>Use this link to confirm your email:</p>
<p><a href="{{ .URL }}">confirm</a></p>
</body>
</html>`))

var invitationBodyTemplate = template.Must(template.New("invite").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>project invitation</title>
</head>
<body>
<p>Hi,</p>
<p>{{ .Author }} invited you to collaborate on <strong>{{ .Project }}</strong>.</p>
<p><a href="{{ .URL }}">Sign up</a> to join your team.</p>
</body>
</html>`))

func renderEmailBody(t *template.Template, data map[string]any) []byte {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil
	}
	return buf.Bytes()
}
