// Package mail delivers transactional email over SMTP.
package mail

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"strings"
	"time"

	"github.com/cidco-records/apiserver/config"
	gomail "github.com/wneessen/go-mail"
)

const resetSubject = "Reset Your CIDCO Records Password"

var resetTemplate = template.Must(template.New("reset").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; border: 1px solid #e2e8f0; border-radius: 8px; overflow: hidden;">
	<div style="background-color: #4f46e5; padding: 24px; text-align: center; color: white;">
		<h1 style="margin: 0; font-size: 24px;">CIDCO Records</h1>
	</div>
	<div style="padding: 32px; background-color: white; color: #1e293b;">
		<p style="font-size: 16px;">Hello {{.Name}},</p>
		<p style="line-height: 1.6;">You requested to reset your password for the CIDCO Records Management System. Click the button below to set a new password. This link is valid for 1 hour.</p>
		<div style="text-align: center; margin: 32px 0;">
			<a href="{{.ResetLink}}" style="background-color: #4f46e5; color: white; padding: 14px 28px; text-decoration: none; border-radius: 6px; font-weight: bold; font-size: 14px; display: inline-block;">Reset Password</a>
		</div>
		<p style="font-size: 12px; color: #64748b; line-height: 1.6;">If you didn't request this, you can safely ignore this email. Your password will not be changed until you click the link above and create a new one.</p>
	</div>
	<div style="background-color: #f8fafc; padding: 16px; text-align: center; font-size: 12px; color: #94a3b8; border-top: 1px solid #e2e8f0;">
		&copy; {{.Year}} PFEPL / CIDCO Records
	</div>
</div>
`))

// SMTPMailer sends transactional email through the configured SMTP relay.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// NewSMTPMailer constructs a mailer from config.
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("smtp username is required")
	}

	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	)
	if err != nil {
		return nil, err
	}

	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = cfg.Username
	}

	return &SMTPMailer{
		client: client,
		from:   from,
	}, nil
}

// SendPasswordReset emails a reset link to the recipient.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, resetLink string) error {
	var body bytes.Buffer
	err := resetTemplate.Execute(&body, struct {
		Name      string
		ResetLink string
		Year      int
	}{
		Name:      name,
		ResetLink: resetLink,
		Year:      time.Now().Year(),
	})
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(resetSubject)
	msg.SetBodyString(gomail.TypeTextHTML, body.String())

	return m.client.DialAndSendWithContext(ctx, msg)
}
