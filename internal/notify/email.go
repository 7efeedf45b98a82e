// Package notify delivers account emails.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// EmailSender sends account emails.
type EmailSender interface {
	SendVerification(ctx context.Context, toEmail, username, token string) error
	SendPasswordReset(ctx context.Context, toEmail, username, token string) error
}

// NewEmailSender returns a Resend-backed sender when apiKey is set, and a
// sender that only logs otherwise.
func NewEmailSender(apiKey, fromEmail, appURL string, logger *zap.Logger) EmailSender {
	if strings.TrimSpace(apiKey) == "" {
		return &logSender{logger: logger}
	}
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		appURL:    appURL,
	}
}

// VerificationLink builds the link mailed after registration.
func VerificationLink(appURL, token string) string {
	return link(appURL, "/api/auth/verify-email", token)
}

// PasswordResetLink builds the link mailed for a password reset. The page at
// that path posts the token to /api/auth/password/reset/confirm.
func PasswordResetLink(appURL, token string) string {
	return link(appURL, "/reset-password", token)
}

func link(appURL, path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", strings.TrimRight(appURL, "/"), path, url.QueryEscape(token))
}

type resendSender struct {
	client    *resend.Client
	fromEmail string
	appURL    string
}

var (
	verificationTemplate = template.Must(template.New("verification").Parse(`<p>Hi {{.Username}},</p>
<p>Confirm your email address to finish setting up your account:</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>If the link does not work, paste this into your browser:<br>{{.Link}}</p>`))

	passwordResetTemplate = template.Must(template.New("password_reset").Parse(`<p>Hi {{.Username}},</p>
<p>Someone asked to reset the password of your account. If it was you, choose a new password here:</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>Resetting signs you out everywhere. If you did not ask for this, ignore this email.</p>`))
)

type mailData struct {
	Username string
	Link     string
}

// renderMail executes tmpl with contextual escaping, so user-chosen fields
// cannot inject markup into the message.
func renderMail(tmpl *template.Template, username, href string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, mailData{Username: username, Link: href}); err != nil {
		return "", fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func (s *resendSender) SendVerification(ctx context.Context, toEmail, username, token string) error {
	html, err := renderMail(verificationTemplate, username, VerificationLink(s.appURL, token))
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Verify your email address", html)
}

func (s *resendSender) SendPasswordReset(ctx context.Context, toEmail, username, token string) error {
	html, err := renderMail(passwordResetTemplate, username, PasswordResetLink(s.appURL, token))
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Reset your password", html)
}

func (s *resendSender) send(ctx context.Context, toEmail, subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{toEmail},
		Subject: subject,
		Html:    html,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send %q email: %w", subject, err)
	}
	return nil
}

// logSender stands in when no provider is configured. Tokens and links are
// never logged.
type logSender struct {
	logger *zap.Logger
}

func (s *logSender) SendVerification(_ context.Context, toEmail, username, _ string) error {
	s.logger.Info("verification email not sent: no provider configured",
		zap.String("to", toEmail),
		zap.String("username", username))
	return nil
}

func (s *logSender) SendPasswordReset(_ context.Context, toEmail, username, _ string) error {
	s.logger.Info("password reset email not sent: no provider configured",
		zap.String("to", toEmail),
		zap.String("username", username))
	return nil
}
