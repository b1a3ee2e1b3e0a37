package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const appName = "Stocktrail"

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2 style="color: #1976d2;">{{.Heading}}</h2>
  {{if .Name}}<p>Hi {{.Name}},</p>{{end}}
  <p>{{.Body}}</p>
  {{if .Code}}<p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
  <p>This code expires in {{.TTL}}.</p>{{end}}
  <p style="color: #888; font-size: 12px;">{{.App}}</p>
</body>
</html>`))

type view struct {
	App     string
	Heading string
	Name    string
	Body    string
	Code    string
	TTL     string
}

// Notifier renders and sends the application's e-mails.
type Notifier struct {
	sender Sender
	otpTTL string
}

// NewNotifier creates a Notifier. otpTTL is shown in one-time-code mails.
func NewNotifier(sender Sender, otpTTL time.Duration) *Notifier {
	return &Notifier{sender: sender, otpTTL: otpTTL.String()}
}

func (n *Notifier) send(to, subject, text string, v view) error {
	v.App = appName
	var buf bytes.Buffer
	if err := layout.Execute(&buf, v); err != nil {
		return fmt.Errorf("mailer: render %q: %w", subject, err)
	}
	return n.sender.Send(Message{To: to, Subject: subject, Text: text, HTML: buf.String()})
}

func (n *Notifier) sendCode(to, subject, heading, body, code string) error {
	return n.send(to, subject, body+" Your code is: "+code, view{
		Heading: heading,
		Body:    body,
		Code:    code,
		TTL:     n.otpTTL,
	})
}

// VerificationCode sends the registration OTP.
func (n *Notifier) VerificationCode(to, code string) error {
	return n.sendCode(to, "Verify Your "+appName+" Account", "Verify your e-mail",
		"Use the code below to verify your account.", code)
}

// Welcome confirms a completed registration.
func (n *Notifier) Welcome(to, username string) error {
	return n.send(to, "Welcome to "+appName+"!",
		fmt.Sprintf("Welcome %s! Your registration is complete.", username),
		view{Heading: "Welcome!", Name: username, Body: "Your registration is complete."})
}

// PasswordResetCode sends the forgotten-password OTP.
func (n *Notifier) PasswordResetCode(to, code string) error {
	return n.sendCode(to, appName+" Password Reset Code", "Reset your password",
		"Use the code below to reset your password.", code)
}

// PasswordResetDone confirms a password reset.
func (n *Notifier) PasswordResetDone(to string) error {
	return n.send(to, appName+" Password Reset Successful",
		"Your password has been successfully reset.",
		view{Heading: "Password reset", Body: "Your password has been successfully reset."})
}

// PasswordChangeCode sends the change-password OTP.
func (n *Notifier) PasswordChangeCode(to, code string) error {
	return n.sendCode(to, appName+" Password Change Code", "Change your password",
		"Use the code below to confirm your password change.", code)
}

// PasswordChanged confirms a password change.
func (n *Notifier) PasswordChanged(to string) error {
	return n.send(to, appName+" Password Changed",
		"Your password has been changed.",
		view{Heading: "Password changed", Body: "Your password has been changed. If this was not you, reset it now."})
}

// AccountDeletionCode sends the account-deletion OTP.
func (n *Notifier) AccountDeletionCode(to, code string) error {
	return n.sendCode(to, appName+" Account Deletion Code", "Confirm account deletion",
		"Use the code below to permanently delete your account and all of its data.", code)
}

// AccountDeleted confirms an account deletion.
func (n *Notifier) AccountDeleted(to, username string) error {
	return n.send(to, appName+" Account Deleted",
		"Your account and all of its data have been deleted.",
		view{Heading: "Account deleted", Name: username, Body: "Your account and all of its data have been deleted."})
}

// LowStock warns that a product is running out.
func (n *Notifier) LowStock(to, productName, sku string, quantity int) error {
	body := fmt.Sprintf("Your product %s (SKU: %s) is low on stock. Remaining quantity: %d", productName, sku, quantity)
	return n.send(to, "Low Stock Alert for "+productName, body,
		view{Heading: "Low stock", Body: body})
}
