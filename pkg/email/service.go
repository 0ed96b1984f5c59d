package email

import (
	"fmt"
	"time"

	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Service handles email sending
type Service struct {
	fromEmail   string
	fromName    string
	sendGridKey string
	useSendGrid bool
	logger      logger.Logger
}

// NewService creates a new email service.
// If sendGridAPIKey is provided, emails are sent via SendGrid;
// otherwise they are only logged (development mode).
func NewService(fromEmail, fromName, sendGridAPIKey string, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Info("email service initialized with SendGrid")
	} else {
		log.Warn("email service in console-only mode, set SENDGRID_API_KEY to deliver mail")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		sendGridKey: sendGridAPIKey,
		useSendGrid: useSendGrid,
		logger:      log,
	}
}

// SendVerificationCode mails a two-factor login code.
func (s *Service) SendVerificationCode(toEmail, toName, code string, ttl time.Duration) error {
	minutes := int(ttl.Minutes())
	subject := "Your CRM verification code"
	body := fmt.Sprintf(`
		<html>
		<body>
			<p>Hi %s,</p>
			<p>Use this code to finish signing in:</p>
			<p style="font-size: 28px; letter-spacing: 6px;"><strong>%s</strong></p>
			<p>The code expires in %d minutes. If you did not try to sign in, you can ignore this email.</p>
		</body>
		</html>
	`, toName, code, minutes)

	plainText := fmt.Sprintf(`
Hi %s,

Use this code to finish signing in: %s

The code expires in %d minutes. If you did not try to sign in, you can ignore this email.
	`, toName, code, minutes)

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, body, plainText)
	}

	// Development mode: the code only goes to the log.
	s.logger.Info("email not sent (development mode)",
		"to", toEmail, "subject", subject, "code", code, "expires_in_minutes", minutes)
	return nil
}

// sendViaSendGrid sends email using SendGrid API
func (s *Service) sendViaSendGrid(toEmail, toName, subject, htmlBody, plainTextBody string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)

	message := mail.NewSingleEmail(from, subject, to, plainTextBody, htmlBody)

	client := sendgrid.NewSendClient(s.sendGridKey)
	response, err := client.Send(message)
	if err != nil {
		s.logger.Error("sendgrid request failed", "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	s.logger.Info("email sent", "to", toEmail, "status", response.StatusCode)
	return nil
}
