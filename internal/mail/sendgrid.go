package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/spec-kit/helpdesk-core/internal/config"
)

// SendGridSender sends email through the SendGrid API. An empty API key
// turns it into a no-op so local environments need no credentials.
type SendGridSender struct {
	cfg config.EmailConfig
}

// NewSendGridSender constructs the sender.
func NewSendGridSender(cfg config.EmailConfig) *SendGridSender {
	return &SendGridSender{cfg: cfg}
}

// Send delivers one message. The body is the same html-ish string used
// for real-time payloads.
func (s *SendGridSender) Send(_ context.Context, to, subject, body string) error {
	if s.cfg.APIKey == "" {
		return nil
	}
	from := sgmail.NewEmail(s.cfg.FromName, s.cfg.FromAddr)
	recipient := sgmail.NewEmail("", to)
	message := sgmail.NewSingleEmail(from, subject, recipient, body, body)

	client := sendgrid.NewSendClient(s.cfg.APIKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected message: status %d", resp.StatusCode)
	}
	return nil
}
