package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridNotifier delivers plain-text e-mail through the SendGrid v3 API.
type SendgridNotifier struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

// NewSendgridNotifier returns nil when no API key is configured.
func NewSendgridNotifier(apiKey, fromName, fromEmail, subjectPrefix string) *SendgridNotifier {
	if apiKey == "" {
		return nil
	}
	return &SendgridNotifier{
		key:        apiKey,
		from:       sgmail.NewEmail(fromName, fromEmail),
		subjPrefix: subjectPrefix,
	}
}

func (s *SendgridNotifier) Name() string { return "sendgrid" }

func (s *SendgridNotifier) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return m
}

// Send implements Notifier.
func (s *SendgridNotifier) Send(ctx context.Context, msg Message) error {
	if msg.To.Email == "" {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
