package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/fjod/storefront/internal/logger"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridRelay sends through SendGrid dynamic templates. The recipient is
// taken from the to_email param; the rest become template data.
type SendGridRelay struct {
	from   string
	client sendClient
}

func NewSendGridRelay(apiKey, from string) *SendGridRelay {
	return &SendGridRelay{from: from, client: sendgrid.NewSendClient(apiKey)}
}

func (r *SendGridRelay) Send(ctx context.Context, templateID string, params Params) error {
	if r.from == "" {
		return fmt.Errorf("from address is empty")
	}
	to := params["to_email"]
	if to == "" {
		return fmt.Errorf("to address is empty")
	}

	_, err := r.send(ctx, buildTemplateMail(r.from, to, templateID, params))
	return err
}

func (r *SendGridRelay) send(ctx context.Context, message *mail.SGMailV3) (*rest.Response, error) {
	response, err := r.client.SendWithContext(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return response, fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	logger.Ctx(ctx).Debug().Int("status", response.StatusCode).Str("template", message.TemplateID).Msg("sendgrid mail sent")
	return response, nil
}

func buildTemplateMail(from, to, templateID string, params Params) *mail.SGMailV3 {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail("Storefront", from))
	message.SetTemplateID(templateID)

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", to))
	for k, v := range params {
		p.SetDynamicTemplateData(k, v)
	}
	message.AddPersonalizations(p)
	return message
}
