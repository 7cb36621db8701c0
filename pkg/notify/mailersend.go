package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/mailersend/mailersend-go"
)

type MailerSendNotifier struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSendNotifier(apiKey, fromName, fromEmail string) (*MailerSendNotifier, error) {
	if apiKey == "" || fromEmail == "" {
		return nil, errors.New("mailersend: api key and sender address are required")
	}
	return &MailerSendNotifier{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}, nil
}

func (n *MailerSendNotifier) SendBookingConfirmation(ctx context.Context, data ConfirmationData) error {
	text := confirmationText(data)

	msg := n.client.Email.NewMessage()
	msg.SetFrom(n.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: data.VisitorName, Email: data.VisitorEmail}})
	msg.SetSubject(confirmationSubject(data))
	msg.SetText(text)
	msg.SetHTML("<p>" + strings.ReplaceAll(html.EscapeString(text), "\n", "<br>") + "</p>")

	res, err := n.client.Email.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("mailersend send: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
