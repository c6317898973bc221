package mailer

import "context"

// Message is one outbound email to a single recipient. Multi-recipient
// emails fan out into one Message per recipient.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender delivers one message through the external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
