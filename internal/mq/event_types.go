package mq

import "time"

// Routing keys for delivery lifecycle events.
const (
	RoutingKeyEmailDelivered = "email.delivered"
	RoutingKeyEmailFailed    = "email.failed"
)

type EmailDeliveredPayload struct {
	EmailID     int       `json:"email_id"`
	UserID      int       `json:"user_id"`
	Subject     string    `json:"subject"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type EmailFailedPayload struct {
	EmailID  int       `json:"email_id"`
	UserID   int       `json:"user_id"`
	Subject  string    `json:"subject"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}
