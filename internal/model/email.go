package model

import "time"

// Email types. Draft and sent are mutually exclusive lifecycle states.
const (
	TypeDraft = "draft"
	TypeSent  = "sent"
)

// Delivery statuses. Only sent emails carry a status; drafts have none.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

type Email struct {
	ID          int        `json:"id"`
	To          string     `json:"to"` // comma-separated recipient list
	Subject     string     `json:"subject"`
	Body        string     `json:"body,omitempty"`
	Type        string     `json:"type"`
	Status      *string    `json:"status"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UserID      int        `json:"userId"`
}

// EmailSummary is an email row without its body, for list views.
type EmailSummary struct {
	ID          int        `json:"id"`
	To          string     `json:"to"`
	Subject     string     `json:"subject"`
	Type        string     `json:"type"`
	Status      *string    `json:"status"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UserID      int        `json:"userId"`
}
