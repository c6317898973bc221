package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailflow/internal/metrics"
	"mailflow/internal/model"
	"mailflow/internal/queue"
)

var ErrNoRecipient = errors.New("at least one recipient is required")

// EmailStore is the record store the orchestration depends on. It is an
// interface so tests can run against a fake.
type EmailStore interface {
	Insert(ctx context.Context, e *model.Email) error
	FindByID(ctx context.Context, id, userID int) (*model.Email, error)
	ListByType(ctx context.Context, userID int, emailType string, page, limit int) ([]model.EmailSummary, error)
	UpdateDraft(ctx context.Context, id, userID int, to, subject, body string, scheduledAt *time.Time) (*model.Email, error)
	Delete(ctx context.Context, id, userID int) (*model.Email, error)
	DeleteDraft(ctx context.Context, id, userID int) error
}

// DeliveryQueue stages delivery jobs. This is the only place jobs are
// created or removed.
type DeliveryQueue interface {
	Enqueue(ctx context.Context, job queue.Job, delay time.Duration) error
	RemoveByEmailID(ctx context.Context, emailID int) (bool, error)
}

type SendRequest struct {
	To         string
	Subject    string
	Body       string
	ScheduleAt *time.Time
	DraftID    int
}

type EmailService struct {
	store  EmailStore
	queue  DeliveryQueue
	logger *zap.Logger
	now    func() time.Time
}

func NewEmailService(store EmailStore, q DeliveryQueue, logger *zap.Logger) *EmailService {
	return &EmailService{
		store:  store,
		queue:  q,
		logger: logger,
		now:    time.Now,
	}
}

// Send creates a sent email record in pending state and enqueues exactly one
// delivery job, delayed when the send is scheduled for the future. When the
// send originates from a draft, the draft is deleted best-effort after the
// sent record exists.
func (s *EmailService) Send(ctx context.Context, userID int, userEmail string, req SendRequest) (*model.Email, error) {
	if strings.TrimSpace(req.To) == "" {
		return nil, ErrNoRecipient
	}

	status := model.StatusPending
	email := &model.Email{
		To:          req.To,
		Subject:     req.Subject,
		Body:        req.Body,
		Type:        model.TypeSent,
		Status:      &status,
		ScheduledAt: req.ScheduleAt,
		UserID:      userID,
	}
	if err := s.store.Insert(ctx, email); err != nil {
		return nil, err
	}

	if req.DraftID != 0 {
		if err := s.store.DeleteDraft(ctx, req.DraftID, userID); err != nil {
			// The sent record already exists; losing the stale draft is
			// not worth failing the send over.
			s.logger.Error("Failed to delete draft after send",
				zap.Int("draft_id", req.DraftID),
				zap.Error(err),
			)
		} else {
			s.logger.Info("Deleted draft after send", zap.Int("draft_id", req.DraftID))
		}
	}

	delay := sendDelay(req.ScheduleAt, s.now())
	job := queue.Job{
		EmailID:     email.ID,
		To:          req.To,
		Subject:     req.Subject,
		Body:        req.Body,
		UserID:      userID,
		SenderLabel: senderLabel(userEmail),
	}
	if err := s.queue.Enqueue(ctx, job, delay); err != nil {
		return nil, err
	}

	kind := "immediate"
	if delay > 0 {
		kind = "scheduled"
	}
	metrics.IncrementEmailsQueued(kind)

	return email, nil
}

// SaveDraft persists a new draft. Drafts carry no delivery status.
func (s *EmailService) SaveDraft(ctx context.Context, userID int, to, subject, body string) (*model.Email, error) {
	email := &model.Email{
		To:      to,
		Subject: subject,
		Body:    body,
		Type:    model.TypeDraft,
		UserID:  userID,
	}
	if err := s.store.Insert(ctx, email); err != nil {
		return nil, err
	}
	return email, nil
}

// UpdateDraft mutates an existing draft. Sent emails are immutable.
func (s *EmailService) UpdateDraft(ctx context.Context, id, userID int, to, subject, body string, scheduledAt *time.Time) (*model.Email, error) {
	return s.store.UpdateDraft(ctx, id, userID, to, subject, body, scheduledAt)
}

// Delete removes the user's email. For a sent email still pending delivery,
// the queued job is removed first so the send never fires; job removal is
// best-effort and the row is deleted regardless.
func (s *EmailService) Delete(ctx context.Context, id, userID int) (*model.Email, error) {
	email, err := s.store.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if email.Type == model.TypeSent && email.Status != nil && *email.Status == model.StatusPending {
		removed, err := s.queue.RemoveByEmailID(ctx, id)
		switch {
		case err != nil:
			s.logger.Error("Failed to remove delivery job, deleting record anyway",
				zap.Int("email_id", id),
				zap.Error(err),
			)
		case !removed:
			// Job already fired or was never there; nothing to cancel.
			s.logger.Info("No queued delivery job found for email", zap.Int("email_id", id))
		default:
			s.logger.Info("Removed queued delivery job", zap.Int("email_id", id))
		}
	}

	return s.store.Delete(ctx, id, userID)
}

func (s *EmailService) GetEmail(ctx context.Context, id, userID int) (*model.Email, error) {
	return s.store.FindByID(ctx, id, userID)
}

func (s *EmailService) ListSent(ctx context.Context, userID, page, limit int) ([]model.EmailSummary, error) {
	return s.store.ListByType(ctx, userID, model.TypeSent, page, limit)
}

func (s *EmailService) ListDrafts(ctx context.Context, userID, page, limit int) ([]model.EmailSummary, error) {
	return s.store.ListByType(ctx, userID, model.TypeDraft, page, limit)
}

// sendDelay computes how long a delivery job must wait: the time until
// scheduleAt, clamped to zero for past or absent schedules.
func sendDelay(scheduleAt *time.Time, now time.Time) time.Duration {
	if scheduleAt == nil {
		return 0
	}
	d := scheduleAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// senderLabel derives the from-address label from the user's own email.
func senderLabel(userEmail string) string {
	label, _, _ := strings.Cut(userEmail, "@")
	return label
}
