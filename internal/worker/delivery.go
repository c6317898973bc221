package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailflow/internal/mailer"
	"mailflow/internal/metrics"
	"mailflow/internal/model"
	"mailflow/internal/mq"
	"mailflow/internal/queue"
)

// EmailStore is the slice of the record store the worker needs.
type EmailStore interface {
	ExistsByID(ctx context.Context, id int) (bool, error)
	UpdateStatus(ctx context.Context, id int, status string) error
}

// EventPublisher emits delivery lifecycle events. Publishing is advisory:
// failures are logged and never affect the job outcome.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// Deliverer turns one queue job into per-recipient provider calls and a
// single status update on the email record.
type Deliverer struct {
	store     EmailStore
	sender    mailer.Sender
	publisher EventPublisher
	domain    string
	logger    *zap.Logger
}

func NewDeliverer(store EmailStore, sender mailer.Sender, publisher EventPublisher, domain string, logger *zap.Logger) *Deliverer {
	return &Deliverer{
		store:     store,
		sender:    sender,
		publisher: publisher,
		domain:    domain,
		logger:    logger,
	}
}

// Handle processes one delivery job. Recipients are sent sequentially in
// list order and the first failure halts the rest, so a job either delivers
// to everyone or fails as a whole. A returned error drives the queue's
// retry policy; the record's own status is written independently.
func (d *Deliverer) Handle(ctx context.Context, job queue.Job) error {
	exists, err := d.store.ExistsByID(ctx, job.EmailID)
	if err != nil {
		return fmt.Errorf("failed to look up email %d: %w", job.EmailID, err)
	}
	if !exists {
		// Record deleted between enqueue and pickup. Not an error.
		d.logger.Info("Email record not found, skipping delivery",
			zap.Int("email_id", job.EmailID),
		)
		metrics.IncrementDeliveryAttempt("skipped")
		return nil
	}

	from := senderAddress(job.SenderLabel, d.domain)

	for _, recipient := range SplitRecipients(job.To) {
		err := d.sender.Send(ctx, mailer.Message{
			From:    from,
			To:      recipient,
			Subject: job.Subject,
			HTML:    job.Body,
		})
		if err != nil {
			d.logger.Error("Failed to send email",
				zap.Int("email_id", job.EmailID),
				zap.String("recipient", recipient),
				zap.Error(err),
			)
			d.markStatus(ctx, job.EmailID, model.StatusFailed)
			d.publishEvent(mq.RoutingKeyEmailFailed, mq.EmailFailedPayload{
				EmailID:  job.EmailID,
				UserID:   job.UserID,
				Subject:  job.Subject,
				Error:    err.Error(),
				FailedAt: time.Now(),
			})
			metrics.IncrementDeliveryAttempt("failed")
			return fmt.Errorf("send to %s: %w", recipient, err)
		}

		d.logger.Info("Email sent",
			zap.Int("email_id", job.EmailID),
			zap.String("recipient", recipient),
		)
	}

	d.markStatus(ctx, job.EmailID, model.StatusProcessed)
	d.publishEvent(mq.RoutingKeyEmailDelivered, mq.EmailDeliveredPayload{
		EmailID:     job.EmailID,
		UserID:      job.UserID,
		Subject:     job.Subject,
		DeliveredAt: time.Now(),
	})
	metrics.IncrementDeliveryAttempt("processed")
	return nil
}

// markStatus writes the final status. A failed write is logged but must not
// crash the worker or fail the job a second time.
func (d *Deliverer) markStatus(ctx context.Context, emailID int, status string) {
	if err := d.store.UpdateStatus(ctx, emailID, status); err != nil {
		d.logger.Error("Failed to update email status",
			zap.Int("email_id", emailID),
			zap.String("status", status),
			zap.Error(err),
		)
		return
	}
	d.logger.Info("Email status updated",
		zap.Int("email_id", emailID),
		zap.String("status", status),
	)
}

func (d *Deliverer) publishEvent(routingKey string, payload any) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(routingKey, payload); err != nil {
		d.logger.Error("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}

// SplitRecipients expands a comma-separated recipient list, trimming
// whitespace and dropping empty entries.
func SplitRecipients(to string) []string {
	parts := strings.Split(to, ",")
	recipients := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		recipients = append(recipients, p)
	}
	return recipients
}

func senderAddress(label, domain string) string {
	if label == "" {
		label = "onboarding"
	}
	return label + "@" + domain
}
