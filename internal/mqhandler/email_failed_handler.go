package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"mailflow/internal/model"
	"mailflow/internal/mq"
	"mailflow/internal/util"
)

// NotificationStore persists notification rows.
type NotificationStore interface {
	Insert(ctx context.Context, n *model.Notification) error
}

// Deduper gates the insert so one failing email yields one notification,
// not one per retry attempt.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, emailID int) bool
}

// EmailFailedHandler turns delivery failure events into notification rows
// so the owner sees the failure without polling every email.
type EmailFailedHandler struct {
	store   NotificationStore
	deduper Deduper
	logger  *zap.Logger
}

func NewEmailFailedHandler(store NotificationStore, deduper Deduper, logger *zap.Logger) *EmailFailedHandler {
	return &EmailFailedHandler{
		store:   store,
		deduper: deduper,
		logger:  logger,
	}
}

func (h *EmailFailedHandler) HandleEmailFailed(ctx context.Context, raw json.RawMessage) error {
	var p mq.EmailFailedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		// Bad payloads never get better; ack them away.
		h.logger.Error("Failed to unmarshal email failed payload (non-retryable)",
			zap.Error(err),
		)
		return nil
	}

	// The worker publishes one event per failed attempt; only the first
	// one for an email becomes a notification.
	if !h.deduper.AcquireOnce(ctx, "delivery_failed", p.EmailID) {
		h.logger.Info("Duplicate delivery failure event skipped",
			zap.Int("email_id", p.EmailID),
			zap.Int("user_id", p.UserID),
		)
		return nil
	}

	notif := &model.Notification{
		UserID:  p.UserID,
		Type:    "delivery_failed",
		Content: fmt.Sprintf("Delivery failed for %q: %s", p.Subject, p.Error),
	}

	if err := h.store.Insert(ctx, notif); err != nil {
		isRetryable, errType := util.IsRetryableError(err)
		h.logger.Error("Failed to insert notification",
			zap.Int("email_id", p.EmailID),
			zap.Int("user_id", p.UserID),
			zap.String("error_type", errType),
			zap.Bool("retryable", isRetryable),
			zap.Error(err),
		)
		if !isRetryable {
			return nil
		}
		return err
	}

	h.logger.Info("Delivery failure notification created",
		zap.Int("email_id", p.EmailID),
		zap.Int("user_id", p.UserID),
	)

	return nil
}
