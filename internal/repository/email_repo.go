package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailflow/internal/model"
)

type EmailRepository struct {
	db *pgxpool.Pool
}

func NewEmailRepository(db *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{db: db}
}

// Insert persists a new email row. Sent emails must already carry
// status=pending; drafts carry no status.
func (r *EmailRepository) Insert(ctx context.Context, e *model.Email) error {
	query := `
        INSERT INTO emails ("to", subject, body, type, status, scheduled_at, user_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING id, created_at
    `
	return r.db.QueryRow(ctx, query,
		e.To, e.Subject, e.Body, e.Type, e.Status, e.ScheduledAt, e.UserID,
	).Scan(&e.ID, &e.CreatedAt)
}

// FindByID returns the full email including body, scoped to its owner.
func (r *EmailRepository) FindByID(ctx context.Context, id, userID int) (*model.Email, error) {
	query := `
        SELECT id, "to", subject, body, type, status, scheduled_at, created_at, user_id
        FROM emails
        WHERE id = $1 AND user_id = $2
    `
	var e model.Email
	err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&e.ID,
		&e.To,
		&e.Subject,
		&e.Body,
		&e.Type,
		&e.Status,
		&e.ScheduledAt,
		&e.CreatedAt,
		&e.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ExistsByID reports whether the email row still exists. The delivery
// worker uses this to skip jobs whose record was deleted in the meantime.
func (r *EmailRepository) ExistsByID(ctx context.Context, id int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM emails WHERE id = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, id).Scan(&exists)
	return exists, err
}

// ListByType returns a page of the user's emails of the given type,
// newest first and without bodies.
func (r *EmailRepository) ListByType(ctx context.Context, userID int, emailType string, page, limit int) ([]model.EmailSummary, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := `
        SELECT id, "to", subject, type, status, scheduled_at, created_at, user_id
        FROM emails
        WHERE user_id = $1 AND type = $2
        ORDER BY created_at DESC
        OFFSET $3 LIMIT $4
    `
	rows, err := r.db.Query(ctx, query, userID, emailType, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []model.EmailSummary{}
	for rows.Next() {
		var e model.EmailSummary
		err := rows.Scan(
			&e.ID,
			&e.To,
			&e.Subject,
			&e.Type,
			&e.Status,
			&e.ScheduledAt,
			&e.CreatedAt,
			&e.UserID,
		)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}

	return emails, rows.Err()
}

// UpdateDraft mutates a draft row. Sent emails are immutable, so the
// type guard lives in the query itself.
func (r *EmailRepository) UpdateDraft(ctx context.Context, id, userID int, to, subject, body string, scheduledAt *time.Time) (*model.Email, error) {
	query := `
        UPDATE emails
        SET "to" = $1, subject = $2, body = $3, scheduled_at = $4
        WHERE id = $5 AND user_id = $6 AND type = 'draft'
        RETURNING id, "to", subject, body, type, status, scheduled_at, created_at, user_id
    `
	var e model.Email
	err := r.db.QueryRow(ctx, query, to, subject, body, scheduledAt, id, userID).Scan(
		&e.ID,
		&e.To,
		&e.Subject,
		&e.Body,
		&e.Type,
		&e.Status,
		&e.ScheduledAt,
		&e.CreatedAt,
		&e.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateStatus sets the delivery status. Only the worker calls this.
func (r *EmailRepository) UpdateStatus(ctx context.Context, id int, status string) error {
	query := `
        UPDATE emails
        SET status = $1
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, status, id)
	return err
}

// Delete removes an email owned by the user and returns the deleted row,
// so callers can decide whether a queued delivery job must be cancelled.
func (r *EmailRepository) Delete(ctx context.Context, id, userID int) (*model.Email, error) {
	query := `
        DELETE FROM emails
        WHERE id = $1 AND user_id = $2
        RETURNING id, "to", subject, body, type, status, scheduled_at, created_at, user_id
    `
	var e model.Email
	err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&e.ID,
		&e.To,
		&e.Subject,
		&e.Body,
		&e.Type,
		&e.Status,
		&e.ScheduledAt,
		&e.CreatedAt,
		&e.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteDraft removes a draft after it has been sent. The type guard makes
// this a no-op for anything that is not a draft.
func (r *EmailRepository) DeleteDraft(ctx context.Context, id, userID int) error {
	query := `
        DELETE FROM emails
        WHERE id = $1 AND user_id = $2 AND type = 'draft'
    `
	_, err := r.db.Exec(ctx, query, id, userID)
	return err
}
