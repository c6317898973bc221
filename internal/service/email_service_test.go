package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"mailflow/internal/model"
	"mailflow/internal/queue"
)

type fakeStore struct {
	nextID         int
	emails         map[int]*model.Email
	deleteDraftErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, emails: map[int]*model.Email{}}
}

func (s *fakeStore) Insert(ctx context.Context, e *model.Email) error {
	e.ID = s.nextID
	s.nextID++
	e.CreatedAt = time.Now()
	cp := *e
	s.emails[e.ID] = &cp
	return nil
}

func (s *fakeStore) FindByID(ctx context.Context, id, userID int) (*model.Email, error) {
	e, ok := s.emails[id]
	if !ok || e.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (s *fakeStore) ListByType(ctx context.Context, userID int, emailType string, page, limit int) ([]model.EmailSummary, error) {
	out := []model.EmailSummary{}
	for _, e := range s.emails {
		if e.UserID == userID && e.Type == emailType {
			out = append(out, model.EmailSummary{ID: e.ID, To: e.To, Subject: e.Subject, Type: e.Type, Status: e.Status, UserID: e.UserID})
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateDraft(ctx context.Context, id, userID int, to, subject, body string, scheduledAt *time.Time) (*model.Email, error) {
	e, ok := s.emails[id]
	if !ok || e.UserID != userID || e.Type != model.TypeDraft {
		return nil, pgx.ErrNoRows
	}
	e.To, e.Subject, e.Body, e.ScheduledAt = to, subject, body, scheduledAt
	cp := *e
	return &cp, nil
}

func (s *fakeStore) Delete(ctx context.Context, id, userID int) (*model.Email, error) {
	e, ok := s.emails[id]
	if !ok || e.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	delete(s.emails, id)
	return e, nil
}

func (s *fakeStore) DeleteDraft(ctx context.Context, id, userID int) error {
	if s.deleteDraftErr != nil {
		return s.deleteDraftErr
	}
	e, ok := s.emails[id]
	if ok && e.UserID == userID && e.Type == model.TypeDraft {
		delete(s.emails, id)
	}
	return nil
}

type enqueued struct {
	job   queue.Job
	delay time.Duration
}

type fakeQueue struct {
	jobs      []enqueued
	removed   []int
	removeOK  bool
	removeErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, job queue.Job, delay time.Duration) error {
	q.jobs = append(q.jobs, enqueued{job: job, delay: delay})
	return nil
}

func (q *fakeQueue) RemoveByEmailID(ctx context.Context, emailID int) (bool, error) {
	q.removed = append(q.removed, emailID)
	return q.removeOK, q.removeErr
}

func newTestService(store *fakeStore, q *fakeQueue, now time.Time) *EmailService {
	s := NewEmailService(store, q, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestSendImmediate(t *testing.T) {
	store := newFakeStore()
	q := &fakeQueue{}
	s := newTestService(store, q, time.Now())

	email, err := s.Send(context.Background(), 7, "alice@gmail.com", SendRequest{
		To: "x@y.com", Subject: "hi", Body: "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if email.Type != model.TypeSent {
		t.Errorf("type = %q, want sent", email.Type)
	}
	if email.Status == nil || *email.Status != model.StatusPending {
		t.Errorf("status = %v, want pending", email.Status)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("want exactly one job, got %d", len(q.jobs))
	}
	if q.jobs[0].delay != 0 {
		t.Errorf("delay = %v, want 0", q.jobs[0].delay)
	}
	if q.jobs[0].job.EmailID != email.ID {
		t.Errorf("job email id = %d, want %d", q.jobs[0].job.EmailID, email.ID)
	}
	if q.jobs[0].job.SenderLabel != "alice" {
		t.Errorf("sender label = %q, want alice", q.jobs[0].job.SenderLabel)
	}
}

func TestSendScheduledDelay(t *testing.T) {
	now := time.Now()
	scheduleAt := now.Add(5 * time.Minute)
	store := newFakeStore()
	q := &fakeQueue{}
	s := newTestService(store, q, now)

	_, err := s.Send(context.Background(), 7, "a@b.c", SendRequest{
		To: "x@y.com", ScheduleAt: &scheduleAt,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if q.jobs[0].delay != 5*time.Minute {
		t.Errorf("delay = %v, want 5m", q.jobs[0].delay)
	}
}

func TestSendPastScheduleClampedToZero(t *testing.T) {
	now := time.Now()
	scheduleAt := now.Add(-time.Hour)
	q := &fakeQueue{}
	s := newTestService(newFakeStore(), q, now)

	_, err := s.Send(context.Background(), 7, "a@b.c", SendRequest{
		To: "x@y.com", ScheduleAt: &scheduleAt,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if q.jobs[0].delay != 0 {
		t.Errorf("delay = %v, want clamped 0", q.jobs[0].delay)
	}
}

func TestSendNoRecipient(t *testing.T) {
	store := newFakeStore()
	q := &fakeQueue{}
	s := newTestService(store, q, time.Now())

	_, err := s.Send(context.Background(), 7, "a@b.c", SendRequest{To: "  "})
	if !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("err = %v, want ErrNoRecipient", err)
	}
	if len(store.emails) != 0 || len(q.jobs) != 0 {
		t.Error("validation failure must not persist or enqueue anything")
	}
}

func TestSendFromDraftDeletesDraft(t *testing.T) {
	store := newFakeStore()
	q := &fakeQueue{}
	s := newTestService(store, q, time.Now())

	draft, err := s.SaveDraft(context.Background(), 7, "x@y.com", "draft", "body")
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	sent, err := s.Send(context.Background(), 7, "a@b.c", SendRequest{
		To: "x@y.com", Subject: "final", DraftID: draft.ID,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	drafts, _ := s.ListDrafts(context.Background(), 7, 1, 50)
	if len(drafts) != 0 {
		t.Errorf("want zero drafts after send, got %d", len(drafts))
	}
	if len(q.jobs) != 1 || q.jobs[0].job.EmailID != sent.ID {
		t.Errorf("want one job for the sent record %d, got %+v", sent.ID, q.jobs)
	}
}

func TestSendSurvivesDraftDeleteFailure(t *testing.T) {
	store := newFakeStore()
	store.deleteDraftErr = errors.New("draft delete failed")
	q := &fakeQueue{}
	s := newTestService(store, q, time.Now())

	_, err := s.Send(context.Background(), 7, "a@b.c", SendRequest{To: "x@y.com", DraftID: 99})
	if err != nil {
		t.Fatalf("draft deletion is best-effort, Send must succeed: %v", err)
	}
	if len(q.jobs) != 1 {
		t.Errorf("want one job, got %d", len(q.jobs))
	}
}

func TestDeletePendingSentRemovesJob(t *testing.T) {
	store := newFakeStore()
	q := &fakeQueue{removeOK: true}
	s := newTestService(store, q, time.Now())

	email, err := s.Send(context.Background(), 7, "a@b.c", SendRequest{To: "x@y.com"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if _, err := s.Delete(context.Background(), email.ID, 7); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(q.removed) != 1 || q.removed[0] != email.ID {
		t.Errorf("queue removal calls = %v, want [%d]", q.removed, email.ID)
	}
	if _, err := s.GetEmail(context.Background(), email.ID, 7); !errors.Is(err, pgx.ErrNoRows) {
		t.Error("row should be gone after delete")
	}
}

func TestDeleteSucceedsWhenJobAlreadyFired(t *testing.T) {
	store := newFakeStore()
	q := &fakeQueue{removeOK: false}
	s := newTestService(store, q, time.Now())

	email, _ := s.Send(context.Background(), 7, "a@b.c", SendRequest{To: "x@y.com"})

	if _, err := s.Delete(context.Background(), email.ID, 7); err != nil {
		t.Fatalf("delete must succeed even when the job is gone: %v", err)
	}
}

func TestDeleteSucceedsWhenJobRemovalErrors(t *testing.T) {
	store := newFakeStore()
	q := &fakeQueue{removeErr: errors.New("redis down")}
	s := newTestService(store, q, time.Now())

	email, _ := s.Send(context.Background(), 7, "a@b.c", SendRequest{To: "x@y.com"})

	if _, err := s.Delete(context.Background(), email.ID, 7); err != nil {
		t.Fatalf("delete must proceed past queue errors: %v", err)
	}
}

func TestDeleteDraftSkipsQueue(t *testing.T) {
	store := newFakeStore()
	q := &fakeQueue{}
	s := newTestService(store, q, time.Now())

	draft, _ := s.SaveDraft(context.Background(), 7, "x@y.com", "s", "b")

	if _, err := s.Delete(context.Background(), draft.ID, 7); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(q.removed) != 0 {
		t.Errorf("drafts have no jobs to remove, got calls %v", q.removed)
	}
}

func TestUpdateRejectsSentEmails(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store, &fakeQueue{}, time.Now())

	email, _ := s.Send(context.Background(), 7, "a@b.c", SendRequest{To: "x@y.com"})

	_, err := s.UpdateDraft(context.Background(), email.ID, 7, "z@w.com", "s", "b", nil)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("sent emails are immutable, got err = %v", err)
	}
}
