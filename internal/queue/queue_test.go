package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBackoffDelay(t *testing.T) {
	want := []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
	}
	for i, d := range want {
		if got := backoffDelay(i + 1); got != d {
			t.Errorf("backoffDelay(%d) = %v, want %v", i+1, got, d)
		}
	}
}

func TestJobEncodeDecode(t *testing.T) {
	job := Job{
		EmailID:     42,
		To:          "a@x.com, b@y.com",
		Subject:     "hello",
		Body:        "<p>hi</p>",
		UserID:      7,
		SenderLabel: "alice",
		Attempt:     2,
	}

	member, err := encodeJob(job)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeJob(member)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != job {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, job)
	}
}

func TestMatchesEmailID(t *testing.T) {
	member, err := encodeJob(Job{EmailID: 42, To: "x@y.com"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if !matchesEmailID(member, 42) {
		t.Error("expected member to match email 42")
	}
	if matchesEmailID(member, 7) {
		t.Error("member should not match email 7")
	}
	if matchesEmailID("{not json", 42) {
		t.Error("malformed member should never match")
	}
}

func TestDispatchRetriesWithBackoffThenDrops(t *testing.T) {
	type staged struct {
		job   Job
		delay time.Duration
	}
	var requeued []staged

	q := &Queue{key: scheduledKey, logger: zap.NewNop()}
	q.enqueue = func(ctx context.Context, job Job, delay time.Duration) error {
		requeued = append(requeued, staged{job: job, delay: delay})
		return nil
	}

	failing := func(ctx context.Context, job Job) error {
		return errors.New("provider down")
	}

	job := Job{EmailID: 42, To: "x@y.com", UserID: 7}
	q.dispatch(context.Background(), failing, job)

	for i := 0; i < MaxRetries; i++ {
		if len(requeued) != i+1 {
			t.Fatalf("after failure %d: %d jobs requeued, want %d", i+1, len(requeued), i+1)
		}
		last := requeued[len(requeued)-1]
		if last.job.Attempt != i+1 {
			t.Errorf("requeue %d carries attempt %d, want %d", i+1, last.job.Attempt, i+1)
		}
		if want := backoffDelay(i + 1); last.delay != want {
			t.Errorf("requeue %d delayed %v, want %v", i+1, last.delay, want)
		}
		if last.job.EmailID != job.EmailID {
			t.Errorf("requeue %d is for email %d, want %d", i+1, last.job.EmailID, job.EmailID)
		}
		q.dispatch(context.Background(), failing, last.job)
	}

	// The last dispatch above was the fourth failure; the job is dropped
	// rather than requeued again.
	if len(requeued) != MaxRetries {
		t.Errorf("%d jobs requeued after exhausting retries, want %d", len(requeued), MaxRetries)
	}
}

func TestDispatchSuccessDoesNotRequeue(t *testing.T) {
	requeues := 0
	q := &Queue{key: scheduledKey, logger: zap.NewNop()}
	q.enqueue = func(ctx context.Context, job Job, delay time.Duration) error {
		requeues++
		return nil
	}

	ok := func(ctx context.Context, job Job) error { return nil }
	q.dispatch(context.Background(), ok, Job{EmailID: 42})

	if requeues != 0 {
		t.Errorf("successful job was requeued %d times", requeues)
	}
}

func TestDispatchTreatsPanicAsFailure(t *testing.T) {
	var requeued []Job
	q := &Queue{key: scheduledKey, logger: zap.NewNop()}
	q.enqueue = func(ctx context.Context, job Job, delay time.Duration) error {
		requeued = append(requeued, job)
		return nil
	}

	panicking := func(ctx context.Context, job Job) error { panic("boom") }
	q.dispatch(context.Background(), panicking, Job{EmailID: 42})

	if len(requeued) != 1 {
		t.Fatalf("panicking job requeued %d times, want 1", len(requeued))
	}
	if requeued[0].Attempt != 1 {
		t.Errorf("requeued attempt = %d, want 1", requeued[0].Attempt)
	}
}
