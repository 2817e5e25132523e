package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coursekit/mailsched/internal/gateway"
)

type flakySender struct {
	failures int
	calls    int
}

func (s *flakySender) SendBatch(_ context.Context, _ []gateway.Message) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", errors.New("temporary gateway error")
	}
	return "batch-ok", nil
}

func TestThrottledSender_RetriesUntilSuccess(t *testing.T) {
	inner := &flakySender{failures: 2}
	s := gateway.NewThrottledSender(inner, 100, 10*time.Second)

	id, err := s.SendBatch(context.Background(), []gateway.Message{{To: "a@example.com"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "batch-ok" {
		t.Errorf("id = %q, want batch-ok", id)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestThrottledSender_GivesUpAfterMaxElapsed(t *testing.T) {
	inner := &flakySender{failures: 1000}
	s := gateway.NewThrottledSender(inner, 100, 700*time.Millisecond)

	_, err := s.SendBatch(context.Background(), []gateway.Message{{To: "a@example.com"}})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestThrottledSender_HonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakySender{failures: 1000}
	s := gateway.NewThrottledSender(inner, 100, time.Minute)

	_, err := s.SendBatch(ctx, []gateway.Message{{To: "a@example.com"}})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
