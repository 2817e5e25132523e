package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Message is one personalized email in a batch.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender delivers one bounded batch per call and returns the provider's
// reference for that batch.
type Sender interface {
	SendBatch(ctx context.Context, msgs []Message) (string, error)
}

// LogSender logs batches instead of sending them — used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) SendBatch(_ context.Context, msgs []Message) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}
	s.logger.Info("email batch (local dev)",
		"count", len(msgs),
		"first_to", msgs[0].To,
		"subject", msgs[0].Subject,
	)
	return fmt.Sprintf("local-%d", len(msgs)), nil
}

// ResendSender sends batches via the Resend batch API — used in
// staging/production.
type ResendSender struct {
	client *resend.Client
}

func (s *ResendSender) SendBatch(ctx context.Context, msgs []Message) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}

	params := make([]*resend.SendEmailRequest, len(msgs))
	for i, m := range msgs {
		params[i] = &resend.SendEmailRequest{
			From:    m.From,
			To:      []string{m.To},
			Subject: m.Subject,
			Html:    m.HTML,
		}
	}

	resp, err := s.client.Batch.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("send batch: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("send batch: empty response")
	}
	// The first message id stands in for the whole batch.
	return resp.Data[0].Id, nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{client: resend.NewClient(apiKey)}
}
