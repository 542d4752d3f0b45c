package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus publishes job messages over redis pub/sub channels.
type RedisBus struct {
	client *redis.Client
}

var _ Bus = (*RedisBus)(nil)

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func outputChannel(jobID string) string   { return "job:" + jobID + ":output" }
func completeChannel(jobID string) string { return "job:" + jobID + ":complete" }

func (b *RedisBus) PublishOutput(ctx context.Context, jobID, stream, data string) error {
	return b.publish(ctx, outputChannel(jobID), Message{
		Type:   "output",
		Stream: stream,
		Data:   data,
	})
}

func (b *RedisBus) PublishComplete(ctx context.Context, jobID string, exitCode int, executionTime float64) error {
	return b.publish(ctx, completeChannel(jobID), Message{
		Type:          "complete",
		ExitCode:      &exitCode,
		ExecutionTime: &executionTime,
	})
}

func (b *RedisBus) PublishError(ctx context.Context, jobID, message string) error {
	return b.publish(ctx, completeChannel(jobID), Message{
		Type:    "error",
		Message: message,
	})
}

func (b *RedisBus) publish(ctx context.Context, channel string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, outputChannel(jobID), completeChannel(jobID))

	// Confirm the SUBSCRIBE before the caller starts the executor, so
	// every message published after this point is observed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribing to job %s: %w", jobID, err)
	}

	out := make(chan Message, 64)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ps.Channel():
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					log.Error().Err(err).Str("job_id", jobID).Str("channel", raw.Channel).Msg("dropping undecodable bus message")
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
				if msg.Terminal() {
					return
				}
			}
		}
	}()

	return NewSubscription(out, func() { _ = ps.Close() }), nil
}
