package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	"whisper/pkg/platform/sentinel"
)

const redisChannelPrefix = "inbox:"

// Redis publishes on one pub/sub channel per recipient so every server
// instance can serve any inbox.
type Redis struct {
	client redis.UniversalClient
	buffer int
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, buffer: defaultBuffer, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func channelFor(recipient id.RecipientID) string {
	return redisChannelPrefix + string(recipient)
}

func (r *Redis) Publish(ctx context.Context, msg *models.Message) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, channelFor(msg.RecipientID), data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w: %w", channelFor(msg.RecipientID), sentinel.ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, recipient id.RecipientID) (<-chan *models.Message, error) {
	ps := r.client.Subscribe(ctx, channelFor(recipient))
	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w: %w", channelFor(recipient), sentinel.ErrUnavailable, err)
	}

	out := make(chan *models.Message, r.buffer)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				msg, err := decodeMessage([]byte(raw.Payload))
				if err != nil {
					r.logger.Warn("dropping undecodable feed message",
						"recipient_id", recipient,
						"error", err,
					)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
