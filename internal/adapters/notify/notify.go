// Package notify publishes finished verification outcomes.
//
// Each outcome goes to a Pub/Sub channel for live listeners and to a capped
// stream so a score submitter that was offline can catch up.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/gameproof/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen caps the outcome stream.
const DefaultStreamMaxLen = 10000

// RedisPublisher writes outcomes to redis.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	stream  string
	maxLen  int64
}

// NewRedisPublisher publishes on channel and appends to "<channel>:stream".
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		stream:  StreamName(channel),
		maxLen:  DefaultStreamMaxLen,
	}
}

// StreamName is the stream that mirrors channel.
func StreamName(channel string) string { return channel + ":stream" }

// Publish sends o in a single round trip.
func (p *RedisPublisher) Publish(ctx context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.channel, payload)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]interface{}{
				"attempt_id": o.AttemptID,
				"player_id":  o.Identity.String(),
				"state":      string(o.State),
				"payload":    payload,
			},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Noop discards outcomes. Used when no notify channel is configured.
type Noop struct{}

func (Noop) Publish(context.Context, model.Outcome) error { return nil } //nolint:gocritic // hugeParam
