package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/ports"
)

const (
	DefaultChannel = "ama:questions"
	feedBuffer     = 128
)

var (
	_ ports.ChangeFeed     = (*Feed)(nil)
	_ ports.EventPublisher = (*Feed)(nil)
)

// Feed carries change events between API replicas over a pub/sub channel.
// Messages are JSON-encoded domain.ChangeEvent values.
type Feed struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

func NewFeed(client *redis.Client, channel string, log zerolog.Logger) *Feed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Feed{client: client, channel: channel, log: log}
}

func (f *Feed) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe confirms the subscription with the server before returning.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, func(), error) {
	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	msgs := sub.Channel()
	out := make(chan domain.ChangeEvent, feedBuffer)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.log.Warn().Err(err).Msg("undecodable change event")
					ev = domain.ChangeEvent{Kind: "undecodable"}
				}
				select {
				case out <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
