// Package redisrelay shares realtime emits between service instances over Redis pub/sub.
package redisrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edu-notify-api/internal/realtime"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deliverer hands a relayed envelope to local connections.
type Deliverer interface {
	Deliver(env realtime.Envelope) int
}

// Relay publishes every local emit to a Redis channel and delivers the emits of
// other instances to the local hub.
type Relay struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

// New connects to redisURL, either a redis:// URL or a host:port address.
func New(ctx context.Context, redisURL, channel string, log *zap.Logger) (*Relay, error) {
	var opt *redis.Options
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: redisURL}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Relay{rdb: rdb, channel: channel, log: log}, nil
}

// Publish implements realtime.Relay.
func (r *Relay) Publish(ctx context.Context, env realtime.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, b).Err()
}

// Run subscribes to the relay channel and delivers messages to hub until ctx ends.
func (r *Relay) Run(ctx context.Context, hub Deliverer) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("relay subscribed", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(hub, msg.Payload)
		}
	}
}

func (r *Relay) handle(hub Deliverer, payload string) {
	var env realtime.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("relay message dropped", zap.Error(err))
		return
	}
	if len(env.Payload) == 0 {
		r.log.Warn("relay message without payload", zap.String("origin", env.Origin))
		return
	}
	hub.Deliver(env)
}

func (r *Relay) Close() error { return r.rdb.Close() }
