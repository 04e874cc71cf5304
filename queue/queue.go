// Package queue publishes readings to Redis so downstream consumers (plot
// viewers, archival jobs) can subscribe without talking to the instrument.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// historyKey holds the most recent readings as a bounded list.
const (
	historyKey = "r9ctl:readings"
	historyLen = 1000
)

// Publisher sends readings to a Redis pub/sub channel and keeps a bounded
// history list as backup.
type Publisher struct {
	client  *redis.Client
	channel string
	log     *logrus.Logger
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(addr, password, channel string, db, poolSize int, log *logrus.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	log.Infof("publishing readings to redis channel %q on %s", channel, addr)

	return &Publisher{
		client:  client,
		channel: channel,
		log:     log,
	}, nil
}

// Publish sends v as JSON on the channel and appends it to the history list.
func (p *Publisher) Publish(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}

	// History is best effort.
	if err := p.client.LPush(ctx, historyKey, data).Err(); err != nil {
		p.log.Warnf("push reading history: %v", err)
		return nil
	}
	p.client.LTrim(ctx, historyKey, 0, historyLen-1)

	return nil
}

// Close releases the Redis connection pool.
func (p *Publisher) Close() error {
	return p.client.Close()
}
