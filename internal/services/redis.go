package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

const publishTimeout = 3 * time.Second

// redisPublisher is the part of *redis.Client the publisher needs.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher fans notifications out over Redis pub/sub so that other API
// instances and dispatch tooling can pick them up. Admin notifications go to
// "<channel>:admins", driver notifications to "<channel>:drivers:<id>".
type RedisPublisher struct {
	client  redisPublisher
	channel string
	log     *logger.Logger
}

// InitRedis parses url, connects and pings.
func InitRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisPublisher(client redisPublisher, channel string, log *logger.Logger) *RedisPublisher {
	if channel == "" {
		channel = "mooveit:notifications"
	}
	return &RedisPublisher{client: client, channel: channel, log: log.WithField("component", "redis")}
}

func (p *RedisPublisher) NotifyAdmins(ctx context.Context, n notify.Notification) {
	p.publish(ctx, p.channel+":admins", n)
}

func (p *RedisPublisher) NotifyDriver(ctx context.Context, driverID uuid.UUID, n notify.Notification) {
	p.publish(ctx, fmt.Sprintf("%s:drivers:%s", p.channel, driverID), n)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, n notify.Notification) {
	data, err := json.Marshal(struct {
		notify.Notification
		Timestamp int64 `json:"timestamp"`
	}{n, time.Now().Unix()})
	if err != nil {
		p.log.WithError(err).Warn("failed to marshal notification")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
			p.log.WithError(err).WithField("channel", channel).Warn("failed to publish notification")
		}
	}()
}
