package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

// RedisPublisher mirrors each result to a key (latest value) and a pub/sub
// channel so other processes can follow the avatar state.
type RedisPublisher struct {
	client  *redis.Client
	key     string
	channel string
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Channel  string
}

func NewRedisPublisher(opts RedisOptions) (*RedisPublisher, error) {
	log.Info(log.Fields{"addr": opts.Addr}, "connecting to redis")

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return NewRedisPublisherFromClient(client, opts.Key, opts.Channel), nil
}

func NewRedisPublisherFromClient(client *redis.Client, key, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, key: key, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, r models.DetectionResult) {
	payload, err := json.Marshal(r)
	if err != nil {
		log.Error(log.Fields{"error": err}, "marshal result for redis")
		return
	}

	pipe := p.client.TxPipeline()
	if p.key != "" {
		pipe.Set(ctx, p.key, payload, 0)
	}
	if p.channel != "" {
		pipe.Publish(ctx, p.channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn(log.Fields{"error": err, "key": p.key}, "redis publish failed")
	}
}

// Latest reads back the last mirrored result.
func (p *RedisPublisher) Latest(ctx context.Context) (models.DetectionResult, error) {
	var r models.DetectionResult
	raw, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("decode redis result: %w", err)
	}
	return r, nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
