package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Redis struct {
	Client          *redis.Client
	Logger          *zap.SugaredLogger
	FeedbackChannel string
}

func New(host, password, feedbackChannel string, logger *zap.SugaredLogger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     host,
		Password: password,
	})

	_, err := client.Ping(context.Background()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Redis{
		Client:          client,
		Logger:          logger,
		FeedbackChannel: feedbackChannel,
	}, nil
}

// Produce publishes data as JSON on the feedback channel.
func (r *Redis) Produce(ctx context.Context, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	err = r.Client.Publish(ctx, r.FeedbackChannel, jsonData).Err()
	if err != nil {
		return err
	}

	r.Logger.Infow("redis: Produce", "channel", r.FeedbackChannel)

	return nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
