package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Backend on a go-redis client.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

// Del removes keys in one pipeline round trip.
func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.rdb.Publish(ctx, channel, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, channel string) (<-chan string, func()) {
	pubsub := r.rdb.Subscribe(ctx, channel)
	out := make(chan string, 16)

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }
}

func (r *Redis) Push(ctx context.Context, queue string, payloads ...string) error {
	if len(payloads) == 0 {
		return nil
	}
	vals := make([]any, len(payloads))
	for i, p := range payloads {
		vals[i] = p
	}
	return r.rdb.RPush(ctx, queue, vals...).Err()
}

func (r *Redis) Pop(ctx context.Context, queue string, timeout time.Duration) (string, error) {
	item, err := r.rdb.BLPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	if len(item) < 2 {
		return "", ErrMiss
	}
	return item[1], nil
}
