// Package redis disponibiliza a implementação do storage baseada em Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// incrementScript starts the window on the first hit and never extends it.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

type Storage struct {
	client       *redis.Client
	replayPrefix string
}

var (
	_ ports.CounterStore = (*Storage)(nil)
	_ ports.ReplayStore  = (*Storage)(nil)
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) (*Storage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client), nil
}

func NewWithClient(client *redis.Client) *Storage {
	return &Storage{client: client, replayPrefix: "replay:"}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected increment reply: %v", res)
	}
	return res[0], now.Add(time.Duration(res[1]) * time.Millisecond), nil
}

func (s *Storage) Get(ctx context.Context, token string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.replayPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt replay entry %q: %w", token, err)
	}
	return time.UnixMilli(millis), true, nil
}

// Record usa SET NX; o primeiro escritor vence entre processos.
func (s *Storage) Record(ctx context.Context, token string, seenAt time.Time, ttl time.Duration) error {
	return s.client.SetNX(ctx, s.replayPrefix+token, strconv.FormatInt(seenAt.UnixMilli(), 10), ttl).Err()
}

// Prune não faz nada: as chaves de replay carregam a própria expiração PX.
func (s *Storage) Prune(context.Context, time.Time, time.Duration) error {
	return nil
}
