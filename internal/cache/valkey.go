package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	payPalTokenKey   = "paypal:access_token"
	seminarListKey   = "seminars:list"
	webhookKeyPrefix = "paypal:webhook:"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type ValkeyClient struct {
	client *redis.Client
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{client: rdb}, nil
}

// GetPayPalToken returns "" on a cache miss
func (v *ValkeyClient) GetPayPalToken(ctx context.Context) (string, error) {
	token, err := v.client.Get(ctx, payPalTokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache lookup error: %w", err)
	}
	return token, nil
}

func (v *ValkeyClient) SetPayPalToken(ctx context.Context, token string, ttl time.Duration) error {
	return v.client.Set(ctx, payPalTokenKey, token, ttl).Err()
}

func (v *ValkeyClient) DeletePayPalToken(ctx context.Context) error {
	return v.client.Del(ctx, payPalTokenKey).Err()
}

// WebhookProcessed reports whether a webhook event id was already handled
func (v *ValkeyClient) WebhookProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := v.client.Exists(ctx, webhookKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("cache lookup error: %w", err)
	}
	return n == 1, nil
}

func (v *ValkeyClient) MarkWebhookProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	return v.client.Set(ctx, webhookKeyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

// GetSeminarList returns the cached catalog json, or nil on a miss
func (v *ValkeyClient) GetSeminarList(ctx context.Context) ([]byte, error) {
	data, err := v.client.Get(ctx, seminarListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return data, nil
}

func (v *ValkeyClient) SetSeminarList(ctx context.Context, data []byte, ttl time.Duration) error {
	return v.client.Set(ctx, seminarListKey, data, ttl).Err()
}

func (v *ValkeyClient) InvalidateSeminarList(ctx context.Context) error {
	return v.client.Del(ctx, seminarListKey).Err()
}

func (v *ValkeyClient) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
