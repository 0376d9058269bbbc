package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

const revokedPrefix = "revoked:"

// R is nil when no redis is configured, token revocation is disabled in that case.
var R *redis.Client

func NewRedis() error {
	url := viper.GetString("redis.url")
	if len(url) == 0 {
		R = nil
		return nil
	}

	options, err := redis.ParseURL(url)
	if err != nil {
		return err
	}

	client := redis.NewClient(options)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return err
	}

	R = client
	return nil
}

func IsRevoked(ctx context.Context, tokenId string) (bool, error) {
	if R == nil || len(tokenId) == 0 {
		return false, nil
	}
	count, err := R.Exists(ctx, revokedPrefix+tokenId).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Revoke keeps the token id on the deny list until the token would have expired anyway.
func Revoke(ctx context.Context, tokenId string, ttl time.Duration) error {
	if R == nil {
		return nil
	}
	return R.Set(ctx, revokedPrefix+tokenId, 1, ttl).Err()
}
