package redis

import (
	"context"
	"fmt"

	nrredis "github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eksporyuk/affiliate-ledger/internal/config"
)

type Client struct {
	rdb       *redis.Client
	keyPrefix string
	log       *zerolog.Logger
}

// New connects to Redis. When tracing is true the client reports to New Relic.
func New(log *zerolog.Logger, cfg *config.RedisConfig, tracing bool) (*Client, error) {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	rdb := redis.NewClient(opts)
	if tracing {
		rdb.AddHook(nrredis.NewHook(opts))
	}

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Msg("Connected to Redis successfully")

	return NewFromClient(rdb, cfg.KeyPrefix, log), nil
}

// NewFromClient wraps an already configured go-redis client.
func NewFromClient(rdb *redis.Client, keyPrefix string, log *zerolog.Logger) *Client {
	return &Client{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		log:       log,
	}
}

func (c *Client) prefixKey(key string) string {
	return c.keyPrefix + key
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	c.log.Info().Msg("Closing Redis client connection")
	return c.rdb.Close()
}
