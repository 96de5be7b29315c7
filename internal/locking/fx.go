package locking

import (
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orgstore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newKeyed(cfg config.Config, log *zap.Logger) Keyed {
	if cfg.RedisAddr == "" {
		return NewLocal()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	log.Info("using redis keyed lock", zap.String("addr", cfg.RedisAddr))
	return NewRedis(client, 30*time.Second)
}

// Module wires the keyed lock used to serialize lifecycle operations.
var Module = fx.Module("locking",
	fx.Provide(newKeyed),
)
