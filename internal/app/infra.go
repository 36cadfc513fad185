package app

import (
	"context"
	"database/sql"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/config"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/db"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/logger"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/redis"

	_ "github.com/lib/pq"
)

type Infra struct {
	DB *db.DB

	// Redis is nil when REDIS_ADDR is unset; sessions then live in
	// process memory.
	Redis *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	sqlDB, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := db.RunKeystoneMigration(ctx, sqlDB); err != nil {
		return nil, err
	}

	logger.Info("database ready", nil)

	infra := &Infra{DB: &db.DB{DB: sqlDB}}

	if cfg.RedisAddr != "" {
		redisClient, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		infra.Redis = redisClient
		logger.Info("redis ready", nil)
	} else {
		logger.Info("redis not configured, using in-memory session store", nil)
	}

	return infra, nil
}
