package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobq/store"
	"github.com/xraph/jobq/store/memory"
	"github.com/xraph/jobq/store/mongo"
	"github.com/xraph/jobq/store/postgres"
	"github.com/xraph/jobq/store/redis"
	"github.com/xraph/jobq/store/sqlite"
)

// Store drivers.
const (
	driverMemory   = "memory"
	driverRedis    = "redis"
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
	driverMongo    = "mongo"
)

// openStore connects the configured backend. The returned close function
// releases the store and any client the daemon created for it.
func openStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (store.Store, func() error, error) {
	switch cfg.Driver {
	case driverMemory:
		s := memory.New()
		return s, s.Close, nil

	case driverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts := []redis.Option{redis.WithLogger(logger)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		s := redis.New(client, opts...)
		return s, func() error { return errors.Join(s.Close(), client.Close()) }, nil

	case driverPostgres:
		s, err := postgres.New(ctx, cfg.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case driverSQLite:
		s, err := sqlite.Open(ctx, cfg.DSN, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case driverMongo:
		client, err := mongod.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		s := mongo.New(client.Database(cfg.Mongo.Database), mongo.WithLogger(logger))
		closeFn := func() error {
			return errors.Join(s.Close(), client.Disconnect(context.Background()))
		}
		return s, closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
