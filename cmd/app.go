package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/pivo/internal/booking"
	"github.com/example/pivo/internal/config"
	"github.com/example/pivo/internal/db"
	"github.com/example/pivo/internal/domain/reservation"
	"github.com/example/pivo/internal/infrastructure/blobstore"
	"github.com/example/pivo/internal/infrastructure/catalog"
	"github.com/example/pivo/internal/infrastructure/events"
	"github.com/example/pivo/internal/logging"
	"github.com/example/pivo/internal/migrate"
)

// app is the composition root shared by the server and the CLI commands.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	db     *db.DB
	redis  *redis.Client
	amqp   *events.AMQPPublisher
	store  *booking.Store
	engine *booking.Engine
}

func openApp(ctx context.Context, migrateUp bool) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	if err := a.open(ctx, migrateUp); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context, migrateUp bool) error {
	cfg := a.cfg
	if cfg.NeedsDatabase() {
		d, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.db = d
		if err := d.Ping(ctx); err != nil {
			return fmt.Errorf("db ping: %w", err)
		}
		if migrateUp {
			if err := migrate.Up(ctx, d, a.log); err != nil {
				return err
			}
		}
	}
	if cfg.NeedsRedis() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	blobs, err := a.blobStore()
	if err != nil {
		return err
	}
	a.store = booking.OpenStore(ctx, blobs, booking.StoreOptions{
		Key:      cfg.StoreKey,
		Location: cfg.Location,
		Log:      a.log.Named("store"),
	})

	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		a.amqp = events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsQueue, a.log.Named("events"))
		pub = a.amqp
	}

	a.engine = booking.NewEngine(a.store, a.catalog(), booking.Options{
		Rules:          cfg.Rules(),
		DefaultRate:    cfg.DefaultRate,
		Events:         pub,
		PublishTimeout: cfg.PublishTimeout,
		Log:            a.log.Named("booking"),
	})
	return nil
}

func (a *app) blobStore() (blobstore.Store, error) {
	var s blobstore.Store
	switch a.cfg.StoreDriver {
	case "memory":
		s = blobstore.NewMemory()
	case "file":
		f, err := blobstore.NewFile(a.cfg.StorePath)
		if err != nil {
			return nil, err
		}
		s = f
	case "postgres":
		s = blobstore.NewPostgres(a.db)
	case "redis":
		s = blobstore.NewRedis(a.redis, "pivo:")
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", a.cfg.StoreDriver)
	}
	if a.cfg.EncKey != nil {
		return blobstore.NewSealed(s, a.cfg.EncKey)
	}
	return s, nil
}

func (a *app) catalog() reservation.Catalog {
	var c reservation.Catalog
	if a.cfg.CatalogDriver == "postgres" {
		c = catalog.NewPostgres(a.db)
	} else {
		c = catalog.NewStatic(catalog.Seed()...)
	}
	if a.cfg.CatalogCacheTTL > 0 {
		c = &catalog.Cached{
			Origin: c,
			Client: a.redis,
			TTL:    a.cfg.CatalogCacheTTL,
			Log:    a.log.Named("catalog"),
		}
	}
	return c
}

// Close drains the reservation worker before releasing connections.
func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.amqp != nil {
		_ = a.amqp.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.log.Sync()
}
