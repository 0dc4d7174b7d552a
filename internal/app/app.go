// Package app assembles the booking service from configuration. Binaries call Build once at
// startup and Close on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/driving-lesson-scheduling/internal/api"
	"github.com/hackgods/driving-lesson-scheduling/internal/appointment"
	"github.com/hackgods/driving-lesson-scheduling/internal/config"
	"github.com/hackgods/driving-lesson-scheduling/internal/events"
	redisclient "github.com/hackgods/driving-lesson-scheduling/internal/redis"
	"github.com/hackgods/driving-lesson-scheduling/internal/storage"
)

type App struct {
	Service    *appointment.Service
	Repository *appointment.Repository
	Checks     []api.ReadyCheck

	closers []func() error
}

// Build wires storage, locking and event publishing, then loads the record set. A load that
// falls back to the seed set is logged and not treated as fatal: reads keep working and
// bookings fail with a persistence error until the store is readable again.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	var rdb redis.UniversalClient
	if cfg.NeedsRedis() {
		client, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		rdb = client
		a.closers = append(a.closers, rdb.Close)
		a.Checks = append(a.Checks, api.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	store, closeStore, err := storage.Open(ctx, cfg, rdb)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.StorageBackend, err)
	}
	a.closers = append(a.closers, closeStore)
	a.Checks = append(a.Checks, api.ReadyCheck{Name: cfg.StorageBackend, Check: store.Ping})
	logger.Info("storage ready", "backend", cfg.StorageBackend, "key", cfg.StorageKey)

	var locker appointment.Locker
	if cfg.LockBackend == "redis" {
		locker = redisclient.NewScheduleLocker(rdb, cfg.LockTTL)
	} else {
		locker = appointment.NewLocalLocker()
	}

	var publisher appointment.Publisher = appointment.LogPublisher{Logger: logger}
	if cfg.KafkaBrokers != "" {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, kp.Close)
		publisher = kp
		logger.Info("publishing booking events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	a.Repository = appointment.NewRepository(store, appointment.RepositoryOptions{
		Key:      cfg.StorageKey,
		Seed:     appointment.DefaultSeed(cfg.UnitRate),
		UnitRate: cfg.UnitRate,
		Logger:   logger,
	})
	if _, err := a.Repository.Load(ctx); err != nil {
		if !errors.Is(err, appointment.ErrPersistence) {
			_ = a.Close()
			return nil, err
		}
		logger.Warn("starting with degraded history", "err", err)
	}

	a.Service = appointment.NewService(a.Repository, locker, publisher, appointment.ServiceConfig{
		UnitRate:       cfg.UnitRate,
		DefaultTeacher: appointment.Teacher{ID: cfg.DefaultTeacherID, Name: cfg.DefaultTeacherName},
		Policy: appointment.Policy{
			OpeningTime:     cfg.OpeningTime,
			ClosingTime:     cfg.ClosingTime,
			ClosedWeekdays:  cfg.ClosedWeekdays,
			RejectPastDates: cfg.RejectPastDates,
		},
		Location:         cfg.Location,
		ReloadBeforeBook: cfg.SharedStore(),
		LockName:         cfg.StorageKey,
	}, logger)

	return a, nil
}

// Close releases everything Build opened, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
