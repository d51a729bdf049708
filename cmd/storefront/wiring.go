package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/0x360x36/miauhome.cl/internal/cart"
	"github.com/0x360x36/miauhome.cl/internal/cron"
	"github.com/0x360x36/miauhome.cl/internal/session"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	"github.com/0x360x36/miauhome.cl/pkg/backend"
	"github.com/0x360x36/miauhome.cl/pkg/config"
	"github.com/0x360x36/miauhome.cl/pkg/db"
	"github.com/0x360x36/miauhome.cl/pkg/guest"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
	"github.com/0x360x36/miauhome.cl/pkg/metrics"
	"github.com/0x360x36/miauhome.cl/pkg/migrate"
	"github.com/0x360x36/miauhome.cl/pkg/redis"
)

const maintenanceLockName = "maintenance"

// resources owns the connections opened during startup.
type resources struct {
	logg     *logger.Logger
	redis    *redis.Client
	db       *db.Client
	sqlStore *guest.SQLStore
}

func (r *resources) Close() error {
	var err error
	if r.db != nil {
		err = multierr.Append(err, r.db.Close())
	}
	if r.redis != nil {
		err = multierr.Append(err, r.redis.Close())
	}
	return err
}

// guestStore opens the device-local cart store selected by configuration. Redis
// is connected whenever it is configured so checkout and maintenance can share it.
func (r *resources) guestStore(ctx context.Context, cfg *config.Config) (guest.Store, error) {
	if cfg.Redis.Configured() {
		client, err := redis.New(ctx, cfg.Redis, r.logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		r.redis = client
	}

	switch cfg.GuestStore.Driver {
	case config.GuestStoreRedis:
		return guest.NewRedisStore(r.redis, cfg.GuestStore.TTL)
	case config.GuestStoreSQL:
		client, err := db.New(ctx, cfg.DB, r.logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		r.db = client
		if err := migrate.MaybeRun(ctx, cfg, r.logg, client); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		store, err := guest.NewSQLStore(client.DB(), cfg.GuestStore.TTL)
		if err != nil {
			return nil, err
		}
		r.sqlStore = store
		return store, nil
	case config.GuestStoreFile:
		return guest.NewFileStore(cfg.GuestStore.FileDir, cfg.GuestStore.TTL)
	}
	return nil, fmt.Errorf("unsupported guest store %q", cfg.GuestStore.Driver)
}

func newSessionRegistry(cfg *config.Config, logg *logger.Logger, store guest.Store, client *backend.Client, observer *metrics.CartMetrics) (*session.Registry, error) {
	policy, err := cart.ParseLoginPolicy(cfg.Cart.LoginPolicy)
	if err != nil {
		return nil, err
	}
	factory := func(profileID string, expired func(context.Context)) (*cart.Manager, error) {
		guestBackend, err := cart.NewGuestBackend(store, profileID, logg)
		if err != nil {
			return nil, err
		}
		return cart.NewManager(cart.Options{
			Guest: guestBackend,
			Remote: func(identity *auth.Identity) (cart.Backend, error) {
				return cart.NewRemoteBackend(client, identity)
			},
			Policy:         policy,
			OnUnauthorized: expired,
			Observer:       observer,
			Logger:         logg,
		})
	}
	return session.NewRegistry(factory, cfg.Cart.SessionIdleTTL, logg)
}

// newMaintenance builds the in-process job runners. Session sweeping touches
// only this instance's memory and runs everywhere; the guest cart purge hits
// the shared database and runs under the cross-instance lock.
func newMaintenance(cfg *config.Config, logg *logger.Logger, res *resources, sessions *session.Registry, observer cron.JobObserver) ([]*cron.Service, error) {
	if !cfg.Maintenance.Enabled {
		return nil, nil
	}

	sweep, err := cron.NewSessionSweepJob(sessions)
	if err != nil {
		return nil, err
	}
	local, err := cron.NewService(cron.ServiceParams{
		Name:     "local",
		Logger:   logg,
		Registry: cron.NewRegistry(sweep),
		Lock:     &cron.LocalLock{},
		Observer: observer,
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		return nil, err
	}
	services := []*cron.Service{local}

	if res.sqlStore == nil {
		return services, nil
	}
	purge, err := cron.NewGuestCartPurgeJob(res.sqlStore, logg)
	if err != nil {
		return nil, err
	}
	var lock cron.Lock = &cron.LocalLock{}
	if res.redis != nil {
		redisLock, err := cron.NewRedisLock(res.redis, res.redis.LockKey(maintenanceLockName), cfg.Maintenance.LockTTL)
		if err != nil {
			return nil, err
		}
		lock = redisLock
	}
	shared, err := cron.NewService(cron.ServiceParams{
		Name:       "shared",
		Logger:     logg,
		Registry:   cron.NewRegistry(purge),
		Lock:       lock,
		Observer:   observer,
		Interval:   cfg.Maintenance.Interval,
		JobTimeout: cfg.Maintenance.LockTTL,
	})
	if err != nil {
		return nil, err
	}
	return append(services, shared), nil
}
