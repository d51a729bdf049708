package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

const (
	GuestCartPurgeJobName = "guest-cart-purge"
	SessionSweepJobName   = "session-sweep"
)

type guestCartPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type sessionSweeper interface {
	Sweep(ctx context.Context) int
}

type guestCartPurgeJob struct {
	store guestCartPurger
	logg  *logger.Logger
}

// NewGuestCartPurgeJob deletes guest carts past their TTL from stores that do
// not expire entries on their own.
func NewGuestCartPurgeJob(store guestCartPurger, logg *logger.Logger) (Job, error) {
	if store == nil {
		return nil, errors.New("guest cart store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &guestCartPurgeJob{store: store, logg: logg}, nil
}

func (j *guestCartPurgeJob) Name() string { return GuestCartPurgeJobName }

func (j *guestCartPurgeJob) Run(ctx context.Context) error {
	n, err := j.store.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired guest carts: %w", err)
	}
	if n > 0 {
		j.logg.Info(j.logg.WithField(ctx, "purged", n), "expired guest carts purged")
	}
	return nil
}

type sessionSweepJob struct {
	sessions sessionSweeper
}

// NewSessionSweepJob evicts idle cart sessions from memory.
func NewSessionSweepJob(sessions sessionSweeper) (Job, error) {
	if sessions == nil {
		return nil, errors.New("session registry required")
	}
	return &sessionSweepJob{sessions: sessions}, nil
}

func (j *sessionSweepJob) Name() string { return SessionSweepJobName }

func (j *sessionSweepJob) Run(ctx context.Context) error {
	j.sessions.Sweep(ctx)
	return nil
}
