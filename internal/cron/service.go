// Package cron runs the storefront's periodic maintenance jobs in-process.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

const defaultInterval = 15 * time.Minute

// JobObserver records job outcomes.
type JobObserver interface {
	ObserveJob(job string, duration time.Duration, err error)
}

// ServiceParams configure a maintenance service. Name labels its log entries.
// JobTimeout bounds a single job run and defaults to the interval.
type ServiceParams struct {
	Name       string
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Observer   JobObserver
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs its registry on a fixed cadence while holding its lock.
type Service struct {
	name       string
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	observer   JobObserver
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	if p.Name == "" {
		p.Name = "maintenance"
	}
	if p.Lock == nil {
		p.Lock = &LocalLock{}
	}
	if p.Registry == nil {
		p.Registry = NewRegistry()
	}
	if p.Interval <= 0 {
		p.Interval = defaultInterval
	}
	if p.JobTimeout <= 0 {
		p.JobTimeout = p.Interval
	}
	return &Service{
		name:       p.Name,
		logg:       p.Logger,
		registry:   p.Registry,
		lock:       p.Lock,
		observer:   p.Observer,
		interval:   p.Interval,
		jobTimeout: p.JobTimeout,
	}, nil
}

// Name returns the label the service logs under.
func (s *Service) Name() string { return s.name }

// Run executes a cycle immediately and then on every tick until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithField(ctx, "maintenance", s.name)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":     s.registry.Names(),
		"interval": s.interval.String(),
	}), "maintenance service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "maintenance cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "maintenance service stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle runs every registered job once and returns their combined
// failures. A failing job does not stop the others. The cycle is skipped
// without error when the lock is held elsewhere.
func (s *Service) RunCycle(ctx context.Context) (err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Debug(ctx, "maintenance lock held elsewhere; skipping cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			err = multierr.Append(err, fmt.Errorf("lock release: %w", relErr))
		}
	}()

	for _, job := range s.registry.Jobs() {
		err = multierr.Append(err, s.runJob(ctx, job))
	}
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx, cancel := context.WithTimeout(s.logg.WithField(ctx, "job", job.Name()), s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveJob(job.Name(), elapsed, err)
	}

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Warn(jobCtx, "job failed")
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Debug(jobCtx, "job completed")
	return nil
}
