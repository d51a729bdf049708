package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/0x360x36/miauhome.cl/api/controllers"
	"github.com/0x360x36/miauhome.cl/api/middleware"
	"github.com/0x360x36/miauhome.cl/api/routes"
	"github.com/0x360x36/miauhome.cl/internal/checkout"
	"github.com/0x360x36/miauhome.cl/internal/cron"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	"github.com/0x360x36/miauhome.cl/pkg/backend"
	"github.com/0x360x36/miauhome.cl/pkg/config"
	"github.com/0x360x36/miauhome.cl/pkg/instance"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
	"github.com/0x360x36/miauhome.cl/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]any{"instance": instance.GetID()},
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "storefront stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := &resources{logg: logg}
	defer func() {
		if closeErr := res.Close(); closeErr != nil {
			logg.Error(context.Background(), "error releasing resources", closeErr)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(registry)

	store, err := res.guestStore(ctx, cfg)
	if err != nil {
		return err
	}

	backendClient, err := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithBreaker(cfg.Backend.BreakerMaxFailures, cfg.Backend.BreakerOpenTimeout),
		backend.WithObserver(cartMetrics),
		backend.WithLogger(logg),
	)
	if err != nil {
		return err
	}

	sessions, err := newSessionRegistry(cfg, logg, store, backendClient, cartMetrics)
	if err != nil {
		return err
	}

	var guard checkout.AttemptGuard = checkout.NewMemoryGuard(cfg.Checkout.AttemptTTL)
	if res.redis != nil {
		guard = checkout.NewRedisGuard(res.redis, cfg.Checkout.AttemptTTL)
	}
	checkoutSvc, err := checkout.NewService(backendClient, guard, cartMetrics, logg)
	if err != nil {
		return err
	}

	maintenance, err := newMaintenance(cfg, logg, res, sessions, cartMetrics)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			Sessions: sessions,
			Catalog:  backendClient,
			Checkout: checkoutSvc,
			Identity: auth.NewParser(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
			Readiness: map[string]controllers.ReadinessCheck{
				"guest_store": store.Ping,
				"backend":     backendClient.Ready,
			},
			Gatherer: registry,
			GuestCookie: middleware.GuestCookie{
				Name:   cfg.Cart.GuestCookieName,
				MaxAge: cfg.GuestStore.TTL,
				Secure: cfg.App.IsProd(),
			},
		}),
	}

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"guest_store": cfg.GuestStore.Driver,
		"login":       cfg.Cart.LoginPolicy,
	})
	logg.Info(runCtx, "starting storefront server")

	for _, svc := range maintenance {
		go func(svc *cron.Service) {
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(runCtx, "maintenance stopped unexpectedly", err)
			}
		}(svc)
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(runCtx, "storefront shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
