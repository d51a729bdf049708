package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/0x360x36/miauhome.cl/api/responses"
	"github.com/0x360x36/miauhome.cl/pkg/config"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Miauhome-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady runs every check and answers 503 with the failing names when
// any of them fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Miauhome-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var failing []string
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"check": name, "error": err.Error()}), "readiness check failed")
				}
				failing = append(failing, name)
			}
		}
		if len(failing) > 0 {
			sort.Strings(failing)
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeTransport, "dependencies unavailable").
				WithDetails(map[string]any{"failing": failing}))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
