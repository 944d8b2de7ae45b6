package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/heuristic-logix/backoffice/api/responses"
	"github.com/heuristic-logix/backoffice/pkg/config"
	pkgerrors "github.com/heuristic-logix/backoffice/pkg/errors"
	"github.com/heuristic-logix/backoffice/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is anything that can confirm a live connection to a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NamedPinger pairs a dependency with the name reported in readiness output.
type NamedPinger struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{
			"status":  "ok",
			"service": cfg.Service.Kind,
			"env":     cfg.App.Env,
		})
	}
}

func HealthReady(logg *logger.Logger, deps ...NamedPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		for _, dep := range deps {
			if dep.Pinger == nil {
				checks[dep.Name] = "skipped"
				continue
			}
			if err := dep.Pinger.Ping(ctx); err != nil {
				healthy = false
				checks[dep.Name] = "down"
				if logg != nil {
					logg.Error(ctx, "health.dependency_down", err)
				}
				continue
			}
			checks[dep.Name] = "ok"
		}

		if !healthy {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"checks": checks,
		})
	}
}
