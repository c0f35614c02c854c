package controllers

import (
	"net/http"

	"github.com/Vantorrr/yauberu-backend/api/responses"
	"github.com/Vantorrr/yauberu-backend/pkg/config"
	"github.com/Vantorrr/yauberu-backend/pkg/db"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/Vantorrr/yauberu-backend/pkg/redis"
)

const envHeader = "X-Yauberu-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]string{}

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["db"] = "down"
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable").WithDetails(checks))
				return
			}
			checks["db"] = "ok"
		}

		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = "down"
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable").WithDetails(checks))
				return
			}
			checks["redis"] = "ok"
		}

		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
