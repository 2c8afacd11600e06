package controllers

import (
	"net/http"

	"github.com/fairwaylabs/fairway-pos-backend/api/responses"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Fairway-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the datastore and cache answer pings.
func HealthReady(cfg *config.Config, database db.Pinger, cache redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Fairway-Env", cfg.App.Env)

		if err := database.Ping(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
			return
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
