package controllers

import (
	"net/http"
	"time"

	"github.com/Vantorrr/yauberu-backend/api/responses"
	"github.com/Vantorrr/yauberu-backend/api/validators"
	"github.com/Vantorrr/yauberu-backend/internal/generator"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
)

type generationRunResponse struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
}

// SchedulerRun triggers the daily generation sweep on demand.
func SchedulerRun(svc generator.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generator service unavailable"))
			return
		}

		result, err := svc.RunDaily(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "daily generation").WithDetails(map[string]any{
				"generated": result.Generated,
				"skipped":   result.Skipped,
			}))
			return
		}
		responses.WriteSuccess(w, generationRunResponse{Generated: result.Generated, Skipped: result.Skipped})
	}
}

type backfillRequest struct {
	Date string `json:"date,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// SchedulerBackfill re-runs generation for a missed date or range. A single
// date is shorthand for a one-day range.
func SchedulerBackfill(svc generator.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generator service unavailable"))
			return
		}

		var payload backfillRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from, to, err := backfillWindow(payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RunBackfill(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, generationRunResponse{Generated: result.Generated, Skipped: result.Skipped})
	}
}

func backfillWindow(payload backfillRequest) (time.Time, time.Time, error) {
	if payload.Date != "" {
		if payload.From != "" || payload.To != "" {
			return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "provide either date or from/to, not both")
		}
		day, err := parseBackfillDate(payload.Date, "date")
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return day, day, nil
	}

	if payload.From == "" || payload.To == "" {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "date or from/to range is required")
	}
	from, err := parseBackfillDate(payload.From, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseBackfillDate(payload.To, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "to must not precede from")
	}
	return from, to, nil
}

func parseBackfillDate(value, field string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field})
	}
	return t.UTC(), nil
}
