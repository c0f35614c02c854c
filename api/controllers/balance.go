package controllers

import (
	"errors"
	"net/http"

	"github.com/Vantorrr/yauberu-backend/api/responses"
	"github.com/Vantorrr/yauberu-backend/internal/ledger"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
)

type balanceResponse struct {
	Credits       int `json:"credits"`
	SingleCredits int `json:"single_credits"`
}

// Balance returns the acting client's credit pools. A client who never
// purchased anything has an all-zero balance rather than an error.
func Balance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.BalanceFor(r.Context(), userID)
		if err != nil {
			if errors.Is(err, ledger.ErrNoBalance) {
				responses.WriteSuccess(w, balanceResponse{})
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch balance"))
			return
		}
		responses.WriteSuccess(w, balanceResponse{
			Credits:       balance.Credits,
			SingleCredits: balance.SingleCredits,
		})
	}
}
