package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Vantorrr/yauberu-backend/api/responses"
	"github.com/Vantorrr/yauberu-backend/api/validators"
	"github.com/Vantorrr/yauberu-backend/internal/payments"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
)

type createPaymentRequest struct {
	ProviderPaymentID string                `json:"provider_payment_id" validate:"required"`
	Amount            string                `json:"amount" validate:"required"`
	Tariff            string                `json:"tariff" validate:"required"`
	Description       string                `json:"description,omitempty"`
	Order             payments.OrderRequest `json:"order" validate:"required"`
}

// CreatePayment registers a pending provider payment for the acting client.
// The provider checkout itself happens outside this service; only its
// payment id and the requested order survive here until the webhook lands.
func CreatePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}
		tariff, err := enums.ParseTariff(payload.Tariff)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tariff"))
			return
		}

		payment, err := svc.CreatePending(r.Context(), payments.CreatePendingInput{
			UserID:            userID,
			ProviderPaymentID: strings.TrimSpace(payload.ProviderPaymentID),
			Amount:            amount,
			Tariff:            tariff,
			Description:       validators.SanitizeString(payload.Description, 500),
			Order:             payload.Order,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

type paymentWebhookRequest struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

// PaymentWebhook handles provider payment notifications. A repeat
// notification for a settled payment is acknowledged without side effects
// so the provider stops retrying.
func PaymentWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		// Provider notifications carry many fields this service ignores,
		// so the strict body decoder does not apply here.
		var payload paymentWebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body"))
			return
		}
		providerID := strings.TrimSpace(payload.Object.ID)
		if providerID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required"))
			return
		}

		ctx = logg.WithField(ctx, "provider_payment_id", providerID)

		switch strings.ToLower(strings.TrimSpace(payload.Object.Status)) {
		case "succeeded":
			result, err := svc.ProcessSucceeded(ctx, providerID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if result.AlreadyDone {
				logg.Info(ctx, "payment already processed")
				responses.WriteSuccess(w, map[string]string{"status": "ok"})
				return
			}
			logg.Info(ctx, "payment processed")
			responses.WriteSuccess(w, map[string]any{
				"status":    "ok",
				"generated": result.Generated,
			})
		case "canceled":
			if err := svc.ProcessCanceled(ctx, providerID); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, map[string]string{"status": "ok"})
		default:
			// Unknown statuses are acknowledged so the provider does not
			// retry events this service never acts on.
			logg.Warn(logg.WithField(ctx, "payment_status", payload.Object.Status), "ignoring unhandled payment status")
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
		}
	}
}
