package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/estate"
	"sigepa.cl/internal/obs"
	"sigepa.cl/internal/payment"
)

type checkoutResponse struct {
	Payment  estate.Payment   `json:"payment"`
	Checkout payment.Checkout `json:"checkout"`
}

type confirmRequest struct {
	Token string `json:"token"`
}

type confirmResponse struct {
	Payment      estate.Payment       `json:"payment"`
	Confirmation payment.Confirmation `json:"confirmation"`
}

func (a *API) myPayments(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	payments, err := a.estate.PaymentsOf(r.Context(), id.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(payments))
}

func (a *API) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	payments, err := a.estate.ListPayments(r.Context(), id.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if status := estate.PaymentStatus(r.URL.Query().Get("status")); status != "" {
		if !status.Valid() {
			handleError(w, r, auth.Malformed("unknown payment status"))
			return
		}
		filtered := payments[:0]
		for _, p := range payments {
			if p.Status == status {
				filtered = append(filtered, p)
			}
		}
		payments = filtered
	}
	writeData(w, http.StatusOK, nonNil(payments))
}

func (a *API) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	paymentID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.estate.Payment(r.Context(), paymentID)
	if err := authorizeLoaded(a.gate, id, auth.OwnerOrAdmin, p, err); err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	paymentID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.estate.Payment(r.Context(), paymentID)
	if err := authorizeLoaded(a.gate, id, auth.OwnerOrAdmin, p, err); err != nil {
		handleError(w, r, err)
		return
	}
	updated, co, err := a.estate.Checkout(r.Context(), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	obs.ObservePayment(a.estate.GatewayName(), string(updated.Status))
	a.audit(r.Context(), "payment.checkout",
		zap.Int64("payment_id", updated.ID),
		zap.String("reference", updated.Reference),
		zap.Int64("amount", updated.Amount),
	)
	writeData(w, http.StatusOK, checkoutResponse{Payment: updated, Checkout: co})
}

// resetCheckout lets an administrator release a payment whose payer never
// came back from the gateway.
func (a *API) resetCheckout(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	paymentID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.estate.Payment(r.Context(), paymentID)
	if err := authorizeLoaded(a.gate, id, auth.AdminOnly, p, err); err != nil {
		handleError(w, r, err)
		return
	}
	updated, err := a.estate.ResetCheckout(r.Context(), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "payment.checkout_reset",
		zap.Int64("payment_id", updated.ID),
		zap.String("abandoned_reference", p.Reference),
	)
	writeData(w, http.StatusOK, updated)
}

// confirm commits the gateway transaction named by the token the gateway
// handed back on redirect. An unknown or tampered token finds no payment and
// is denied like any other foreign resource.
func (a *API) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		handleError(w, r, auth.Malformed("token is required"))
		return
	}
	p, err := a.estate.PaymentByToken(r.Context(), token)
	if err := authorizeLoaded(a.gate, id, auth.OwnerOrAdmin, p, err); err != nil {
		handleError(w, r, err)
		return
	}
	updated, conf, err := a.estate.Confirm(r.Context(), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	obs.ObservePayment(a.estate.GatewayName(), string(updated.Status))
	a.audit(r.Context(), "payment.confirmed",
		zap.Int64("payment_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.Int("response_code", conf.ResponseCode),
	)
	writeData(w, http.StatusOK, confirmResponse{Payment: updated, Confirmation: conf})
}
