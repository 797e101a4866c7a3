package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/estate"
)

// Users ---------------------------------------------------------------------

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	users, err := a.estate.ListUsers(r.Context(), id.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(users))
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req estate.NewUser
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	communityID, err := a.targetCommunity(id, req.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.estate.CreateUser(r.Context(), communityID, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.created", zap.Int64("target_user_id", u.ID), zap.String("target_role", u.Role.String()))
	writeData(w, http.StatusOK, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	userID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.estate.User(r.Context(), userID)
	if err := authorizeLoaded(a.gate, id, auth.AdminOnly, u, err); err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.estate.DeleteUser(r.Context(), id.CommunityID, id.UserID, u.ID); err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.deleted", zap.Int64("target_user_id", u.ID))
	writeData(w, http.StatusOK, map[string]int64{"id": u.ID})
}

// Contracts -----------------------------------------------------------------

func (a *API) listContracts(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	contracts, err := a.estate.ListContracts(r.Context(), id.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(contracts))
}

func (a *API) createContract(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req estate.NewContract
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	communityID, err := a.targetCommunity(id, req.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	c, err := a.estate.CreateContract(r.Context(), communityID, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "contract.created", zap.Int64("contract_id", c.ID), zap.Int64("parcel_id", c.ParcelID))
	writeData(w, http.StatusOK, c)
}

func (a *API) deleteContract(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	contractID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	c, err := a.estate.Contract(r.Context(), contractID)
	if err := authorizeLoaded(a.gate, id, auth.AdminOnly, c, err); err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.estate.DeleteContract(r.Context(), id.CommunityID, c.ID); err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "contract.deleted", zap.Int64("contract_id", c.ID))
	writeData(w, http.StatusOK, map[string]int64{"id": c.ID})
}

// Expenses ------------------------------------------------------------------

type createExpenseResponse struct {
	Expense  estate.Expense   `json:"expense"`
	Payments []estate.Payment `json:"payments"`
}

func (a *API) listExpenses(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	expenses, err := a.estate.ListExpenses(r.Context(), id.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(expenses))
}

func (a *API) createExpense(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req estate.NewExpense
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	communityID, err := a.targetCommunity(id, req.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	e, payments, err := a.estate.CreateExpense(r.Context(), communityID, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "expense.created",
		zap.Int64("expense_id", e.ID),
		zap.Int64("amount", e.Amount),
		zap.Int("payments", len(payments)),
	)
	writeData(w, http.StatusOK, createExpenseResponse{Expense: e, Payments: nonNil(payments)})
}

// Statistics ----------------------------------------------------------------

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	sum, err := a.estate.Summary(r.Context(), id.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sum)
}
