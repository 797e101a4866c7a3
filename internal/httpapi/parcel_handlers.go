package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/estate"
)

func (a *API) myParcels(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	parcels, err := a.estate.ParcelsOf(r.Context(), id.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(parcels))
}

func (a *API) parcelMap(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	pins, err := a.estate.ParcelMap(r.Context(), id.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(pins))
}

func (a *API) listParcels(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	parcels, err := a.estate.ListParcels(r.Context(), id.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(parcels))
}

func (a *API) getParcel(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	parcelID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.estate.Parcel(r.Context(), parcelID)
	if err := authorizeLoaded(a.gate, id, auth.OwnerOrAdmin, p, err); err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (a *API) createParcel(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req estate.NewParcel
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	communityID, err := a.targetCommunity(id, req.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.estate.CreateParcel(r.Context(), communityID, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "parcel.created", zap.Int64("parcel_id", p.ID), zap.String("number", p.Number))
	writeData(w, http.StatusOK, p)
}

func (a *API) deleteParcel(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	parcelID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.estate.Parcel(r.Context(), parcelID)
	if err := authorizeLoaded(a.gate, id, auth.AdminOnly, p, err); err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.estate.DeleteParcel(r.Context(), id.CommunityID, p.ID); err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "parcel.deleted", zap.Int64("parcel_id", p.ID))
	writeData(w, http.StatusOK, map[string]int64{"id": p.ID})
}

// nonNil keeps empty collections rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
