package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/estate"
)

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		handleError(w, r, err)
		return
	}
	items, err := a.estate.ListNotifications(r.Context(), id.CommunityID, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(items))
}

func (a *API) createNotification(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req estate.NewNotification
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	communityID, err := a.targetCommunity(id, req.CommunityID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	n, err := a.estate.CreateNotification(r.Context(), communityID, id.UserID, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "notification.created", zap.Int64("notification_id", n.ID), zap.String("priority", n.Priority))
	writeData(w, http.StatusOK, n)
}

func (a *API) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	notificationID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	n, err := a.estate.Notification(r.Context(), notificationID)
	if err := authorizeLoaded(a.gate, id, auth.AdminOnly, n, err); err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.estate.DeleteNotification(r.Context(), id.CommunityID, n.ID); err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "notification.deleted", zap.Int64("notification_id", n.ID))
	writeData(w, http.StatusOK, map[string]int64{"id": n.ID})
}
