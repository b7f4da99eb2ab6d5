package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"paysuit/internal/models"
)

// VAPIDKeyHandler returns the public VAPID key browsers subscribe with
func (h *Handler) VAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.Notifier.PublicKey()})
}

// SubscribeHandler registers the caller's push endpoint. Re-subscribing
// with the same endpoint overwrites keys and owner in place.
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, _ := CurrentClaims(r)

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, models.ErrMissingEndpoint.Error())
		return
	}
	if req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, models.ErrMissingKeys.Error())
		return
	}

	id, err := h.Store.UpsertSubscription(r.Context(), claims.UserID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		log.Printf("Failed to save subscription: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "subscriptionId": id})
}

// UnsubscribeHandler removes one of the caller's endpoints. Admins may
// remove any endpoint. Idempotent: a missing endpoint is still success.
func (h *Handler) UnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, _ := CurrentClaims(r)

	var req struct {
		Endpoint string `json:"endpoint"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, models.ErrMissingEndpoint.Error())
		return
	}

	var err error
	if claims.Has(models.RoleAdmin) {
		err = h.Store.DeleteSubscription(r.Context(), req.Endpoint)
	} else {
		err = h.Store.DeleteSubscriptionOwned(r.Context(), claims.UserID, req.Endpoint)
	}
	if err != nil {
		log.Printf("Failed to remove subscription: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to remove subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// SendPushHandler pushes a notification to all of one user's devices.
// Per-delivery failures are folded into the failed counter, never into the
// HTTP status.
func (h *Handler) SendPushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Title  string `json:"title"`
		Body   string `json:"body"`
		URL    string `json:"url"`
		UserID int    `json:"userId"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	payload := models.NotificationPayload{Title: req.Title, Body: req.Body, URL: req.URL}
	result, err := h.Notifier.SendToUser(r.Context(), req.UserID, payload)
	if err != nil {
		if errors.Is(err, models.ErrMissingTitle) || errors.Is(err, models.ErrMissingBody) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Failed to send push notification: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to send notification")
		return
	}

	h.recordNotification(r, req.UserID, payload)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sent":    result.Sent,
		"failed":  result.Failed,
	})
}

// BroadcastPushHandler pushes a notification to every registered
// subscription. Admin only.
func (h *Handler) BroadcastPushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		URL   string `json:"url"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	payload := models.NotificationPayload{Title: req.Title, Body: req.Body, URL: req.URL}
	result, err := h.Notifier.Broadcast(r.Context(), payload)
	if err != nil {
		if errors.Is(err, models.ErrMissingTitle) || errors.Is(err, models.ErrMissingBody) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Failed to broadcast push notification: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to send notification")
		return
	}

	resp := map[string]any{
		"success": true,
		"sent":    result.Sent,
		"failed":  result.Failed,
		"total":   result.Total,
	}
	if result.Total == 0 {
		resp["message"] = "No active subscriptions. Please subscribe first."
	}

	writeJSON(w, http.StatusOK, resp)
}

// recordNotification appends the payload to the recipient's feed and
// publishes it on the live events channel. Feed failures are logged only;
// the push outcome already went back to the caller.
func (h *Handler) recordNotification(r *http.Request, userID int, payload models.NotificationPayload) {
	n := models.Notification{
		Title:     payload.Title,
		Body:      payload.Body,
		URL:       payload.URL,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.Feed.AddNotification(r.Context(), userID, n); err != nil {
		log.Printf("Failed to record notification for user %d: %v", userID, err)
	}
	if err := h.Feed.PublishEvent(r.Context(), map[string]any{
		"type":    "notification",
		"user_id": userID,
		"title":   payload.Title,
	}); err != nil {
		log.Printf("Failed to publish notification event: %v", err)
	}
}
