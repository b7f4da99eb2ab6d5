package handlers

import (
	"fmt"
	"net/http"
	"strconv"
)

// ListNotificationsHandler pages through the caller's notification feed.
func (h *Handler) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	limit := 20
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	notifications, total, err := h.Feed.GetNotifications(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"total":         total,
	})
}

// PurgeNotificationsHandler clears the caller's feed.
func (h *Handler) PurgeNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, _ := CurrentClaims(r)

	if err := h.Feed.PurgeNotifications(r.Context(), claims.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to purge notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SSEHandler streams live events from the Redis channel to the client.
func (h *Handler) SSEHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Feed.Subscribe(r.Context())
	defer pubsub.Close()

	ch := pubsub.Channel()

	fmt.Fprintf(w, "data: %s\n\n", "connected")
	w.(http.Flusher).Flush()

	for {
		select {
		case msg := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}
