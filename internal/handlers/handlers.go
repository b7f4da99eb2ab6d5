package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"paysuit/internal/models"
	"paysuit/internal/payments"
	"paysuit/internal/push"
	"paysuit/internal/store"
)

// Notifier is the push fan-out pipeline as the HTTP layer sees it.
type Notifier interface {
	SendToUser(ctx context.Context, userID int, payload models.NotificationPayload) (push.Result, error)
	Broadcast(ctx context.Context, payload models.NotificationPayload) (push.Result, error)
	PublicKey() string
}

type Handler struct {
	Store    store.DataStore
	Feed     store.FeedStore
	Notifier Notifier
	Gateway  payments.Gateway
}

func NewHandler(s store.DataStore, feed store.FeedStore, notifier Notifier, gateway payments.Gateway) *Handler {
	return &Handler{
		Store:    s,
		Feed:     feed,
		Notifier: notifier,
		Gateway:  gateway,
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("Failed to encode response:", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathID extracts the numeric id segment from paths like
// /api/apartments/{id}/houses given the prefix and trailing suffix.
func pathID(r *http.Request, prefix, suffix string) (int, bool) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	rest = strings.TrimSuffix(rest, suffix)
	rest = strings.Trim(rest, "/")

	id, err := strconv.Atoi(rest)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// HealthHandler is a liveness probe.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// InitAdmin creates a default admin account if no users exist yet.
func (h *Handler) InitAdmin(ctx context.Context) {
	users, err := h.Store.GetUsers(ctx)
	if err != nil || len(users) == 0 {
		user, err := h.Store.CreateUser(ctx, "Admin", "admin@paysuit.local", "", "admin123",
			[]models.UserRole{models.RoleAdmin})
		if err != nil {
			log.Println("Failed to create default admin:", err)
		} else {
			log.Printf("Created default admin user: %s / admin123", user.Email)
		}
	}
}
