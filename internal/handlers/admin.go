package handlers

import (
	"fmt"
	"log"
	"net/http"

	"paysuit/internal/models"
)

func (h *Handler) audit(r *http.Request, action, targetType string, targetID int, metadata string) {
	claims, _ := CurrentClaims(r)
	entry := models.AuditLog{
		ActorID:    claims.UserID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	}
	if err := h.Store.AddAuditLog(r.Context(), entry); err != nil {
		log.Printf("Failed to write audit log: %v", err)
	}
}

// GetUsersHandler lists all accounts.
func (h *Handler) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.GetUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// UpdateUserRolesHandler replaces a user's role set.
func (h *Handler) UpdateUserRolesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/api/admin/users/", "")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req struct {
		Roles []models.UserRole `json:"roles"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	for _, role := range req.Roles {
		if !models.ValidRole(role) {
			writeError(w, http.StatusBadRequest, "Invalid role: "+string(role))
			return
		}
	}

	if err := h.Store.UpdateUserRoles(r.Context(), id, req.Roles); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update roles")
		return
	}

	h.audit(r, "update_roles", "user", id, fmt.Sprintf("%v", req.Roles))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DeleteUserHandler removes an account; its subscriptions cascade away.
func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	id, ok := pathID(r, "/api/admin/users/", "")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if id == claims.UserID {
		writeError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	if err := h.Store.DeleteUser(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	h.audit(r, "delete_user", "user", id, "")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AdminDisable2FAHandler allows admins to disable 2FA for any user (account
// recovery).
func (h *Handler) AdminDisable2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		UserID int `json:"user_id"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if err := h.Store.Disable2FA(r.Context(), req.UserID); err != nil {
		log.Printf("Failed to disable 2FA: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to disable 2FA")
		return
	}

	h.audit(r, "disable_2fa", "user", req.UserID, "")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA disabled by admin"})
}

// AuditLogHandler returns recent admin actions.
func (h *Handler) AuditLogHandler(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Store.GetAuditLogs(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load audit log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}
