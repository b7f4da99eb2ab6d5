package handlers

import (
	"log"
	"net/http"

	"paysuit/internal/metrics"
	"paysuit/internal/models"
)

const totpIssuer = "Paysuit"

// Generate2FAHandler generates a new TOTP secret and QR code for the caller
func (h *Handler) Generate2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, _ := CurrentClaims(r)

	key, err := models.GenerateTOTPSecret(claims.Email, totpIssuer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate secret")
		return
	}

	qrCode, err := models.GenerateQRCode(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"secret":  key.Secret(),
		"qr_code": "data:image/png;base64," + qrCode,
		"issuer":  totpIssuer,
		"account": claims.Email,
	})
}

// Enable2FAHandler verifies the TOTP code and enables 2FA for the caller
func (h *Handler) Enable2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, _ := CurrentClaims(r)

	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if !models.VerifyTOTPCode(req.Secret, req.Code) {
		writeError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	if err := h.Store.UpdateUser2FA(r.Context(), claims.UserID, req.Secret, true); err != nil {
		log.Printf("Failed to enable 2FA: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to enable 2FA")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA enabled successfully"})
}

// Disable2FAHandler disables 2FA for the caller. Admins cannot disable
// their own 2FA; account recovery goes through AdminDisable2FAHandler.
func (h *Handler) Disable2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, _ := CurrentClaims(r)

	if claims.Has(models.RoleAdmin) {
		writeError(w, http.StatusForbidden, "Admins cannot disable their own 2FA")
		return
	}

	if err := h.Store.Disable2FA(r.Context(), claims.UserID); err != nil {
		log.Printf("Failed to disable 2FA: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to disable 2FA")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA disabled successfully"})
}

// Verify2FALoginHandler completes a login for an account with 2FA enabled
func (h *Handler) Verify2FALoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		UserID int    `json:"user_id"`
		Code   string `json:"code"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, err := h.Store.GetUser(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if !user.TOTPEnabled || !models.VerifyTOTPCode(user.TOTPSecret, req.Code) {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	createSession(w, r, user)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}
