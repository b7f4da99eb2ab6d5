package handlers

import (
	"log"
	"net/http"
	"time"

	"paysuit/internal/models"
)

// CreateApartmentHandler registers a new apartment for the calling
// landlord; one vacant house per door is created alongside it.
func (h *Handler) CreateApartmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	var req struct {
		Name                string                     `json:"name"`
		NumberOfDoors       int                        `json:"number_of_doors"`
		HouseType           models.HouseType           `json:"house_type"`
		RentAmount          int                        `json:"rent_amount"`
		AdditionalCharges   models.AdditionalCharges   `json:"additional_charges"`
		WithDeposit         bool                       `json:"with_deposit"`
		DepositAmount       int                        `json:"deposit_amount"`
		LandlordPhoneNumber string                     `json:"landlord_phone_number"`
		Disbursement        models.DisbursementAccount `json:"disbursement_account"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if req.Name == "" || req.LandlordPhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "Name and landlord phone number are required")
		return
	}
	if req.NumberOfDoors <= 0 || req.RentAmount <= 0 {
		writeError(w, http.StatusBadRequest, "Number of doors and rent amount must be positive")
		return
	}
	if !models.ValidHouseType(req.HouseType) {
		writeError(w, http.StatusBadRequest, "Invalid house type")
		return
	}
	if req.WithDeposit && req.DepositAmount <= 0 {
		writeError(w, http.StatusBadRequest, "Deposit amount is required when deposit is enabled")
		return
	}

	apartment := models.Apartment{
		Name:                req.Name,
		LandlordID:          claims.UserID,
		NumberOfDoors:       req.NumberOfDoors,
		HouseType:           req.HouseType,
		RentAmount:          req.RentAmount,
		AdditionalCharges:   req.AdditionalCharges,
		WithDeposit:         req.WithDeposit,
		DepositAmount:       req.DepositAmount,
		LandlordPhoneNumber: req.LandlordPhoneNumber,
		Disbursement:        req.Disbursement,
	}

	created, err := h.Store.CreateApartment(r.Context(), apartment)
	if err != nil {
		log.Printf("Failed to create apartment: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create apartment")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "apartment": created})
}

// ListApartmentsHandler returns the calling landlord's apartments.
func (h *Handler) ListApartmentsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	apartments, err := h.Store.GetApartmentsByLandlord(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list apartments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"apartments": apartments,
		"count":      len(apartments),
	})
}

// ApartmentHousesHandler lists the houses of one apartment. Visible to the
// owning landlord, admins, and tenants browsing for a vacancy.
func (h *Handler) ApartmentHousesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/api/apartments/", "/houses")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid apartment id")
		return
	}

	if _, err := h.Store.GetApartment(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "Apartment not found")
		return
	}

	houses, err := h.Store.GetHouses(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list houses")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"houses": houses, "count": len(houses)})
}

// JoinHouseHandler lets a tenant take a vacant house.
func (h *Handler) JoinHouseHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	id, ok := pathID(r, "/api/houses/", "/join")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid house id")
		return
	}

	house, err := h.Store.GetHouse(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "House not found")
		return
	}

	if house.Status != models.HouseVacant {
		writeError(w, http.StatusConflict, "House is already occupied")
		return
	}

	if err := h.Store.AssignTenant(r.Context(), house.ID, claims.UserID); err != nil {
		// Lost the race against another tenant joining the same door.
		writeError(w, http.StatusConflict, "House is already occupied")
		return
	}

	apartment, err := h.Store.GetApartment(r.Context(), house.ApartmentID)
	if err == nil {
		h.notifyUser(r, apartment.LandlordID, models.NotificationPayload{
			Title: "New tenant",
			Body:  claims.Name + " joined door " + house.DoorNumber + " at " + apartment.Name,
			URL:   "/apartments",
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// VacateHouseHandler clears the tenant off a house. Allowed for the
// occupant, the owning landlord, and admins.
func (h *Handler) VacateHouseHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	id, ok := pathID(r, "/api/houses/", "/vacate")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid house id")
		return
	}

	house, err := h.Store.GetHouse(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "House not found")
		return
	}

	apartment, err := h.Store.GetApartment(r.Context(), house.ApartmentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load apartment")
		return
	}

	allowed := claims.UserID == house.TenantID ||
		claims.UserID == apartment.LandlordID ||
		claims.Has(models.RoleAdmin)
	if !allowed {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	if err := h.Store.VacateHouse(r.Context(), house.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to vacate house")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// MyHousesHandler returns the houses the caller currently rents.
func (h *Handler) MyHousesHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	houses, err := h.Store.GetHousesByTenant(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list houses")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"houses": houses, "count": len(houses)})
}

// notifyUser is best-effort: failures are logged and never affect the
// request that triggered the notification.
func (h *Handler) notifyUser(r *http.Request, userID int, payload models.NotificationPayload) {
	if _, err := h.Notifier.SendToUser(r.Context(), userID, payload); err != nil {
		log.Printf("Failed to notify user %d: %v", userID, err)
		return
	}

	n := models.Notification{
		Title:     payload.Title,
		Body:      payload.Body,
		URL:       payload.URL,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Feed.AddNotification(r.Context(), userID, n); err != nil {
		log.Printf("Failed to record notification for user %d: %v", userID, err)
	}
}
