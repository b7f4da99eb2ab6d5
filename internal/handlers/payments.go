package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"paysuit/internal/metrics"
	"paysuit/internal/models"
	"paysuit/internal/store"
)

// InitiatePaymentHandler fires an STK push prompt for rent on a house the
// caller rents and records the payment as pending. Settlement arrives later
// on the callback endpoint.
func (h *Handler) InitiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, _ := CurrentClaims(r)

	var req struct {
		HouseID         int                     `json:"house_id"`
		PhoneNumber     string                  `json:"phone_number"`
		PaymentType     models.PaymentType      `json:"payment_type"`
		Period          *models.PaymentPeriod   `json:"payment_period"`
		SelectedCharges []models.SelectedCharge `json:"selected_charges"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if req.HouseID <= 0 || req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "House id and phone number are required")
		return
	}

	switch req.PaymentType {
	case models.PaymentMonthly:
		if req.Period == nil || req.Period.Month < 1 || req.Period.Month > 12 || req.Period.Year < 2000 {
			writeError(w, http.StatusBadRequest, "A valid payment period is required for monthly payments")
			return
		}
	case models.PaymentJoining:
		// Joining payments cover the deposit; no period.
		req.Period = nil
	default:
		writeError(w, http.StatusBadRequest, "Invalid payment type")
		return
	}

	house, err := h.Store.GetHouse(r.Context(), req.HouseID)
	if err != nil {
		writeError(w, http.StatusNotFound, "House not found")
		return
	}
	if house.TenantID != claims.UserID {
		writeError(w, http.StatusForbidden, "You do not rent this house")
		return
	}

	chargesTotal := 0
	for _, charge := range req.SelectedCharges {
		if charge.Amount < 0 {
			writeError(w, http.StatusBadRequest, "Charge amounts cannot be negative")
			return
		}
		chargesTotal += charge.Amount
	}

	// Selected charges are a subset of what the landlord configured; their
	// sum cannot exceed the configured total.
	if configured := house.AdditionalCharges.Total(); configured > 0 && chargesTotal > configured {
		writeError(w, http.StatusBadRequest, "Selected charges exceed the charges configured for this house")
		return
	}

	total := house.RentAmount + chargesTotal
	if req.PaymentType == models.PaymentJoining {
		total += house.DepositAmount
	}

	reference := fmt.Sprintf("house-%d", house.ID)
	initiation, err := h.Gateway.Initiate(r.Context(), req.PhoneNumber, total, reference)
	if err != nil {
		log.Printf("STK push initiation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to initiate payment")
		return
	}

	payment := models.Payment{
		TenantID:            claims.UserID,
		ApartmentID:         house.ApartmentID,
		HouseID:             house.ID,
		MerchantRequestID:   initiation.MerchantRequestID,
		CheckoutRequestID:   initiation.CheckoutRequestID,
		ResponseCode:        initiation.ResponseCode,
		ResponseDescription: initiation.ResponseDescription,
		CustomerMessage:     initiation.CustomerMessage,
		TotalAmount:         total,
		PhoneNumber:         req.PhoneNumber,
		SelectedCharges:     req.SelectedCharges,
		Period:              req.Period,
		PaymentType:         req.PaymentType,
		Status:              models.PaymentPending,
	}

	created, err := h.Store.CreatePayment(r.Context(), payment)
	if err != nil {
		log.Printf("Failed to store payment: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	metrics.PaymentsInitiatedTotal.Inc()
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "payment": created})
}

// PaymentCallbackHandler processes the gateway's settlement callback. The
// request must carry a valid HMAC signature. Duplicate callbacks for an
// already settled payment are acknowledged without effect.
func (h *Handler) PaymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !validateCallbackSignature(r) {
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var req struct {
		CheckoutRequestID  string `json:"checkout_request_id"`
		ResultCode         int    `json:"result_code"`
		ResultDesc         string `json:"result_desc"`
		MpesaReceiptNumber string `json:"mpesa_receipt_number"`
		TransactionAmount  int    `json:"transaction_amount"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if req.CheckoutRequestID == "" {
		writeError(w, http.StatusBadRequest, "checkout_request_id is required")
		return
	}

	payment, applied, err := h.Store.ApplyPaymentCallback(r.Context(),
		req.CheckoutRequestID, req.ResultCode, req.ResultDesc,
		req.MpesaReceiptNumber, req.TransactionAmount)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Unknown checkout request")
			return
		}
		log.Printf("Failed to apply payment callback: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to process callback")
		return
	}

	if applied {
		metrics.PaymentCallbacksTotal.WithLabelValues(string(payment.Status)).Inc()
		h.announceSettlement(r, payment)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": payment.Status})
}

// announceSettlement notifies tenant and landlord about a settled payment
// and publishes the event for live dashboards.
func (h *Handler) announceSettlement(r *http.Request, payment models.Payment) {
	var title, body string
	switch payment.Status {
	case models.PaymentCompleted:
		title = "Payment received"
		body = fmt.Sprintf("KES %d received, receipt %s", payment.TotalAmount, payment.MpesaReceiptNumber)
	case models.PaymentCancelled:
		title = "Payment cancelled"
		body = "The payment prompt was cancelled"
	default:
		title = "Payment failed"
		body = payment.ResultDesc
	}

	payload := models.NotificationPayload{Title: title, Body: body, URL: "/payments"}
	h.notifyUser(r, payment.TenantID, payload)

	if apartment, err := h.Store.GetApartment(r.Context(), payment.ApartmentID); err == nil {
		h.notifyUser(r, apartment.LandlordID, payload)
	}

	if err := h.Feed.PublishEvent(r.Context(), map[string]any{
		"type":       "payment",
		"payment_id": payment.ID,
		"status":     payment.Status,
		"amount":     payment.TotalAmount,
		"settled_at": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		log.Printf("Failed to publish payment event: %v", err)
	}
}

// MyPaymentsHandler lists the caller's payments.
func (h *Handler) MyPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	payments, err := h.Store.GetPaymentsByTenant(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"payments": payments, "count": len(payments)})
}

// ApartmentPaymentsHandler lists payments for one apartment. Restricted to
// the owning landlord and admins.
func (h *Handler) ApartmentPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	id, ok := pathID(r, "/api/apartments/", "/payments")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid apartment id")
		return
	}

	apartment, err := h.Store.GetApartment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Apartment not found")
		return
	}

	if apartment.LandlordID != claims.UserID && !claims.Has(models.RoleAdmin) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	payments, err := h.Store.GetPaymentsByApartment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"payments": payments, "count": len(payments)})
}
