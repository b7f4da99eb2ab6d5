package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentCancelled
}

// CanTransition reports whether a payment in status s may move to next.
// The only legal moves are out of pending.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	return s == PaymentPending && next.Terminal()
}

type PaymentType string

const (
	PaymentJoining PaymentType = "joining" // first payment, includes deposit
	PaymentMonthly PaymentType = "monthly"
)

// PaymentPeriod is the month a monthly payment covers. Nil on joining
// payments.
type PaymentPeriod struct {
	Month int `json:"month"` // 1-12
	Year  int `json:"year"`
}

type SelectedCharge struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

type Payment struct {
	ID              int       `json:"id"`
	TenantID        int       `json:"tenant_id"`
	ApartmentID     int       `json:"apartment_id"`
	HouseID         int       `json:"house_id"`
	TransactionDate time.Time `json:"transaction_date"`

	// STK push initiation fields
	MerchantRequestID   string           `json:"merchant_request_id"`
	CheckoutRequestID   string           `json:"checkout_request_id"`
	ResponseCode        string           `json:"response_code"`
	ResponseDescription string           `json:"response_description"`
	CustomerMessage     string           `json:"customer_message"`
	TotalAmount         int              `json:"total_amount"`
	PhoneNumber         string           `json:"phone_number"`
	SelectedCharges     []SelectedCharge `json:"selected_charges,omitempty"`

	// Callback fields, populated when the gateway settles
	ResultCode         *int   `json:"result_code,omitempty"`
	ResultDesc         string `json:"result_desc,omitempty"`
	MpesaReceiptNumber string `json:"mpesa_receipt_number,omitempty"`
	TransactionAmount  int    `json:"transaction_amount,omitempty"`

	Period      *PaymentPeriod `json:"payment_period,omitempty"`
	PaymentType PaymentType    `json:"payment_type"`
	Status      PaymentStatus  `json:"status"`
}

// resultCancelled is the gateway result code for a prompt dismissed by the
// customer.
const resultCancelled = 1032

// StatusFromResultCode maps a gateway callback result code onto a terminal
// payment status: 0 is success, 1032 is user cancellation, everything else
// is a failure.
func StatusFromResultCode(code int) PaymentStatus {
	switch code {
	case 0:
		return PaymentCompleted
	case resultCancelled:
		return PaymentCancelled
	default:
		return PaymentFailed
	}
}
