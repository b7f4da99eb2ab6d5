package models

import "time"

type HouseStatus string

const (
	HouseVacant   HouseStatus = "vacant"
	HouseOccupied HouseStatus = "occupied"
)

// House is one rentable door inside an apartment. TenantID is 0 while the
// house is vacant.
type House struct {
	ID                int               `json:"id"`
	ApartmentID       int               `json:"apartment_id"`
	DoorNumber        string            `json:"door_number"`
	Status            HouseStatus       `json:"status"`
	TenantID          int               `json:"tenant_id,omitempty"`
	RentAmount        int               `json:"rent_amount"`
	DepositAmount     int               `json:"deposit_amount,omitempty"`
	AdditionalCharges AdditionalCharges `json:"additional_charges"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}
